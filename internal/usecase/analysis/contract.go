package analysis

import (
	"context"

	domanalysis "github.com/kailas-cloud/topicdex/internal/domain/analysis"
	"github.com/kailas-cloud/topicdex/internal/domain/corpus"
	"github.com/kailas-cloud/topicdex/internal/engine"
	"github.com/kailas-cloud/topicdex/internal/engine/namer"
)

// Engine runs the statistical pipelines.
type Engine interface {
	Analyze(ctx context.Context, c corpus.Corpus, opts engine.Options) (domanalysis.Result, error)
	// Fingerprint identifies the language resources results depend on.
	Fingerprint() string
}

// LLMPipeline runs the prompt-based pipeline. It caches on its own.
type LLMPipeline interface {
	Analyze(ctx context.Context, c corpus.Corpus) (domanalysis.Result, error)
}

// ResultCache stores engine results by content key.
type ResultCache interface {
	Get(ctx context.Context, key string) (domanalysis.Result, bool)
	Put(ctx context.Context, key string, res domanalysis.Result)
}

// SessionStore persists sessions and uploaded documents.
type SessionStore interface {
	Save(ctx context.Context, s domanalysis.Session) error
	SaveDocuments(ctx context.Context, docs []corpus.Document) error
}

// ThemeClassifier assigns a theme to a document text.
type ThemeClassifier interface {
	Classify(text string, keywords []string) namer.Classification
}
