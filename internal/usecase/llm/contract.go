package llm

import (
	"context"

	"github.com/kailas-cloud/topicdex/internal/domain/analysis"
)

// Completer sends a single prompt to a chat model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
	Provider() string
}

// ResultCache stores pipeline results by content key.
type ResultCache interface {
	Get(ctx context.Context, key string) (analysis.Result, bool)
	Put(ctx context.Context, key string, res analysis.Result)
}

// Categorizer maps a topic to a coarse category.
type Categorizer interface {
	Categorize(keywords []string, name, description string) string
}
