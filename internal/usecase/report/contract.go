package report

import (
	"context"
	"time"

	"github.com/kailas-cloud/topicdex/internal/domain/analysis"
	"github.com/kailas-cloud/topicdex/internal/domain/corpus"
	"github.com/kailas-cloud/topicdex/internal/domain/topic"
)

// SessionReader reads persisted sessions.
type SessionReader interface {
	Get(ctx context.Context, id string) (analysis.Session, error)
	List(ctx context.Context, limit, offset int) ([]analysis.Session, error)
	Period(ctx context.Context, sessionID string, start, end time.Time) (analysis.Period, error)
	TopicDocuments(
		ctx context.Context, sessionID string, topicID int, start, end time.Time,
	) (topic.Stat, []corpus.Document, error)
}

// Narrator writes a topic report over a period.
type Narrator interface {
	Summarize(ctx context.Context, st topic.Stat, docs []corpus.Document, start, end time.Time) analysis.Narrative
}
