package chi

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/topicdex/internal/domain/analysis"
	"github.com/kailas-cloud/topicdex/internal/domain/corpus"
	"github.com/kailas-cloud/topicdex/internal/domain/topic"
	"github.com/kailas-cloud/topicdex/internal/engine"
	"github.com/kailas-cloud/topicdex/internal/engine/ksel"
	"github.com/kailas-cloud/topicdex/internal/engine/vectorize"
)

const (
	sampleDocuments = 3
	samplePreview   = 100
)

// ErrorCode is a machine-readable error code.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeUnauthorized     ErrorCode = "unauthorized"
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
	ErrorCodeNotFound         ErrorCode = "not_found"
	ErrorCodeLLMProviderError ErrorCode = "llm_provider_error"
	ErrorCodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DocumentInput is one uploaded document.
type DocumentInput struct {
	ID    string `json:"id,omitempty"`
	Text  string `json:"text"`
	Date  string `json:"date,omitempty"` // YYYY-MM-DD
	Theme string `json:"theme,omitempty"`
}

// AnalyzeRequest is the body of the analyze endpoints. Either Documents or
// Texts is used; zero option fields take the server defaults.
type AnalyzeRequest struct {
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Documents   []DocumentInput `json:"documents,omitempty"`
	Texts       []string        `json:"texts,omitempty"`
	Strategy    string          `json:"strategy,omitempty"`
	NumTopics   int             `json:"num_topics,omitempty"`
	MaxTopics   int             `json:"max_topics,omitempty"`
	Weighting   string          `json:"weighting,omitempty"`
	Selection   string          `json:"selection,omitempty"`
	Seed        *int64          `json:"seed,omitempty"`
}

// UploadRequest is the body of POST /documents.
type UploadRequest struct {
	Documents []DocumentInput `json:"documents"`
}

// SampleDocument is a short view of an analysed document.
type SampleDocument struct {
	ID        string `json:"id"`
	Preview   string `json:"text"`
	Date      string `json:"date,omitempty"`
	Theme     string `json:"theme,omitempty"`
	TopicID   *int   `json:"topic_id,omitempty"`
	TopicName string `json:"topic_name,omitempty"`
}

// AnalyzeResponse is the reply of the analyze endpoints.
type AnalyzeResponse struct {
	SessionID       string           `json:"session_id,omitempty"`
	Cached          bool             `json:"cached"`
	Result          analysis.Result  `json:"result"`
	SampleDocuments []SampleDocument `json:"sample_documents"`
}

// UploadResponse is the reply of POST /documents.
type UploadResponse struct {
	Count     int              `json:"count"`
	Documents []SampleDocument `json:"documents"`
}

// SessionSummary is a list item of GET /sessions.
type SessionSummary struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Algorithm      string    `json:"algorithm"`
	Strategy       string    `json:"strategy"`
	TotalDocuments int       `json:"total_documents"`
	Topics         int       `json:"topics"`
	CreatedAt      time.Time `json:"created_at"`
}

// SessionListResponse is the reply of GET /sessions.
type SessionListResponse struct {
	Items  []SessionSummary `json:"items"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// SessionResponse is the reply of GET /sessions/{id}.
type SessionResponse struct {
	SessionSummary
	Result    analysis.Result  `json:"result"`
	Documents []SampleDocument `json:"documents"`
}

// HealthResponse is the reply of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// PurgeResponse is the reply of DELETE /cache.
type PurgeResponse struct {
	Deleted int64 `json:"deleted"`
}

func documentsFromRequest(docs []DocumentInput, texts []string) ([]corpus.Document, error) {
	for _, t := range texts {
		docs = append(docs, DocumentInput{Text: t})
	}
	out := make([]corpus.Document, len(docs))
	seen := make(map[string]int, len(docs))
	for i, in := range docs {
		if in.ID != "" {
			if first, ok := seen[in.ID]; ok {
				return nil, fmt.Errorf("document %d: id %q repeats document %d", i, in.ID, first)
			}
			seen[in.ID] = i
		}
		d, err := documentFromInput(in)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		out[i] = d
	}
	return out, nil
}

func documentFromInput(in DocumentInput) (corpus.Document, error) {
	if strings.TrimSpace(in.Text) == "" {
		return corpus.Document{}, fmt.Errorf("text is required")
	}
	var date time.Time
	if in.Date != "" {
		var err error
		if date, err = time.Parse(corpus.DateLayout, in.Date); err != nil {
			return corpus.Document{}, fmt.Errorf("date must be YYYY-MM-DD, got %q", in.Date)
		}
	}
	if in.ID == "" {
		if len(in.Text) > corpus.MaxTextSize {
			return corpus.Document{}, fmt.Errorf("text too large (max %d bytes)", corpus.MaxTextSize)
		}
		return corpus.Reconstruct("", in.Text, in.Theme, date), nil
	}
	d, err := corpus.NewDocument(in.ID, in.Text, in.Theme, date)
	if err != nil {
		return corpus.Document{}, fmt.Errorf("build document: %w", err)
	}
	return d, nil
}

// options overlays the request fields on defaults.
func (r AnalyzeRequest) options(defaults engine.Options, strategy analysis.Strategy) (engine.Options, error) {
	opts := defaults
	opts.Strategy = strategy
	if r.Strategy != "" {
		s, ok := analysis.ParseStrategy(r.Strategy)
		if !ok {
			return engine.Options{}, fmt.Errorf("unknown strategy %q", r.Strategy)
		}
		opts.Strategy = s
	}
	if r.NumTopics < 0 || r.MaxTopics < 0 {
		return engine.Options{}, fmt.Errorf("topic counts must be non-negative")
	}
	if r.NumTopics > 0 {
		opts.NumTopics = r.NumTopics
	}
	if r.MaxTopics > 0 {
		opts.MaxTopics = r.MaxTopics
	}
	switch w := vectorize.Weighting(r.Weighting); w {
	case "":
	case vectorize.TFIDF, vectorize.Count:
		opts.Weighting = w
	default:
		return engine.Options{}, fmt.Errorf("unknown weighting %q", r.Weighting)
	}
	switch m := ksel.Method(r.Selection); m {
	case "":
	case ksel.SilhouetteMethod, ksel.PerplexityMethod:
		opts.Selection = m
	default:
		return engine.Options{}, fmt.Errorf("unknown selection method %q", r.Selection)
	}
	if r.Seed != nil {
		opts.Seed = *r.Seed
	}
	return opts, nil
}

func samples(docs []corpus.Document, res *analysis.Result, n int) []SampleDocument {
	n = min(n, len(docs))
	out := make([]SampleDocument, n)
	for i := range n {
		out[i] = sampleDocument(docs[i])
		if st, ok := res.DocumentTopic(i); ok {
			out[i].TopicID = &st.ID
			out[i].TopicName = st.Name
		}
	}
	return out
}

func sampleDocument(d corpus.Document) SampleDocument {
	s := SampleDocument{ID: d.ID(), Preview: d.Preview(samplePreview), Theme: d.Theme()}
	if d.HasDate() {
		s.Date = d.Date().Format(corpus.DateLayout)
	}
	return s
}

func sessionSummary(s *analysis.Session) SessionSummary {
	res := s.Result()
	return SessionSummary{
		ID:             s.ID(),
		Name:           s.Name(),
		Description:    s.Description(),
		Algorithm:      s.Algorithm(),
		Strategy:       string(res.Metadata.Strategy),
		TotalDocuments: res.Metadata.TotalDocuments,
		Topics:         countTopics(res.Topics),
		CreatedAt:      s.CreatedAt().UTC(),
	}
}

func countTopics(rows []topic.Stat) int {
	n := 0
	for _, r := range rows {
		if !r.IsMixed() && r.DocumentCount > 0 {
			n++
		}
	}
	return n
}
