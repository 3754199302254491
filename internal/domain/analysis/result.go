package analysis

import (
	"time"

	"github.com/kailas-cloud/topicdex/internal/domain/assignment"
	"github.com/kailas-cloud/topicdex/internal/domain/topic"
)

// Strategy names the pipeline that produced a result.
type Strategy string

const (
	// Hybrid is the dual-model LDA+NMF consensus pipeline.
	Hybrid Strategy = "hybrid"
	// Single is the single-model LDA pipeline with a mixed bucket.
	Single Strategy = "single"
	// Fallback is the rule-based keyword scoring pipeline.
	Fallback Strategy = "fallback"
	// LLM is the prompt-based extraction pipeline.
	LLM Strategy = "llm"
	// LLMFallback is the keyword-clustering pipeline used when the LLM is unavailable.
	LLMFallback Strategy = "llm_fallback"
)

// ParseStrategy converts a request value into a Strategy. Empty means Hybrid.
func ParseStrategy(s string) (Strategy, bool) {
	switch Strategy(s) {
	case "", Hybrid:
		return Hybrid, true
	case Single, Fallback, LLM:
		return Strategy(s), true
	default:
		return "", false
	}
}

// ModelResult holds one model's per-topic output.
type ModelResult struct {
	Topics      []topic.Topic         `json:"keywords"`
	Stats       []topic.Stat          `json:"topic_statistics"`
	Assignments []assignment.Document `json:"assignments"`
}

// Metadata describes how a result was produced.
type Metadata struct {
	TotalDocuments int       `json:"total_documents"`
	OptimalTopics  int       `json:"optimal_topics"`
	VocabularySize int       `json:"vocabulary_size"`
	Algorithm      string    `json:"algorithm_used"`
	Strategy       Strategy  `json:"strategy"`
	FallbackReason string    `json:"fallback_reason,omitempty"`
	Model          string    `json:"model_used,omitempty"`
	Provider       string    `json:"provider,omitempty"`
	Seed           int64     `json:"seed"`
	DurationMS     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// Result is the common output of every pipeline.
// Topics is the final statistics list; every document appears in exactly one row.
type Result struct {
	Topics    []topic.Stat           `json:"topic_statistics"`
	Consensus []assignment.Consensus `json:"consensus_assignments,omitempty"`
	LDA       *ModelResult           `json:"lda,omitempty"`
	NMF       *ModelResult           `json:"nmf,omitempty"`
	Metadata  Metadata               `json:"metadata"`
}

// DocumentTopic returns the final topic row containing document index i.
func (r *Result) DocumentTopic(i int) (topic.Stat, bool) {
	for _, s := range r.Topics {
		for _, idx := range s.DocumentIndices {
			if idx == i {
				return s, true
			}
		}
	}
	return topic.Stat{}, false
}

// NonEmptyTopics returns the number of topic rows with at least one document.
func (r *Result) NonEmptyTopics() int {
	n := 0
	for _, s := range r.Topics {
		if s.DocumentCount > 0 {
			n++
		}
	}
	return n
}
