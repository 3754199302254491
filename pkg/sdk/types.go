package topicdex

import "time"

// Strategy selects the analysis pipeline.
type Strategy string

// Strategy constants.
const (
	StrategyHybrid   Strategy = "hybrid"
	StrategySingle   Strategy = "single"
	StrategyFallback Strategy = "fallback"
	StrategyLLM      Strategy = "llm"
	// StrategyLLMFallback is reported when the chat model was unavailable
	// and keyword clustering produced the result.
	StrategyLLMFallback Strategy = "llm_fallback"
)

// MixedTopicID is the id of the bucket for documents no topic claims confidently.
const MixedTopicID = -1

// Document is one input text.
type Document struct {
	ID    string // assigned when empty
	Text  string
	Theme string // classified when empty
	Date  time.Time
}

// Topic is one discovered topic with its member documents.
type Topic struct {
	ID            int
	Name          string
	Category      string
	Description   string
	Keywords      []string
	DocumentCount int
	Confidence    float64 // average over members
	Documents     []int   // indices into the analysed documents
}

// IsMixed reports whether t is the mixed bucket.
func (t Topic) IsMixed() bool { return t.ID == MixedTopicID }

// Assignment places one document in a topic.
type Assignment struct {
	Document   int
	Topic      int
	Confidence float64
	// Agreed is true when both models of the hybrid pipeline chose the topic.
	Agreed bool
}

// Result is the outcome of one analysis.
type Result struct {
	Documents      []Document // with assigned ids and themes
	Topics         []Topic
	Assignments    []Assignment
	Strategy       Strategy
	Algorithm      string
	OptimalTopics  int
	VocabularySize int
	FallbackReason string
	Model          string
	Seed           int64
	Duration       time.Duration
	Cached         bool
}

// TopicOf returns the topic holding document i.
func (r *Result) TopicOf(i int) (Topic, bool) {
	for _, t := range r.Topics {
		for _, idx := range t.Documents {
			if idx == i {
				return t, true
			}
		}
	}
	return Topic{}, false
}

// HealthStatus represents the aggregated health of the optional backends.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component → "ok"/"error"
}
