package analysis

import "time"

// PeriodTopic is one topic's share of a session's documents within a date range.
type PeriodTopic struct {
	TopicID       int      `json:"topic_id"`
	Name          string   `json:"topic_name"`
	Category      string   `json:"category"`
	Keywords      []string `json:"keywords"`
	Confidence    float64  `json:"confidence_score"`
	DocumentCount int      `json:"document_count"`
	Percentage    float64  `json:"percentage"`
}

// Period summarizes a session over an inclusive date range.
type Period struct {
	SessionID      string        `json:"session_id"`
	Start          time.Time     `json:"start_date"`
	End            time.Time     `json:"end_date"`
	TotalDocuments int           `json:"total_documents"`
	Topics         []PeriodTopic `json:"topic_statistics"`
	Dominant       *PeriodTopic  `json:"dominant_topic"`
}

// Narrative is a markdown report about one topic over a period.
type Narrative struct {
	SessionID string    `json:"session_id"`
	TopicID   int       `json:"topic_id"`
	Start     time.Time `json:"start_date"`
	End       time.Time `json:"end_date"`
	Documents int       `json:"document_count"`
	Text      string    `json:"text"`
	// Generated is false when the deterministic template was used.
	Generated bool `json:"generated"`
}
