package topic

// MixedID is the reserved id of the mixed/unclassified bucket.
const MixedID = -1

// GeneralCategory is the category used when no dictionary matches.
const GeneralCategory = "general"

// Topic is a discovered topic: its top terms and derived labels.
type Topic struct {
	ID       int      `json:"topic_id"`
	Keywords []string `json:"keywords"`
	Name     string   `json:"topic_name"`
	Category string   `json:"category"`
}

// IsMixed reports whether t is the mixed/unclassified bucket.
func (t Topic) IsMixed() bool { return t.ID == MixedID }

// Stat is one row of topic statistics: a topic plus its assigned documents.
type Stat struct {
	Topic
	Description       string  `json:"description,omitempty"`
	DocumentCount     int     `json:"document_count"`
	AverageConfidence float64 `json:"average_confidence"`
	DocumentIndices   []int   `json:"document_indices"`
}

// TotalDocuments sums DocumentCount over stats.
func TotalDocuments(stats []Stat) int {
	n := 0
	for _, s := range stats {
		n += s.DocumentCount
	}
	return n
}
