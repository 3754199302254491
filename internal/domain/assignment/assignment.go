package assignment

// NoTopic marks an unset secondary topic.
const NoTopic = -1

// Document is one model's view of one document.
type Document struct {
	DocumentIndex int       `json:"document_index"`
	Distribution  []float64 `json:"topic_distribution"`
	Dominant      int       `json:"dominant_topic"`
	Confidence    float64   `json:"confidence"`
	Secondary     int       `json:"secondary_topic"`
}

// HasSecondary reports whether a secondary topic was recorded.
func (d Document) HasSecondary() bool { return d.Secondary != NoTopic }

// Consensus is the reconciled assignment of one document across two models.
type Consensus struct {
	DocumentIndex int     `json:"document_index"`
	Topic         int     `json:"dominant_topic"`
	Confidence    float64 `json:"confidence"`
	Agreed        bool    `json:"agreed"`
}

// Labeled is the minimal view used by topic statistics.
type Labeled interface {
	Index() int
	Label() int
	Score() float64
}

// Index implements Labeled.
func (d Document) Index() int { return d.DocumentIndex }

// Label implements Labeled.
func (d Document) Label() int { return d.Dominant }

// Score implements Labeled.
func (d Document) Score() float64 { return d.Confidence }

// Index implements Labeled.
func (c Consensus) Index() int { return c.DocumentIndex }

// Label implements Labeled.
func (c Consensus) Label() int { return c.Topic }

// Score implements Labeled.
func (c Consensus) Score() float64 { return c.Confidence }
