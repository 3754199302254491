package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// DateLayout is the calendar date format used for document dates.
const DateLayout = "2006-01-02"

// MaxTextSize is the maximum document text size in bytes.
const MaxTextSize = 65536

// Document is an ingested text (immutable value object).
type Document struct {
	id    string
	text  string
	theme string
	date  time.Time
}

// NewDocument validates and creates a Document.
// Text may be empty: the engine degrades to its fallback path for such corpora.
func NewDocument(id, text, theme string, date time.Time) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required")
	}
	if len(id) > 256 {
		return Document{}, fmt.Errorf("document ID too long (max 256)")
	}
	if len(text) > MaxTextSize {
		return Document{}, fmt.Errorf("text too large (max %d bytes)", MaxTextSize)
	}
	return Document{id: id, text: text, theme: theme, date: truncateDay(date)}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(id, text, theme string, date time.Time) Document {
	return Document{id: id, text: text, theme: theme, date: date}
}

// ID returns the document identifier.
func (d Document) ID() string { return d.id }

// Text returns the raw text body.
func (d Document) Text() string { return d.text }

// Theme returns the declared theme label, possibly empty.
func (d Document) Theme() string { return d.theme }

// Date returns the document date; zero when unknown.
func (d Document) Date() time.Time { return d.date }

// HasDate reports whether the document carries a date.
func (d Document) HasDate() bool { return !d.date.IsZero() }

// Preview returns the first n runes of the text, with an ellipsis when truncated.
func (d Document) Preview(n int) string {
	r := []rune(d.text)
	if len(r) <= n {
		return d.text
	}
	return string(r[:n]) + "..."
}

// Hash returns the hex sha256 of the document text.
func (d Document) Hash() string {
	h := sha256.Sum256([]byte(d.text))
	return hex.EncodeToString(h[:])
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, dd := t.Date()
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

// Corpus is an ordered sequence of documents; positions are document indices.
type Corpus struct {
	docs []Document
}

// New creates a Corpus, copying the input slice.
func New(docs []Document) Corpus {
	c := make([]Document, len(docs))
	copy(c, docs)
	return Corpus{docs: c}
}

// FromTexts builds a Corpus of undated documents with ids doc0..docN-1.
func FromTexts(texts []string) Corpus {
	docs := make([]Document, len(texts))
	for i, t := range texts {
		docs[i] = Document{id: fmt.Sprintf("doc%d", i), text: t}
	}
	return Corpus{docs: docs}
}

// Len returns the number of documents.
func (c Corpus) Len() int { return len(c.docs) }

// At returns the document at index i.
func (c Corpus) At(i int) Document { return c.docs[i] }

// Documents returns a copy of the documents.
func (c Corpus) Documents() []Document {
	out := make([]Document, len(c.docs))
	copy(out, c.docs)
	return out
}

// Texts returns the raw texts in corpus order.
func (c Corpus) Texts() []string {
	out := make([]string, len(c.docs))
	for i, d := range c.docs {
		out[i] = d.text
	}
	return out
}

// Slice returns the sub-corpus [from, to).
func (c Corpus) Slice(from, to int) Corpus {
	return New(c.docs[from:to])
}

// Hash returns a content hash over all texts in order.
// Document ids do not participate: equal texts analyse identically.
func (c Corpus) Hash() string {
	h := sha256.New()
	for _, d := range c.docs {
		sum := sha256.Sum256([]byte(d.text))
		h.Write(sum[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
