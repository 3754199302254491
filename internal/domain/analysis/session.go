package analysis

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/topicdex/internal/domain/corpus"
)

// MaxNameLength bounds session names.
const MaxNameLength = 200

// Session is a persisted analysis run (aggregate).
type Session struct {
	id          string
	name        string
	description string
	createdAt   time.Time
	documents   []corpus.Document
	result      Result
}

// NewSession validates and creates a Session.
func NewSession(id, name, description string, docs []corpus.Document, res Result) (Session, error) {
	if id == "" {
		return Session{}, fmt.Errorf("session ID is required")
	}
	if len(name) > MaxNameLength {
		return Session{}, fmt.Errorf("session name too long (max %d)", MaxNameLength)
	}
	if name == "" {
		name = "Analysis " + res.Metadata.CreatedAt.UTC().Format("2006-01-02 15:04")
	}
	return Session{
		id:          id,
		name:        name,
		description: description,
		createdAt:   res.Metadata.CreatedAt,
		documents:   docs,
		result:      res,
	}, nil
}

// ReconstructSession creates a Session without validation (storage hydration).
func ReconstructSession(
	id, name, description string, createdAt time.Time, docs []corpus.Document, res Result,
) Session {
	return Session{id: id, name: name, description: description, createdAt: createdAt, documents: docs, result: res}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Name returns the session name.
func (s *Session) Name() string { return s.name }

// Description returns the free-form description.
func (s *Session) Description() string { return s.description }

// CreatedAt returns the creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Documents returns the analysed documents in corpus order.
func (s *Session) Documents() []corpus.Document { return s.documents }

// Result returns the analysis result.
func (s *Session) Result() Result { return s.result }

// Algorithm returns the algorithm recorded in the result metadata.
func (s *Session) Algorithm() string { return s.result.Metadata.Algorithm }
