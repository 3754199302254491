// Package report serves persisted sessions and period summaries over them.
package report

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kailas-cloud/topicdex/internal/domain"
	"github.com/kailas-cloud/topicdex/internal/domain/analysis"
)

// Service reads sessions and builds reports.
type Service struct {
	sessions        SessionReader
	narrator        Narrator
	defaultPageSize int
	maxPageSize     int
}

// New creates a report service.
func New(sessions SessionReader, narrator Narrator) *Service {
	return &Service{
		sessions:        sessions,
		narrator:        narrator,
		defaultPageSize: 20,
		maxPageSize:     100,
	}
}

// WithPagination configures page size limits.
func (s *Service) WithPagination(defaultPageSize, maxPageSize int) *Service {
	if defaultPageSize > 0 {
		s.defaultPageSize = defaultPageSize
	}
	if maxPageSize > 0 {
		s.maxPageSize = maxPageSize
	}
	return s
}

// List returns sessions newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]analysis.Session, error) {
	if limit <= 0 {
		limit = s.defaultPageSize
	}
	limit = min(limit, s.maxPageSize)
	offset = max(offset, 0)

	sessions, err := s.sessions.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Get returns a session with its documents and result.
func (s *Service) Get(ctx context.Context, id string) (analysis.Session, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return analysis.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// Summary reports topic shares of a session's documents dated within the
// inclusive range [start, end].
func (s *Service) Summary(ctx context.Context, sessionID string, start, end time.Time) (analysis.Period, error) {
	if err := validateRange(start, end); err != nil {
		return analysis.Period{}, err
	}
	p, err := s.sessions.Period(ctx, sessionID, start, end)
	if err != nil {
		return analysis.Period{}, fmt.Errorf("period summary: %w", err)
	}

	for i := range p.Topics {
		if p.TotalDocuments > 0 {
			p.Topics[i].Percentage = round2(float64(p.Topics[i].DocumentCount) / float64(p.TotalDocuments) * 100)
		}
		if p.Dominant == nil || p.Topics[i].DocumentCount > p.Dominant.DocumentCount {
			p.Dominant = &p.Topics[i]
		}
	}
	return p, nil
}

// Narrative writes a report on one topic over [start, end].
func (s *Service) Narrative(
	ctx context.Context, sessionID string, topicID int, start, end time.Time,
) (analysis.Narrative, error) {
	if err := validateRange(start, end); err != nil {
		return analysis.Narrative{}, err
	}
	st, docs, err := s.sessions.TopicDocuments(ctx, sessionID, topicID, start, end)
	if err != nil {
		return analysis.Narrative{}, fmt.Errorf("topic documents: %w", err)
	}
	if sess, err := s.sessions.Get(ctx, sessionID); err == nil {
		res := sess.Result()
		for _, row := range res.Topics {
			if row.ID == topicID {
				st.Description = row.Description
			}
		}
	}

	n := s.narrator.Summarize(ctx, st, docs, start, end)
	n.SessionID = sessionID
	return n, nil
}

func validateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", domain.ErrInvalidInput)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end date precedes start date", domain.ErrInvalidInput)
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
