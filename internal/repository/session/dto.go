package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kailas-cloud/topicdex/internal/domain/analysis"
	"github.com/kailas-cloud/topicdex/internal/domain/corpus"
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

type sessionRow struct {
	id, name, description string
	createdAt             time.Time
	result                analysis.Result
}

func scanSession(s scanner) (sessionRow, error) {
	var (
		row            sessionRow
		created, rawJS string
	)
	if err := s.Scan(&row.id, &row.name, &row.description, &created, &rawJS); err != nil {
		return sessionRow{}, err
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return sessionRow{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	row.createdAt = t
	if err := json.Unmarshal([]byte(rawJS), &row.result); err != nil {
		return sessionRow{}, fmt.Errorf("decode result of session %s: %w", row.id, err)
	}
	return row, nil
}

func scanDocument(s scanner) (corpus.Document, error) {
	var id, text, theme, date string
	if err := s.Scan(&id, &text, &theme, &date); err != nil {
		return corpus.Document{}, fmt.Errorf("scan document: %w", err)
	}
	return corpus.Reconstruct(id, text, theme, parseDate(date)), nil
}

// timeLayout is fixed-width so stored timestamps sort as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// formatDate returns the calendar date or "" for undated documents.
func formatDate(d corpus.Document) string {
	if !d.HasDate() {
		return ""
	}
	return d.Date().Format(corpus.DateLayout)
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(corpus.DateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
