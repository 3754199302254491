package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/topicdex/internal/domain"
	"github.com/kailas-cloud/topicdex/internal/domain/analysis"
	"github.com/kailas-cloud/topicdex/internal/domain/corpus"
	"github.com/kailas-cloud/topicdex/internal/domain/topic"
)

func TestSummary(t *testing.T) {
	r := &mockReader{period: analysis.Period{
		SessionID:      "s1",
		TotalDocuments: 3,
		Topics: []analysis.PeriodTopic{
			{TopicID: 0, Name: "Спорт", DocumentCount: 1},
			{TopicID: 1, Name: "Финансы", DocumentCount: 2},
		},
	}}
	svc := New(r, &mockNarrator{})

	p, err := svc.Summary(context.Background(), "s1", date("2024-01-01"), date("2024-01-31"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Topics[0].Percentage != 33.33 || p.Topics[1].Percentage != 66.67 {
		t.Errorf("unexpected percentages: %v, %v", p.Topics[0].Percentage, p.Topics[1].Percentage)
	}
	if p.Dominant == nil || p.Dominant.TopicID != 1 {
		t.Errorf("expected dominant topic 1, got %+v", p.Dominant)
	}
}

func TestSummary_TieKeepsFirst(t *testing.T) {
	r := &mockReader{period: analysis.Period{
		TotalDocuments: 2,
		Topics: []analysis.PeriodTopic{
			{TopicID: 3, DocumentCount: 1},
			{TopicID: 5, DocumentCount: 1},
		},
	}}
	p, err := New(r, &mockNarrator{}).Summary(context.Background(), "s1", date("2024-01-01"), date("2024-01-01"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Dominant == nil || p.Dominant.TopicID != 3 || p.Topics[1].Percentage != 50 {
		t.Errorf("unexpected summary: %+v", p)
	}
}

func TestSummary_Empty(t *testing.T) {
	p, err := New(&mockReader{}, &mockNarrator{}).Summary(context.Background(), "s1", date("2024-01-01"), date("2024-02-01"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Dominant != nil || len(p.Topics) != 0 {
		t.Errorf("expected an empty summary, got %+v", p)
	}
}

func TestSummary_InvalidRange(t *testing.T) {
	r := &mockReader{}
	svc := New(r, &mockNarrator{})
	tests := []struct {
		name       string
		start, end time.Time
	}{
		{"reversed", date("2024-02-01"), date("2024-01-01")},
		{"missing start", time.Time{}, date("2024-01-01")},
		{"missing end", date("2024-01-01"), time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Summary(context.Background(), "s1", tt.start, tt.end)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
	if r.periodCalls != 0 {
		t.Error("invalid ranges must not reach storage")
	}
}

func TestSummary_NotFound(t *testing.T) {
	svc := New(&mockReader{err: domain.ErrNotFound}, &mockNarrator{})
	_, err := svc.Summary(context.Background(), "nope", date("2024-01-01"), date("2024-01-02"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestList_Pagination(t *testing.T) {
	tests := []struct {
		name                  string
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{"defaults", 0, -3, 20, 0},
		{"clamped", 500, 10, 100, 10},
		{"explicit", 5, 5, 5, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &mockReader{}
			if _, err := New(r, &mockNarrator{}).List(context.Background(), tt.limit, tt.offset); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.listLimit != tt.wantLimit || r.listOffset != tt.wantOffset {
				t.Errorf("got limit=%d offset=%d, want %d %d", r.listLimit, r.listOffset, tt.wantLimit, tt.wantOffset)
			}
		})
	}

	r := &mockReader{}
	New(r, &mockNarrator{}).WithPagination(10, 50).List(context.Background(), 0, 0)
	if r.listLimit != 10 {
		t.Errorf("expected configured default 10, got %d", r.listLimit)
	}
}

func TestGet_NotFound(t *testing.T) {
	_, err := New(&mockReader{}, &mockNarrator{}).Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNarrative(t *testing.T) {
	res := analysis.Result{Topics: []topic.Stat{
		{Topic: topic.Topic{ID: 1, Name: "Финансы"}, Description: "Новости рынков"},
	}}
	sess := analysis.ReconstructSession("s1", "n", "", time.Now(), nil, res)
	r := &mockReader{
		sessions: map[string]analysis.Session{"s1": sess},
		stat:     topic.Stat{Topic: topic.Topic{ID: 1, Name: "Финансы"}},
		docs: []corpus.Document{
			corpus.Reconstruct("d1", "банк", "", date("2024-01-03")),
		},
	}
	nar := &mockNarrator{}

	n, err := New(r, nar).Narrative(context.Background(), "s1", 1, date("2024-01-01"), date("2024-01-31"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.SessionID != "s1" || n.TopicID != 1 || n.Text != "# Финансы" || n.Documents != 1 {
		t.Errorf("unexpected narrative: %+v", n)
	}
	if nar.stat.Description != "Новости рынков" {
		t.Errorf("expected description from the session result, got %q", nar.stat.Description)
	}
}
