package report

import (
	"context"
	"time"

	"github.com/kailas-cloud/topicdex/internal/domain"
	"github.com/kailas-cloud/topicdex/internal/domain/analysis"
	"github.com/kailas-cloud/topicdex/internal/domain/corpus"
	"github.com/kailas-cloud/topicdex/internal/domain/topic"
)

// --- Mocks ---

type mockReader struct {
	sessions    map[string]analysis.Session
	period      analysis.Period
	stat        topic.Stat
	docs        []corpus.Document
	err         error
	listLimit   int
	listOffset  int
	periodCalls int
}

func (m *mockReader) Get(_ context.Context, id string) (analysis.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return analysis.Session{}, domain.ErrNotFound
	}
	return s, nil
}

func (m *mockReader) List(_ context.Context, limit, offset int) ([]analysis.Session, error) {
	m.listLimit, m.listOffset = limit, offset
	if m.err != nil {
		return nil, m.err
	}
	var out []analysis.Session
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockReader) Period(_ context.Context, _ string, _, _ time.Time) (analysis.Period, error) {
	m.periodCalls++
	if m.err != nil {
		return analysis.Period{}, m.err
	}
	p := m.period
	p.Topics = append([]analysis.PeriodTopic(nil), m.period.Topics...)
	return p, nil
}

func (m *mockReader) TopicDocuments(
	_ context.Context, _ string, _ int, _, _ time.Time,
) (topic.Stat, []corpus.Document, error) {
	if m.err != nil {
		return topic.Stat{}, nil, m.err
	}
	return m.stat, m.docs, nil
}

type mockNarrator struct {
	stat topic.Stat
	docs int
}

func (m *mockNarrator) Summarize(
	_ context.Context, st topic.Stat, docs []corpus.Document, start, end time.Time,
) analysis.Narrative {
	m.stat, m.docs = st, len(docs)
	return analysis.Narrative{TopicID: st.ID, Start: start, End: end, Documents: len(docs), Text: "# " + st.Name}
}

// --- Helpers ---

func date(s string) time.Time {
	t, err := time.Parse(corpus.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}
