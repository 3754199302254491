package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kailas-cloud/topicdex/internal/db/sqlite"
	"github.com/kailas-cloud/topicdex/internal/domain"
	"github.com/kailas-cloud/topicdex/internal/domain/analysis"
	"github.com/kailas-cloud/topicdex/internal/domain/assignment"
	"github.com/kailas-cloud/topicdex/internal/domain/corpus"
	"github.com/kailas-cloud/topicdex/internal/domain/topic"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db.DB)
}

func day(s string) time.Time {
	t, err := time.Parse(corpus.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func testSession(t *testing.T, id string, created time.Time) analysis.Session {
	t.Helper()
	docs := []corpus.Document{
		corpus.Reconstruct(id+"-d0", "хоккей матч гол", "спорт", day("2024-01-10")),
		corpus.Reconstruct(id+"-d1", "банк кредит", "финансы", day("2024-01-15")),
		corpus.Reconstruct(id+"-d2", "хоккей чемпионат", "спорт", day("2024-02-01")),
		corpus.Reconstruct(id+"-d3", "без даты", "", time.Time{}),
	}
	res := analysis.Result{
		Topics: []topic.Stat{
			{
				Topic:             topic.Topic{ID: 0, Name: "Спорт: хоккей", Keywords: []string{"хоккей", "гол"}, Category: "спорт"},
				DocumentCount:     3,
				AverageConfidence: 0.9,
				DocumentIndices:   []int{0, 2, 3},
			},
			{
				Topic:             topic.Topic{ID: 1, Name: "Финансы: банк", Keywords: []string{"банк"}, Category: "финансы"},
				DocumentCount:     1,
				AverageConfidence: 0.8,
				DocumentIndices:   []int{1},
			},
			{Topic: topic.Topic{ID: 2, Name: "empty"}},
		},
		Consensus: []assignment.Consensus{
			{DocumentIndex: 0, Topic: 0, Confidence: 0.95, Agreed: true},
			{DocumentIndex: 1, Topic: 1, Confidence: 0.8, Agreed: true},
			{DocumentIndex: 2, Topic: 0, Confidence: 0.85},
			{DocumentIndex: 3, Topic: 0, Confidence: 0.9},
		},
		Metadata: analysis.Metadata{
			TotalDocuments: 4,
			OptimalTopics:  2,
			Algorithm:      "LDA+NMF",
			Strategy:       analysis.Hybrid,
			CreatedAt:      created,
		},
	}
	s, err := analysis.NewSession(id, "test "+id, "desc", docs, res)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func TestSaveAndGet(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := r.Save(ctx, testSession(t, "s1", created)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := r.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name() != "test s1" || got.Description() != "desc" || !got.CreatedAt().Equal(created) {
		t.Errorf("unexpected session: %s %q %v", got.Name(), got.Description(), got.CreatedAt())
	}
	docs := got.Documents()
	if len(docs) != 4 || docs[2].ID() != "s1-d2" || docs[2].Date().Format(corpus.DateLayout) != "2024-02-01" {
		t.Fatalf("unexpected documents: %+v", docs)
	}
	if docs[3].HasDate() {
		t.Error("undated document must stay undated")
	}
	res := got.Result()
	if len(res.Topics) != 3 || res.Topics[0].Name != "Спорт: хоккей" || res.Metadata.Strategy != analysis.Hybrid {
		t.Errorf("result not round-tripped: %+v", res)
	}
}

func TestGet_NotFound(t *testing.T) {
	r := newTestRepo(t)
	if _, err := r.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSave_DuplicateID(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	s := testSession(t, "dup", time.Now())
	if err := r.Save(ctx, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Save(ctx, s); err == nil {
		t.Fatal("expected error on duplicate session")
	}
}

func TestList(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := r.Save(ctx, testSession(t, id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := r.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID() != "c" || got[1].ID() != "b" {
		t.Fatalf("unexpected order: %v", ids(got))
	}
	if got[0].Documents() != nil {
		t.Error("list must not load documents")
	}

	rest, err := r.List(ctx, 2, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rest) != 1 || rest[0].ID() != "a" {
		t.Fatalf("unexpected page: %v", ids(rest))
	}
}

func ids(ss []analysis.Session) []string {
	out := make([]string, len(ss))
	for i := range ss {
		out[i] = ss[i].ID()
	}
	return out
}

func TestPeriod(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	if err := r.Save(ctx, testSession(t, "s1", time.Now())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := r.Period(ctx, "s1", day("2024-01-01"), day("2024-01-31"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.TotalDocuments != 2 {
		t.Errorf("expected 2 documents in January, got %d", p.TotalDocuments)
	}
	if len(p.Topics) != 2 {
		t.Fatalf("expected 2 topics, got %+v", p.Topics)
	}
	if p.Topics[0].TopicID != 0 || p.Topics[0].DocumentCount != 1 || len(p.Topics[0].Keywords) != 2 {
		t.Errorf("unexpected sport row: %+v", p.Topics[0])
	}

	// Inclusive bounds.
	p, err = r.Period(ctx, "s1", day("2024-01-15"), day("2024-02-01"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.TotalDocuments != 2 {
		t.Errorf("expected inclusive range to hold 2 documents, got %d", p.TotalDocuments)
	}

	if _, err := r.Period(ctx, "nope", day("2024-01-01"), day("2024-12-31")); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTopicDocuments(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	if err := r.Save(ctx, testSession(t, "s1", time.Now())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st, docs, err := r.TopicDocuments(ctx, "s1", 0, day("2024-01-01"), day("2024-12-31"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Name != "Спорт: хоккей" || st.Category != "спорт" {
		t.Errorf("unexpected topic: %+v", st)
	}
	if len(docs) != 2 || docs[0].ID() != "s1-d0" || docs[1].ID() != "s1-d2" {
		t.Fatalf("unexpected documents: %+v", docs)
	}
	if len(st.DocumentIndices) != 2 || st.DocumentIndices[1] != 2 {
		t.Errorf("unexpected indices: %v", st.DocumentIndices)
	}

	if _, _, err := r.TopicDocuments(ctx, "s1", 2, day("2024-01-01"), day("2024-12-31")); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("empty topic is not stored, expected ErrNotFound, got %v", err)
	}
}

func TestSaveDocuments_KeepsEveryUpload(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	if err := r.SaveDocuments(ctx, []corpus.Document{corpus.Reconstruct("x", "old", "", time.Time{})}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.SaveDocuments(ctx, []corpus.Document{corpus.Reconstruct("x", "new", "тема", day("2024-05-05"))}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id, text FROM documents WHERE external_id = 'x' ORDER BY id`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rows.Close()
	var rowIDs, texts []string
	for rows.Next() {
		var id, text string
		if err := rows.Scan(&id, &text); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		rowIDs = append(rowIDs, id)
		texts = append(texts, text)
	}
	if len(texts) != 2 || texts[0] != "old" || texts[1] != "new" {
		t.Fatalf("expected both uploads kept, got %v", texts)
	}
	if rowIDs[0] == "x" || rowIDs[0] == rowIDs[1] {
		t.Errorf("expected distinct generated row ids, got %v", rowIDs)
	}
}

func sharedIDSession(t *testing.T, id string, texts ...string) analysis.Session {
	t.Helper()
	docs := make([]corpus.Document, len(texts))
	indices := make([]int, len(texts))
	for i, text := range texts {
		docs[i] = corpus.Reconstruct("1", text, "", day("2024-01-10"))
		indices[i] = i
	}
	res := analysis.Result{
		Topics: []topic.Stat{{
			Topic:             topic.Topic{ID: 0, Name: "t", Keywords: []string{"k"}},
			DocumentCount:     len(texts),
			AverageConfidence: 1,
			DocumentIndices:   indices,
		}},
		Metadata: analysis.Metadata{TotalDocuments: len(texts), OptimalTopics: 1, CreatedAt: time.Now()},
	}
	s, err := analysis.NewSession(id, id, "", docs, res)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func TestSave_SessionsSharingDocumentID(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	if err := r.Save(ctx, sharedIDSession(t, "first", "первый текст")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Save(ctx, sharedIDSession(t, "second", "второй текст")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for id, want := range map[string]string{"first": "первый текст", "second": "второй текст"} {
		s, err := r.Get(ctx, id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		docs := s.Documents()
		if len(docs) != 1 || docs[0].ID() != "1" || docs[0].Text() != want {
			t.Errorf("session %s: expected own document %q, got %+v", id, want, docs)
		}

		_, topicDocs, err := r.TopicDocuments(ctx, id, 0, day("2024-01-01"), day("2024-12-31"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(topicDocs) != 1 || topicDocs[0].Text() != want {
			t.Errorf("session %s: unexpected topic documents %+v", id, topicDocs)
		}
	}
}

func TestSave_RepeatedIDWithinSession(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	if err := r.Save(ctx, sharedIDSession(t, "s", "альфа", "бета")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s, err := r.Get(ctx, "s")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	docs := s.Documents()
	if len(docs) != 2 || docs[0].Text() != "альфа" || docs[1].Text() != "бета" {
		t.Fatalf("expected both documents kept in order, got %+v", docs)
	}

	p, err := r.Period(ctx, "s", day("2024-01-01"), day("2024-01-31"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.TotalDocuments != 2 {
		t.Errorf("expected 2 documents in period, got %d", p.TotalDocuments)
	}
}
