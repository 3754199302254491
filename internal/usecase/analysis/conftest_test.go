package analysis

import (
	"context"
	"time"

	domanalysis "github.com/kailas-cloud/topicdex/internal/domain/analysis"
	"github.com/kailas-cloud/topicdex/internal/domain/corpus"
	"github.com/kailas-cloud/topicdex/internal/domain/topic"
	"github.com/kailas-cloud/topicdex/internal/engine"
	"github.com/kailas-cloud/topicdex/internal/engine/namer"
)

// --- Mocks ---

type mockEngine struct {
	calls int
	opts  engine.Options
	docs  []corpus.Document
	res   domanalysis.Result
	err   error
}

func (m *mockEngine) Fingerprint() string { return "test-lexicon" }

func (m *mockEngine) Analyze(_ context.Context, c corpus.Corpus, opts engine.Options) (domanalysis.Result, error) {
	m.calls++
	m.opts = opts
	m.docs = c.Documents()
	if m.err != nil {
		return domanalysis.Result{}, m.err
	}
	res := m.res
	res.Metadata.TotalDocuments = c.Len()
	return res, nil
}

type mockLLM struct {
	calls int
	res   domanalysis.Result
	err   error
}

func (m *mockLLM) Analyze(_ context.Context, _ corpus.Corpus) (domanalysis.Result, error) {
	m.calls++
	return m.res, m.err
}

type mockCache struct {
	data map[string]domanalysis.Result
	gets int
	puts int
}

func newMockCache() *mockCache { return &mockCache{data: make(map[string]domanalysis.Result)} }

func (m *mockCache) Get(_ context.Context, key string) (domanalysis.Result, bool) {
	m.gets++
	r, ok := m.data[key]
	return r, ok
}

func (m *mockCache) Put(_ context.Context, key string, res domanalysis.Result) {
	m.puts++
	m.data[key] = res
}

type mockStore struct {
	sessions []domanalysis.Session
	docs     []corpus.Document
	saveErr  error
}

func (m *mockStore) Save(_ context.Context, s domanalysis.Session) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.sessions = append(m.sessions, s)
	return nil
}

func (m *mockStore) SaveDocuments(_ context.Context, docs []corpus.Document) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.docs = append(m.docs, docs...)
	return nil
}

// --- Helpers ---

func engineResult() domanalysis.Result {
	return domanalysis.Result{
		Topics: []topic.Stat{{
			Topic:           topic.Topic{ID: 0, Name: "Спорт: хоккей", Keywords: []string{"хоккей"}, Category: "спорт"},
			DocumentCount:   2,
			DocumentIndices: []int{0, 1},
		}},
		Metadata: domanalysis.Metadata{
			OptimalTopics: 1,
			Algorithm:     engine.AlgorithmHybrid,
			Strategy:      domanalysis.Hybrid,
			CreatedAt:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func testDocs() []corpus.Document {
	return []corpus.Document{
		corpus.Reconstruct("", "Хоккейный матч завершился победой команды", "", time.Time{}),
		corpus.Reconstruct("d2", "Хоккей: команда готовится к игре", "спорт", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)),
	}
}

func newTestService(eng *mockEngine, llm LLMPipeline, cache ResultCache, store SessionStore) *Service {
	return New(eng, llm, cache, store, namer.NewClassifier(nil))
}
