package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/topicdex/internal/db/sqlite"
	domanalysis "github.com/kailas-cloud/topicdex/internal/domain/analysis"
	"github.com/kailas-cloud/topicdex/internal/domain/corpus"
	"github.com/kailas-cloud/topicdex/internal/domain/topic"
	"github.com/kailas-cloud/topicdex/internal/engine"
	"github.com/kailas-cloud/topicdex/internal/engine/namer"
	"github.com/kailas-cloud/topicdex/internal/repository/session"
	analysisuc "github.com/kailas-cloud/topicdex/internal/usecase/analysis"
	healthuc "github.com/kailas-cloud/topicdex/internal/usecase/health"
	llmuc "github.com/kailas-cloud/topicdex/internal/usecase/llm"
	reportuc "github.com/kailas-cloud/topicdex/internal/usecase/report"
)

// --- Mocks ---

// stubEngine puts every document into one topic.
type stubEngine struct {
	calls int
	opts  engine.Options
	err   error
}

func (m *stubEngine) Fingerprint() string { return "test-lexicon" }

func (m *stubEngine) Analyze(_ context.Context, c corpus.Corpus, opts engine.Options) (domanalysis.Result, error) {
	m.calls++
	m.opts = opts
	if m.err != nil {
		return domanalysis.Result{}, m.err
	}
	idx := make([]int, c.Len())
	for i := range idx {
		idx[i] = i
	}
	return domanalysis.Result{
		Topics: []topic.Stat{{
			Topic:             topic.Topic{ID: 0, Name: "Спорт: хоккей", Keywords: []string{"хоккей", "матч"}, Category: "спорт"},
			DocumentCount:     c.Len(),
			AverageConfidence: 0.9,
			DocumentIndices:   idx,
		}},
		Metadata: domanalysis.Metadata{
			TotalDocuments: c.Len(),
			OptimalTopics:  1,
			Algorithm:      engine.AlgorithmHybrid,
			Strategy:       opts.Strategy,
			CreatedAt:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	}, nil
}

type mockPurger struct {
	n int64
}

func (m *mockPurger) Purge(_ context.Context) (int64, error) { return m.n, nil }

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

// --- Helpers ---

type testEnv struct {
	engine *stubEngine
	router http.Handler
}

func newTestEnv(t *testing.T, withLLM bool) *testEnv {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := session.New(db.DB)
	eng := &stubEngine{}
	narrator := llmuc.New(nil, nil, namer.New(nil, nil), llmuc.Config{})

	var pipeline analysisuc.LLMPipeline
	if withLLM {
		pipeline = narrator
	}
	analyses := analysisuc.New(eng, pipeline, nil, repo, namer.NewClassifier(nil))
	reports := reportuc.New(repo, narrator)
	health := healthuc.New(&mockPinger{}, nil, nil)

	srv := NewServer(analyses, reports, health, &mockPurger{n: 3}, ServerConfig{
		Defaults:     engine.DefaultOptions(),
		MaxDocuments: 5,
		MaxBodyBytes: 1 << 20,
	}, zap.NewNop())

	r := chi.NewRouter()
	srv.Routes(r)
	return &testEnv{engine: eng, router: r}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func hockeyRequest() AnalyzeRequest {
	return AnalyzeRequest{
		Name: "weekly",
		Documents: []DocumentInput{
			{ID: "n1", Text: "Хоккейный матч завершился победой", Date: "2024-01-01"},
			{ID: "n2", Text: "Команда готовится к новому матчу по хоккею", Date: "2024-01-02"},
			{Text: "Болельщики обсуждают хоккейный сезон", Date: "2024-01-05"},
		},
	}
}
