package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/topicdex/internal/domain"
	domanalysis "github.com/kailas-cloud/topicdex/internal/domain/analysis"
	"github.com/kailas-cloud/topicdex/internal/domain/corpus"
	"github.com/kailas-cloud/topicdex/internal/engine"
)

func TestAnalyze_Persisted(t *testing.T) {
	eng := &mockEngine{res: engineResult()}
	store := &mockStore{}
	svc := newTestService(eng, nil, nil, store)

	out, err := svc.Analyze(context.Background(), Request{
		Name:      "weekly",
		Documents: testDocs(),
		Persist:   true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.SessionID == "" || len(store.sessions) != 1 || store.sessions[0].ID() != out.SessionID {
		t.Fatalf("expected a persisted session, got %q and %d sessions", out.SessionID, len(store.sessions))
	}
	if store.sessions[0].Name() != "weekly" {
		t.Errorf("unexpected session name %q", store.sessions[0].Name())
	}
	if out.Result.Metadata.TotalDocuments != 2 || out.Cached {
		t.Errorf("unexpected outcome: %+v", out)
	}
}

func TestAnalyze_PreparesDocuments(t *testing.T) {
	eng := &mockEngine{res: engineResult()}
	svc := newTestService(eng, nil, nil, nil)

	out, err := svc.Analyze(context.Background(), Request{Documents: testDocs()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	generated := out.Documents[0]
	if len(generated.ID()) != 26 {
		t.Errorf("expected a ULID for the unnamed document, got %q", generated.ID())
	}
	if generated.Theme() != "спорт" {
		t.Errorf("expected classifier theme спорт, got %q", generated.Theme())
	}
	if out.Documents[1].ID() != "d2" || out.Documents[1].Theme() != "спорт" {
		t.Errorf("given id and theme must be kept: %+v", out.Documents[1])
	}
	if eng.docs[0].ID() != generated.ID() {
		t.Error("engine must see the prepared documents")
	}
	if out.SessionID != "" {
		t.Error("non-persisted run must not report a session")
	}
}

func TestAnalyze_UniqueIDs(t *testing.T) {
	svc := newTestService(&mockEngine{res: engineResult()}, nil, nil, nil)
	seen := make(map[string]bool)
	for range 100 {
		id := svc.newID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestAnalyze_Cache(t *testing.T) {
	eng := &mockEngine{res: engineResult()}
	cache := newMockCache()
	svc := newTestService(eng, nil, cache, nil)
	ctx := context.Background()
	req := Request{Documents: testDocs(), Options: engine.Options{MaxTopics: 5}}

	if _, err := svc.Analyze(ctx, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := svc.Analyze(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eng.calls != 1 || cache.puts != 1 || !out.Cached {
		t.Errorf("expected one engine call and a cached second run, got calls=%d puts=%d cached=%v",
			eng.calls, cache.puts, out.Cached)
	}

	// different options miss the cache
	req.Options.MaxTopics = 6
	if _, err := svc.Analyze(ctx, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eng.calls != 2 {
		t.Errorf("expected a second engine call, got %d", eng.calls)
	}
}

func TestCacheKey(t *testing.T) {
	c := corpus.FromTexts([]string{"a", "b"})
	k1, err := CacheKey(c, engine.DefaultOptions(), "lex")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	k2, _ := CacheKey(corpus.New(testDocs()[:0]), engine.DefaultOptions(), "lex")
	k3, _ := CacheKey(c, engine.Options{Seed: 7}, "lex")
	k5, _ := CacheKey(c, engine.DefaultOptions(), "other-lex")

	// ids do not participate
	renamed := corpus.New([]corpus.Document{
		corpus.Reconstruct("x", "a", "", c.At(0).Date()),
		corpus.Reconstruct("y", "b", "", c.At(1).Date()),
	})
	k4, _ := CacheKey(renamed, engine.DefaultOptions(), "lex")

	if k1 == k2 || k1 == k3 {
		t.Error("keys must depend on texts and options")
	}
	if k1 != k4 {
		t.Error("keys must not depend on document ids")
	}
	if k1 == k5 {
		t.Error("keys must depend on the lexicon")
	}
}

func TestCacheKey_EffectiveOptions(t *testing.T) {
	c := corpus.FromTexts([]string{"a", "b"})
	defaults, _ := CacheKey(c, engine.DefaultOptions(), "lex")

	// Zero fields other than Seed resolve to their defaults.
	implicit, _ := CacheKey(c, engine.Options{Seed: engine.DefaultSeed}, "lex")
	if implicit != defaults {
		t.Error("unset options must hash like their defaults")
	}

	withWorkers := engine.DefaultOptions()
	withWorkers.Workers = 4
	if k, _ := CacheKey(c, withWorkers, "lex"); k != defaults {
		t.Error("worker bound must not change the key")
	}

	zeroSeed, _ := CacheKey(c, engine.Options{}, "lex")
	if zeroSeed == defaults {
		t.Error("seed 0 is an explicit seed and must not share the default key")
	}
}

func TestAnalyze_LLM(t *testing.T) {
	eng := &mockEngine{}
	llm := &mockLLM{res: domanalysis.Result{Metadata: domanalysis.Metadata{Strategy: domanalysis.LLMFallback, FallbackReason: "down"}}}
	cache := newMockCache()
	svc := newTestService(eng, llm, cache, nil)

	out, err := svc.Analyze(context.Background(), Request{
		Documents: testDocs(),
		Options:   engine.Options{Strategy: domanalysis.LLM},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if llm.calls != 1 || eng.calls != 0 || cache.gets != 0 {
		t.Errorf("LLM strategy must bypass engine and result cache: llm=%d engine=%d gets=%d",
			llm.calls, eng.calls, cache.gets)
	}
	if out.Result.Metadata.Strategy != domanalysis.LLMFallback {
		t.Errorf("unexpected strategy %s", out.Result.Metadata.Strategy)
	}
}

func TestAnalyze_LLMDisabled(t *testing.T) {
	svc := newTestService(&mockEngine{}, nil, nil, nil)
	_, err := svc.Analyze(context.Background(), Request{
		Documents: testDocs(),
		Options:   engine.Options{Strategy: domanalysis.LLM},
	})
	if !errors.Is(err, domain.ErrInvalidInput) || !errors.Is(err, domain.ErrLLMDisabled) {
		t.Fatalf("expected ErrInvalidInput wrapping ErrLLMDisabled, got %v", err)
	}
}

func TestAnalyze_PersistFailureIsNotFatal(t *testing.T) {
	svc := newTestService(&mockEngine{res: engineResult()}, nil, nil, &mockStore{saveErr: errors.New("disk full")})
	out, err := svc.Analyze(context.Background(), Request{Documents: testDocs(), Persist: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.SessionID != "" {
		t.Errorf("failed persistence must not report a session, got %q", out.SessionID)
	}
}

func TestAnalyze_Errors(t *testing.T) {
	engErr := errors.New("boom")
	tests := []struct {
		name string
		eng  *mockEngine
		req  Request
		want error
	}{
		{"empty", &mockEngine{}, Request{}, domain.ErrEmptyInput},
		{"long name", &mockEngine{}, Request{Name: strings.Repeat("x", 201), Documents: testDocs()}, domain.ErrInvalidInput},
		{"engine", &mockEngine{err: engErr}, Request{Documents: testDocs()}, engErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestService(tt.eng, nil, nil, nil).Analyze(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestUpload(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(&mockEngine{}, nil, nil, store)

	docs, err := svc.Upload(context.Background(), testDocs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.docs) != 2 || docs[0].ID() == "" || store.docs[0].ID() != docs[0].ID() {
		t.Errorf("unexpected stored documents: %+v", store.docs)
	}

	if _, err := svc.Upload(context.Background(), nil); !errors.Is(err, domain.ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
	if _, err := newTestService(&mockEngine{}, nil, nil, nil).Upload(context.Background(), testDocs()); err == nil {
		t.Error("expected error without a store")
	}
}
