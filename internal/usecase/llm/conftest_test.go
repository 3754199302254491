package llm

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/topicdex/internal/domain/analysis"
	"github.com/kailas-cloud/topicdex/internal/domain/corpus"
	"github.com/kailas-cloud/topicdex/internal/engine/namer"
)

// --- Mocks ---

type mockCompleter struct {
	mu      sync.Mutex
	fn      func(prompt string) (string, error)
	prompts []string
}

func (m *mockCompleter) Complete(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	return m.fn(prompt)
}

func (m *mockCompleter) Model() string    { return "test-model" }
func (m *mockCompleter) Provider() string { return "test" }

func (m *mockCompleter) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func reply(s string) *mockCompleter {
	return &mockCompleter{fn: func(string) (string, error) { return s, nil }}
}

func failing(err error) *mockCompleter {
	return &mockCompleter{fn: func(string) (string, error) { return "", err }}
}

type mockCache struct {
	data map[string]analysis.Result
	puts int
}

func newMockCache() *mockCache { return &mockCache{data: make(map[string]analysis.Result)} }

func (m *mockCache) Get(_ context.Context, key string) (analysis.Result, bool) {
	r, ok := m.data[key]
	return r, ok
}

func (m *mockCache) Put(_ context.Context, key string, res analysis.Result) {
	m.puts++
	m.data[key] = res
}

// --- Helpers ---

func newTestService(c Completer, cache ResultCache, cfg Config) *Service {
	s := New(c, cache, namer.New(nil, nil), cfg)
	s.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func newsCorpus() corpus.Corpus {
	day := func(s string) time.Time {
		t, _ := time.Parse(corpus.DateLayout, s)
		return t
	}
	return corpus.New([]corpus.Document{
		corpus.Reconstruct("n1", "Хоккейная команда выиграла матч в овертайме", "спорт", day("2024-01-10")),
		corpus.Reconstruct("n2", "Центральный банк повысил ключевую ставку", "финансы", day("2024-01-11")),
		corpus.Reconstruct("n3", "Футбольный матч завершился вничью, команда недовольна", "спорт", day("2024-01-12")),
		corpus.Reconstruct("n4", "Инвестиции в акции выросли на фоне решения банка", "финансы", day("2024-01-12")),
		corpus.Reconstruct("n5", "Погода в выходные будет солнечной", "", time.Time{}),
	})
}
