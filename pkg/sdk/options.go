package topicdex

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Analyzer.
type Option interface {
	apply(*analyzerConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*analyzerConfig)

func (f optionFunc) apply(c *analyzerConfig) { f(c) }

type analyzerConfig struct {
	seed      *int64
	numTopics int
	maxTopics int
	strategy  Strategy
	workers   int
	lexicon   string

	// result cache
	driver   string // "valkey" or "redis"
	addrs    []string
	password string
	cacheTTL time.Duration

	// chat model for StrategyLLM
	llmBaseURL string
	llmAPIKey  string
	llmModel   string

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithSeed fixes the random seed. Equal seeds give equal results.
func WithSeed(seed int64) Option {
	return optionFunc(func(c *analyzerConfig) {
		c.seed = &seed
	})
}

// WithNumTopics fixes the number of topics. By default it is selected
// automatically.
func WithNumTopics(k int) Option {
	return optionFunc(func(c *analyzerConfig) {
		c.numTopics = k
	})
}

// WithMaxTopics bounds automatic topic-count selection. Default: 10.
func WithMaxTopics(k int) Option {
	return optionFunc(func(c *analyzerConfig) {
		c.maxTopics = k
	})
}

// WithStrategy sets the default pipeline. Default: StrategyHybrid.
func WithStrategy(s Strategy) Option {
	return optionFunc(func(c *analyzerConfig) {
		c.strategy = s
	})
}

// WithWorkers bounds concurrent model fits. 0 means unbounded.
func WithWorkers(n int) Option {
	return optionFunc(func(c *analyzerConfig) {
		c.workers = n
	})
}

// WithLexicon loads stop words, theme dictionaries and synonyms from a YAML
// file. Sections missing from the file keep the built-in lexicon.
func WithLexicon(path string) Option {
	return optionFunc(func(c *analyzerConfig) {
		c.lexicon = path
	})
}

// WithValkey caches results in a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *analyzerConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis caches results in a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *analyzerConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithCacheTTL sets the lifetime of cached results. Default: 24h.
func WithCacheTTL(ttl time.Duration) Option {
	return optionFunc(func(c *analyzerConfig) {
		c.cacheTTL = ttl
	})
}

// WithOpenAI enables StrategyLLM over an OpenAI-compatible chat endpoint.
// An empty baseURL uses the OpenAI API.
func WithOpenAI(baseURL, apiKey, model string) Option {
	return optionFunc(func(c *analyzerConfig) {
		c.llmBaseURL = baseURL
		c.llmAPIKey = apiKey
		c.llmModel = model
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *analyzerConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *analyzerConfig) {
		c.metricsReg = reg
	})
}
