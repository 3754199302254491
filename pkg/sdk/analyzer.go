package topicdex

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/topicdex/internal/db"
	dbRedis "github.com/kailas-cloud/topicdex/internal/db/redis"
	domanalysis "github.com/kailas-cloud/topicdex/internal/domain/analysis"
	"github.com/kailas-cloud/topicdex/internal/engine"
	"github.com/kailas-cloud/topicdex/internal/engine/namer"
	"github.com/kailas-cloud/topicdex/internal/engine/textnorm"
	"github.com/kailas-cloud/topicdex/internal/metrics"
	"github.com/kailas-cloud/topicdex/internal/repository/rescache"
	openaiChat "github.com/kailas-cloud/topicdex/internal/transport/openai"
	analysisuc "github.com/kailas-cloud/topicdex/internal/usecase/analysis"
	healthuc "github.com/kailas-cloud/topicdex/internal/usecase/health"
	llmuc "github.com/kailas-cloud/topicdex/internal/usecase/llm"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultCacheTTL         = 24 * time.Hour
	cachePrefix             = "topicdex:sdk:result:"
)

// analysisUseCase is the internal interface for analysis runs.
type analysisUseCase interface {
	Analyze(ctx context.Context, req analysisuc.Request) (analysisuc.Outcome, error)
}

// healthUseCase is the internal interface for health checks.
type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// themeClassifier assigns a theme to a single text.
type themeClassifier interface {
	Classify(text string, keywords []string) namer.Classification
}

// Analyzer discovers topics in document collections. It is safe for
// concurrent use.
type Analyzer struct {
	store      db.Store
	svc        analysisUseCase
	healthSvc  healthUseCase
	classifier themeClassifier
	opts       engine.Options
	obs        *observer
}

// New creates an Analyzer. Without WithValkey or WithRedis results are not
// cached; without WithOpenAI StrategyLLM fails with ErrLLMDisabled.
func New(opts ...Option) (*Analyzer, error) {
	cfg := &analyzerConfig{strategy: StrategyHybrid, cacheTTL: defaultCacheTTL}
	for _, o := range opts {
		o.apply(cfg)
	}

	engineOpts, err := cfg.engineOptions()
	if err != nil {
		return nil, err
	}

	lex := textnorm.DefaultLexicon()
	if cfg.lexicon != "" {
		if lex, err = textnorm.LoadLexicon(cfg.lexicon); err != nil {
			return nil, fmt.Errorf("topicdex: %w", err)
		}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	var store db.Store
	if len(cfg.addrs) > 0 {
		if store, err = createStore(cfg); err != nil {
			return nil, err
		}
		if err := store.WaitForReady(context.Background(), defaultReadinessTimeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("topicdex: cache not ready: %w", err)
		}
	}

	a := wireAnalyzer(engine.New(lex), store, cfg)
	a.opts = engineOpts
	a.obs = obs
	return a, nil
}

func createStore(cfg *analyzerConfig) (db.Store, error) {
	switch cfg.driver {
	case "valkey", "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("topicdex: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("topicdex: unknown driver %q", cfg.driver)
	}
}

func wireAnalyzer(eng *engine.Engine, store db.Store, cfg *analyzerConfig) *Analyzer {
	// Nil interfaces, not typed nil pointers, for disabled components.
	var (
		engineCache analysisuc.ResultCache
		llmCache    llmuc.ResultCache
		cachePinger healthuc.Pinger
	)
	if store != nil {
		c := rescache.New(store, cachePrefix, cfg.cacheTTL, metrics.ResultCacheTotal, nil)
		engineCache, llmCache, cachePinger = c, c, store
	}

	var (
		pipeline   analysisuc.LLMPipeline
		llmChecker healthuc.LLMChecker
	)
	if cfg.llmModel != "" {
		chat := openaiChat.NewChatCompleter(&openaiChat.Config{
			APIKey:   cfg.llmAPIKey,
			BaseURL:  cfg.llmBaseURL,
			Model:    cfg.llmModel,
			Provider: "openai",
		})
		pipeline = llmuc.New(chat, llmCache, eng.Namer(), llmuc.Config{})
		llmChecker = chat
	}

	classifier := namer.NewClassifier(nil)
	return &Analyzer{
		store:      store,
		svc:        analysisuc.New(eng, pipeline, engineCache, nil, classifier),
		healthSvc:  healthuc.New(nil, cachePinger, llmChecker),
		classifier: classifier,
	}
}

// Close releases the cache connection.
func (a *Analyzer) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

// Analyze discovers topics in docs with the configured strategy.
func (a *Analyzer) Analyze(ctx context.Context, docs []Document) (Result, error) {
	return a.run(ctx, docs, a.opts)
}

// AnalyzeWith runs one analysis with a strategy other than the configured one.
func (a *Analyzer) AnalyzeWith(ctx context.Context, s Strategy, docs []Document) (Result, error) {
	opts := a.opts
	strategy, ok := domanalysis.ParseStrategy(string(s))
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown strategy %q", ErrInvalidInput, s)
	}
	opts.Strategy = strategy
	return a.run(ctx, docs, opts)
}

// AnalyzeTexts analyses plain texts.
func (a *Analyzer) AnalyzeTexts(ctx context.Context, texts ...string) (Result, error) {
	docs := make([]Document, len(texts))
	for i, t := range texts {
		docs[i] = Document{Text: t}
	}
	return a.Analyze(ctx, docs)
}

func (a *Analyzer) run(ctx context.Context, docs []Document, opts engine.Options) (res Result, err error) {
	start := time.Now()
	defer func() {
		a.obs.observe(run{requested: Strategy(opts.Strategy), documents: len(docs), result: res}, start, err)
	}()

	in, err := documentsToDomain(docs)
	if err != nil {
		return Result{}, err
	}
	out, err := a.svc.Analyze(ctx, analysisuc.Request{Documents: in, Options: opts})
	if err != nil {
		return Result{}, fmt.Errorf("analyze: %w", err)
	}
	return resultFromDomain(out), nil
}

// Classify returns the dictionary theme of a single text. Texts matching no
// theme get the catch-all theme.
func (a *Analyzer) Classify(text string) string {
	return a.classifier.Classify(text, nil).Theme
}

// Health checks the cache and chat model connections. With neither
// configured the analyzer is always healthy.
func (a *Analyzer) Health(ctx context.Context) HealthStatus {
	report := a.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}

func (c *analyzerConfig) engineOptions() (engine.Options, error) {
	opts := engine.DefaultOptions()
	strategy, ok := domanalysis.ParseStrategy(string(c.strategy))
	if !ok {
		return engine.Options{}, fmt.Errorf("%w: unknown strategy %q", ErrInvalidInput, c.strategy)
	}
	opts.Strategy = strategy
	if c.numTopics < 0 || c.maxTopics < 0 || c.workers < 0 {
		return engine.Options{}, fmt.Errorf("%w: topic counts and workers must be non-negative", ErrInvalidInput)
	}
	opts.NumTopics = c.numTopics
	if c.maxTopics > 0 {
		opts.MaxTopics = c.maxTopics
	}
	opts.Workers = c.workers
	if c.seed != nil {
		opts.Seed = *c.seed
	}
	return opts, nil
}
