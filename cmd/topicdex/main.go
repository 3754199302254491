package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/topicdex/internal/config"
	"github.com/kailas-cloud/topicdex/internal/db"
	dbRedis "github.com/kailas-cloud/topicdex/internal/db/redis"
	"github.com/kailas-cloud/topicdex/internal/db/sqlite"
	domanalysis "github.com/kailas-cloud/topicdex/internal/domain/analysis"
	"github.com/kailas-cloud/topicdex/internal/engine"
	"github.com/kailas-cloud/topicdex/internal/engine/ksel"
	"github.com/kailas-cloud/topicdex/internal/engine/namer"
	"github.com/kailas-cloud/topicdex/internal/engine/textnorm"
	"github.com/kailas-cloud/topicdex/internal/engine/vectorize"
	logpkg "github.com/kailas-cloud/topicdex/internal/logger"
	"github.com/kailas-cloud/topicdex/internal/metrics"
	"github.com/kailas-cloud/topicdex/internal/repository/rescache"
	"github.com/kailas-cloud/topicdex/internal/repository/session"
	chiTransport "github.com/kailas-cloud/topicdex/internal/transport/chi"
	openaiChat "github.com/kailas-cloud/topicdex/internal/transport/openai"
	analysisuc "github.com/kailas-cloud/topicdex/internal/usecase/analysis"
	healthuc "github.com/kailas-cloud/topicdex/internal/usecase/health"
	llmuc "github.com/kailas-cloud/topicdex/internal/usecase/llm"
	reportuc "github.com/kailas-cloud/topicdex/internal/usecase/report"
	"github.com/kailas-cloud/topicdex/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting topicdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("sqlite_path", cfg.SQLite.Path),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
		zap.Bool("llm_enabled", cfg.LLM.Enabled),
	)

	ctx := context.Background()

	sessionDB, err := sqlite.Open(ctx, cfg.SQLite.Path)
	if err != nil {
		logger.Fatal("Failed to open session database", zap.Error(err))
	}
	defer sessionDB.Close()
	sessions := session.New(sessionDB.DB)

	metrics.RegisterAnalysisMetrics()
	metrics.RegisterLLMMetrics()
	metrics.RegisterHTTPMetrics(version.Version, version.Commit)

	// Pass nil interfaces, not typed nil pointers, for disabled components.
	var (
		cachePinger healthuc.Pinger
		resultCache *rescache.Cache
		engineCache analysisuc.ResultCache
		llmCache    llmuc.ResultCache
		cachePurger chiTransport.CachePurger
	)
	if cfg.Cache.Enabled {
		store, err := newStore(cfg.Database)
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache store not ready", zap.Error(err))
		}
		logger.Info("Connected to cache store", zap.Strings("addrs", cfg.Database.Addrs))

		resultCache = rescache.New(store, cfg.Cache.KeyPrefix,
			time.Duration(cfg.Cache.TTLSec)*time.Second, metrics.ResultCacheTotal, logger)
		cachePinger, engineCache, llmCache, cachePurger = store, resultCache, resultCache, resultCache
	}

	lex := textnorm.DefaultLexicon()
	if cfg.Analysis.LexiconPath != "" {
		if lex, err = textnorm.LoadLexicon(cfg.Analysis.LexiconPath); err != nil {
			logger.Fatal("Failed to load lexicon", zap.String("path", cfg.Analysis.LexiconPath), zap.Error(err))
		}
	}
	eng := engine.New(lex)

	var (
		completer  llmuc.Completer
		llmChecker healthuc.LLMChecker
	)
	if cfg.LLM.Enabled {
		chat := openaiChat.NewChatCompleter(&openaiChat.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Provider:    cfg.LLM.Provider,
			Temperature: float32(cfg.LLM.Temperature),
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     time.Duration(cfg.LLM.TimeoutSec) * time.Second,
			MaxRetries:  cfg.LLM.MaxRetries,
			Logger:      logger,
		})
		completer, llmChecker = chat, chat
		logger.Info("LLM provider configured",
			zap.String("provider", cfg.LLM.Provider),
			zap.String("model", cfg.LLM.Model),
		)
	}

	llmSvc := llmuc.New(completer, llmCache, eng.Namer(), llmuc.Config{BatchSize: cfg.LLM.BatchSize})
	var pipeline analysisuc.LLMPipeline
	if llmSvc.Enabled() {
		pipeline = llmSvc
	}

	analysisSvc := analysisuc.New(eng, pipeline, engineCache, sessions, namer.NewClassifier(nil))
	reportSvc := reportuc.New(sessions, llmSvc).
		WithPagination(cfg.Analysis.DefaultPageSize, cfg.Analysis.MaxPageSize)
	healthSvc := healthuc.New(sessionDB, cachePinger, llmChecker)

	server := chiTransport.NewServer(analysisSvc, reportSvc, healthSvc, cachePurger, chiTransport.ServerConfig{
		Defaults:     engineOptions(cfg.Analysis),
		MaxDocuments: cfg.Analysis.MaxDocuments,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	}, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// newStore connects the result cache store. Valkey speaks the Redis
// protocol, so both drivers share the rueidis client.
func newStore(cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case "valkey", "redis":
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("%s store: %w", cfg.Driver, err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// engineOptions maps the analysis config onto engine options. Zero fields
// keep the engine defaults.
func engineOptions(c config.AnalysisConfig) engine.Options {
	opts := engine.DefaultOptions()
	opts.Strategy = domanalysis.Hybrid
	opts.NumTopics = c.NumTopics
	setPositive(&opts.MaxTopics, c.MaxTopics)
	setPositive(&opts.MaxFeatures, c.MaxFeatures)
	setPositive(&opts.NgramMax, c.NgramMax)
	setPositive(&opts.MinDF, c.MinDF)
	setPositive(&opts.LDAMaxIter, c.LDAMaxIter)
	setPositive(&opts.NMFMaxIter, c.NMFMaxIter)
	setPositive(&opts.Keywords, c.Keywords)
	setPositive(&opts.MaxTerms, c.MaxTerms)
	setPositive(&opts.Workers, c.Workers)
	if c.Weighting != "" {
		opts.Weighting = vectorize.Weighting(c.Weighting)
	}
	if c.Selection != "" {
		opts.Selection = ksel.Method(c.Selection)
	}
	if c.MaxDF > 0 {
		opts.MaxDF = c.MaxDF
	}
	if c.SecondaryThreshold > 0 {
		opts.SecondaryThreshold = c.SecondaryThreshold
	}
	if c.ConsensusThreshold > 0 {
		opts.ConsensusThreshold = c.ConsensusThreshold
	}
	if c.MixedThreshold > 0 {
		opts.MixedThreshold = c.MixedThreshold
	}
	if c.Seed != 0 {
		opts.Seed = c.Seed
	}
	return opts
}

func setPositive(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.ErrorCodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits one canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
