// Package analysis runs analyses end to end: document preparation, result
// caching, pipeline dispatch, session persistence and metrics.
package analysis

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/topicdex/internal/domain"
	domanalysis "github.com/kailas-cloud/topicdex/internal/domain/analysis"
	"github.com/kailas-cloud/topicdex/internal/domain/corpus"
	"github.com/kailas-cloud/topicdex/internal/engine"
	"github.com/kailas-cloud/topicdex/internal/logger"
	"github.com/kailas-cloud/topicdex/internal/metrics"
)

// Request describes one analysis run.
type Request struct {
	Name        string
	Description string
	Documents   []corpus.Document
	Options     engine.Options
	// Persist stores the run as a session.
	Persist bool
}

// Outcome is the result of a run.
type Outcome struct {
	// SessionID is empty when the run was not persisted.
	SessionID string
	Documents []corpus.Document
	Result    domanalysis.Result
	Cached    bool
}

// Service coordinates analysis runs.
type Service struct {
	engine     Engine
	llm        LLMPipeline
	cache      ResultCache
	store      SessionStore
	classifier ThemeClassifier

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// New creates an analysis service. llm, cache, store and classifier can be nil.
func New(eng Engine, llm LLMPipeline, cache ResultCache, store SessionStore, classifier ThemeClassifier) *Service {
	return &Service{
		engine:     eng,
		llm:        llm,
		cache:      cache,
		store:      store,
		classifier: classifier,
		entropy:    ulid.Monotonic(rand.Reader, 0),
	}
}

// Analyze runs req. Cache and persistence failures are logged and never
// fail the run.
func (s *Service) Analyze(ctx context.Context, req Request) (Outcome, error) {
	if len(req.Documents) == 0 {
		return Outcome{}, fmt.Errorf("%w: no documents to analyze", domain.ErrEmptyInput)
	}
	if len(req.Name) > domanalysis.MaxNameLength {
		return Outcome{}, fmt.Errorf("%w: session name too long (max %d)", domain.ErrInvalidInput, domanalysis.MaxNameLength)
	}
	strategy := req.Options.Strategy
	if strategy == "" {
		strategy = domanalysis.Hybrid
	}
	if strategy == domanalysis.LLM && s.llm == nil {
		return Outcome{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, domain.ErrLLMDisabled)
	}

	ctx = logger.With(ctx, zap.String("strategy", string(strategy)))
	docs := s.prepare(req.Documents)
	c := corpus.New(docs)
	start := time.Now()

	res, cached, err := s.run(ctx, c, strategy, req.Options)
	metrics.AnalysisDuration.WithLabelValues(string(strategy)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AnalysisRunsTotal.WithLabelValues(string(strategy), "error").Inc()
		return Outcome{}, err
	}
	metrics.AnalysisRunsTotal.WithLabelValues(string(strategy), "ok").Inc()
	metrics.AnalysisDocuments.Observe(float64(c.Len()))
	metrics.AnalysisTopics.Observe(float64(res.Metadata.OptimalTopics))
	if res.Metadata.FallbackReason != "" {
		metrics.FallbackTotal.WithLabelValues(string(res.Metadata.Strategy)).Inc()
	}

	out := Outcome{Documents: docs, Result: res, Cached: cached}
	if req.Persist && s.store != nil {
		out.SessionID = s.persist(ctx, req, docs, res)
	}

	logger.FromContext(ctx).Info("Analysis completed",
		zap.String("algorithm", res.Metadata.Algorithm),
		zap.Int("documents", c.Len()),
		zap.Int("topics", res.Metadata.OptimalTopics),
		zap.Bool("cached", cached),
		zap.String("session_id", out.SessionID),
	)
	return out, nil
}

func (s *Service) run(
	ctx context.Context, c corpus.Corpus, strategy domanalysis.Strategy, opts engine.Options,
) (domanalysis.Result, bool, error) {
	if strategy == domanalysis.LLM {
		res, err := s.llm.Analyze(ctx, c)
		return res, false, err
	}

	key := ""
	if s.cache != nil {
		var err error
		if key, err = CacheKey(c, opts, s.engine.Fingerprint()); err != nil {
			logger.FromContext(ctx).Warn("Failed to derive cache key", zap.Error(err))
		} else if res, ok := s.cache.Get(ctx, key); ok {
			return res, true, nil
		}
	}

	res, err := s.engine.Analyze(ctx, c, opts)
	if err != nil {
		return domanalysis.Result{}, false, err
	}
	if key != "" {
		s.cache.Put(ctx, key, res)
	}
	return res, false, nil
}

func (s *Service) persist(ctx context.Context, req Request, docs []corpus.Document, res domanalysis.Result) string {
	sess, err := domanalysis.NewSession(s.newID(), req.Name, req.Description, docs, res)
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to build session", zap.Error(err))
		return ""
	}
	if err := s.store.Save(ctx, sess); err != nil {
		logger.FromContext(ctx).Error("Failed to persist session",
			zap.String("session_id", sess.ID()), zap.Error(err))
		return ""
	}
	return sess.ID()
}

// Upload stores documents without analysing them and returns them with
// assigned ids and themes.
func (s *Service) Upload(ctx context.Context, docs []corpus.Document) ([]corpus.Document, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no documents to upload", domain.ErrEmptyInput)
	}
	if s.store == nil {
		return nil, fmt.Errorf("upload documents: persistence is not configured")
	}
	prepared := s.prepare(docs)
	if err := s.store.SaveDocuments(ctx, prepared); err != nil {
		return nil, fmt.Errorf("save documents: %w", err)
	}
	return prepared, nil
}

// prepare assigns missing ids and classifies documents without a theme.
func (s *Service) prepare(docs []corpus.Document) []corpus.Document {
	out := make([]corpus.Document, len(docs))
	for i, d := range docs {
		id, theme := d.ID(), d.Theme()
		if id == "" {
			id = s.newID()
		}
		if theme == "" && s.classifier != nil {
			theme = s.classifier.Classify(d.Text(), nil).Theme
		}
		out[i] = corpus.Reconstruct(id, d.Text(), theme, d.Date())
	}
	return out
}

func (s *Service) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Now(), s.entropy).String()
}

// CacheKey derives the result cache key from the corpus content, the
// effective options and the lexicon fingerprint. Document ids, themes and
// the worker bound do not participate.
func CacheKey(c corpus.Corpus, opts engine.Options, lexicon string) (string, error) {
	opts = opts.WithDefaults()
	opts.Workers = 0
	raw, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("encode options: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(c.Hash()))
	h.Write([]byte{0})
	h.Write(raw)
	h.Write([]byte{0})
	h.Write([]byte(lexicon))
	return hex.EncodeToString(h.Sum(nil)), nil
}
