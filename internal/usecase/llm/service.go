// Package llm extracts topics with a chat model and falls back to keyword
// clustering whenever the model is unavailable or its answer is unusable.
package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/topicdex/internal/domain"
	"github.com/kailas-cloud/topicdex/internal/domain/analysis"
	"github.com/kailas-cloud/topicdex/internal/domain/corpus"
	"github.com/kailas-cloud/topicdex/internal/domain/topic"
	"github.com/kailas-cloud/topicdex/internal/logger"
)

// Algorithm labels recorded in result metadata.
const (
	AlgorithmLLM      = "LLM"
	AlgorithmClusters = "keyword-clustering"
)

const (
	// DefaultBatchSize is the number of documents sent in one prompt.
	DefaultBatchSize = 20
	// DefaultMaxTopics caps the topics merged across batches.
	DefaultMaxTopics = 7
	// DefaultConcurrency bounds parallel batch requests.
	DefaultConcurrency = 2

	fallbackModel = "fallback"
	keyDocuments  = 5
	taskTopics    = "topic_extraction"
)

// Config tunes the pipeline. Zero values take defaults.
type Config struct {
	BatchSize   int
	MaxTopics   int
	Concurrency int
}

// Service runs the LLM pipeline.
type Service struct {
	completer Completer
	cache     ResultCache
	cat       Categorizer
	cfg       Config
	now       func() time.Time
}

// New creates a Service. completer and cache can be nil: without a completer
// every analysis uses keyword clustering.
func New(completer Completer, cache ResultCache, cat Categorizer, cfg Config) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxTopics <= 0 {
		cfg.MaxTopics = DefaultMaxTopics
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Service{completer: completer, cache: cache, cat: cat, cfg: cfg, now: time.Now}
}

// Enabled reports whether a completer is configured.
func (s *Service) Enabled() bool { return s.completer != nil }

// Analyze extracts topics from c. Provider and parse failures never surface:
// the result then carries Strategy LLMFallback and the failure as its reason.
func (s *Service) Analyze(ctx context.Context, c corpus.Corpus) (analysis.Result, error) {
	if c.Len() == 0 {
		return analysis.Result{}, fmt.Errorf("%w: no documents to analyze", domain.ErrEmptyInput)
	}
	start := s.now()
	if s.completer == nil {
		return s.fallback(c, domain.ErrLLMDisabled, start), nil
	}

	key := s.cacheKey(taskTopics, c)
	if s.cache != nil {
		if res, ok := s.cache.Get(ctx, key); ok {
			return res, nil
		}
	}

	raw, err := s.extract(ctx, c)
	if err != nil {
		logger.FromContext(ctx).Warn("LLM topic extraction failed, using keyword clustering",
			zap.Int("documents", c.Len()), zap.Error(err))
		return s.fallback(c, err, start), nil
	}

	res := s.result(c, enrich(raw, c), analysis.LLM, start)
	res.Metadata.Algorithm = AlgorithmLLM
	res.Metadata.Model = s.completer.Model()
	res.Metadata.Provider = s.completer.Provider()

	if s.cache != nil {
		s.cache.Put(ctx, key, res)
	}
	return res, nil
}

// extract asks the model for topics, batching large corpora and merging
// topics by name. It fails only when every batch fails.
func (s *Service) extract(ctx context.Context, c corpus.Corpus) ([]rawTopic, error) {
	if c.Len() <= s.cfg.BatchSize {
		return s.extractBatch(ctx, c.Documents(), 0)
	}

	var batches [][2]int
	for from := 0; from < c.Len(); from += s.cfg.BatchSize {
		batches = append(batches, [2]int{from, min(from+s.cfg.BatchSize, c.Len())})
	}

	topics := make([][]rawTopic, len(batches))
	errs := make([]error, len(batches))
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, b := range batches {
		g.Go(func() error {
			topics[i], errs[i] = s.extractBatch(ctx, c.Slice(b[0], b[1]).Documents(), b[0])
			return nil
		})
	}
	_ = g.Wait()

	var (
		merged []rawTopic
		seen   = make(map[string]struct{})
		failed int
	)
	for i := range batches {
		if errs[i] != nil {
			failed++
			logger.FromContext(ctx).Warn("LLM batch failed",
				zap.Int("batch", i), zap.Int("offset", batches[i][0]), zap.Error(errs[i]))
			continue
		}
		for _, t := range topics[i] {
			name := strings.ToLower(strings.TrimSpace(t.Name))
			if _, dup := seen[name]; dup || len(merged) == s.cfg.MaxTopics {
				continue
			}
			seen[name] = struct{}{}
			merged = append(merged, t)
		}
	}
	if failed == len(batches) {
		return nil, errors.Join(errs...)
	}
	return merged, nil
}

func (s *Service) extractBatch(ctx context.Context, docs []corpus.Document, offset int) ([]rawTopic, error) {
	resp, err := s.completer.Complete(ctx, topicPrompt(docs, offset))
	if err != nil {
		return nil, err
	}
	topics, err := parseTopics(resp)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return topics, nil
}

func (s *Service) fallback(c corpus.Corpus, reason error, start time.Time) analysis.Result {
	res := s.result(c, keywordClusters(c), analysis.LLMFallback, start)
	res.Metadata.Algorithm = AlgorithmClusters
	res.Metadata.Model = fallbackModel
	res.Metadata.Provider = fallbackModel
	res.Metadata.FallbackReason = reason.Error()
	return res
}

func (s *Service) result(c corpus.Corpus, drafts []draft, strategy analysis.Strategy, start time.Time) analysis.Result {
	rows, cons := stats(drafts, s.cat)
	k := 0
	for _, r := range rows {
		if r.ID != topic.MixedID {
			k++
		}
	}
	return analysis.Result{
		Topics:    rows,
		Consensus: cons,
		Metadata: analysis.Metadata{
			TotalDocuments: c.Len(),
			OptimalTopics:  k,
			Strategy:       strategy,
			CreatedAt:      start.UTC(),
			DurationMS:     s.now().Sub(start).Milliseconds(),
		},
	}
}

// cacheKey hashes the task, the model, the document count and the ids and
// text hashes of the first documents.
func (s *Service) cacheKey(task string, c corpus.Corpus) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|", task, s.completer.Model(), strconv.Itoa(c.Len()))
	for i := range min(c.Len(), keyDocuments) {
		d := c.At(i)
		fmt.Fprintf(h, "%s:%s|", d.ID(), d.Hash())
	}
	return hex.EncodeToString(h.Sum(nil))
}
