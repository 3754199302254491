// Package engine orchestrates the topic-discovery pipeline: normalization,
// vectorization, topic-count selection, dual LDA/NMF modeling, consensus and
// naming. Analyze always returns a non-empty result for a non-empty corpus;
// any modeling failure switches to the rule-based fallback strategy.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/kailas-cloud/topicdex/internal/domain"
	"github.com/kailas-cloud/topicdex/internal/domain/analysis"
	"github.com/kailas-cloud/topicdex/internal/domain/assignment"
	"github.com/kailas-cloud/topicdex/internal/domain/corpus"
	"github.com/kailas-cloud/topicdex/internal/domain/topic"
	"github.com/kailas-cloud/topicdex/internal/engine/consensus"
	"github.com/kailas-cloud/topicdex/internal/engine/ksel"
	"github.com/kailas-cloud/topicdex/internal/engine/model"
	"github.com/kailas-cloud/topicdex/internal/engine/namer"
	"github.com/kailas-cloud/topicdex/internal/engine/textnorm"
	"github.com/kailas-cloud/topicdex/internal/engine/vectorize"
	"github.com/kailas-cloud/topicdex/internal/logger"
)

// Algorithm labels recorded in result metadata.
const (
	AlgorithmHybrid   = "LDA+NMF"
	AlgorithmSingle   = "LDA"
	AlgorithmFallback = "rule-based"
)

// Fallback reasons.
const (
	ReasonRequested      = "requested"
	ReasonSingleDocument = "single document"
)

// fitFunc fits one topic model with k components.
type fitFunc func(ctx context.Context, x mat.Matrix, k int, seed int64, maxIter int) (*model.Fitted, error)

func fitLDA(ctx context.Context, x mat.Matrix, k int, seed int64, maxIter int) (*model.Fitted, error) {
	return model.FitLDA(ctx, x, k, model.LDAOptions{Seed: seed, MaxIter: maxIter})
}

func fitNMF(ctx context.Context, x mat.Matrix, k int, seed int64, maxIter int) (*model.Fitted, error) {
	return model.FitNMF(ctx, x, k, model.NMFOptions{Seed: seed, MaxIter: maxIter})
}

// Engine runs analyses. It holds no per-run state and is safe for
// concurrent use.
type Engine struct {
	norm        *textnorm.Normalizer
	namer       *namer.Namer
	fallback    *namer.Fallback
	fingerprint string
	now         func() time.Time

	fitLDA fitFunc
	fitNMF fitFunc
}

// New creates an Engine over a lexicon. A nil lex uses the default lexicon.
func New(lex *textnorm.Lexicon) *Engine {
	norm := textnorm.New(lex)
	nm := namer.New(norm.Lexicon(), nil)
	return &Engine{
		norm:        norm,
		namer:       nm,
		fallback:    namer.NewFallback(norm, nm, nil),
		fingerprint: norm.Lexicon().Fingerprint(),
		now:         time.Now,
		fitLDA:      fitLDA,
		fitNMF:      fitNMF,
	}
}

// Fingerprint identifies the lexicon the engine normalizes and names with.
// Engines with equal fingerprints produce equal results for equal input.
func (e *Engine) Fingerprint() string { return e.fingerprint }

// Namer returns the engine's topic namer.
func (e *Engine) Namer() *namer.Namer { return e.namer }

// Analyze runs the requested strategy over c. It returns domain.ErrEmptyInput
// for an empty corpus and domain.ErrInvalidInput for invalid options; every
// other failure is absorbed by the fallback strategy and recorded in
// Metadata.FallbackReason.
func (e *Engine) Analyze(ctx context.Context, c corpus.Corpus, opts Options) (analysis.Result, error) {
	if c.Len() == 0 {
		return analysis.Result{}, fmt.Errorf("analyze: %w", domain.ErrEmptyInput)
	}
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return analysis.Result{}, err
	}
	log := logger.FromContext(ctx)
	start := e.now()
	texts := c.Texts()

	var (
		res analysis.Result
		err error
	)
	switch {
	case opts.Strategy == analysis.Fallback:
		res = e.Fallback(texts, ReasonRequested)
	case c.Len() == 1:
		res = e.Fallback(texts, ReasonSingleDocument)
	case opts.Strategy == analysis.Single:
		res, err = e.single(ctx, texts, opts)
	default:
		res, err = e.hybrid(ctx, texts, opts)
	}
	if err != nil {
		log.Warn("topic modeling failed, using fallback",
			zap.String("strategy", string(opts.Strategy)),
			zap.Int("documents", c.Len()),
			zap.Error(err),
		)
		res = e.Fallback(texts, err.Error())
	}

	res.Metadata.TotalDocuments = c.Len()
	res.Metadata.Seed = opts.Seed
	res.Metadata.CreatedAt = start.UTC()
	res.Metadata.DurationMS = e.now().Sub(start).Milliseconds()
	log.Debug("analysis finished",
		zap.String("strategy", string(res.Metadata.Strategy)),
		zap.Int("topics", res.Metadata.OptimalTopics),
		zap.Int("vocabulary", res.Metadata.VocabularySize),
		zap.Int64("duration_ms", res.Metadata.DurationMS),
	)
	return res, nil
}

// Fallback runs the rule-based strategy directly.
func (e *Engine) Fallback(texts []string, reason string) analysis.Result {
	stats, labeled := e.fallback.Analyze(texts)
	return analysis.Result{
		Topics:    stats,
		Consensus: labeled,
		Metadata: analysis.Metadata{
			TotalDocuments: len(texts),
			OptimalTopics:  len(stats),
			Algorithm:      AlgorithmFallback,
			Strategy:       analysis.Fallback,
			FallbackReason: reason,
		},
	}
}

// Preprocess normalizes texts and keeps their salient terms.
func (e *Engine) Preprocess(texts []string, maxTerms int) ([]string, error) {
	out := make([]string, len(texts))
	for i, t := range texts {
		p, err := e.norm.Process(t, maxTerms)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

func (e *Engine) vectorize(texts []string, vo vectorize.Options, maxTerms int) (*vectorize.TermMatrix, error) {
	docs, err := e.Preprocess(texts, maxTerms)
	if err != nil {
		return nil, err
	}
	vo.StopWords = e.norm.Lexicon()
	return vectorize.New(vo).FitTransform(docs)
}

func (e *Engine) selectK(ctx context.Context, tm *vectorize.TermMatrix, opts Options, method ksel.Method) int {
	if opts.NumTopics > 0 {
		return opts.NumTopics
	}
	sel := ksel.Select(ctx, tm, ksel.Options{
		MaxTopics: opts.MaxTopics,
		Method:    method,
		Seed:      opts.Seed,
		Workers:   opts.Workers,
	})
	logger.FromContext(ctx).Debug("topic count selected",
		zap.Int("k", sel.K),
		zap.String("method", string(sel.Method)),
		zap.Bool("heuristic", sel.Heuristic),
		zap.Int("candidates", len(sel.Candidates)),
	)
	return sel.K
}

// hybrid fits LDA and NMF concurrently on the same matrix and reconciles
// their assignments after aligning NMF topic ids onto LDA ids.
func (e *Engine) hybrid(ctx context.Context, texts []string, opts Options) (analysis.Result, error) {
	tm, err := e.vectorize(texts, opts.vectorizer(), opts.MaxTerms)
	if err != nil {
		return analysis.Result{}, err
	}
	k := e.selectK(ctx, tm, opts, opts.Selection)

	var lda, nmf *model.Fitted
	var ldaErr, nmfErr error
	g, gctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	g.Go(func() error {
		lda, ldaErr = e.fitLDA(gctx, tm.Dense(), k, opts.Seed, opts.LDAMaxIter)
		return nil
	})
	g.Go(func() error {
		nmf, nmfErr = e.fitNMF(gctx, tm.Dense(), k, opts.Seed, opts.NMFMaxIter)
		return nil
	})
	_ = g.Wait()

	switch {
	case ldaErr != nil && nmfErr != nil:
		return analysis.Result{}, errors.Join(ldaErr, nmfErr)
	case ldaErr != nil:
		logger.FromContext(ctx).Warn("lda fit failed, using nmf alone", zap.Error(ldaErr))
		return e.oneModel(tm, nmf, opts), nil
	case nmfErr != nil:
		logger.FromContext(ctx).Warn("nmf fit failed, using lda alone", zap.Error(nmfErr))
		return e.oneModel(tm, lda, opts), nil
	}

	ldaRes := e.modelResult(lda, tm, opts)
	nmfRes := e.modelResult(nmf, tm, opts)

	aligned := model.Permute(nmf, model.Align(lda, nmf))
	ldaAssign := ldaRes.Assignments
	nmfAssign := consensus.Assign(aligned, opts.SecondaryThreshold)
	cons := consensus.Reconcile(ldaAssign, nmfAssign, opts.ConsensusThreshold)

	topics := e.consensusTopics(cons, ldaRes.Topics, tm, opts.Keywords)
	_, vocab := tm.Dims()
	return analysis.Result{
		Topics:    consensus.Stats(cons, topics),
		Consensus: cons,
		LDA:       ldaRes,
		NMF:       nmfRes,
		Metadata: analysis.Metadata{
			OptimalTopics:  k,
			VocabularySize: vocab,
			Algorithm:      AlgorithmHybrid,
			Strategy:       analysis.Hybrid,
		},
	}, nil
}

// oneModel builds a hybrid-shaped result when only one model fitted.
func (e *Engine) oneModel(tm *vectorize.TermMatrix, f *model.Fitted, opts Options) analysis.Result {
	mr := e.modelResult(f, tm, opts)
	cons := make([]assignment.Consensus, len(mr.Assignments))
	for i, a := range mr.Assignments {
		cons[i] = assignment.Consensus{DocumentIndex: a.DocumentIndex, Topic: a.Dominant, Confidence: a.Confidence}
	}
	_, vocab := tm.Dims()
	res := analysis.Result{
		Topics:    mr.Stats,
		Consensus: cons,
		Metadata: analysis.Metadata{
			OptimalTopics:  f.K,
			VocabularySize: vocab,
			Algorithm:      strings.ToUpper(string(f.Kind)),
			Strategy:       analysis.Hybrid,
		},
	}
	if f.Kind == model.LDA {
		res.LDA = mr
	} else {
		res.NMF = mr
	}
	return res
}

func (e *Engine) modelResult(f *model.Fitted, tm *vectorize.TermMatrix, opts Options) *analysis.ModelResult {
	kws := model.Keywords(f, tm.Vocabulary(), opts.Keywords)
	topics := make([]topic.Topic, f.K)
	for t := range topics {
		topics[t] = e.namer.Label(t, kws[t])
	}
	assigns := consensus.Assign(f, opts.SecondaryThreshold)
	return &analysis.ModelResult{
		Topics:      topics,
		Stats:       consensus.Stats(assigns, topics),
		Assignments: assigns,
	}
}

// consensusTopics labels consensus topics by the centroid of their member
// documents' weight rows. Topics without members keep the LDA labels.
func (e *Engine) consensusTopics(
	cons []assignment.Consensus, ldaTopics []topic.Topic, tm *vectorize.TermMatrix, n int,
) []topic.Topic {
	_, m := tm.Dims()
	centroids := make(map[int][]float64)
	for _, c := range cons {
		if centroids[c.Topic] == nil {
			centroids[c.Topic] = make([]float64, m)
		}
		floats.Add(centroids[c.Topic], tm.RawRow(c.DocumentIndex))
	}

	out := make([]topic.Topic, len(ldaTopics))
	for i, lt := range ldaTopics {
		centroid, ok := centroids[lt.ID]
		if !ok {
			out[i] = lt
			continue
		}
		out[i] = e.namer.Label(lt.ID, topTerms(centroid, tm.Vocabulary(), n))
	}
	return out
}

func topTerms(weights []float64, vocab *vectorize.Vocabulary, n int) []string {
	idx := make([]int, 0, len(weights))
	for j, w := range weights {
		if w > 0 {
			idx = append(idx, j)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool { return weights[idx[a]] > weights[idx[b]] })
	terms := make([]string, 0, min(n, len(idx)))
	for _, j := range idx[:min(n, len(idx))] {
		terms = append(terms, vocab.Term(j))
	}
	return terms
}

// single fits one LDA model on raw unigram counts, selects k by the
// perplexity elbow and moves weak documents into the mixed bucket.
func (e *Engine) single(ctx context.Context, texts []string, opts Options) (analysis.Result, error) {
	tm, err := e.vectorize(texts, opts.singleVectorizer(), opts.MaxTerms)
	if err != nil {
		return analysis.Result{}, err
	}
	k := e.selectK(ctx, tm, opts, ksel.PerplexityMethod)

	f, err := e.fitLDA(ctx, tm.Dense(), k, opts.Seed, opts.LDAMaxIter)
	if err != nil {
		return analysis.Result{}, err
	}

	kws := model.Keywords(f, tm.Vocabulary(), singleKeywords)
	topics := make([]topic.Topic, k)
	for t := range topics {
		topics[t] = e.namer.NumberedLabel(t, kws[t])
	}
	assigns := consensus.AssignSingle(f, opts.SecondaryThreshold, opts.MixedThreshold)
	stats := consensus.Stats(assigns, topics)

	cons := make([]assignment.Consensus, len(assigns))
	for i, a := range assigns {
		cons[i] = assignment.Consensus{DocumentIndex: a.DocumentIndex, Topic: a.Dominant, Confidence: a.Confidence}
	}
	_, vocab := tm.Dims()
	return analysis.Result{
		Topics:    stats,
		Consensus: cons,
		LDA:       &analysis.ModelResult{Topics: topics, Stats: stats, Assignments: assigns},
		Metadata: analysis.Metadata{
			OptimalTopics:  k,
			VocabularySize: vocab,
			Algorithm:      AlgorithmSingle,
			Strategy:       analysis.Single,
		},
	}, nil
}
