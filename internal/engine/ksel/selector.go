// Package ksel chooses the number of topics for a term matrix.
package ksel

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/topicdex/internal/engine/model"
	"github.com/kailas-cloud/topicdex/internal/engine/vectorize"
)

// Method is a topic-count search strategy.
type Method string

const (
	// SilhouetteMethod maximizes the k-means silhouette coefficient.
	SilhouetteMethod Method = "silhouette"
	// PerplexityMethod picks the elbow of the LDA perplexity curve.
	PerplexityMethod Method = "perplexity"
)

const (
	// DefaultMaxTopics bounds the candidate range.
	DefaultMaxTopics = 10

	minTopics      = 2
	smallCorpus    = 5
	minElbowCands  = 4
	elbowDefault   = 4
	perplexityIter = 20
	// vocabPerTopic is the vocabulary size required per candidate topic.
	vocabPerTopic = 10
)

// Options configures Select.
type Options struct {
	MaxTopics int
	Method    Method
	Seed      int64
	// Workers bounds concurrent candidate fits; 0 means one per candidate.
	Workers int
}

// Candidate is one evaluated topic count.
type Candidate struct {
	K     int     `json:"k"`
	Score float64 `json:"score"`
	Err   error   `json:"-"`
}

// Selection is the outcome of Select.
type Selection struct {
	K          int         `json:"k"`
	Method     Method      `json:"method"`
	Candidates []Candidate `json:"candidates,omitempty"`
	// Heuristic is set when the search was skipped or produced nothing usable.
	Heuristic bool `json:"heuristic"`
}

// Select determines the number of topics for tm. It never fails: candidate
// errors are recorded and skipped, and an empty search falls back to a
// size-based default. The result never exceeds max(2, n/3).
func Select(ctx context.Context, tm *vectorize.TermMatrix, opts Options) Selection {
	if opts.MaxTopics <= 0 {
		opts.MaxTopics = DefaultMaxTopics
	}
	if opts.Method == "" {
		opts.Method = SilhouetteMethod
	}
	n, m := tm.Dims()
	sel := Selection{Method: opts.Method}

	if n < smallCorpus {
		sel.K = min(3, max(minTopics, n/2))
		sel.Heuristic = true
		return clamp(sel, n)
	}

	upper := min(opts.MaxTopics, n-1, m/vocabPerTopic)
	var ks []int
	for k := minTopics; k <= upper; k++ {
		ks = append(ks, k)
	}
	sel.Candidates = evaluate(ctx, tm, ks, opts)

	switch opts.Method {
	case PerplexityMethod:
		sel.K, sel.Heuristic = elbow(sel.Candidates, upper)
	default:
		sel.K, sel.Heuristic = bestSilhouette(sel.Candidates)
	}
	if sel.Heuristic && opts.Method != PerplexityMethod {
		sel.K = min(8, max(3, n/5))
	}
	return clamp(sel, n)
}

func clamp(sel Selection, n int) Selection {
	sel.K = max(1, min(sel.K, max(minTopics, n/3)))
	return sel
}

func evaluate(ctx context.Context, tm *vectorize.TermMatrix, ks []int, opts Options) []Candidate {
	out := make([]Candidate, len(ks))
	if len(ks) == 0 {
		return out
	}
	var rows [][]float64
	if opts.Method != PerplexityMethod {
		n, _ := tm.Dims()
		rows = make([][]float64, n)
		for i := range rows {
			rows[i] = tm.RawRow(i)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i, k := range ks {
		g.Go(func() error {
			out[i] = Candidate{K: k}
			if opts.Method == PerplexityMethod {
				f, err := model.FitLDA(gctx, tm.Counts(), k, model.LDAOptions{Seed: opts.Seed, MaxIter: perplexityIter})
				if err != nil {
					out[i].Err = err
					return nil
				}
				out[i].Score = f.Perplexity
				return nil
			}
			labels, _ := KMeans(rows, k, opts.Seed)
			score, err := Silhouette(rows, labels)
			out[i].Score, out[i].Err = score, err
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// bestSilhouette returns the k with the highest score. Degenerate
// clusterings carry a score of -1 and still compete.
func bestSilhouette(cands []Candidate) (int, bool) {
	best, bestScore := 0, math.Inf(-1)
	for _, c := range cands {
		if c.Score > bestScore {
			best, bestScore = c.K, c.Score
		}
	}
	return best, best == 0
}

// elbow returns the k at the largest absolute second difference of the
// min-max normalized perplexity curve.
func elbow(cands []Candidate, upper int) (int, bool) {
	var ks []int
	var ps []float64
	for _, c := range cands {
		if c.Err != nil || math.IsInf(c.Score, 0) || math.IsNaN(c.Score) {
			continue
		}
		ks = append(ks, c.K)
		ps = append(ps, c.Score)
	}
	if len(ks) < minElbowCands {
		return max(minTopics, min(elbowDefault, upper)), true
	}

	lo, hi := ps[0], ps[0]
	for _, p := range ps {
		lo, hi = math.Min(lo, p), math.Max(hi, p)
	}
	norm := make([]float64, len(ps))
	if hi > lo {
		for i, p := range ps {
			norm[i] = (p - lo) / (hi - lo)
		}
	}

	best, bestCurv := ks[1], -1.0
	for i := 1; i < len(norm)-1; i++ {
		curv := math.Abs(norm[i+1] - 2*norm[i] + norm[i-1])
		if curv > bestCurv {
			best, bestCurv = ks[i], curv
		}
	}
	return best, false
}
