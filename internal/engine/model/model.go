// Package model fits the two topic models used by the engine: a probabilistic
// latent Dirichlet allocation (online variational Bayes) and a non-negative
// matrix factorization (Frobenius objective). Both are seeded and
// iteration-bounded, and both expose the same Fitted shape.
package model

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Kind names a topic model.
type Kind string

const (
	// LDA is latent Dirichlet allocation.
	LDA Kind = "lda"
	// NMF is non-negative matrix factorization.
	NMF Kind = "nmf"
)

// DefaultKeywords is the number of top terms extracted per topic.
const DefaultKeywords = 15

// Fitted is the output of one model fit over an n × m matrix with k topics.
// Components is k × m (topic-term weights); DocTopic is n × k with rows
// summing to 1.
type Fitted struct {
	Kind       Kind
	K          int
	Components *mat.Dense
	DocTopic   *mat.Dense
	// Iterations is the number of outer iterations actually run.
	Iterations int
	// Perplexity is set for LDA fits.
	Perplexity float64
	// ReconstructionError is the Frobenius norm of X - WH, set for NMF fits.
	ReconstructionError float64
}

// Distribution returns a copy of document i's topic distribution.
func (f *Fitted) Distribution(i int) []float64 {
	return append([]float64(nil), f.DocTopic.RawRowView(i)...)
}

// Documents returns the number of fitted documents.
func (f *Fitted) Documents() int {
	n, _ := f.DocTopic.Dims()
	return n
}

// normalizeRows scales each row of m to sum to 1. Rows summing to zero
// become uniform.
func normalizeRows(m *mat.Dense) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		s := floats.Sum(row)
		if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			for j := range row {
				row[j] = 1 / float64(c)
			}
			continue
		}
		floats.Scale(1/s, row)
	}
}

func finite(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// gammaSample draws from Gamma(shape, scale) with shape >= 1 (Marsaglia-Tsang).
func gammaSample(rng *rand.Rand, shape, scale float64) float64 {
	d := shape - 1.0/3
	c := 1 / math.Sqrt(9*d)
	for {
		x := rng.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x || math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v * scale
		}
	}
}
