package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/mathext"

	"github.com/kailas-cloud/topicdex/internal/domain"
)

// LDA defaults.
const (
	DefaultLDAMaxIter = 100

	ldaLearningDecay  = 0.7
	ldaLearningOffset = 10.0
	ldaDocUpdateIter  = 100
	ldaMeanChangeTol  = 1e-3
	ldaInitShape      = 100.0
	ldaEps            = 1e-100
)

// LDAOptions configures FitLDA.
type LDAOptions struct {
	MaxIter int
	Seed    int64
	// DocTopicPrior and TopicWordPrior default to 1/k.
	DocTopicPrior  float64
	TopicWordPrior float64
}

type ldaState struct {
	k, m    int
	alpha   float64
	eta     float64
	lambda  *mat.Dense
	expBeta *mat.Dense
}

// FitLDA fits latent Dirichlet allocation with online variational Bayes over
// x (n × m, non-negative). Every document is processed in each iteration.
// The returned DocTopic rows are normalized variational posteriors.
func FitLDA(ctx context.Context, x mat.Matrix, k int, opts LDAOptions) (*Fitted, error) {
	n, m := x.Dims()
	if k < 1 || n == 0 || m == 0 {
		return nil, domain.NewModelFitError(string(LDA), k,
			fmt.Errorf("invalid dimensions %dx%d", n, m))
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = DefaultLDAMaxIter
	}
	st := &ldaState{k: k, m: m, alpha: opts.DocTopicPrior, eta: opts.TopicWordPrior}
	if st.alpha <= 0 {
		st.alpha = 1 / float64(k)
	}
	if st.eta <= 0 {
		st.eta = 1 / float64(k)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	st.lambda = mat.NewDense(k, m, nil)
	for t := 0; t < k; t++ {
		row := st.lambda.RawRowView(t)
		for j := range row {
			row[j] = gammaSample(rng, ldaInitShape, 1/ldaInitShape)
		}
	}
	st.expBeta = expDirichletRows(st.lambda)

	docs := sparseRows(x)
	iter := 0
	for iter < opts.MaxIter {
		if err := ctx.Err(); err != nil {
			return nil, domain.NewModelFitError(string(LDA), k, err)
		}
		iter++
		_, sstats := st.eStep(docs, rng, true)
		sstats.MulElem(sstats, st.expBeta)

		w := math.Pow(ldaLearningOffset+float64(iter), -ldaLearningDecay)
		for t := 0; t < k; t++ {
			lr := st.lambda.RawRowView(t)
			sr := sstats.RawRowView(t)
			for j := range lr {
				lr[j] = (1-w)*lr[j] + w*(st.eta+sr[j])
			}
		}
		st.expBeta = expDirichletRows(st.lambda)
	}

	gamma, _ := st.eStep(docs, rand.New(rand.NewSource(opts.Seed+1)), false)
	perplexity := st.perplexity(docs, gamma)

	docTopic := mat.DenseCopyOf(gamma)
	normalizeRows(docTopic)
	if !finite(docTopic) || !finite(st.lambda) {
		return nil, domain.NewModelFitError(string(LDA), k, errors.New("non-finite posterior"))
	}
	return &Fitted{
		Kind:       LDA,
		K:          k,
		Components: mat.DenseCopyOf(st.lambda),
		DocTopic:   docTopic,
		Iterations: iter,
		Perplexity: perplexity,
	}, nil
}

type sparseRow struct {
	ids  []int
	cnts []float64
}

func sparseRows(x mat.Matrix) []sparseRow {
	n, m := x.Dims()
	out := make([]sparseRow, n)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			if v := x.At(i, j); v > 0 {
				out[i].ids = append(out[i].ids, j)
				out[i].cnts = append(out[i].cnts, v)
			}
		}
	}
	return out
}

// eStep computes the per-document variational parameters and, when collect
// is set, the sufficient statistics for the topic-word update.
func (st *ldaState) eStep(docs []sparseRow, rng *rand.Rand, collect bool) (*mat.Dense, *mat.Dense) {
	gamma := mat.NewDense(len(docs), st.k, nil)
	var sstats *mat.Dense
	if collect {
		sstats = mat.NewDense(st.k, st.m, nil)
	}
	expTheta := make([]float64, st.k)
	last := make([]float64, st.k)

	for d, doc := range docs {
		g := gamma.RawRowView(d)
		for t := range g {
			g[t] = gammaSample(rng, ldaInitShape, 1/ldaInitShape)
		}
		if len(doc.ids) == 0 {
			for t := range g {
				g[t] = st.alpha
			}
			continue
		}
		normPhi := make([]float64, len(doc.ids))

		for it := 0; it < ldaDocUpdateIter; it++ {
			copy(last, g)
			expDirichlet(g, expTheta)
			st.phiNorm(doc, expTheta, normPhi)
			for t := range g {
				beta := st.expBeta.RawRowView(t)
				var s float64
				for w, id := range doc.ids {
					s += doc.cnts[w] / normPhi[w] * beta[id]
				}
				g[t] = st.alpha + expTheta[t]*s
			}
			if floats.Distance(g, last, 1)/float64(st.k) < ldaMeanChangeTol {
				break
			}
		}

		if collect {
			expDirichlet(g, expTheta)
			st.phiNorm(doc, expTheta, normPhi)
			for t := 0; t < st.k; t++ {
				row := sstats.RawRowView(t)
				for w, id := range doc.ids {
					row[id] += expTheta[t] * doc.cnts[w] / normPhi[w]
				}
			}
		}
	}
	return gamma, sstats
}

func (st *ldaState) phiNorm(doc sparseRow, expTheta, out []float64) {
	for w, id := range doc.ids {
		var s float64
		for t := 0; t < st.k; t++ {
			s += expTheta[t] * st.expBeta.At(t, id)
		}
		out[w] = s + ldaEps
	}
}

// perplexity is exp(-bound/total weight) where bound is the variational
// lower bound of the log-likelihood.
func (st *ldaState) perplexity(docs []sparseRow, gamma *mat.Dense) float64 {
	elogBeta := mat.NewDense(st.k, st.m, nil)
	for t := 0; t < st.k; t++ {
		dirichletExpectation(st.lambda.RawRowView(t), elogBeta.RawRowView(t))
	}

	var score, words float64
	elogTheta := make([]float64, st.k)
	tmp := make([]float64, st.k)
	lgAlpha, _ := math.Lgamma(st.alpha)
	lgAlphaSum, _ := math.Lgamma(st.alpha * float64(st.k))
	for d, doc := range docs {
		g := gamma.RawRowView(d)
		dirichletExpectation(g, elogTheta)
		for w, id := range doc.ids {
			for t := 0; t < st.k; t++ {
				tmp[t] = elogTheta[t] + elogBeta.At(t, id)
			}
			score += doc.cnts[w] * floats.LogSumExp(tmp)
			words += doc.cnts[w]
		}
		for t := 0; t < st.k; t++ {
			lg, _ := math.Lgamma(g[t])
			score += (st.alpha-g[t])*elogTheta[t] + lg - lgAlpha
		}
		lgSum, _ := math.Lgamma(floats.Sum(g))
		score += lgAlphaSum - lgSum
	}

	lgEta, _ := math.Lgamma(st.eta)
	lgEtaSum, _ := math.Lgamma(st.eta * float64(st.m))
	for t := 0; t < st.k; t++ {
		lr := st.lambda.RawRowView(t)
		er := elogBeta.RawRowView(t)
		for j := range lr {
			lg, _ := math.Lgamma(lr[j])
			score += (st.eta-lr[j])*er[j] + lg - lgEta
		}
		lgSum, _ := math.Lgamma(floats.Sum(lr))
		score += lgEtaSum - lgSum
	}
	if words == 0 {
		return math.Inf(1)
	}
	return math.Exp(-score / words)
}

// dirichletExpectation writes ψ(a_i) - ψ(Σa) into dst.
func dirichletExpectation(a, dst []float64) {
	psiSum := mathext.Digamma(floats.Sum(a))
	for i, v := range a {
		dst[i] = mathext.Digamma(v) - psiSum
	}
}

func expDirichlet(a, dst []float64) {
	dirichletExpectation(a, dst)
	for i := range dst {
		dst[i] = math.Exp(dst[i])
	}
}

func expDirichletRows(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		expDirichlet(m.RawRowView(i), out.RawRowView(i))
	}
	return out
}
