package model

import (
	"context"
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/kailas-cloud/topicdex/internal/domain"
)

// NMF defaults.
const (
	DefaultNMFMaxIter = 1000

	nmfTol        = 1e-4
	nmfCheckEvery = 10
	nmfEps        = 1e-10
)

// NMFOptions configures FitNMF.
type NMFOptions struct {
	MaxIter int
	// Seed is used only when k exceeds min(n, m) and the SVD initialization
	// cannot be applied.
	Seed int64
}

// FitNMF factorizes x ≈ W·H with multiplicative updates on the Frobenius
// objective. W is initialized with NNDSVDa when k <= min(n, m). DocTopic is W
// with rows normalized to sum to 1.
func FitNMF(ctx context.Context, x mat.Matrix, k int, opts NMFOptions) (*Fitted, error) {
	n, m := x.Dims()
	if k < 1 || n == 0 || m == 0 {
		return nil, domain.NewModelFitError(string(NMF), k, errors.New("invalid dimensions"))
	}
	if mat.Min(x) < 0 {
		return nil, domain.NewModelFitError(string(NMF), k, errors.New("negative input"))
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = DefaultNMFMaxIter
	}

	var w, h *mat.Dense
	if k <= min(n, m) {
		var err error
		if w, h, err = nndsvda(x, k); err != nil {
			return nil, domain.NewModelFitError(string(NMF), k, err)
		}
	} else {
		w, h = randomInit(x, k, opts.Seed)
	}

	var (
		wtx, wtw, wtwh = mat.NewDense(k, m, nil), mat.NewDense(k, k, nil), mat.NewDense(k, m, nil)
		xht, hht, whht = mat.NewDense(n, k, nil), mat.NewDense(k, k, nil), mat.NewDense(n, k, nil)
	)
	prevErr := frobenius(x, w, h)
	iter := 0
	for iter < opts.MaxIter {
		if err := ctx.Err(); err != nil {
			return nil, domain.NewModelFitError(string(NMF), k, err)
		}
		iter++

		wtx.Mul(w.T(), x)
		wtw.Mul(w.T(), w)
		wtwh.Mul(wtw, h)
		multiplicativeStep(h, wtx, wtwh)

		xht.Mul(x, h.T())
		hht.Mul(h, h.T())
		whht.Mul(w, hht)
		multiplicativeStep(w, xht, whht)

		if iter%nmfCheckEvery == 0 {
			e := frobenius(x, w, h)
			if prevErr > 0 && (prevErr-e)/prevErr < nmfTol {
				prevErr = e
				break
			}
			prevErr = e
		}
	}

	if !finite(w) || !finite(h) {
		return nil, domain.NewModelFitError(string(NMF), k, errors.New("non-finite factors"))
	}
	docTopic := mat.DenseCopyOf(w)
	normalizeRows(docTopic)
	return &Fitted{
		Kind:                NMF,
		K:                   k,
		Components:          h,
		DocTopic:            docTopic,
		Iterations:          iter,
		ReconstructionError: frobenius(x, w, h),
	}, nil
}

// multiplicativeStep sets f = f ∘ num / (den + eps).
func multiplicativeStep(f, num, den *mat.Dense) {
	r, _ := f.Dims()
	for i := 0; i < r; i++ {
		fr, nr, dr := f.RawRowView(i), num.RawRowView(i), den.RawRowView(i)
		for j := range fr {
			fr[j] *= nr[j] / (dr[j] + nmfEps)
		}
	}
}

func frobenius(x mat.Matrix, w, h *mat.Dense) float64 {
	var wh, diff mat.Dense
	wh.Mul(w, h)
	diff.Sub(x, &wh)
	return mat.Norm(&diff, 2)
}

// nndsvda computes the non-negative double SVD initialization and fills
// zeros with the mean of x.
func nndsvda(x mat.Matrix, k int) (*mat.Dense, *mat.Dense, error) {
	n, m := x.Dims()
	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return nil, nil, errors.New("svd did not converge")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	w := mat.NewDense(n, k, nil)
	h := mat.NewDense(k, m, nil)

	col := func(a *mat.Dense, j, size int) []float64 {
		out := make([]float64, size)
		mat.Col(out, j, a)
		return out
	}

	ux, vy := col(&u, 0, n), col(&v, 0, m)
	root := math.Sqrt(s[0])
	for i := range ux {
		w.Set(i, 0, root*math.Abs(ux[i]))
	}
	for j := range vy {
		h.Set(0, j, root*math.Abs(vy[j]))
	}

	for c := 1; c < k; c++ {
		xv, yv := col(&u, c, n), col(&v, c, m)
		xp, xn := splitSigns(xv)
		yp, yn := splitSigns(yv)
		xpn, ypn := floats.Norm(xp, 2), floats.Norm(yp, 2)
		xnn, ynn := floats.Norm(xn, 2), floats.Norm(yn, 2)

		uu, vv, sigma := xp, yp, xpn*ypn
		un, vn := xpn, ypn
		if xnn*ynn > sigma {
			uu, vv, sigma = xn, yn, xnn*ynn
			un, vn = xnn, ynn
		}
		lbd := math.Sqrt(s[c] * sigma)
		for i := range uu {
			if un > 0 {
				w.Set(i, c, lbd*uu[i]/un)
			}
		}
		for j := range vv {
			if vn > 0 {
				h.Set(c, j, lbd*vv[j]/vn)
			}
		}
	}

	avg := mat.Sum(x) / float64(n*m)
	fill := func(_, _ int, v float64) float64 {
		if v < nmfEps {
			return avg
		}
		return v
	}
	w.Apply(fill, w)
	h.Apply(fill, h)
	return w, h, nil
}

func splitSigns(v []float64) (pos, neg []float64) {
	pos = make([]float64, len(v))
	neg = make([]float64, len(v))
	for i, x := range v {
		if x > 0 {
			pos[i] = x
		} else {
			neg[i] = -x
		}
	}
	return pos, neg
}

func randomInit(x mat.Matrix, k int, seed int64) (*mat.Dense, *mat.Dense) {
	n, m := x.Dims()
	avg := math.Sqrt(mat.Sum(x) / float64(n*m) / float64(k))
	rng := rand.New(rand.NewSource(seed))
	w := mat.NewDense(n, k, nil)
	h := mat.NewDense(k, m, nil)
	gen := func(_, _ int, _ float64) float64 {
		return avg*math.Abs(rng.NormFloat64()) + nmfEps
	}
	h.Apply(gen, h)
	w.Apply(gen, w)
	return w, h
}
