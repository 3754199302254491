package model

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Align returns perm such that topic t of other corresponds to topic perm[t]
// of ref. Pairs are matched greedily by the highest correlation of document
// loadings (DocTopic columns). Both fits must share k and documents.
func Align(ref, other *Fitted) []int {
	k := ref.K
	refCols := columns(ref.DocTopic, k)
	otherCols := columns(other.DocTopic, k)

	sim := make([][]float64, k)
	for a := 0; a < k; a++ {
		sim[a] = make([]float64, k)
		for b := 0; b < k; b++ {
			c := stat.Correlation(refCols[a], otherCols[b], nil)
			if math.IsNaN(c) {
				c = -1
			}
			sim[a][b] = c
		}
	}

	perm := make([]int, k)
	usedRef := make([]bool, k)
	usedOther := make([]bool, k)
	for step := 0; step < k; step++ {
		bestA, bestB, best := -1, -1, math.Inf(-1)
		for a := 0; a < k; a++ {
			if usedRef[a] {
				continue
			}
			for b := 0; b < k; b++ {
				if usedOther[b] {
					continue
				}
				if sim[a][b] > best {
					bestA, bestB, best = a, b, sim[a][b]
				}
			}
		}
		usedRef[bestA], usedOther[bestB] = true, true
		perm[bestB] = bestA
	}
	return perm
}

// Permute returns a copy of f with topic t renumbered to perm[t].
func Permute(f *Fitted, perm []int) *Fitted {
	n := f.Documents()
	_, m := f.Components.Dims()
	comp := mat.NewDense(f.K, m, nil)
	docTopic := mat.NewDense(n, f.K, nil)
	for t, to := range perm {
		comp.SetRow(to, f.Components.RawRowView(t))
		for i := 0; i < n; i++ {
			docTopic.Set(i, to, f.DocTopic.At(i, t))
		}
	}
	out := *f
	out.Components = comp
	out.DocTopic = docTopic
	return &out
}

func columns(m *mat.Dense, k int) [][]float64 {
	out := make([][]float64, k)
	for t := 0; t < k; t++ {
		out[t] = mat.Col(nil, t, m)
	}
	return out
}
