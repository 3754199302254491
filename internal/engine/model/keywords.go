package model

import (
	"sort"

	"github.com/kailas-cloud/topicdex/internal/engine/vectorize"
)

// Keywords returns, for every topic, up to n terms ordered by descending
// component weight. Terms with zero weight are skipped.
func Keywords(f *Fitted, vocab *vectorize.Vocabulary, n int) [][]string {
	if n <= 0 {
		n = DefaultKeywords
	}
	out := make([][]string, f.K)
	for t := 0; t < f.K; t++ {
		row := f.Components.RawRowView(t)
		idx := make([]int, len(row))
		for j := range idx {
			idx[j] = j
		}
		sort.SliceStable(idx, func(a, b int) bool { return row[idx[a]] > row[idx[b]] })

		terms := make([]string, 0, n)
		for _, j := range idx {
			if len(terms) == n || row[j] <= 0 {
				break
			}
			terms = append(terms, vocab.Term(j))
		}
		out[t] = terms
	}
	return out
}
