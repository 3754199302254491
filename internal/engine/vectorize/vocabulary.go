package vectorize

import "sort"

// Vocabulary maps terms (single words or space-joined n-grams) to stable
// column indices. It is frozen once built.
type Vocabulary struct {
	terms []string
	index map[string]int
}

func newVocabulary(terms []string) *Vocabulary {
	sorted := append([]string(nil), terms...)
	sort.Strings(sorted)
	idx := make(map[string]int, len(sorted))
	for i, t := range sorted {
		idx[t] = i
	}
	return &Vocabulary{terms: sorted, index: idx}
}

// Size returns the number of terms.
func (v *Vocabulary) Size() int { return len(v.terms) }

// Term returns the term at column i.
func (v *Vocabulary) Term(i int) string { return v.terms[i] }

// Index returns the column of term.
func (v *Vocabulary) Index(term string) (int, bool) {
	i, ok := v.index[term]
	return i, ok
}

// Terms returns a copy of all terms in column order.
func (v *Vocabulary) Terms() []string {
	return append([]string(nil), v.terms...)
}
