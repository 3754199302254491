// Package vectorize turns normalized documents into a document × term weight
// matrix backed by gonum.
package vectorize

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/e-gun/nlp"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/kailas-cloud/topicdex/internal/domain"
)

// Weighting selects the cell weighting of the term matrix.
type Weighting string

const (
	// TFIDF weights counts by smoothed inverse document frequency and L2-normalizes rows.
	TFIDF Weighting = "tfidf"
	// Count keeps raw term counts.
	Count Weighting = "count"
)

// Defaults.
const (
	DefaultMaxFeatures = 5000
	DefaultMinDF       = 2
	DefaultMaxDF       = 0.95
	DefaultNgramMax    = 3

	// smallCorpus is the corpus size below which MinDF is relaxed to 1.
	smallCorpus   = 5
	minVocabulary = 2
)

// StopList reports stop words. *textnorm.Lexicon satisfies it.
type StopList interface {
	IsStopWord(w string) bool
}

// Options configures a Vectorizer. Zero fields take the defaults.
type Options struct {
	MaxFeatures int
	// MinDF is the minimum number of documents a term must occur in.
	MinDF int
	// MaxDF is the maximum fraction of documents a term may occur in.
	MaxDF     float64
	NgramMax  int
	Weighting Weighting
	StopWords StopList
}

func (o *Options) applyDefaults() {
	if o.MaxFeatures <= 0 {
		o.MaxFeatures = DefaultMaxFeatures
	}
	if o.MinDF <= 0 {
		o.MinDF = DefaultMinDF
	}
	if o.MaxDF <= 0 || o.MaxDF > 1 {
		o.MaxDF = DefaultMaxDF
	}
	if o.NgramMax <= 0 {
		o.NgramMax = DefaultNgramMax
	}
	if o.Weighting == "" {
		o.Weighting = TFIDF
	}
}

// TermMatrix is a dense document × term matrix aligned with corpus order.
// It is read-only after construction and safe to share between goroutines.
type TermMatrix struct {
	m     *mat.Dense
	vocab *Vocabulary
	// counts keeps the raw term counts regardless of weighting.
	counts *mat.Dense
}

// Dims returns (documents, terms).
func (t *TermMatrix) Dims() (int, int) { return t.m.Dims() }

// Dense returns the weight matrix. Callers must not modify it.
func (t *TermMatrix) Dense() mat.Matrix { return t.m }

// Counts returns the raw count matrix. Callers must not modify it.
func (t *TermMatrix) Counts() mat.Matrix { return t.counts }

// Row returns a copy of document i's weights.
func (t *TermMatrix) Row(i int) []float64 {
	return append([]float64(nil), t.m.RawRowView(i)...)
}

// RawRow returns a view of document i's weights. Callers must not modify it.
func (t *TermMatrix) RawRow(i int) []float64 { return t.m.RawRowView(i) }

// Vocabulary returns the column vocabulary.
func (t *TermMatrix) Vocabulary() *Vocabulary { return t.vocab }

// Vectorizer builds term matrices.
type Vectorizer struct {
	opts Options
}

// New creates a Vectorizer.
func New(opts Options) *Vectorizer {
	opts.applyDefaults()
	return &Vectorizer{opts: opts}
}

// FitTransform builds the vocabulary over docs and returns the weighted matrix.
// It returns domain.ErrEmptyVocabulary when fewer than two terms survive filtering.
func (v *Vectorizer) FitTransform(docs []string) (*TermMatrix, error) {
	n := len(docs)
	if n == 0 {
		return nil, fmt.Errorf("vectorize: %w", domain.ErrEmptyInput)
	}

	df, tf, rows, err := v.count(docs)
	if err != nil {
		return nil, err
	}

	minDF := v.opts.MinDF
	if n < smallCorpus {
		minDF = 1
	}
	maxCount := v.opts.MaxDF * float64(n)

	kept := make([]string, 0, len(df))
	for g, c := range df {
		if c < minDF || float64(c) > maxCount {
			continue
		}
		kept = append(kept, g)
	}
	if len(kept) > v.opts.MaxFeatures {
		sort.Slice(kept, func(i, j int) bool {
			if tf[kept[i]] != tf[kept[j]] {
				return tf[kept[i]] > tf[kept[j]]
			}
			return kept[i] < kept[j]
		})
		kept = kept[:v.opts.MaxFeatures]
	}
	if len(kept) < minVocabulary {
		return nil, fmt.Errorf("vectorize: %w: %d terms after filtering %d documents",
			domain.ErrEmptyVocabulary, len(kept), n)
	}

	vocab := newVocabulary(kept)
	counts := mat.NewDense(n, vocab.Size(), nil)
	for i, row := range rows {
		for term, c := range row {
			if j, ok := vocab.Index(term); ok {
				counts.Set(i, j, c)
			}
		}
	}

	weights := counts
	if v.opts.Weighting == TFIDF {
		weights = tfidf(counts, vocab, df)
	}
	return &TermMatrix{m: weights, vocab: vocab, counts: counts}, nil
}

// count runs the n-gram tokeniser through an nlp count vectoriser and
// returns document frequencies, corpus term frequencies and per-document
// counts keyed by term.
func (v *Vectorizer) count(docs []string) (map[string]int, map[string]float64, []map[string]float64, error) {
	tok := &ngramTokeniser{stops: v.opts.StopWords, size: v.opts.NgramMax}
	empty := true
	for _, d := range docs {
		if len(tok.Tokenise(d)) > 0 {
			empty = false
			break
		}
	}
	if empty {
		// the sparse matrices cannot have zero rows
		return map[string]int{}, map[string]float64{}, make([]map[string]float64, len(docs)), nil
	}

	cv := nlp.NewCountVectoriser()
	cv.Tokeniser = tok
	raw, err := cv.FitTransform(docs...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("count terms: %w", err)
	}

	terms := make([]string, len(cv.Vocabulary))
	for t, j := range cv.Vocabulary {
		terms[j] = t
	}
	df := make(map[string]int, len(terms))
	tf := make(map[string]float64, len(terms))
	rows := make([]map[string]float64, len(docs))
	for i := range rows {
		rows[i] = make(map[string]float64)
	}
	// rows of raw are terms, columns are documents
	add := func(j, i int, c float64) {
		if c == 0 {
			return
		}
		t := terms[j]
		df[t]++
		tf[t] += c
		rows[i][t] = c
	}
	if nz, ok := raw.(nonZeroDoer); ok {
		nz.DoNonZero(add)
	} else {
		r, c := raw.Dims()
		for j := 0; j < r; j++ {
			for i := 0; i < c; i++ {
				add(j, i, raw.At(j, i))
			}
		}
	}
	return df, tf, rows, nil
}

// nonZeroDoer is implemented by the sparse matrices the count vectoriser
// returns.
type nonZeroDoer interface {
	DoNonZero(fn func(i, j int, v float64))
}

// ngramTokeniser feeds the count vectoriser 1..size grams of the
// stop-word-filtered token stream.
type ngramTokeniser struct {
	stops StopList
	size  int
}

func (t *ngramTokeniser) ForEachIn(input string, process func(token string)) {
	tokens := Tokenize(input)
	if t.stops != nil {
		kept := tokens[:0]
		for _, tok := range tokens {
			if !t.stops.IsStopWord(tok) {
				kept = append(kept, tok)
			}
		}
		tokens = kept
	}
	for size := 1; size <= t.size; size++ {
		for i := 0; i+size <= len(tokens); i++ {
			process(strings.Join(tokens[i:i+size], " "))
		}
	}
}

func (t *ngramTokeniser) Tokenise(input string) []string {
	var out []string
	t.ForEachIn(input, func(tok string) { out = append(out, tok) })
	return out
}

// tfidf applies smoothed idf, ln((1+n)/(1+df))+1, and L2-normalizes rows.
func tfidf(counts *mat.Dense, vocab *Vocabulary, df map[string]int) *mat.Dense {
	n, m := counts.Dims()
	idf := make([]float64, m)
	for j := 0; j < m; j++ {
		idf[j] = math.Log(float64(1+n)/float64(1+df[vocab.Term(j)])) + 1
	}
	out := mat.NewDense(n, m, nil)
	out.Copy(counts)
	for i := 0; i < n; i++ {
		row := out.RawRowView(i)
		floats.Mul(row, idf)
		if norm := floats.Norm(row, 2); norm > 0 {
			floats.Scale(1/norm, row)
		}
	}
	return out
}

// Tokenize splits s into lowercase word runs of at least two characters.
func Tokenize(s string) []string {
	var out []string
	start := -1
	runes := 0
	flush := func(end int) {
		if start >= 0 && runes >= 2 {
			out = append(out, strings.ToLower(s[start:end]))
		}
		start, runes = -1, 0
	}
	for i, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_' {
			if start < 0 {
				start = i
			}
			runes++
			continue
		}
		flush(i)
	}
	flush(len(s))
	return out
}
