// Package textnorm lowercases, canonicalizes and compresses raw document text
// into the term strings consumed by the vectorizer.
package textnorm

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/kailas-cloud/topicdex/internal/domain"
)

const (
	// DefaultMaxTerms is the number of salient terms kept per document.
	DefaultMaxTerms = 20
	// MinTokenLength is the shortest token (in runes) kept by salience extraction.
	MinTokenLength = 3
	// LongTokenLength is the length above which a token gets the long-token boost.
	LongTokenLength = 6

	themeBoost = 2.0
	longBoost  = 1.5
)

// safePunct is the punctuation kept by Normalize (numeric and financial text).
const safePunct = ".,-:+%$€£"

// Normalizer implements text normalization and salient-term extraction.
// It is safe for concurrent use.
type Normalizer struct {
	lex      *Lexicon
	synonyms map[string]string
}

// New creates a Normalizer over lex. A nil lex uses DefaultLexicon.
func New(lex *Lexicon) *Normalizer {
	if lex == nil {
		lex = DefaultLexicon()
	}
	syn := make(map[string]string, len(lex.Synonyms))
	for _, s := range lex.Synonyms {
		syn[strings.ToLower(s.From)] = s.To
	}
	return &Normalizer{lex: lex, synonyms: syn}
}

// Lexicon returns the lexicon in use.
func (n *Normalizer) Lexicon() *Lexicon { return n.lex }

// Normalize lowercases text, substitutes whole-word synonyms, replaces
// characters outside the safe class with spaces and collapses whitespace.
func (n *Normalizer) Normalize(text string) (string, error) {
	if !utf8.ValidString(text) {
		return "", fmt.Errorf("normalize: %w: text is not valid UTF-8", domain.ErrInvalidInput)
	}
	text = cases.Lower(language.Russian).String(norm.NFC.String(text))
	text = n.replaceSynonyms(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if isWordRune(r) || unicode.IsSpace(r) || strings.ContainsRune(safePunct, r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " "), nil
}

// replaceSynonyms rewrites maximal word runs that equal a synonym key.
func (n *Normalizer) replaceSynonyms(text string) string {
	if len(n.synonyms) == 0 {
		return text
	}
	var out, word strings.Builder
	flush := func() {
		if word.Len() == 0 {
			return
		}
		w := word.String()
		if canon, ok := n.synonyms[w]; ok {
			w = canon
		}
		out.WriteString(w)
		word.Reset()
	}
	for _, r := range text {
		if isWordRune(r) {
			word.WriteRune(r)
			continue
		}
		flush()
		out.WriteRune(r)
	}
	flush()
	return out.String()
}

type weightedTerm struct {
	term   string
	weight float64
}

// ExtractSalientTerms keeps the maxTerms highest-weighted tokens of a
// normalized string. Tokens shorter than MinTokenLength and stop words are
// dropped; theme-dictionary tokens are doubled and long tokens boosted by 1.5.
// The result is ordered by weight, not by position.
func (n *Normalizer) ExtractSalientTerms(normalized string, maxTerms int) string {
	if maxTerms <= 0 {
		maxTerms = DefaultMaxTerms
	}
	words := strings.Fields(normalized)
	terms := make([]weightedTerm, 0, len(words))
	for _, w := range words {
		runes := utf8.RuneCountInString(w)
		if runes < MinTokenLength || n.lex.IsStopWord(w) {
			continue
		}
		weight := 1.0
		if n.lex.MatchesAnyTheme(w) {
			weight *= themeBoost
		}
		if runes > LongTokenLength {
			weight *= longBoost
		}
		terms = append(terms, weightedTerm{term: w, weight: weight})
	}

	sort.SliceStable(terms, func(i, j int) bool { return terms[i].weight > terms[j].weight })
	if len(terms) > maxTerms {
		terms = terms[:maxTerms]
	}

	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = t.term
	}
	return strings.Join(out, " ")
}

// Process normalizes text and extracts up to maxTerms salient terms.
func (n *Normalizer) Process(text string, maxTerms int) (string, error) {
	normalized, err := n.Normalize(text)
	if err != nil {
		return "", err
	}
	return n.ExtractSalientTerms(normalized, maxTerms), nil
}

// GuessTheme returns the theme whose keywords occur in the most tokens of
// text, or "" when none occur. Ties keep lexicon order.
func (n *Normalizer) GuessTheme(text string) string {
	normalized, err := n.Normalize(text)
	if err != nil {
		return ""
	}
	words := strings.Fields(normalized)
	best, bestScore := "", 0
	for _, t := range n.lex.Themes {
		score := 0
		for _, w := range words {
			if t.Matches(w) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = t.Name, score
		}
	}
	return best
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_'
}
