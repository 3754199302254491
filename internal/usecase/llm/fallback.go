package llm

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kailas-cloud/topicdex/internal/domain/corpus"
)

const (
	clusterWordsPerDoc = 10
	clusterThemes      = 5
	clusterTopWords    = 10
	clusterKeywords    = 4
	clusterConfidence  = 0.6
	remainderName      = "Другие темы"
	remainderDesc      = "Различные документы"
)

var clusterWord = regexp.MustCompile(`[а-яё]{4,}`)

var clusterStopWords = map[string]struct{}{
	"этот": {}, "который": {}, "очень": {}, "много": {}, "также": {}, "после": {}, "перед": {},
}

// keywordClusters groups documents by the most frequent long Cyrillic words.
// It needs no model and is used whenever the provider cannot answer.
func keywordClusters(c corpus.Corpus) []draft {
	n := c.Len()
	lower := make([]string, n)
	counts := make(map[string]int)
	var order []string
	for i := range n {
		lower[i] = strings.ToLower(c.At(i).Text())
		taken := 0
		for _, w := range clusterWord.FindAllString(lower[i], -1) {
			if _, stop := clusterStopWords[w]; stop {
				continue
			}
			if taken == clusterWordsPerDoc {
				break
			}
			taken++
			if counts[w] == 0 {
				order = append(order, w)
			}
			counts[w]++
		}
	}

	// Stable sort keeps first-seen order among equal counts.
	ranked := slices.Clone(order)
	slices.SortStableFunc(ranked, func(a, b string) int { return counts[b] - counts[a] })
	top := ranked[:min(len(ranked), clusterTopWords)]

	owner := make([]int, n)
	for i := range owner {
		owner[i] = -1
	}
	var drafts []draft
	for _, word := range top[:min(len(top), clusterThemes)] {
		id := len(drafts)
		for j := range n {
			if owner[j] < 0 && strings.Contains(lower[j], word) {
				owner[j] = id
			}
		}
		keywords := []string{word}
		for _, w := range top {
			if len(keywords) == clusterKeywords {
				break
			}
			if w != word {
				keywords = append(keywords, w)
			}
		}
		drafts = append(drafts, draft{
			name:        "Тема: " + capitalize(word),
			description: fmt.Sprintf("Документы, связанные с темой «%s»", word),
			keywords:    keywords,
			confidence:  clusterConfidence,
		})
	}

	remainder := -1
	for j := range n {
		if owner[j] >= 0 {
			continue
		}
		if remainder < 0 {
			remainder = len(drafts)
			drafts = append(drafts, draft{
				name:        remainderName,
				description: remainderDesc,
				keywords:    slices.Clone(otherKeywords),
				confidence:  otherConfidence,
				other:       true,
			})
		}
		owner[j] = remainder
	}
	for j, o := range owner {
		drafts[o].members = append(drafts[o].members, j)
	}
	return drafts
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
