package namer

import (
	"sort"
	"strings"

	"github.com/kailas-cloud/topicdex/internal/domain/assignment"
	"github.com/kailas-cloud/topicdex/internal/domain/topic"
	"github.com/kailas-cloud/topicdex/internal/engine/consensus"
	"github.com/kailas-cloud/topicdex/internal/engine/textnorm"
	"github.com/kailas-cloud/topicdex/internal/engine/vectorize"
)

// Fallback confidences.
const (
	MatchedConfidence = 0.9
	OtherConfidence   = 0.8
)

const fallbackKeywords = 10

// Fallback is the rule-based strategy: every document goes to its
// best-scoring coarse theme and documents are grouped by theme.
type Fallback struct {
	norm       *textnorm.Normalizer
	namer      *Namer
	classifier *Classifier
}

// NewFallback creates a Fallback. Nil arguments use defaults.
func NewFallback(norm *textnorm.Normalizer, nm *Namer, cl *Classifier) *Fallback {
	if norm == nil {
		norm = textnorm.New(nil)
	}
	if nm == nil {
		nm = New(norm.Lexicon(), nil)
	}
	if cl == nil {
		cl = NewClassifier(nil)
	}
	return &Fallback{norm: norm, namer: nm, classifier: cl}
}

type fallbackGroup struct {
	theme   string
	matched bool
	docs    []int
	counts  map[string]int
	order   []string
}

// Analyze groups texts by theme. It never fails and returns at least one
// row for a non-empty input.
func (f *Fallback) Analyze(texts []string) ([]topic.Stat, []assignment.Consensus) {
	groups := make([]*fallbackGroup, 0, len(f.classifier.rules)+1)
	byTheme := make(map[string]*fallbackGroup)
	for _, tr := range f.classifier.rules {
		g := &fallbackGroup{theme: tr.Theme, matched: true, counts: map[string]int{}}
		groups = append(groups, g)
		byTheme[tr.Theme] = g
	}
	other := &fallbackGroup{theme: OtherTheme, counts: map[string]int{}}
	groups = append(groups, other)

	for i, text := range texts {
		normalized, err := f.norm.Normalize(text)
		if err != nil {
			normalized = strings.ToLower(strings.ToValidUTF8(text, " "))
		}
		terms := vectorize.Tokenize(f.norm.ExtractSalientTerms(normalized, textnorm.DefaultMaxTerms))

		g := other
		if c := f.classifier.Classify(normalized, terms); c.Matched {
			g = byTheme[c.Theme]
		}
		g.docs = append(g.docs, i)
		for _, t := range terms {
			if g.counts[t] == 0 {
				g.order = append(g.order, t)
			}
			g.counts[t]++
		}
	}

	var (
		topics  []topic.Topic
		labeled []assignment.Consensus
	)
	for _, g := range groups {
		if len(g.docs) == 0 {
			continue
		}
		id := len(topics)
		topics = append(topics, f.groupTopic(id, g))
		conf := OtherConfidence
		if g.matched {
			conf = MatchedConfidence
		}
		for _, d := range g.docs {
			labeled = append(labeled, assignment.Consensus{DocumentIndex: d, Topic: id, Confidence: conf})
		}
	}
	sort.SliceStable(labeled, func(i, j int) bool { return labeled[i].DocumentIndex < labeled[j].DocumentIndex })

	stats := consensus.Stats(labeled, topics)
	for i := range stats {
		stats[i].Description = "Группировка по ключевым словам: " + stats[i].Name
	}
	return stats, labeled
}

func (f *Fallback) groupTopic(id int, g *fallbackGroup) topic.Topic {
	terms := make([]string, 0, len(g.order))
	terms = append(terms, g.order...)
	sort.SliceStable(terms, func(a, b int) bool { return g.counts[terms[a]] > g.counts[terms[b]] })
	terms = terms[:min(len(terms), fallbackKeywords)]

	name := capitalize(g.theme)
	if len(terms) > 0 {
		name += ": " + strings.Join(terms[:min(len(terms), nameTerms)], ", ")
	}
	category := g.theme
	if !g.matched {
		category = f.namer.Categorize(terms, "", "")
	}
	return topic.Topic{ID: id, Keywords: terms, Name: name, Category: category}
}
