package llm

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/topicdex/internal/domain/assignment"
	"github.com/kailas-cloud/topicdex/internal/domain/corpus"
	"github.com/kailas-cloud/topicdex/internal/domain/topic"
)

const (
	defaultConfidence = 0.7
	otherConfidence   = 0.5
	matchKeywords     = 3
	nameWordMinLength = 4
	keywordScore      = 1
	nameWordScore     = 2
)

// Other bucket labels.
const (
	otherName        = "Другое"
	otherDescription = "Разные темы"
)

var otherKeywords = []string{"разное", "другое"}

// draft is a topic under construction with its member document indices.
type draft struct {
	name        string
	description string
	keywords    []string
	confidence  float64
	members     []int
	other       bool
}

// enrich turns model topics into drafts over c. A document belongs to the
// first topic that references it. Unreferenced documents are scored against
// every topic and land in an "other" draft when nothing matches.
func enrich(raw []rawTopic, c corpus.Corpus) []draft {
	n := c.Len()
	ids := make(map[string]int, n)
	lower := make([]string, n)
	for i := range n {
		ids[c.At(i).ID()] = i
		lower[i] = strings.ToLower(c.At(i).Text())
	}

	owner := make([]int, n)
	for i := range owner {
		owner[i] = -1
	}

	drafts := make([]draft, 0, len(raw))
	for i, rt := range raw {
		d := draft{
			name:        strings.TrimSpace(rt.Name),
			description: strings.TrimSpace(rt.Description),
			keywords:    cleanKeywords(rt.Keywords),
			confidence:  defaultConfidence,
		}
		if d.name == "" {
			d.name = fmt.Sprintf("Тема %d", i+1)
		}
		if rt.Confidence != nil {
			d.confidence = min(max(*rt.Confidence, 0), 1)
		}
		id := len(drafts)
		for _, ref := range rt.DocumentIDs {
			idx, ok := resolveRef(string(ref), ids, n)
			if ok && owner[idx] < 0 {
				owner[idx] = id
			}
		}
		if !owns(owner, id) && len(d.keywords) > 0 {
			probe := d.keywords[:min(len(d.keywords), matchKeywords)]
			for j := range n {
				if owner[j] < 0 && containsAny(lower[j], probe) {
					owner[j] = id
				}
			}
		}
		drafts = append(drafts, d)
	}

	other := -1
	for j := range n {
		if owner[j] >= 0 {
			continue
		}
		if best := bestDraft(lower[j], drafts); best >= 0 {
			owner[j] = best
			continue
		}
		if other < 0 {
			other = len(drafts)
			drafts = append(drafts, draft{
				name:        otherName,
				description: otherDescription,
				keywords:    slices.Clone(otherKeywords),
				confidence:  otherConfidence,
				other:       true,
			})
		}
		owner[j] = other
	}

	for j, o := range owner {
		drafts[o].members = append(drafts[o].members, j)
	}
	return drafts
}

func owns(owner []int, id int) bool {
	return slices.Contains(owner, id)
}

// bestDraft returns the highest scoring draft for text, or -1 when no draft
// scores. Ties go to the earlier draft.
func bestDraft(text string, drafts []draft) int {
	best, bestScore := -1, 0
	for i, d := range drafts {
		score := 0
		for _, kw := range d.keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				score += keywordScore
			}
		}
		for _, w := range strings.Fields(strings.ToLower(d.name)) {
			w = strings.Trim(w, ".,:;!?\"«»()")
			if utf8.RuneCountInString(w) >= nameWordMinLength && strings.Contains(text, w) {
				score += nameWordScore
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(text, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

func cleanKeywords(kws []string) []string {
	out := make([]string, 0, len(kws))
	for _, k := range kws {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// stats converts drafts into statistics rows and per-document assignments.
// Drafts without members are dropped; the "other" draft gets topic.MixedID.
func stats(drafts []draft, cat Categorizer) ([]topic.Stat, []assignment.Consensus) {
	var (
		rows []topic.Stat
		cons []assignment.Consensus
	)
	for _, d := range drafts {
		if len(d.members) == 0 {
			continue
		}
		id := len(rows)
		category := cat.Categorize(d.keywords, d.name, d.description)
		if d.other {
			id = topic.MixedID
			category = topic.GeneralCategory
		}
		rows = append(rows, topic.Stat{
			Topic: topic.Topic{
				ID:       id,
				Keywords: d.keywords,
				Name:     d.name,
				Category: category,
			},
			Description:       d.description,
			DocumentCount:     len(d.members),
			AverageConfidence: d.confidence,
			DocumentIndices:   d.members,
		})
		for _, m := range d.members {
			cons = append(cons, assignment.Consensus{DocumentIndex: m, Topic: id, Confidence: d.confidence})
		}
	}
	slices.SortFunc(cons, func(a, b assignment.Consensus) int { return a.DocumentIndex - b.DocumentIndex })
	return rows, cons
}
