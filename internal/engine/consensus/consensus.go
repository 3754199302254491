// Package consensus turns topic distributions into per-document assignments,
// reconciles two models' assignments and aggregates topic statistics.
package consensus

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/kailas-cloud/topicdex/internal/domain/assignment"
	"github.com/kailas-cloud/topicdex/internal/domain/topic"
)

// Default thresholds.
const (
	// DefaultSecondaryThreshold is the confidence below which a secondary topic is recorded.
	DefaultSecondaryThreshold = 0.3
	// DefaultConsensusThreshold is the confidence both models must exceed to agree.
	DefaultConsensusThreshold = 0.3
	// DefaultMixedThreshold is the confidence below which the single-model path
	// moves a document to the mixed bucket.
	DefaultMixedThreshold = 0.2
)

// Distributions is a per-document topic-weight source. *model.Fitted
// satisfies it.
type Distributions interface {
	Documents() int
	Distribution(i int) []float64
}

// Assign converts each document's distribution into a dominant topic with
// its confidence. Below threshold, the second-highest topic is recorded as
// secondary.
func Assign(d Distributions, threshold float64) []assignment.Document {
	out := make([]assignment.Document, d.Documents())
	for i := range out {
		dist := d.Distribution(i)
		dom := floats.MaxIdx(dist)
		a := assignment.Document{
			DocumentIndex: i,
			Distribution:  dist,
			Dominant:      dom,
			Confidence:    dist[dom],
			Secondary:     assignment.NoTopic,
		}
		if a.Confidence < threshold && len(dist) > 1 {
			a.Secondary = runnerUp(dist, dom)
		}
		out[i] = a
	}
	return out
}

// AssignSingle is Assign for the single-model path: documents whose
// confidence is below mixedThreshold are moved to topic.MixedID.
func AssignSingle(d Distributions, secondaryThreshold, mixedThreshold float64) []assignment.Document {
	out := Assign(d, secondaryThreshold)
	for i := range out {
		if out[i].Confidence < mixedThreshold {
			out[i].Dominant = topic.MixedID
		}
	}
	return out
}

func runnerUp(dist []float64, dom int) int {
	best, bestW := assignment.NoTopic, math.Inf(-1)
	for t, w := range dist {
		if t != dom && w > bestW {
			best, bestW = t, w
		}
	}
	return best
}

// Reconcile merges two aligned assignment lists. When both models pick the
// same topic with confidence above threshold, the consensus confidence is
// their mean; otherwise the more confident model wins, and on equal
// confidence the lower topic id wins. The rule is symmetric in a and b.
func Reconcile(a, b []assignment.Document, threshold float64) []assignment.Consensus {
	out := make([]assignment.Consensus, len(a))
	for i := range a {
		x, y := a[i], b[i]
		c := assignment.Consensus{DocumentIndex: x.DocumentIndex}
		switch {
		case x.Dominant == y.Dominant && x.Confidence > threshold && y.Confidence > threshold:
			c.Topic = x.Dominant
			c.Confidence = (x.Confidence + y.Confidence) / 2
			c.Agreed = true
		case x.Confidence > y.Confidence:
			c.Topic, c.Confidence = x.Dominant, x.Confidence
		case y.Confidence > x.Confidence:
			c.Topic, c.Confidence = y.Dominant, y.Confidence
		default:
			c.Topic, c.Confidence = min(x.Dominant, y.Dominant), x.Confidence
			c.Agreed = x.Dominant == y.Dominant
		}
		out[i] = c
	}
	return out
}

// Stats groups labeled documents under topics. Every topic in topics gets a
// row; documents labeled topic.MixedID are collected in a trailing mixed row
// created on demand. Rows are sorted by descending document count, ties
// keeping topic order. Average confidence is rounded to three decimals.
func Stats[L assignment.Labeled](labeled []L, topics []topic.Topic) []topic.Stat {
	rows := make([]topic.Stat, len(topics))
	pos := make(map[int]int, len(topics)+1)
	for i, t := range topics {
		rows[i] = topic.Stat{Topic: t, DocumentIndices: []int{}}
		pos[t.ID] = i
	}
	sums := make([]float64, len(rows))

	for _, l := range labeled {
		i, ok := pos[l.Label()]
		if !ok {
			if l.Label() != topic.MixedID {
				continue
			}
			rows = append(rows, topic.Stat{Topic: MixedTopic(), DocumentIndices: []int{}})
			sums = append(sums, 0)
			i = len(rows) - 1
			pos[topic.MixedID] = i
		}
		rows[i].DocumentIndices = append(rows[i].DocumentIndices, l.Index())
		rows[i].DocumentCount++
		sums[i] += l.Score()
	}
	for i := range rows {
		if rows[i].DocumentCount > 0 {
			rows[i].AverageConfidence = round3(sums[i] / float64(rows[i].DocumentCount))
		}
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].DocumentCount > rows[j].DocumentCount })
	return rows
}

// MixedTopic is the display row for weakly assigned documents.
func MixedTopic() topic.Topic {
	return topic.Topic{
		ID:       topic.MixedID,
		Keywords: []string{},
		Name:     "Смешанная тематика",
		Category: topic.GeneralCategory,
	}
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
