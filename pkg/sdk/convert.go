package topicdex

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/topicdex/internal/domain/corpus"
	analysisuc "github.com/kailas-cloud/topicdex/internal/usecase/analysis"
)

func documentsToDomain(docs []Document) ([]corpus.Document, error) {
	out := make([]corpus.Document, len(docs))
	for i, d := range docs {
		if len(d.Text) > corpus.MaxTextSize {
			return nil, fmt.Errorf("%w: document %d: text too large (max %d bytes)",
				ErrInvalidInput, i, corpus.MaxTextSize)
		}
		out[i] = corpus.Reconstruct(d.ID, d.Text, d.Theme, d.Date)
	}
	return out, nil
}

func resultFromDomain(out analysisuc.Outcome) Result {
	res := out.Result
	r := Result{
		Documents:      make([]Document, len(out.Documents)),
		Topics:         make([]Topic, len(res.Topics)),
		Assignments:    make([]Assignment, len(res.Consensus)),
		Strategy:       Strategy(res.Metadata.Strategy),
		Algorithm:      res.Metadata.Algorithm,
		OptimalTopics:  res.Metadata.OptimalTopics,
		VocabularySize: res.Metadata.VocabularySize,
		FallbackReason: res.Metadata.FallbackReason,
		Model:          res.Metadata.Model,
		Seed:           res.Metadata.Seed,
		Duration:       time.Duration(res.Metadata.DurationMS) * time.Millisecond,
		Cached:         out.Cached,
	}
	for i, d := range out.Documents {
		r.Documents[i] = Document{ID: d.ID(), Text: d.Text(), Theme: d.Theme(), Date: d.Date()}
	}
	for i, st := range res.Topics {
		r.Topics[i] = Topic{
			ID:            st.ID,
			Name:          st.Name,
			Category:      st.Category,
			Description:   st.Description,
			Keywords:      st.Keywords,
			DocumentCount: st.DocumentCount,
			Confidence:    st.AverageConfidence,
			Documents:     st.DocumentIndices,
		}
	}
	for i, c := range res.Consensus {
		r.Assignments[i] = Assignment{
			Document:   c.DocumentIndex,
			Topic:      c.Topic,
			Confidence: c.Confidence,
			Agreed:     c.Agreed,
		}
	}
	return r
}
