package engine

import (
	"fmt"

	"github.com/kailas-cloud/topicdex/internal/domain"
	"github.com/kailas-cloud/topicdex/internal/domain/analysis"
	"github.com/kailas-cloud/topicdex/internal/engine/consensus"
	"github.com/kailas-cloud/topicdex/internal/engine/ksel"
	"github.com/kailas-cloud/topicdex/internal/engine/model"
	"github.com/kailas-cloud/topicdex/internal/engine/textnorm"
	"github.com/kailas-cloud/topicdex/internal/engine/vectorize"
)

// Single-model path defaults.
const (
	singleMaxFeatures = 1000
	singleKeywords    = 10
)

// DefaultSeed is the random seed used when none is configured.
const DefaultSeed = 42

// Options configures one analysis run.
type Options struct {
	Strategy analysis.Strategy

	// NumTopics fixes k; 0 selects it automatically.
	NumTopics int
	MaxTopics int
	Selection ksel.Method

	MaxFeatures int
	Weighting   vectorize.Weighting
	NgramMax    int
	MinDF       int
	MaxDF       float64
	MaxTerms    int

	SecondaryThreshold float64
	ConsensusThreshold float64
	MixedThreshold     float64

	Seed       int64
	LDAMaxIter int
	NMFMaxIter int
	Keywords   int
	// Workers bounds concurrent model fits; 0 means unbounded.
	Workers int
}

// DefaultOptions returns the hybrid pipeline defaults.
func DefaultOptions() Options {
	return Options{
		Strategy:           analysis.Hybrid,
		MaxTopics:          ksel.DefaultMaxTopics,
		Selection:          ksel.SilhouetteMethod,
		MaxFeatures:        vectorize.DefaultMaxFeatures,
		Weighting:          vectorize.TFIDF,
		NgramMax:           vectorize.DefaultNgramMax,
		MinDF:              vectorize.DefaultMinDF,
		MaxDF:              vectorize.DefaultMaxDF,
		MaxTerms:           textnorm.DefaultMaxTerms,
		SecondaryThreshold: consensus.DefaultSecondaryThreshold,
		ConsensusThreshold: consensus.DefaultConsensusThreshold,
		MixedThreshold:     consensus.DefaultMixedThreshold,
		Seed:               DefaultSeed,
		LDAMaxIter:         model.DefaultLDAMaxIter,
		NMFMaxIter:         model.DefaultNMFMaxIter,
		Keywords:           model.DefaultKeywords,
	}
}

// Validate checks option ranges.
func (o Options) Validate() error {
	if _, ok := analysis.ParseStrategy(string(o.Strategy)); !ok || o.Strategy == analysis.LLM {
		return fmt.Errorf("%w: unsupported engine strategy %q", domain.ErrInvalidInput, o.Strategy)
	}
	if o.NumTopics < 0 || o.MaxTopics < 0 {
		return fmt.Errorf("%w: topic counts must be non-negative", domain.ErrInvalidInput)
	}
	if o.Weighting != "" && o.Weighting != vectorize.TFIDF && o.Weighting != vectorize.Count {
		return fmt.Errorf("%w: unknown weighting %q", domain.ErrInvalidInput, o.Weighting)
	}
	if o.Selection != "" && o.Selection != ksel.SilhouetteMethod && o.Selection != ksel.PerplexityMethod {
		return fmt.Errorf("%w: unknown selection method %q", domain.ErrInvalidInput, o.Selection)
	}
	if o.MaxDF < 0 || o.MaxDF > 1 {
		return fmt.Errorf("%w: max_df must be within [0, 1]", domain.ErrInvalidInput)
	}
	thresholds := []struct {
		name string
		v    float64
	}{
		{"secondary_threshold", o.SecondaryThreshold},
		{"consensus_threshold", o.ConsensusThreshold},
		{"mixed_threshold", o.MixedThreshold},
	}
	for _, th := range thresholds {
		if th.v < 0 || th.v > 1 {
			return fmt.Errorf("%w: %s must be within [0, 1]", domain.ErrInvalidInput, th.name)
		}
	}
	return nil
}

// WithDefaults fills zero fields from DefaultOptions. A zero Seed is a
// valid seed and is kept.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.Strategy == "" {
		o.Strategy = d.Strategy
	}
	if o.MaxTopics == 0 {
		o.MaxTopics = d.MaxTopics
	}
	if o.Selection == "" {
		o.Selection = d.Selection
	}
	if o.MaxFeatures == 0 {
		o.MaxFeatures = d.MaxFeatures
	}
	if o.Weighting == "" {
		o.Weighting = d.Weighting
	}
	if o.NgramMax == 0 {
		o.NgramMax = d.NgramMax
	}
	if o.MinDF == 0 {
		o.MinDF = d.MinDF
	}
	if o.MaxDF == 0 {
		o.MaxDF = d.MaxDF
	}
	if o.MaxTerms == 0 {
		o.MaxTerms = d.MaxTerms
	}
	if o.SecondaryThreshold == 0 {
		o.SecondaryThreshold = d.SecondaryThreshold
	}
	if o.ConsensusThreshold == 0 {
		o.ConsensusThreshold = d.ConsensusThreshold
	}
	if o.MixedThreshold == 0 {
		o.MixedThreshold = d.MixedThreshold
	}
	if o.LDAMaxIter == 0 {
		o.LDAMaxIter = d.LDAMaxIter
	}
	if o.NMFMaxIter == 0 {
		o.NMFMaxIter = d.NMFMaxIter
	}
	if o.Keywords == 0 {
		o.Keywords = d.Keywords
	}
	return o
}

func (o Options) vectorizer() vectorize.Options {
	return vectorize.Options{
		MaxFeatures: o.MaxFeatures,
		MinDF:       o.MinDF,
		MaxDF:       o.MaxDF,
		NgramMax:    o.NgramMax,
		Weighting:   o.Weighting,
	}
}

// singleVectorizer mirrors a plain count vectorizer: unigrams, no
// document-frequency filtering.
func (o Options) singleVectorizer() vectorize.Options {
	return vectorize.Options{
		MaxFeatures: singleMaxFeatures,
		MinDF:       1,
		MaxDF:       1,
		NgramMax:    1,
		Weighting:   vectorize.Count,
	}
}
