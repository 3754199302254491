package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput signals an analysis request with zero documents.
	ErrEmptyInput = errors.New("empty input")
	// ErrEmptyVocabulary signals that fewer than two terms survived vectorization.
	ErrEmptyVocabulary = errors.New("empty vocabulary")
	// ErrModelFit signals a topic model that failed to fit.
	ErrModelFit = errors.New("model fit failed")
	// ErrDegenerateCluster signals clustering that collapsed into a single cluster.
	ErrDegenerateCluster = errors.New("degenerate cluster")

	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput signals a request that failed validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrLLMProviderError signals an LLM provider failure.
	ErrLLMProviderError = errors.New("llm provider error")
	// ErrLLMDisabled signals that the LLM pipeline is not configured.
	ErrLLMDisabled = errors.New("llm pipeline disabled")
)

// ModelFitError wraps ErrModelFit with the model kind and topic count.
type ModelFitError struct {
	Model string
	K     int
	Err   error
}

func (e *ModelFitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s k=%d", ErrModelFit.Error(), e.Model, e.K)
	}
	return fmt.Sprintf("%s: %s k=%d: %v", ErrModelFit.Error(), e.Model, e.K, e.Err)
}

func (e *ModelFitError) Unwrap() error { return ErrModelFit }

// NewModelFitError creates a model fit error.
func NewModelFitError(model string, k int, err error) error {
	return &ModelFitError{Model: model, K: k, Err: err}
}
