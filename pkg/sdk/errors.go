package topicdex

import "github.com/kailas-cloud/topicdex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrEmptyInput       = domain.ErrEmptyInput
	ErrInvalidInput     = domain.ErrInvalidInput
	ErrLLMDisabled      = domain.ErrLLMDisabled
	ErrLLMProviderError = domain.ErrLLMProviderError
)
