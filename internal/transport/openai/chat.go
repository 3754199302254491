// Package openai talks to OpenAI-compatible chat completion APIs (OpenAI,
// Ollama's /v1 endpoint, vLLM and similar).
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/topicdex/internal/domain"
	"github.com/kailas-cloud/topicdex/internal/metrics"
)

// Defaults applied by NewChatCompleter.
const (
	DefaultMaxRetries  = 3
	DefaultTimeout     = 120 * time.Second
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 4000
	DefaultBackoffBase = time.Second
)

// ChatCompleter sends single-prompt chat completions with retries.
type ChatCompleter struct {
	client      *openai.Client
	model       string
	provider    string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	maxRetries  int
	backoffBase time.Duration
	logger      *zap.Logger
}

// Config holds the chat provider settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Provider    string
	Temperature float32
	MaxTokens   int
	// Timeout bounds a single attempt.
	Timeout    time.Duration
	MaxRetries int
	// BackoffBase is the wait after the first failed attempt; it doubles per attempt.
	BackoffBase time.Duration
	Logger      *zap.Logger
}

// NewChatCompleter creates an OpenAI-compatible chat client.
func NewChatCompleter(cfg *Config) *ChatCompleter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	c := &ChatCompleter{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		provider:    cfg.Provider,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBase,
		logger:      cfg.Logger,
	}
	if c.temperature == 0 {
		c.temperature = DefaultTemperature
	}
	if c.maxTokens == 0 {
		c.maxTokens = DefaultMaxTokens
	}
	if c.timeout == 0 {
		c.timeout = DefaultTimeout
	}
	if c.maxRetries <= 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.backoffBase == 0 {
		c.backoffBase = DefaultBackoffBase
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Model returns the configured model name.
func (c *ChatCompleter) Model() string { return c.model }

// Provider returns the configured provider label.
func (c *ChatCompleter) Provider() string { return c.provider }

// Complete sends prompt as a user message and returns the first choice.
// Failed attempts are retried with exponential backoff; client errors other
// than 408 and 429 are returned at once. All provider failures wrap
// domain.ErrLLMProviderError.
func (c *ChatCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := range c.maxRetries {
		if attempt > 0 {
			metrics.LLMRetriesTotal.WithLabelValues(c.provider, c.model).Inc()
			wait := c.backoffBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("llm request cancelled: %w", ctx.Err())
			case <-time.After(wait):
			}
		}

		content, err := c.completeOnce(ctx, prompt)
		if err == nil {
			return content, nil
		}
		lastErr = err
		c.logger.Warn("LLM attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", c.maxRetries),
			zap.String("model", c.model),
			zap.Error(err),
		)
		if ctx.Err() != nil || !retryable(err) {
			break
		}
	}
	return "", lastErr
}

func (c *ChatCompleter) completeOnce(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(c.provider, c.model, "api_error").Inc()
		return "", parseAPIError(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		metrics.LLMRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(c.provider, c.model, "empty_response").Inc()
		return "", fmt.Errorf("empty chat completion: %w", domain.ErrLLMProviderError)
	}

	metrics.LLMRequestsTotal.WithLabelValues(c.provider, c.model, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(c.provider, c.model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.LLMTokensTotal.WithLabelValues(c.provider, c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.LLMTokensTotal.WithLabelValues(c.provider, c.model, "completion").Add(float64(resp.Usage.CompletionTokens))
		metrics.LLMTokensTotal.WithLabelValues(c.provider, c.model, "total").Add(float64(resp.Usage.TotalTokens))
	}

	return resp.Choices[0].Message.Content, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *ChatCompleter) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// providerError carries the HTTP status of a failed provider call.
type providerError struct {
	status int
	err    error
}

func (e *providerError) Error() string { return e.err.Error() }
func (e *providerError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var pe *providerError
	if !errors.As(err, &pe) || pe.status == 0 {
		return true
	}
	if pe.status == http.StatusRequestTimeout || pe.status == http.StatusTooManyRequests {
		return true
	}
	return pe.status < 400 || pe.status >= 500
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrLLMProviderError for correct 502 mapping.
func parseAPIError(err error) error {
	wrap := domain.ErrLLMProviderError

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return &providerError{
			status: reqErr.HTTPStatusCode,
			err:    fmt.Errorf("chat API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap),
		}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &providerError{
			status: apiErr.HTTPStatusCode,
			err:    fmt.Errorf("chat API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap),
		}
	}

	return fmt.Errorf("chat request failed: %v: %w", err, wrap)
}

// extractDetail extracts the "detail" or "error" string field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
		Error  any    `json:"error"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	if parsed.Detail != "" {
		return parsed.Detail
	}
	if s, ok := parsed.Error.(string); ok {
		return s
	}
	return ""
}
