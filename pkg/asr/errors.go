package asr

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrNoAPIKey is returned when an API key is required but missing.
	ErrNoAPIKey = errors.New("asr: API key required")

	// ErrProviderUnavailable is returned when the provider cannot serve.
	ErrProviderUnavailable = errors.New("asr: provider unavailable")

	// ErrNoAudio is returned when the audio payload is empty.
	ErrNoAudio = errors.New("asr: empty audio payload")

	// ErrAllProvidersFailed is returned when every provider in a chain failed.
	ErrAllProvidersFailed = errors.New("asr: all providers failed")
)

// APIError represents an error response from a transcription API.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the error message from the API.
	Message string

	// Provider identifies which provider returned the error.
	Provider string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("asr [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable returns true if the request should be retried.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || (e.StatusCode >= 500 && e.StatusCode < 600)
}

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("asr [%s]: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}

// ChainError aggregates errors from multiple providers.
type ChainError struct {
	Errors map[string]error
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	msg := "asr: all providers failed:"
	for name, err := range e.Errors {
		msg += fmt.Sprintf(" [%s: %v]", name, err)
	}
	return msg
}

// Unwrap allows errors.Is to match ErrAllProvidersFailed.
func (e *ChainError) Unwrap() error {
	return ErrAllProvidersFailed
}
