package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// EmbeddingProvider turns one text into one vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) (*EmbeddingResponse, error)
}

// EmbeddingResponse is the result of a single provider call
type EmbeddingResponse struct {
	Vector      []float32
	TotalTokens int
}

// ProviderError is a failed provider call with its HTTP status, if any.
type ProviderError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider error: %s", e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func providerErrorOf(err error) (*ProviderError, bool) {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr, true
	}
	return nil, false
}

// IsRateLimited reports a 429 response.
func IsRateLimited(err error) bool {
	p, ok := providerErrorOf(err)
	return ok && p.StatusCode == http.StatusTooManyRequests
}

// IsPayloadTooLarge reports a 413 response or a context length rejection.
func IsPayloadTooLarge(err error) bool {
	p, ok := providerErrorOf(err)
	if !ok {
		return false
	}
	if p.StatusCode == http.StatusRequestEntityTooLarge {
		return true
	}
	message := strings.ToLower(p.Message)
	return strings.Contains(message, "maximum context length") || strings.Contains(message, "too many tokens")
}

// IsFatal reports errors that fail every further call, like bad credentials.
func IsFatal(err error) bool {
	p, ok := providerErrorOf(err)
	return ok && (p.StatusCode == http.StatusUnauthorized || p.StatusCode == http.StatusForbidden)
}
