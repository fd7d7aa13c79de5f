// Package llm provides the text completion providers used for newsletter prose.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

const (
	// DefaultGeminiModel is used when no Gemini model is configured.
	DefaultGeminiModel = "gemini-2.5-flash"
	// DefaultOpenAIModel is used when no OpenAI model is configured.
	DefaultOpenAIModel = "gpt-4o-mini"
)

// Request is one completion: a role framing plus the task prompt.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Completer returns generated prose for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// StatusError carries the HTTP status a provider answered with.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// StatusCode extracts a provider status from err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsRetryable reports whether err is a rate-limit or service-unavailable response.
func IsRetryable(err error) bool {
	switch StatusCode(err) {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	default:
		return false
	}
}

// ErrEmptyResponse is returned when a provider answers without text.
var ErrEmptyResponse = errors.New("empty response from model")
