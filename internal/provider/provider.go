// Package provider puts interchangeable text-generation services behind one
// interface and tries them in order until one answers.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Provider is the prompt-in, text-out capability of one vendor.
type Provider interface {
	Name() string
	Analyze(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Reasons a single provider call failed.
const (
	ReasonTimeout     = "timeout"
	ReasonCredentials = "missing_credentials"
	ReasonStatus      = "bad_status"
	ReasonTransport   = "transport"
	ReasonEmpty       = "empty_response"
	ReasonThrottled   = "throttled"
)

var (
	// ErrAllProvidersExhausted means every configured provider failed for one request.
	ErrAllProvidersExhausted = errors.New("all providers exhausted")
	// ErrExtractionMiss means a provider answered without a structured payload.
	ErrExtractionMiss = errors.New("no structured data in provider response")
	// ErrMissingCredentials is returned by providers without an API key.
	ErrMissingCredentials = errors.New("missing API key")
	// ErrEmptyResponse is returned when a provider answers with no text.
	ErrEmptyResponse = errors.New("empty response")
)

// Failure is one failed provider call. It is recovered by falling through to
// the next provider.
type Failure struct {
	Provider string
	Reason   string
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s: %v", f.Provider, f.Reason, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// StatusError is returned by HTTP-based providers for non-2xx answers.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Response is a successful answer.
type Response struct {
	Text     string
	Provider string
	// Failures lists the providers tried before this one.
	Failures []*Failure
}
