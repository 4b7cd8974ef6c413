package provider

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/investscope/internal/extract"
	"github.com/wonny/investscope/internal/metrics"
	"github.com/wonny/investscope/pkg/logger"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 15 * time.Second

// Orchestrator tries providers strictly in order.
type Orchestrator struct {
	providers []Provider
	timeout   time.Duration
	limiters  map[string]*rate.Limiter
	logger    *logger.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRateLimit throttles every provider to rps calls per second (burst 1).
func WithRateLimit(rps float64) Option {
	return func(o *Orchestrator) {
		if rps <= 0 {
			return
		}
		for _, p := range o.providers {
			o.limiters[p.Name()] = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

func NewOrchestrator(providers []Provider, log *logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		providers: providers,
		timeout:   DefaultTimeout,
		limiters:  make(map[string]*rate.Limiter),
		logger:    log.Module("provider"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Names lists the providers in the order they are tried.
func (o *Orchestrator) Names() []string {
	names := make([]string, len(o.providers))
	for i, p := range o.providers {
		names[i] = p.Name()
	}
	return names
}

// Analyze returns the first successful answer. Each failure is logged and the
// next provider is tried; when none is left the error wraps
// ErrAllProvidersExhausted and every Failure. Cancelling ctx stops the loop and
// returns ctx.Err().
func (o *Orchestrator) Analyze(ctx context.Context, prompt string, maxTokens int) (Response, error) {
	var failures []*Failure

	for _, p := range o.providers {
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}

		text, failure := o.call(ctx, p, prompt, maxTokens)
		if failure == nil {
			return Response{Text: text, Provider: p.Name(), Failures: failures}, nil
		}
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}

		failures = append(failures, failure)
		o.logger.WithFields(map[string]interface{}{
			"provider": p.Name(),
			"reason":   failure.Reason,
			"attempt":  len(failures),
		}).WithError(failure.Err).Warn("provider failed, falling through")
	}

	metrics.RecordExhausted()
	errs := make([]error, 0, len(failures)+1)
	errs = append(errs, ErrAllProvidersExhausted)
	for _, f := range failures {
		errs = append(errs, f)
	}
	o.logger.WithField("tried", len(failures)).Error("all providers exhausted")
	return Response{Failures: failures}, errors.Join(errs...)
}

// AnalyzeJSON runs Analyze and extracts the structured payload. A response
// without one yields ErrExtractionMiss together with the raw Response.
func (o *Orchestrator) AnalyzeJSON(ctx context.Context, prompt string, maxTokens int) (json.RawMessage, Response, error) {
	resp, err := o.Analyze(ctx, prompt, maxTokens)
	if err != nil {
		return nil, resp, err
	}

	payload, ok := extract.Extract(resp.Text)
	metrics.RecordExtraction(string(payload.Strategy))
	if !ok {
		o.logger.WithField("provider", resp.Provider).Warn("no structured data in response")
		return nil, resp, ErrExtractionMiss
	}
	return payload.Raw, resp, nil
}

func (o *Orchestrator) call(ctx context.Context, p Provider, prompt string, maxTokens int) (string, *Failure) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	if lim, ok := o.limiters[p.Name()]; ok {
		if err := lim.Wait(callCtx); err != nil {
			metrics.RecordProviderCall(p.Name(), ReasonThrottled, time.Since(start))
			return "", &Failure{Provider: p.Name(), Reason: ReasonThrottled, Err: err}
		}
	}

	text, err := p.Analyze(callCtx, prompt, maxTokens)
	if err == nil && text == "" {
		err = ErrEmptyResponse
	}
	if err != nil {
		f := classify(callCtx, p.Name(), err)
		metrics.RecordProviderCall(p.Name(), f.Reason, time.Since(start))
		return "", f
	}

	metrics.RecordProviderCall(p.Name(), "ok", time.Since(start))
	o.logger.WithFields(map[string]interface{}{
		"provider": p.Name(),
		"duration": time.Since(start),
	}).Debug("provider answered")
	return text, nil
}

func classify(callCtx context.Context, name string, err error) *Failure {
	var statusErr *StatusError
	reason := ReasonTransport
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		reason = ReasonTimeout
	case errors.Is(err, ErrMissingCredentials):
		reason = ReasonCredentials
	case errors.Is(err, ErrEmptyResponse):
		reason = ReasonEmpty
	case errors.As(err, &statusErr):
		reason = ReasonStatus
	}
	return &Failure{Provider: name, Reason: reason, Err: err}
}
