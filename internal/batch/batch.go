// Package batch fetches many entities in fixed-size, sequential batches with
// concurrent fan-out inside each batch and a pause between batches.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/investscope/internal/metrics"
	"github.com/wonny/investscope/pkg/logger"
)

const (
	DefaultBatchSize = 3
	DefaultDelay     = 2 * time.Second
)

// ErrBusy is returned when a run is already in progress on the scheduler.
var ErrBusy = errors.New("batch: a run is already in progress")

// State of the scheduler.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCancelled State = "cancelled"
)

// Phases label what a run fetches.
const (
	PhaseCountries = "countries"
	PhaseStocks    = "stocks"
	PhasePrices    = "prices"
)

// Progress is cumulative: Done never decreases during a run.
type Progress struct {
	Done  int    `json:"done"`
	Total int    `json:"total"`
	State State  `json:"state"`
	Phase string `json:"phase,omitempty"`
}

// Options of a run. A non-positive BatchSize falls back to DefaultBatchSize;
// a zero Delay means no pause.
type Options struct {
	BatchSize  int
	Delay      time.Duration
	Phase      string
	OnProgress func(Progress)
}

// DefaultOptions pauses 2s between batches of 3.
func DefaultOptions() Options {
	return Options{BatchSize: DefaultBatchSize, Delay: DefaultDelay}
}

// FetchResult is the outcome of one entity.
type FetchResult[T any] struct {
	ID    string
	Value T
	Error error
}

// Report collects every outcome keyed by entity id.
type Report[T any] struct {
	Results   map[string]T
	Failures  map[string]error
	Progress  Progress
	Cancelled bool
}

// Scheduler serializes runs and publishes their progress.
type Scheduler struct {
	logger *logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error

	mu          sync.RWMutex
	status      Progress
	running     bool
	subscribers map[chan Progress]struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithSleep replaces the inter-batch wait, used by tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scheduler) { s.sleep = sleep }
}

func NewScheduler(log *logger.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:      log.Module("batch"),
		sleep:       contextSleep,
		status:      Progress{State: StateIdle},
		subscribers: make(map[chan Progress]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status returns the latest progress.
func (s *Scheduler) Status() Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Subscribe streams progress updates until cancel is called. Slow readers miss
// intermediate updates rather than blocking the run.
func (s *Scheduler) Subscribe() (<-chan Progress, func()) {
	ch := make(chan Progress, 16)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Scheduler) publish(p Progress, cb func(Progress)) {
	s.mu.Lock()
	s.status = p
	for ch := range s.subscribers {
		select {
		case ch <- p:
		default:
		}
	}
	s.mu.Unlock()

	metrics.SetBatchProgress(p.Done, p.Total)
	if cb != nil {
		cb(p)
	}
}

func (s *Scheduler) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Run fetches ids in batches of opts.BatchSize. Within a batch every fetch runs
// concurrently and all of them settle before the next batch starts; a failed
// fetch is recorded and never aborts the run. ctx is checked only when a batch
// starts (and interrupts the pause between batches): fetches already started
// run to completion on a context that ignores the cancellation.
func Run[T any](ctx context.Context, s *Scheduler, ids []string, opts Options, fetch func(ctx context.Context, id string) (T, error)) (*Report[T], error) {
	if !s.acquire() {
		return nil, ErrBusy
	}
	defer s.release()

	size := opts.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	delay := max(opts.Delay, 0)

	report := &Report[T]{
		Results:  make(map[string]T, len(ids)),
		Failures: make(map[string]error),
	}
	progress := Progress{Total: len(ids), State: StateRunning, Phase: opts.Phase}
	if len(ids) == 0 {
		progress.State = StateIdle
	}
	s.publish(progress, opts.OnProgress)

	log := s.logger.WithFields(map[string]interface{}{
		"total":      len(ids),
		"batch_size": size,
		"phase":      opts.Phase,
	})
	log.Info("batch run started")

	detached := context.WithoutCancel(ctx)
	for start := 0; start < len(ids); start += size {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}

		end := min(start+size, len(ids))
		for _, r := range fetchBatch(detached, ids[start:end], fetch) {
			if r.Error != nil {
				report.Failures[r.ID] = r.Error
				log.WithField("id", r.ID).WithError(r.Error).Warn("entity fetch failed")
				continue
			}
			report.Results[r.ID] = r.Value
		}

		progress.Done = end
		if progress.Done == progress.Total {
			progress.State = StateIdle
		}
		s.publish(progress, opts.OnProgress)

		if end < len(ids) && delay > 0 {
			if err := s.sleep(ctx, delay); err != nil {
				report.Cancelled = true
				break
			}
		}
	}

	if report.Cancelled {
		progress.State = StateCancelled
		s.publish(progress, opts.OnProgress)
	}
	report.Progress = progress
	metrics.RecordBatchFailures(len(report.Failures))

	log.WithFields(map[string]interface{}{
		"done":      progress.Done,
		"success":   len(report.Results),
		"failed":    len(report.Failures),
		"cancelled": report.Cancelled,
	}).Info("batch run finished")

	return report, nil
}

func fetchBatch[T any](ctx context.Context, ids []string, fetch func(context.Context, string) (T, error)) []FetchResult[T] {
	resultCh := make(chan FetchResult[T], len(ids))

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					resultCh <- FetchResult[T]{ID: id, Error: fmt.Errorf("fetch panicked: %v", r)}
				}
			}()

			v, err := fetch(ctx, id)
			resultCh <- FetchResult[T]{ID: id, Value: v, Error: err}
		}(id)
	}

	wg.Wait()
	close(resultCh)

	results := make([]FetchResult[T], 0, len(ids))
	for r := range resultCh {
		results = append(results, r)
	}
	return results
}

func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
