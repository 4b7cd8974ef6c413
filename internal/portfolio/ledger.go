// Package portfolio keeps the user's positions and the audit trail of their
// take-profit / stop-loss revisions.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/investscope/internal/storage"
	"github.com/wonny/investscope/pkg/logger"
)

var (
	ErrPositionNotFound = errors.New("position not found")
	ErrInvalidPosition  = errors.New("invalid position")
)

// Ledger is the position store. Every write reads and rewrites the whole
// ledger under mu, so writers in one process never lose updates.
type Ledger struct {
	mu     sync.Mutex
	repo   repository
	logger *logger.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) { l.newID = gen }
}

func NewLedger(sub storage.Substrate, log *logger.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		repo:   repository{sub: sub},
		logger: log.Module("portfolio"),
		now:    time.Now,
		newID:  func() string { return "pos_" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Create adds a position with its initial history entry.
func (l *Ledger) Create(ctx context.Context, in NewPosition) (*Position, error) {
	symbol := strings.ToUpper(strings.TrimSpace(in.Symbol))
	switch {
	case symbol == "":
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidPosition)
	case !(in.Quantity > 0):
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidPosition)
	case in.AvgCost < 0:
		return nil, fmt.Errorf("%w: average cost must not be negative", ErrInvalidPosition)
	case in.TP < 0 || in.SL < 0:
		return nil, fmt.Errorf("%w: tp and sl must not be negative", ErrInvalidPosition)
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	now := l.now()
	pos := Position{
		ID:          l.newID(),
		Symbol:      symbol,
		Name:        in.Name,
		Exchange:    in.Exchange,
		AvgCost:     in.AvgCost,
		Quantity:    in.Quantity,
		Currency:    currency,
		TP:          in.TP,
		SL:          in.SL,
		History:     []Revision{{TP: in.TP, SL: in.SL, Timestamp: now, Reason: ReasonInitial}},
		AddedAt:     now,
		LastUpdated: now,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.repo.load(ctx)
	if err != nil {
		return nil, err
	}
	doc.Positions = append(doc.Positions, pos)
	if err := l.repo.save(ctx, doc); err != nil {
		return nil, err
	}

	l.logger.WithFields(map[string]interface{}{
		"id":     pos.ID,
		"symbol": pos.Symbol,
	}).Info("position created")
	return &pos, nil
}

// ReviseTPSL moves the levels and appends the decision to the history.
func (l *Ledger) ReviseTPSL(ctx context.Context, id string, tp, sl float64, reason string) (*Position, error) {
	if tp < 0 || sl < 0 {
		return nil, fmt.Errorf("%w: tp and sl must not be negative", ErrInvalidPosition)
	}

	return l.mutate(ctx, id, func(p *Position, now time.Time) {
		p.TP, p.SL = tp, sl
		p.History = append(p.History, Revision{TP: tp, SL: sl, Timestamp: now, Reason: reason})
	})
}

// UpdateCurrentPrice records an observed price. History is untouched.
func (l *Ledger) UpdateCurrentPrice(ctx context.Context, id string, price float64) (*Position, error) {
	if !(price > 0) {
		return nil, fmt.Errorf("%w: price must be positive", ErrInvalidPosition)
	}
	return l.mutate(ctx, id, func(p *Position, now time.Time) {
		v := price
		p.CurrentPrice = &v
	})
}

// ApplyPrices records several observed prices in one write. Unknown ids are
// skipped and returned; non-positive prices are ignored.
func (l *Ledger) ApplyPrices(ctx context.Context, prices map[string]float64) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.repo.load(ctx)
	if err != nil {
		return nil, err
	}

	now := l.now()
	var unknown []string
	applied := 0
	for id, price := range prices {
		if !(price > 0) {
			continue
		}
		i := doc.index(id)
		if i < 0 {
			unknown = append(unknown, id)
			continue
		}
		v := price
		doc.Positions[i].CurrentPrice = &v
		doc.Positions[i].LastUpdated = now
		applied++
	}

	if applied == 0 {
		return unknown, nil
	}
	return unknown, l.repo.save(ctx, doc)
}

// SetAISuggestion replaces the advisory suggestion of a position.
func (l *Ledger) SetAISuggestion(ctx context.Context, id string, s *Suggestion) (*Position, error) {
	return l.mutate(ctx, id, func(p *Position, now time.Time) {
		p.AISuggestion = s
	})
}

// Remove hard-deletes a position. Unknown ids are a no-op.
func (l *Ledger) Remove(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.repo.load(ctx)
	if err != nil {
		return err
	}

	i := doc.index(id)
	if i < 0 {
		return nil
	}
	doc.Positions = append(doc.Positions[:i], doc.Positions[i+1:]...)
	if err := l.repo.save(ctx, doc); err != nil {
		return err
	}

	l.logger.WithField("id", id).Info("position removed")
	return nil
}

func (l *Ledger) Get(ctx context.Context, id string) (*Position, error) {
	doc, err := l.repo.load(ctx)
	if err != nil {
		return nil, err
	}
	i := doc.index(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrPositionNotFound, id)
	}
	p := doc.Positions[i]
	return &p, nil
}

// List returns every position in creation order.
func (l *Ledger) List(ctx context.Context) ([]Position, error) {
	doc, err := l.repo.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Positions, nil
}

func (l *Ledger) mutate(ctx context.Context, id string, apply func(*Position, time.Time)) (*Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.repo.load(ctx)
	if err != nil {
		return nil, err
	}

	i := doc.index(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrPositionNotFound, id)
	}

	now := l.now()
	p := &doc.Positions[i]
	apply(p, now)
	p.LastUpdated = now

	if err := l.repo.save(ctx, doc); err != nil {
		return nil, err
	}
	out := *p
	return &out, nil
}
