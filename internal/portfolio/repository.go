package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wonny/investscope/internal/storage"
)

// LedgerKey is the single substrate key holding every position.
const LedgerKey = "portfolio"

// document is the stored form of the ledger.
type document struct {
	Positions []Position `json:"positions"`
}

// repository reads and writes the whole ledger as one unit.
type repository struct {
	sub storage.Substrate
}

func (r *repository) load(ctx context.Context) (*document, error) {
	data, err := r.sub.Get(ctx, LedgerKey)
	if errors.Is(err, storage.ErrNotFound) {
		return &document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode portfolio: %w", err)
	}
	return &doc, nil
}

func (r *repository) save(ctx context.Context, doc *document) error {
	if doc.Positions == nil {
		doc.Positions = []Position{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode portfolio: %w", err)
	}
	if err := r.sub.Set(ctx, LedgerKey, data); err != nil {
		return fmt.Errorf("failed to save portfolio: %w", err)
	}
	return nil
}

func (d *document) index(id string) int {
	for i := range d.Positions {
		if d.Positions[i].ID == id {
			return i
		}
	}
	return -1
}
