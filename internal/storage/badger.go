package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/timshannon/badgerhold/v4"
)

// kvRecord is the badgerhold row; Key is duplicated in the value so Find can filter on it.
type kvRecord struct {
	Key   string
	Value []byte
}

// Badger is an embedded on-disk substrate.
type Badger struct {
	store *badgerhold.Store
}

// OpenBadger opens (or creates) the store at dir.
func OpenBadger(dir string) (*Badger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create badger directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &Badger{store: store}, nil
}

func (b *Badger) Get(_ context.Context, key string) ([]byte, error) {
	var rec kvRecord
	err := b.store.Get(key, &rec)
	if err == badgerhold.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get %s: %w", key, err)
	}
	return rec.Value, nil
}

func (b *Badger) Set(_ context.Context, key string, value []byte) error {
	err := b.store.Upsert(key, &kvRecord{Key: key, Value: value})
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ENOSPC) || strings.Contains(err.Error(), "no space left") {
		return fmt.Errorf("badger set %s: %w", key, ErrCapacity)
	}
	return fmt.Errorf("badger set %s: %w", key, err)
}

func (b *Badger) Delete(_ context.Context, key string) error {
	err := b.store.Delete(key, &kvRecord{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("badger delete %s: %w", key, err)
	}
	return nil
}

func (b *Badger) Keys(_ context.Context, prefix string) ([]string, error) {
	var recs []kvRecord
	if err := b.store.Find(&recs, badgerhold.Where("Key").Ne("")); err != nil {
		return nil, fmt.Errorf("badger scan: %w", err)
	}

	keys := make([]string, 0, len(recs))
	for _, rec := range recs {
		if strings.HasPrefix(rec.Key, prefix) {
			keys = append(keys, rec.Key)
		}
	}
	return keys, nil
}

func (b *Badger) Close() error {
	return b.store.Close()
}
