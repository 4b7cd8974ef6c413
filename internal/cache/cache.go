// Package cache stores analysis results with an optional expiry on top of a
// storage.Substrate. Expired entries are removed lazily when read; when the
// substrate is full the entries closest to expiry are evicted.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/investscope/internal/metrics"
	"github.com/wonny/investscope/internal/storage"
	"github.com/wonny/investscope/pkg/logger"
)

const (
	// keyPrefix namespaces cache entries inside the shared substrate.
	keyPrefix = "cache:"
	// evictCount entries are removed per capacity failure.
	evictCount = 10
)

// ErrInvalidExpiry is returned by Set for ExpireIn with a non-positive duration.
var ErrInvalidExpiry = errors.New("cache: expiry must be positive")

// Expiry is either NoExpiry or ExpireIn(d).
type Expiry struct {
	ttl   time.Duration
	never bool
}

// NoExpiry keeps the entry until it is removed or evicted.
func NoExpiry() Expiry { return Expiry{never: true} }

// ExpireIn expires the entry d after it is written.
func ExpireIn(d time.Duration) Expiry { return Expiry{ttl: d} }

func (e Expiry) Never() bool { return e.never }

func (e Expiry) TTL() time.Duration { return e.ttl }

func (e Expiry) String() string {
	if e.never {
		return "never"
	}
	return e.ttl.String()
}

// envelope is the stored form of an entry.
type envelope struct {
	Value     json.RawMessage `json:"value"`
	ExpiresAt *time.Time      `json:"expires_at"`
	StoredAt  time.Time       `json:"stored_at"`
}

func (e *envelope) expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// Store is the analysis cache.
type Store struct {
	sub storage.Substrate
	log *logger.Logger
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, used by tests to move time forward.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(sub storage.Substrate, log *logger.Logger, opts ...Option) *Store {
	s := &Store{
		sub: sub,
		log: log.Module("cache"),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get decodes the live value under key into dest and reports whether it was found.
// Expired or undecodable entries are deleted and reported as a miss.
func (s *Store) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	env, err := s.load(ctx, key)
	if err != nil {
		return false, err
	}
	if env == nil {
		metrics.RecordCache(metrics.CacheMiss)
		return false, nil
	}

	if env.expired(s.now()) {
		metrics.RecordCache(metrics.CacheExpired)
		s.drop(ctx, key)
		return false, nil
	}

	if err := json.Unmarshal(env.Value, dest); err != nil {
		s.log.WithField("key", key).WithError(err).Warn("dropping undecodable cache value")
		s.drop(ctx, key)
		return false, nil
	}

	metrics.RecordCache(metrics.CacheHit)
	return true, nil
}

// Set writes value under key, replacing any previous entry. A full substrate
// triggers one eviction round and one retry; if that fails too the write is
// dropped and Set still returns nil.
func (s *Store) Set(ctx context.Context, key string, value interface{}, exp Expiry) error {
	if !exp.never && exp.ttl <= 0 {
		return ErrInvalidExpiry
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}

	now := s.now()
	env := envelope{Value: raw, StoredAt: now}
	if !exp.never {
		at := now.Add(exp.ttl)
		env.ExpiresAt = &at
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("cache: encode envelope %s: %w", key, err)
	}

	err = s.sub.Set(ctx, keyPrefix+key, data)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrCapacity) {
		return fmt.Errorf("cache: write %s: %w", key, err)
	}

	evicted := s.evict(ctx)
	if err := s.sub.Set(ctx, keyPrefix+key, data); err != nil {
		metrics.RecordCache(metrics.CacheDropped)
		s.log.WithFields(map[string]interface{}{
			"key":     key,
			"evicted": evicted,
		}).WithError(err).Warn("cache write dropped after eviction")
	}
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.sub.Delete(ctx, keyPrefix+key); err != nil {
		return fmt.Errorf("cache: remove %s: %w", key, err)
	}
	return nil
}

func (s *Store) load(ctx context.Context, key string) (*envelope, error) {
	data, err := s.sub.Get(ctx, keyPrefix+key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: read %s: %w", key, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.log.WithField("key", key).WithError(err).Warn("dropping corrupt cache entry")
		s.drop(ctx, key)
		return nil, nil
	}
	return &env, nil
}

func (s *Store) drop(ctx context.Context, key string) {
	if err := s.sub.Delete(ctx, keyPrefix+key); err != nil {
		s.log.WithField("key", key).WithError(err).Warn("failed to delete cache entry")
	}
}

type candidate struct {
	key       string
	expiresAt time.Time // zero for entries without expiry
}

// evict removes up to evictCount cache entries, earliest expiry first. Entries
// without expiry sort as the zero time and therefore go first.
func (s *Store) evict(ctx context.Context) int {
	keys, err := s.sub.Keys(ctx, keyPrefix)
	if err != nil {
		s.log.WithError(err).Warn("cache eviction could not list keys")
		return 0
	}

	candidates := make([]candidate, 0, len(keys))
	for _, full := range keys {
		c := candidate{key: full}
		if data, err := s.sub.Get(ctx, full); err == nil {
			var env envelope
			if json.Unmarshal(data, &env) == nil && env.ExpiresAt != nil {
				c.expiresAt = *env.ExpiresAt
			}
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].expiresAt.Before(candidates[j].expiresAt)
	})

	n := 0
	for _, c := range candidates {
		if n == evictCount {
			break
		}
		if err := s.sub.Delete(ctx, c.key); err != nil {
			continue
		}
		n++
	}

	metrics.RecordCacheN(metrics.CacheEvicted, n)
	s.log.WithField("evicted", n).Info("cache full, evicted entries")
	return n
}

// PurgeExpired deletes every expired entry and returns how many were removed.
// Reads already drop expired entries; this keeps unread ones from piling up.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	keys, err := s.sub.Keys(ctx, keyPrefix)
	if err != nil {
		return 0, fmt.Errorf("cache: list keys: %w", err)
	}

	now := s.now()
	n := 0
	for _, full := range keys {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		data, err := s.sub.Get(ctx, full)
		if err != nil {
			continue
		}
		var env envelope
		if json.Unmarshal(data, &env) == nil && !env.expired(now) {
			continue
		}
		if err := s.sub.Delete(ctx, full); err == nil {
			n++
		}
	}

	metrics.RecordCacheN(metrics.CacheExpired, n)
	return n, nil
}
