package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/investscope/internal/storage"
	"github.com/wonny/investscope/pkg/logger"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newStore(t *testing.T, maxEntries int) (*Store, *storage.Memory, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	mem := storage.NewMemory(maxEntries)
	return New(mem, logger.Nop(), WithClock(clock.Now)), mem, clock
}

type payload struct {
	Score float64 `json:"score"`
}

func TestGetMissing(t *testing.T) {
	s, _, _ := newStore(t, 0)

	var p payload
	found, err := s.Get(context.Background(), CountryKey("fr"), &p)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestExpiryIsLazy(t *testing.T) {
	ctx := context.Background()
	s, mem, clock := newStore(t, 0)

	require.NoError(t, s.Set(ctx, "country:FR", payload{Score: 7.2}, ExpireIn(24*time.Hour)))

	clock.Advance(23 * time.Hour)
	var p payload
	found, err := s.Get(ctx, "country:FR", &p)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 7.2, p.Score)

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 1, mem.Len(), "nothing is swept before the read")

	found, err = s.Get(ctx, "country:FR", &p)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, mem.Len(), "expired entry is removed on read")
}

func TestNoExpiryNeverExpires(t *testing.T) {
	ctx := context.Background()
	s, _, clock := newStore(t, 0)

	require.NoError(t, s.Set(ctx, "stock:AAPL", payload{Score: 5}, NoExpiry()))
	clock.Advance(10 * 365 * 24 * time.Hour)

	var p payload
	found, err := s.Get(ctx, "stock:AAPL", &p)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestExpireInRejectsNonPositive(t *testing.T) {
	s, mem, _ := newStore(t, 0)

	assert.ErrorIs(t, s.Set(context.Background(), "k", payload{}, ExpireIn(0)), ErrInvalidExpiry)
	assert.Equal(t, 0, mem.Len())
}

func TestSetOverwrites(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newStore(t, 0)

	require.NoError(t, s.Set(ctx, "k", payload{Score: 1}, NoExpiry()))
	require.NoError(t, s.Set(ctx, "k", payload{Score: 2}, ExpireIn(time.Hour)))

	var p payload
	found, _ := s.Get(ctx, "k", &p)
	assert.True(t, found)
	assert.Equal(t, 2.0, p.Score)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newStore(t, 0)

	require.NoError(t, s.Set(ctx, "k", payload{Score: 1}, NoExpiry()))
	require.NoError(t, s.Remove(ctx, "k"))
	require.NoError(t, s.Remove(ctx, "k"))

	var p payload
	found, _ := s.Get(ctx, "k", &p)
	assert.False(t, found)
}

func TestCorruptEntryIsDropped(t *testing.T) {
	ctx := context.Background()
	s, mem, _ := newStore(t, 0)

	require.NoError(t, mem.Set(ctx, keyPrefix+"k", []byte("not json")))

	var p payload
	found, err := s.Get(ctx, "k", &p)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, mem.Len())
}

func TestCapacityEvictsEarliestExpiryFirst(t *testing.T) {
	ctx := context.Background()
	s, mem, _ := newStore(t, 12)

	require.NoError(t, s.Set(ctx, "forever-a", payload{}, NoExpiry()))
	require.NoError(t, s.Set(ctx, "forever-b", payload{}, NoExpiry()))
	for i := 1; i <= 10; i++ {
		key := fmt.Sprintf("h%02d", i)
		require.NoError(t, s.Set(ctx, key, payload{}, ExpireIn(time.Duration(i)*time.Hour)))
	}
	require.Equal(t, 12, mem.Len())

	require.NoError(t, s.Set(ctx, "new", payload{Score: 9}, ExpireIn(time.Hour)))

	var p payload
	found, _ := s.Get(ctx, "new", &p)
	assert.True(t, found, "write succeeds after eviction")

	for _, gone := range []string{"forever-a", "forever-b", "h01", "h08"} {
		found, _ := s.Get(ctx, gone, &p)
		assert.False(t, found, gone)
	}
	for _, kept := range []string{"h09", "h10"} {
		found, _ := s.Get(ctx, kept, &p)
		assert.True(t, found, kept)
	}
}

func TestEvictionNeverTouchesOtherNamespaces(t *testing.T) {
	ctx := context.Background()
	s, mem, _ := newStore(t, 3)

	require.NoError(t, mem.Set(ctx, "portfolio", []byte(`{"positions":[]}`)))
	require.NoError(t, s.Set(ctx, "a", payload{}, ExpireIn(time.Hour)))
	require.NoError(t, s.Set(ctx, "b", payload{}, ExpireIn(time.Hour)))

	require.NoError(t, s.Set(ctx, "c", payload{}, ExpireIn(time.Hour)))

	_, err := mem.Get(ctx, "portfolio")
	assert.NoError(t, err)
}

func TestWriteDroppedSilentlyWhenStillFull(t *testing.T) {
	ctx := context.Background()
	s, mem, _ := newStore(t, 1)

	require.NoError(t, mem.Set(ctx, "portfolio", []byte(`{}`)))

	assert.NoError(t, s.Set(ctx, "a", payload{}, ExpireIn(time.Hour)))

	var p payload
	found, _ := s.Get(ctx, "a", &p)
	assert.False(t, found)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "country:FR", CountryKey(" fr "))
	assert.Equal(t, "stock:AAPL", StockKey("aapl"))
	assert.Equal(t, "search:air liquide", SearchKey("  Air   LIQUIDE "))
	assert.Equal(t, SearchKey("Apple"), SearchKey("apple "))
	assert.Equal(t, "advice:pos_1", AdviceKey("pos_1"))
}

func TestPurgeExpired(t *testing.T) {
	s, mem, clock := newStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, SearchKey("lvmh"), payload{1}, ExpireIn(time.Hour)))
	require.NoError(t, s.Set(ctx, CountryKey("FR"), payload{2}, ExpireIn(24*time.Hour)))
	require.NoError(t, s.Set(ctx, "pinned", payload{3}, NoExpiry()))
	require.NoError(t, mem.Set(ctx, "portfolio:positions", []byte(`{}`)))

	clock.Advance(2 * time.Hour)
	n, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var p payload
	found, err := s.Get(ctx, CountryKey("FR"), &p)
	require.NoError(t, err)
	assert.True(t, found)
	_, err = mem.Get(ctx, "portfolio:positions")
	assert.NoError(t, err, "other namespaces untouched")
}
