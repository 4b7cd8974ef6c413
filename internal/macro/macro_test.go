package macro

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/investscope/pkg/httputil"
	"github.com/wonny/investscope/pkg/logger"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/wb/country/"):
			if strings.HasSuffix(r.URL.Path, "/FP.CPI.TOTL.ZG") {
				_, _ = w.Write([]byte(`[{"page":1},[
					{"date":"2023","value":4.9},
					{"date":"2024","value":2.3},
					{"date":"2022","value":null}
				]]`))
				return
			}
			_, _ = w.Write([]byte(`[{"page":1},null]`))
		case r.URL.Path == "/fred/series/observations":
			if r.URL.Query().Get("series_id") == "FEDFUNDS" {
				_, _ = w.Write([]byte(`{"observations":[
					{"date":"2026-01-01","value":"4.33"},
					{"date":"2025-12-01","value":"."}
				]}`))
				return
			}
			w.WriteHeader(http.StatusBadRequest)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestClient(srvURL, fredKey string) *Client {
	httpClient := httputil.New(logger.Nop()).DisableRetry()
	return NewClient(httpClient, srvURL+"/wb", srvURL+"/fred", fredKey, logger.Nop())
}

func TestWorldBankDropsNullsNewestFirst(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	obs, err := newTestClient(srv.URL, "").WorldBank(context.Background(), "FR", "FP.CPI.TOTL.ZG", 6)
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, Observation{Date: "2024", Value: 2.3}, obs[0])
}

func TestFREDSkipsMissingValues(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	obs, err := newTestClient(srv.URL, "key").FRED(context.Background(), "FEDFUNDS", 12)
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, 4.33, obs[0].Value)
}

func TestSnapshot(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	t.Run("non-US skips FRED", func(t *testing.T) {
		snap, err := newTestClient(srv.URL, "key").Snapshot(context.Background(), "fr")
		require.NoError(t, err)
		assert.Equal(t, "FR", snap.Country)
		assert.Empty(t, snap.FRED)
		v, ok := snap.Latest("inflation")
		require.True(t, ok)
		assert.Equal(t, 2.3, v)
		assert.Contains(t, snap.PromptBlock(), "inflation (World Bank): 2024=2.30")
	})

	t.Run("US includes FRED", func(t *testing.T) {
		snap, err := newTestClient(srv.URL, "key").Snapshot(context.Background(), "US")
		require.NoError(t, err)
		v, ok := snap.Latest("fed_rate")
		require.True(t, ok)
		assert.Equal(t, 4.33, v)
	})

	t.Run("US without key", func(t *testing.T) {
		snap, err := newTestClient(srv.URL, "").Snapshot(context.Background(), "US")
		require.NoError(t, err)
		assert.Empty(t, snap.FRED)
	})
}

func TestSnapshotCancelled(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(srv.URL, "").Snapshot(ctx, "FR")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmptySnapshot(t *testing.T) {
	var s *Snapshot
	assert.True(t, s.Empty())
	assert.Empty(t, s.PromptBlock())
	_, ok := s.Latest("gdp")
	assert.False(t, ok)
}
