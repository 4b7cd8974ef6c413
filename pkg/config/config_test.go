package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("ENV", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8089", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
	assert.Equal(t, []string{"claude", "gemini", "mistral", "deepseek"}, cfg.Providers.Order)
	assert.Equal(t, 15*time.Second, cfg.Providers.Timeout)
	assert.Equal(t, 3, cfg.Batch.Size)
	assert.Equal(t, 2*time.Second, cfg.Batch.Delay)
	assert.Equal(t, 24*time.Hour, cfg.Cache.CountryTTL)
	assert.Equal(t, 12*time.Hour, cfg.Cache.StockTTL)
	assert.Equal(t, time.Hour, cfg.Cache.SearchTTL)
	assert.Equal(t, 0.08, cfg.Barrier.Drift)
	assert.Equal(t, 60.0, cfg.Barrier.HorizonDays)
}

func TestLoadWithCustomValues(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ENV", "production")
	t.Setenv("PROVIDER_ORDER", " Mistral, ,claude ")
	t.Setenv("PROVIDER_TIMEOUT", "10s")
	t.Setenv("BATCH_SIZE", "5")
	t.Setenv("BARRIER_DRIFT", "0.05")
	t.Setenv("STORAGE_BACKEND", "BADGER")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, []string{"mistral", "claude"}, cfg.Providers.Order)
	assert.Equal(t, 10*time.Second, cfg.Providers.Timeout)
	assert.Equal(t, 5, cfg.Batch.Size)
	assert.Equal(t, 0.05, cfg.Barrier.Drift)
	assert.Equal(t, StorageBadger, cfg.Storage.Backend)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{"bad env", map[string]string{"ENV": "qa"}, true},
		{"unknown backend", map[string]string{"STORAGE_BACKEND": "mongo"}, true},
		{"postgres without url", map[string]string{"STORAGE_BACKEND": "postgres", "DATABASE_URL": ""}, true},
		{"postgres with url", map[string]string{"STORAGE_BACKEND": "postgres", "DATABASE_URL": "postgres://u:p@localhost/db"}, false},
		{"redis disabled", map[string]string{"STORAGE_BACKEND": "redis", "REDIS_ENABLED": "false"}, true},
		{"zero batch", map[string]string{"BATCH_SIZE": "0"}, true},
		{"negative delay", map[string]string{"BATCH_DELAY": "-1s"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnvHelpersFallBack(t *testing.T) {
	t.Setenv("X_INT", "abc")
	t.Setenv("X_FLOAT", "abc")
	t.Setenv("X_DUR", "soon")

	assert.Equal(t, 7, getEnvAsInt("X_INT", 7))
	assert.Equal(t, 1.5, getEnvAsFloat("X_FLOAT", 1.5))
	assert.Equal(t, time.Minute, getEnvAsDuration("X_DUR", "1m"))
	assert.Equal(t, []string{"a"}, getEnvAsList("X_UNSET_LIST", []string{"a"}))
}
