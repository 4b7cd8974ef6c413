package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends understood by internal/storage.
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageBadger   = "badger"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	Storage  StorageConfig
	Database DatabaseConfig
	Redis    RedisConfig

	Providers   ProvidersConfig
	DataSources DataSourcesConfig

	Batch   BatchConfig
	Cache   CacheConfig
	Barrier BarrierConfig
	Refresh RefreshConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// StorageConfig selects the persistence substrate shared by the cache and the ledger.
type StorageConfig struct {
	Backend    string
	BadgerPath string
	MaxEntries int // memory backend only, 0 = unlimited
	KeyPrefix  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// ProvidersConfig holds the text-generation providers, tried in Order.
type ProvidersConfig struct {
	Order     []string
	Timeout   time.Duration
	RPS       float64 // per-provider throttle, 0 = off
	MaxTokens int

	Claude   ProviderConfig
	Gemini   ProviderConfig
	Mistral  ProviderConfig
	DeepSeek ProviderConfig
}

// ProviderConfig is the credential and model of a single provider.
type ProviderConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// DataSourcesConfig holds the market, macro and news data source credentials.
type DataSourcesConfig struct {
	FMPAPIKey      string
	FMPBaseURL     string
	FREDAPIKey     string
	FREDBaseURL    string
	WorldBankURL   string
	NewsAPIKey     string
	NewsAPIBaseURL string
	GNewsAPIKey    string
	GNewsBaseURL   string
	Timeout        time.Duration
	YahooEnabled   bool
}

// BatchConfig controls the batch fetch scheduler.
type BatchConfig struct {
	Size  int
	Delay time.Duration
}

// CacheConfig holds the TTL per analysis kind.
type CacheConfig struct {
	CountryTTL time.Duration
	StockTTL   time.Duration
	SearchTTL  time.Duration
	AdviceTTL  time.Duration
}

// BarrierConfig holds the defaults of the barrier probability model.
type BarrierConfig struct {
	Drift       float64
	HorizonDays float64
}

// RefreshConfig holds the periodic refresh jobs.
type RefreshConfig struct {
	Enabled         bool
	WatchlistPath   string
	CountrySchedule string
	StockSchedule   string
	PriceSchedule   string
	CleanupSchedule string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Storage: StorageConfig{
			Backend:    strings.ToLower(getEnv("STORAGE_BACKEND", StorageMemory)),
			BadgerPath: getEnv("BADGER_PATH", "./data/investscope"),
			MaxEntries: getEnvAsInt("MEMORY_MAX_ENTRIES", 0),
			KeyPrefix:  getEnv("STORAGE_KEY_PREFIX", "is"),
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Providers: ProvidersConfig{
			Order:     getEnvAsList("PROVIDER_ORDER", []string{"claude", "gemini", "mistral", "deepseek"}),
			Timeout:   getEnvAsDuration("PROVIDER_TIMEOUT", "15s"),
			RPS:       getEnvAsFloat("PROVIDER_RPS", 0),
			MaxTokens: getEnvAsInt("PROVIDER_MAX_TOKENS", 1500),
			Claude: ProviderConfig{
				APIKey: getEnv("ANTHROPIC_API_KEY", ""),
				Model:  getEnv("CLAUDE_MODEL", "claude-sonnet-4-20250514"),
			},
			Gemini: ProviderConfig{
				APIKey: getEnv("GEMINI_API_KEY", ""),
				Model:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			},
			Mistral: ProviderConfig{
				APIKey:  getEnv("MISTRAL_API_KEY", ""),
				Model:   getEnv("MISTRAL_MODEL", "mistral-small-latest"),
				BaseURL: getEnv("MISTRAL_BASE_URL", "https://api.mistral.ai/v1"),
			},
			DeepSeek: ProviderConfig{
				APIKey:  getEnv("DEEPSEEK_API_KEY", ""),
				Model:   getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
				BaseURL: getEnv("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"),
			},
		},

		DataSources: DataSourcesConfig{
			FMPAPIKey:      getEnv("FMP_API_KEY", ""),
			FMPBaseURL:     getEnv("FMP_BASE_URL", "https://financialmodelingprep.com/stable"),
			FREDAPIKey:     getEnv("FRED_API_KEY", ""),
			FREDBaseURL:    getEnv("FRED_BASE_URL", "https://api.stlouisfed.org/fred"),
			WorldBankURL:   getEnv("WORLDBANK_BASE_URL", "https://api.worldbank.org/v2"),
			NewsAPIKey:     getEnv("NEWS_API_KEY", ""),
			NewsAPIBaseURL: getEnv("NEWS_API_BASE_URL", "https://newsapi.org/v2"),
			GNewsAPIKey:    getEnv("GNEWS_API_KEY", ""),
			GNewsBaseURL:   getEnv("GNEWS_BASE_URL", "https://gnews.io/api/v4"),
			Timeout:        getEnvAsDuration("DATA_SOURCE_TIMEOUT", "12s"),
			YahooEnabled:   getEnvAsBool("YAHOO_ENABLED", true),
		},

		Batch: BatchConfig{
			Size:  getEnvAsInt("BATCH_SIZE", 3),
			Delay: getEnvAsDuration("BATCH_DELAY", "2s"),
		},

		Cache: CacheConfig{
			CountryTTL: getEnvAsDuration("CACHE_COUNTRY_TTL", "24h"),
			StockTTL:   getEnvAsDuration("CACHE_STOCK_TTL", "12h"),
			SearchTTL:  getEnvAsDuration("CACHE_SEARCH_TTL", "1h"),
			AdviceTTL:  getEnvAsDuration("CACHE_ADVICE_TTL", "6h"),
		},

		Barrier: BarrierConfig{
			Drift:       getEnvAsFloat("BARRIER_DRIFT", 0.08),
			HorizonDays: getEnvAsFloat("BARRIER_HORIZON_DAYS", 60),
		},

		Refresh: RefreshConfig{
			Enabled:         getEnvAsBool("REFRESH_ENABLED", false),
			WatchlistPath:   getEnv("WATCHLIST_PATH", "watchlist.yaml"),
			CountrySchedule: getEnv("REFRESH_COUNTRY_SCHEDULE", "0 0 6 * * *"),
			StockSchedule:   getEnv("REFRESH_STOCK_SCHEDULE", "0 30 6 * * *"),
			PriceSchedule:   getEnv("REFRESH_PRICE_SCHEDULE", "0 */30 * * * *"),
			CleanupSchedule: getEnv("REFRESH_CLEANUP_SCHEDULE", "0 */15 * * * *"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", false),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Storage.Backend {
	case StorageMemory, StorageBadger:
	case StorageRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("STORAGE_BACKEND=redis requires REDIS_ENABLED=true")
		}
	case StoragePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for STORAGE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of: memory, redis, postgres, badger")
	}

	if len(c.Providers.Order) == 0 {
		return fmt.Errorf("PROVIDER_ORDER must name at least one provider")
	}
	if c.Providers.Timeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	if c.Batch.Size <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive")
	}
	if c.Batch.Delay < 0 {
		return fmt.Errorf("BATCH_DELAY must not be negative")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
