package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Log       LogConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Analytics AnalyticsConfig
	Geo       GeoConfig
}

type AppConfig struct {
	Port            string
	BaseURL         string
	DefaultTimezone string
}

type LogConfig struct {
	Level  string
	Format string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Host     string
	Port     string
	CacheTTL time.Duration
}

type AuthConfig struct {
	APIKeys map[string]string // API key -> user ID
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// AnalyticsConfig sizes the scan processor worker pool.
type AnalyticsConfig struct {
	WorkerCount int
	BufferSize  int
}

// GeoConfig points at an ip-api compatible lookup service. An empty BaseURL disables lookups.
type GeoConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Load reads .env from the working directory, falling back to the environment.
func Load() (*Config, error) {
	return LoadFrom(".env")
}

func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")
	v.SetDefault("APP_DEFAULT_TIMEZONE", "UTC")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_CACHE_TTL", "10m")
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("ANALYTICS_WORKERS", 3)
	v.SetDefault("ANALYTICS_BUFFER", 1000)
	v.SetDefault("GEO_TIMEOUT", "2s")

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	cfg.App.Port = v.GetString("APP_PORT")
	cfg.App.BaseURL = strings.TrimRight(v.GetString("APP_BASE_URL"), "/")
	cfg.App.DefaultTimezone = v.GetString("APP_DEFAULT_TIMEZONE")
	cfg.Log.Level = v.GetString("LOG_LEVEL")
	cfg.Log.Format = v.GetString("LOG_FORMAT")
	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = v.GetString("DB_PORT")
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASSWORD")
	cfg.DB.Name = v.GetString("DB_NAME")
	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetString("REDIS_PORT")
	cfg.Redis.CacheTTL = v.GetDuration("REDIS_CACHE_TTL")

	// Format: key1:user-id-1,key2:user-id-2
	cfg.Auth.APIKeys = parseAPIKeys(v.GetString("API_KEYS"))

	cfg.RateLimit.RequestsPerSecond = v.GetFloat64("RATE_LIMIT_RPS")
	cfg.RateLimit.BurstSize = v.GetInt("RATE_LIMIT_BURST")

	cfg.Analytics.WorkerCount = v.GetInt("ANALYTICS_WORKERS")
	cfg.Analytics.BufferSize = v.GetInt("ANALYTICS_BUFFER")

	cfg.Geo.BaseURL = v.GetString("GEO_BASE_URL")
	cfg.Geo.Timeout = v.GetDuration("GEO_TIMEOUT")

	if _, err := time.LoadLocation(cfg.App.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("invalid APP_DEFAULT_TIMEZONE %q: %w", cfg.App.DefaultTimezone, err)
	}

	return &cfg, nil
}

// parseAPIKeys parses comma-separated API keys in format "key1:user1,key2:user2"
func parseAPIKeys(raw string) map[string]string {
	keys := make(map[string]string)
	if raw == "" {
		return keys
	}

	pairs := strings.Split(raw, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) == 2 {
			keys[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}

	return keys
}
