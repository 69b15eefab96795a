// Package config holds environment-derived configuration for the MINIIS3 backend.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is constructed once at process start and passed into each component.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR,default=:8080"`
	LogLevel   string `env:"LOG_LEVEL,default=info"`

	AppURL  string `env:"APP_URL,required"`
	AppName string `env:"APP_NAME,default=MINIIS3"`

	RPCURL          string        `env:"BASE_RPC_URL,required"`
	ContractAddress string        `env:"CONTRACT_ADDRESS,required"`
	OwnerPrivateKey string        `env:"OWNER_PRIVATE_KEY,required"`
	ChainID         int64         `env:"CHAIN_ID,default=8453"`
	RPCTimeout      time.Duration `env:"RPC_TIMEOUT,default=15s"`
	RPCRateLimit    int           `env:"RPC_RATE_LIMIT,default=20"`

	CronSecret    string `env:"CRON_SECRET,required"`
	CronSchedule  string `env:"CRON_SCHEDULE"`
	CutoffUTC     string `env:"RESULT_CUTOFF_UTC,default=12:00"`
	AdvanceOnSkip bool   `env:"ADVANCE_ON_SKIP,default=false"`

	ResultSource  string        `env:"RESULT_SOURCE,default=xoso188"`
	SourcesPath   string        `env:"SOURCES_PATH,default=config/sources.yaml"`
	FetchAttempts int           `env:"FETCH_ATTEMPTS,default=3"`
	FetchCooldown time.Duration `env:"FETCH_COOLDOWN,default=1m"`

	ScanConcurrency int `env:"SCAN_CONCURRENCY,default=10"`

	RedisURL  string `env:"REDIS_URL,required"`
	KeyPrefix string `env:"KV_PREFIX,default=miniis3:"`

	NeynarAPIKey   string `env:"NEYNAR_API_KEY"`
	NeynarClientID string `env:"NEYNAR_CLIENT_ID"`

	// CutoffHour and CutoffMinute are parsed out of CutoffUTC by Load.
	CutoffHour   int
	CutoffMinute int
}

// Load reads .env (if present) and decodes the environment into a Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.parseCutoff(); err != nil {
		return nil, err
	}
	if cfg.FetchAttempts < 1 {
		return nil, fmt.Errorf("FETCH_ATTEMPTS must be at least 1")
	}
	if cfg.ScanConcurrency < 1 {
		return nil, fmt.Errorf("SCAN_CONCURRENCY must be at least 1")
	}
	return &cfg, nil
}

func (c *Config) parseCutoff() error {
	parts := strings.SplitN(c.CutoffUTC, ":", 2)
	if len(parts) != 2 {
		return fmt.Errorf("RESULT_CUTOFF_UTC must be HH:MM, got %q", c.CutoffUTC)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return fmt.Errorf("RESULT_CUTOFF_UTC has invalid hour %q", parts[0])
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return fmt.Errorf("RESULT_CUTOFF_UTC has invalid minute %q", parts[1])
	}
	c.CutoffHour = hour
	c.CutoffMinute = minute
	return nil
}

// BeforeCutoff reports whether the given instant falls before the daily
// cutoff. The trigger endpoint is a no-op while this is true.
func (c *Config) BeforeCutoff(now time.Time) bool {
	now = now.UTC()
	return now.Hour() < c.CutoffHour ||
		(now.Hour() == c.CutoffHour && now.Minute() < c.CutoffMinute)
}

// ManagedNotifications reports whether the managed notification service is
// configured. When false, deliveries fall back to the self-hosted path.
func (c *Config) ManagedNotifications() bool {
	return c.NeynarAPIKey != "" && c.NeynarClientID != ""
}
