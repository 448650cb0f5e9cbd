// Package config defines the top-level configuration for the afrimarkets
// backend and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by AFRI_* environment variables.
type Config struct {
	Oracle       OracleConfig       `toml:"oracle"`
	AlphaVantage AlphaVantageConfig `toml:"alphavantage"`
	WorldBank    WorldBankConfig    `toml:"worldbank"`
	Groq         GroqConfig         `toml:"groq"`
	Ledger       LedgerConfig       `toml:"ledger"`
	Chain        ChainConfig        `toml:"chain"`
	Postgres     PostgresConfig     `toml:"postgres"`
	Redis        RedisConfig        `toml:"redis"`
	S3           S3Config           `toml:"s3"`
	Archive      ArchiveConfig      `toml:"archive"`
	Server       ServerConfig       `toml:"server"`
	LogLevel     string             `toml:"log_level"`
}

// OracleConfig controls the price oracle cache.
type OracleConfig struct {
	FreshnessWindow   duration `toml:"freshness_window"`
	FetchTimeout      duration `toml:"fetch_timeout"`
	MaxParallelFetch  int      `toml:"max_parallel_fetches"`
	HistoryDepth      int      `toml:"history_depth"`
	PublishChannel    string   `toml:"publish_channel"`
}

// AlphaVantageConfig holds the primary market-data provider parameters.
type AlphaVantageConfig struct {
	BaseURL string `toml:"base_url"`
	ApiKey  string `toml:"api_key"`
}

// WorldBankConfig holds the fallback pink-sheet provider parameters.
type WorldBankConfig struct {
	BaseURL string `toml:"base_url"`
}

// GroqConfig holds the forecasting LLM parameters.
type GroqConfig struct {
	BaseURL   string   `toml:"base_url"`
	ApiKey    string   `toml:"api_key"`
	Model     string   `toml:"model"`
	Timeout   duration `toml:"timeout"`
	MaxTokens int      `toml:"max_tokens"`
}

// LedgerConfig controls staking ledger policy.
type LedgerConfig struct {
	FixedAPY float64 `toml:"fixed_apy"`
}

// ChainConfig holds chain RPC parameters for the settlement gatekeeper.
type ChainConfig struct {
	RPCURL            string   `toml:"rpc_url"`
	TokenAddress      string   `toml:"token_address"`
	SpenderAddress    string   `toml:"spender_address"`
	MinAllowanceUnits int64    `toml:"min_allowance_units"`
	CallTimeout       duration `toml:"call_timeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. Redis is optional: when
// Addr is empty the service runs without the L2 quote cache, the signal bus,
// and distributed rate limiting.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the quote
// archive. Disabled when Bucket is empty.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls the background quote/ledger snapshot archiver.
type ArchiveConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval duration `toml:"interval"`
	Prefix   string   `toml:"prefix"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	APIKey          string   `toml:"api_key"`
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Oracle: OracleConfig{
			FreshnessWindow:  duration{5 * time.Minute},
			FetchTimeout:     duration{10 * time.Second},
			MaxParallelFetch: 4,
			HistoryDepth:     16,
			PublishChannel:   "quotes",
		},
		AlphaVantage: AlphaVantageConfig{
			BaseURL: "https://www.alphavantage.co",
		},
		WorldBank: WorldBankConfig{
			BaseURL: "https://api.worldbank.org/v2",
		},
		Groq: GroqConfig{
			BaseURL:   "https://api.groq.com/openai/v1",
			Model:     "qwen/qwen3-32b",
			Timeout:   duration{20 * time.Second},
			MaxTokens: 2048,
		},
		Ledger: LedgerConfig{
			FixedAPY: 12.4,
		},
		Chain: ChainConfig{
			RPCURL:            "https://rpc-amoy.polygon.technology",
			MinAllowanceUnits: 1_000_000_000, // 1000 USDC at 6 decimals
			CallTimeout:       duration{8 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "afrimarkets",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Region:         "us-east-1",
			UseSSL:         true,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Interval: duration{time.Hour},
			Prefix:   "snapshots",
		},
		Server: ServerConfig{
			Port:            8080,
			RateLimit:       120,
			RateLimitWindow: duration{time.Minute},
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for inconsistencies and returns a single
// error listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Oracle.FreshnessWindow.Duration <= 0 {
		errs = append(errs, "oracle: freshness_window must be positive")
	}
	if c.Oracle.FetchTimeout.Duration <= 0 {
		errs = append(errs, "oracle: fetch_timeout must be positive")
	}
	if c.Oracle.MaxParallelFetch < 1 {
		errs = append(errs, "oracle: max_parallel_fetches must be >= 1")
	}
	if c.Oracle.HistoryDepth < 1 {
		errs = append(errs, "oracle: history_depth must be >= 1")
	}

	if c.WorldBank.BaseURL == "" {
		errs = append(errs, "worldbank: base_url must not be empty")
	}

	if c.Groq.ApiKey != "" {
		if c.Groq.BaseURL == "" {
			errs = append(errs, "groq: base_url must not be empty")
		}
		if c.Groq.Model == "" {
			errs = append(errs, "groq: model must not be empty")
		}
	}

	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.TokenAddress == "" {
		errs = append(errs, "chain: token_address must not be empty")
	}
	if c.Chain.SpenderAddress == "" {
		errs = append(errs, "chain: spender_address must not be empty")
	}
	if c.Chain.MinAllowanceUnits <= 0 {
		errs = append(errs, "chain: min_allowance_units must be positive")
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}

	if c.Archive.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "archive: s3.bucket is required when archive.enabled is true")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be positive")
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server: rate_limit must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
