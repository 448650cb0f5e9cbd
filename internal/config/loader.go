package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies AFRI_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known AFRI_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Oracle ──
	setDuration(&cfg.Oracle.FreshnessWindow, "AFRI_ORACLE_FRESHNESS_WINDOW")
	setDuration(&cfg.Oracle.FetchTimeout, "AFRI_ORACLE_FETCH_TIMEOUT")
	setInt(&cfg.Oracle.MaxParallelFetch, "AFRI_ORACLE_MAX_PARALLEL_FETCHES")

	// ── Providers ──
	setStr(&cfg.AlphaVantage.BaseURL, "AFRI_ALPHAVANTAGE_BASE_URL")
	setStr(&cfg.AlphaVantage.ApiKey, "AFRI_ALPHAVANTAGE_API_KEY")
	setStr(&cfg.WorldBank.BaseURL, "AFRI_WORLDBANK_BASE_URL")

	// ── Groq ──
	setStr(&cfg.Groq.BaseURL, "AFRI_GROQ_BASE_URL")
	setStr(&cfg.Groq.ApiKey, "AFRI_GROQ_API_KEY")
	setStr(&cfg.Groq.Model, "AFRI_GROQ_MODEL")
	setDuration(&cfg.Groq.Timeout, "AFRI_GROQ_TIMEOUT")

	// ── Ledger ──
	setFloat64(&cfg.Ledger.FixedAPY, "AFRI_LEDGER_FIXED_APY")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "AFRI_CHAIN_RPC_URL")
	setStr(&cfg.Chain.TokenAddress, "AFRI_CHAIN_TOKEN_ADDRESS")
	setStr(&cfg.Chain.SpenderAddress, "AFRI_CHAIN_SPENDER_ADDRESS")
	setInt64(&cfg.Chain.MinAllowanceUnits, "AFRI_CHAIN_MIN_ALLOWANCE_UNITS")
	setDuration(&cfg.Chain.CallTimeout, "AFRI_CHAIN_CALL_TIMEOUT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "AFRI_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "AFRI_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "AFRI_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "AFRI_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "AFRI_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "AFRI_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "AFRI_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "AFRI_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "AFRI_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AFRI_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AFRI_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "AFRI_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "AFRI_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "AFRI_S3_REGION")
	setStr(&cfg.S3.Bucket, "AFRI_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "AFRI_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "AFRI_S3_SECRET_KEY")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "AFRI_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "AFRI_ARCHIVE_INTERVAL")
	setStr(&cfg.Archive.Prefix, "AFRI_ARCHIVE_PREFIX")

	// ── Server ──
	setInt(&cfg.Server.Port, "AFRI_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "AFRI_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "AFRI_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "AFRI_SERVER_RATE_LIMIT")

	// ── Misc ──
	setStr(&cfg.LogLevel, "AFRI_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
