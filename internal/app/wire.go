package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/afrifutures/afrimarkets/internal/blob/s3"
	"github.com/afrifutures/afrimarkets/internal/cache/redis"
	"github.com/afrifutures/afrimarkets/internal/chain"
	"github.com/afrifutures/afrimarkets/internal/config"
	"github.com/afrifutures/afrimarkets/internal/domain"
	"github.com/afrifutures/afrimarkets/internal/forecast"
	"github.com/afrifutures/afrimarkets/internal/ledger"
	"github.com/afrifutures/afrimarkets/internal/oracle"
	"github.com/afrifutures/afrimarkets/internal/platform/alphavantage"
	"github.com/afrifutures/afrimarkets/internal/platform/groq"
	"github.com/afrifutures/afrimarkets/internal/platform/worldbank"
	"github.com/afrifutures/afrimarkets/internal/store/postgres"
)

// Dependencies bundles every component the application needs to serve. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Core services
	Oracle     *oracle.Oracle
	Engine     *forecast.Engine
	Ledger     *ledger.Service
	Gatekeeper *chain.Gatekeeper

	// Stores
	MarketStore domain.MarketStore
	StakeStore  domain.StakeStore

	// Redis-backed infrastructure; nil when Redis is not configured.
	QuoteStore  domain.QuoteStore
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus

	// Blob storage; nil when no bucket is configured.
	BlobWriter domain.BlobWriter
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.StakeStore = postgres.NewStakeStore(pool)

	// --- Redis (optional) ---
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.QuoteStore = redis.NewQuoteStore(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	// --- Price oracle ---
	sources := []oracle.Source{}
	if cfg.AlphaVantage.ApiKey != "" {
		sources = append(sources, alphavantage.New(cfg.AlphaVantage.BaseURL, cfg.AlphaVantage.ApiKey))
	}
	sources = append(sources, worldbank.New(cfg.WorldBank.BaseURL))

	deps.Oracle = oracle.New(
		oracle.NewChain(logger, sources...),
		deps.QuoteStore,
		deps.SignalBus,
		oracle.Config{
			FreshnessWindow:    cfg.Oracle.FreshnessWindow.Duration,
			FetchTimeout:       cfg.Oracle.FetchTimeout.Duration,
			MaxParallelFetches: cfg.Oracle.MaxParallelFetch,
			HistoryDepth:       cfg.Oracle.HistoryDepth,
			PublishChannel:     cfg.Oracle.PublishChannel,
		},
		logger,
	)

	// --- Prediction engine ---
	forecaster := groq.New(groq.Config{
		BaseURL:   cfg.Groq.BaseURL,
		ApiKey:    cfg.Groq.ApiKey,
		Model:     cfg.Groq.Model,
		MaxTokens: cfg.Groq.MaxTokens,
	})
	deps.Engine = forecast.New(deps.Oracle, forecaster, forecast.Config{
		Timeout: cfg.Groq.Timeout.Duration,
	}, logger)

	// --- Staking ledger ---
	deps.Ledger = ledger.New(
		deps.StakeStore,
		deps.MarketStore,
		ledger.FixedYield(cfg.Ledger.FixedAPY),
		nil,
		logger,
	)

	// --- Settlement gatekeeper ---
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	deps.Gatekeeper, err = chain.Dial(dialCtx, cfg.Chain.RPCURL, chain.Config{
		TokenAddress:      cfg.Chain.TokenAddress,
		SpenderAddress:    cfg.Chain.SpenderAddress,
		MinAllowanceUnits: cfg.Chain.MinAllowanceUnits,
		CallTimeout:       cfg.Chain.CallTimeout.Duration,
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain: %w", err)
	}

	// --- S3 blob storage (optional) ---
	if cfg.S3.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	return deps, cleanup, nil
}
