// Package app provides the top-level application lifecycle for the
// afrimarkets backend. It wires together all dependencies (stores, caches,
// chain access, blob storage, services) and runs the HTTP API alongside the
// background jobs until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/afrifutures/afrimarkets/internal/config"
	"github.com/afrifutures/afrimarkets/internal/pipeline"
	"github.com/afrifutures/afrimarkets/internal/server"
	"github.com/afrifutures/afrimarkets/internal/server/handler"
	"github.com/afrifutures/afrimarkets/internal/server/ws"
)

// shutdownTimeout bounds the graceful drain of in-flight requests.
const shutdownTimeout = 10 * time.Second

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the HTTP
// server, the WebSocket hub, and the snapshot archiver, and blocks until the
// context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	handlers := server.Handlers{
		Health:     handler.NewHealthHandler(a.logger.With(slog.String("component", "health"))),
		Prices:     handler.NewPriceHandler(deps.Oracle, a.logger.With(slog.String("component", "price_handler"))),
		Prediction: handler.NewPredictionHandler(deps.Engine, a.logger.With(slog.String("component", "prediction_handler"))),
		Markets:    handler.NewMarketHandler(deps.MarketStore, a.logger.With(slog.String("component", "market_handler"))),
		Staking:    handler.NewStakingHandler(deps.Ledger, a.logger.With(slog.String("component", "staking_handler"))),
		Allowance:  handler.NewAllowanceHandler(deps.Gatekeeper, a.logger.With(slog.String("component", "allowance_handler"))),
	}

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.cfg.Oracle.PublishChannel, a.logger.With(slog.String("component", "ws")))
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger.With(slog.String("component", "server")))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if hub != nil {
		g.Go(func() error {
			err := hub.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if a.cfg.Archive.Enabled && deps.BlobWriter != nil {
		archiver := pipeline.NewArchiver(
			deps.Oracle,
			deps.Ledger,
			deps.BlobWriter,
			a.cfg.Archive.Interval.Duration,
			a.cfg.Archive.Prefix,
			a.logger.With(slog.String("component", "archiver")),
		)
		g.Go(func() error {
			err := archiver.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
