// Package server assembles the HTTP API: routing, middleware, and the
// WebSocket quote stream.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/afrifutures/afrimarkets/internal/domain"
	"github.com/afrifutures/afrimarkets/internal/server/handler"
	"github.com/afrifutures/afrimarkets/internal/server/middleware"
	"github.com/afrifutures/afrimarkets/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	APIKey          string // if empty, authentication is disabled
	RateLimit       int    // requests per window per client; 0 disables
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health     *handler.HealthHandler
	Prices     *handler.PriceHandler
	Prediction *handler.PredictionHandler
	Markets    *handler.MarketHandler
	Staking    *handler.StakingHandler
	Allowance  *handler.AllowanceHandler
}

// Server is the headless HTTP + WebSocket API for the commodity markets
// platform.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth, rate limiting) and attaches
// the WebSocket hub. limiter may be nil when rate limiting is disabled.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Price oracle endpoints.
	mux.HandleFunc("GET /api/price", handlers.Prices.GetPrice)
	mux.HandleFunc("GET /api/prices", handlers.Prices.GetPrices)
	mux.HandleFunc("GET /api/price/history", handlers.Prices.GetHistory)

	// Prediction endpoint.
	mux.HandleFunc("GET /api/prediction", handlers.Prediction.GetPrediction)

	// Market endpoints.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/stakes", handlers.Staking.ListMarketStakes)

	// Staking ledger endpoints.
	mux.HandleFunc("POST /api/stakes", handlers.Staking.RecordStake)
	mux.HandleFunc("GET /api/staking/aggregate", handlers.Staking.GetAggregate)
	mux.HandleFunc("GET /api/users/{id}/stakes", handlers.Staking.ListUserStakes)

	// Settlement allowance endpoint.
	mux.HandleFunc("GET /api/allowance", handlers.Allowance.CheckAllowance)

	// WebSocket quote stream.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey)(h)

	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateLimitWindow)(h)
	}

	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
