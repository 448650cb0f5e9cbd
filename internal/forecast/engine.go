// Package forecast implements the prediction engine: it turns an oracle quote
// plus a horizon into a typed prediction by invoking an external forecasting
// capability, null-filling the result when that capability fails.
package forecast

import (
	"context"
	"log/slog"
	"time"

	"github.com/afrifutures/afrimarkets/internal/domain"
)

// Result is the point estimate returned by a forecasting capability.
type Result struct {
	PredictedPrice float64
	Confidence     float64 // in [0,1]
}

// Forecaster is the external forecasting capability. It is treated as
// possibly slow and unreliable; the engine owns degrade behaviour. Narrative
// generation is a separate method so callers that do not want prose never pay
// for it.
type Forecaster interface {
	Forecast(ctx context.Context, history []domain.PriceQuote, horizon domain.Horizon) (Result, error)
	Narrative(ctx context.Context, history []domain.PriceQuote, horizon domain.Horizon, result Result) (string, error)
	Model() string
}

// QuoteSource is the read path into the price oracle cache. The engine never
// bypasses the cache.
type QuoteSource interface {
	GetPrice(ctx context.Context, symbol domain.CommoditySymbol, region domain.Region) (domain.PriceQuote, error)
	History(symbol domain.CommoditySymbol, region domain.Region) []domain.PriceQuote
}

// Config controls the engine.
type Config struct {
	// Timeout bounds every forecasting-capability call.
	Timeout time.Duration

	// Clock overrides the time source in tests. Nil means time.Now.
	Clock func() time.Time
}

// Engine is the prediction engine.
type Engine struct {
	quotes     QuoteSource
	forecaster Forecaster
	cfg        Config
	now        func() time.Time
	logger     *slog.Logger
}

// New creates an Engine over the given quote source and forecaster.
func New(quotes QuoteSource, forecaster Forecaster, cfg Config, logger *slog.Logger) *Engine {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Engine{
		quotes:     quotes,
		forecaster: forecaster,
		cfg:        cfg,
		now:        now,
		logger:     logger.With(slog.String("component", "forecast")),
	}
}

// Predict produces a Prediction for the given key and horizon.
//
// Validation failures (bad symbol, region, or horizon) are returned as
// errors. Forecasting failures are not: the caller receives a structurally
// valid Prediction whose nil fields signal "unknown". When includeNarrative
// is false the narrative path is never invoked, regardless of forecast
// outcome.
func (e *Engine) Predict(ctx context.Context, symbol domain.CommoditySymbol, region domain.Region, horizon domain.Horizon, includeNarrative bool) (domain.Prediction, error) {
	if _, err := domain.ParseHorizon(string(horizon)); err != nil {
		return domain.Prediction{}, err
	}

	quote, err := e.quotes.GetPrice(ctx, symbol, region)
	if err != nil {
		return domain.Prediction{}, err
	}

	pred := domain.Prediction{
		Symbol:   symbol,
		Region:   region,
		Horizon:  horizon,
		Currency: quote.Currency,
		AsOf:     e.now().UTC(),
		Model:    e.forecaster.Model(),
	}

	history := e.quotes.History(symbol, region)
	if len(history) == 0 {
		history = []domain.PriceQuote{quote}
	}

	fctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	result, err := e.forecaster.Forecast(fctx, history, horizon)
	if err != nil {
		e.logger.WarnContext(ctx, "forecast capability failed",
			slog.String("symbol", string(symbol)),
			slog.String("horizon", string(horizon)),
			slog.String("error", err.Error()),
		)
		return pred, nil // null-filled, never a hard error
	}

	price := result.PredictedPrice
	confidence := clamp01(result.Confidence)
	pred.PredictedPrice = &price
	pred.Confidence = &confidence

	if includeNarrative {
		narrative, err := e.forecaster.Narrative(fctx, history, horizon, result)
		if err != nil {
			e.logger.WarnContext(ctx, "narrative generation failed",
				slog.String("symbol", string(symbol)),
				slog.String("error", err.Error()),
			)
		} else {
			pred.Narrative = &narrative
		}
	}

	return pred, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
