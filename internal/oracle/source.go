package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/afrifutures/afrimarkets/internal/domain"
)

// Chain is a Source that tries several providers in order and returns the
// first successful quote. Provider order encodes preference: the primary
// market-data feed first, the pink-sheet fallback last.
type Chain struct {
	sources []Source
	logger  *slog.Logger
}

// NewChain creates a Chain over the given providers. At least one provider is
// required.
func NewChain(logger *slog.Logger, sources ...Source) *Chain {
	return &Chain{
		sources: sources,
		logger:  logger.With(slog.String("component", "price_source")),
	}
}

// Name identifies the chain for logging.
func (c *Chain) Name() string {
	return "chain"
}

// Fetch tries each provider in order. A provider that does not cover the
// symbol (domain.ErrNotFound) is skipped silently; transient failures are
// logged and the next provider is tried. All errors are joined when every
// provider fails.
func (c *Chain) Fetch(ctx context.Context, symbol domain.CommoditySymbol, region domain.Region) (domain.PriceQuote, error) {
	var errs []error
	for _, src := range c.sources {
		quote, err := src.Fetch(ctx, symbol, region)
		if err == nil {
			return quote, nil
		}
		if ctx.Err() != nil {
			return domain.PriceQuote{}, ctx.Err()
		}
		if !errors.Is(err, domain.ErrNotFound) {
			c.logger.WarnContext(ctx, "provider fetch failed",
				slog.String("provider", src.Name()),
				slog.String("symbol", string(symbol)),
				slog.String("error", err.Error()),
			)
		}
		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
	}
	return domain.PriceQuote{}, errors.Join(errs...)
}

// Compile-time interface check.
var _ Source = (*Chain)(nil)
