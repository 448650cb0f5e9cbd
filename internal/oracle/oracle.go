// Package oracle implements the commodity price oracle: a time-bounded quote
// cache with single-flight upstream deduplication, stale-quote fallback, and
// bounded-parallelism batch lookups.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/afrifutures/afrimarkets/internal/domain"
)

// Source fetches a single (symbol, region) price from an upstream provider.
// Implementations live in internal/platform; Chain composes several of them.
type Source interface {
	Fetch(ctx context.Context, symbol domain.CommoditySymbol, region domain.Region) (domain.PriceQuote, error)
	Name() string
}

// Config controls cache freshness and fetch behaviour.
type Config struct {
	// FreshnessWindow is how long a cached quote is served without an
	// upstream call.
	FreshnessWindow time.Duration

	// FetchTimeout bounds every upstream fetch.
	FetchTimeout time.Duration

	// MaxParallelFetches bounds per-key fetch concurrency in GetPrices.
	MaxParallelFetches int

	// HistoryDepth is how many superseded quotes are retained per key for
	// the forecasting engine.
	HistoryDepth int

	// PublishChannel is the signal bus channel for quote updates. Empty
	// disables publishing.
	PublishChannel string

	// Clock overrides the time source in tests. Nil means time.Now.
	Clock func() time.Time
}

// entry is the cached state for one (symbol, region) key. The most recent
// quote sits at history[len-1].
type entry struct {
	quote     domain.PriceQuote
	fetchedAt time.Time
	history   []domain.PriceQuote
}

// Oracle resolves (symbol, region) pairs to live prices. It is safe for
// concurrent use; concurrent requests for the same stale key share a single
// upstream fetch.
type Oracle struct {
	source Source
	l2     domain.QuoteStore // optional, may be nil
	bus    domain.SignalBus  // optional, may be nil
	cfg    Config
	now    func() time.Time
	logger *slog.Logger

	flight singleflight.Group

	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates an Oracle over the given source. l2 and bus are optional and
// may be nil.
func New(source Source, l2 domain.QuoteStore, bus domain.SignalBus, cfg Config, logger *slog.Logger) *Oracle {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	if cfg.HistoryDepth < 1 {
		cfg.HistoryDepth = 1
	}
	if cfg.MaxParallelFetches < 1 {
		cfg.MaxParallelFetches = 1
	}
	return &Oracle{
		source:  source,
		l2:      l2,
		bus:     bus,
		cfg:     cfg,
		now:     now,
		logger:  logger.With(slog.String("component", "oracle")),
		entries: make(map[string]*entry),
	}
}

func cacheKey(symbol domain.CommoditySymbol, region domain.Region) string {
	return string(symbol) + ":" + string(region)
}

// GetPrice returns the current quote for a (symbol, region) pair. A cached
// quote younger than the freshness window is returned without an upstream
// call. A stale or missing key triggers exactly one upstream fetch regardless
// of concurrent caller count. On upstream failure the last known quote is
// served marked stale; with no known quote the lookup fails for this key
// only.
func (o *Oracle) GetPrice(ctx context.Context, symbol domain.CommoditySymbol, region domain.Region) (domain.PriceQuote, error) {
	if _, err := domain.ParseSymbol(string(symbol)); err != nil {
		return domain.PriceQuote{}, err
	}
	if _, err := domain.ParseRegion(string(region)); err != nil {
		return domain.PriceQuote{}, err
	}

	key := cacheKey(symbol, region)

	if q, ok := o.freshQuote(key); ok {
		return q, nil
	}

	v, err, _ := o.flight.Do(key, func() (any, error) {
		// A concurrent flight may have refreshed the entry while this
		// caller was queued on the flight lock.
		if q, ok := o.freshQuote(key); ok {
			return q, nil
		}
		return o.refresh(ctx, key, symbol, region)
	})
	if err != nil {
		return domain.PriceQuote{}, err
	}
	return v.(domain.PriceQuote), nil
}

// GetPrices resolves quotes for many symbols in one region. Results are
// positional: one element per input symbol, each carrying either a quote or
// that symbol's error. Per-key fetches run concurrently with bounded
// parallelism, and one symbol's failure never aborts the others.
func (o *Oracle) GetPrices(ctx context.Context, symbols []domain.CommoditySymbol, region domain.Region) []domain.BatchQuote {
	results := make([]domain.BatchQuote, len(symbols))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxParallelFetches)

	for i, symbol := range symbols {
		g.Go(func() error {
			q, err := o.GetPrice(ctx, symbol, region)
			results[i] = domain.BatchQuote{Symbol: symbol, Quote: q, Err: err}
			return nil // per-symbol errors stay in the result slice
		})
	}
	_ = g.Wait()

	return results
}

// History returns the retained quotes for a key, oldest first. The current
// quote is the last element. Used by the prediction engine as forecaster
// input; never triggers an upstream call.
func (o *Oracle) History(symbol domain.CommoditySymbol, region domain.Region) []domain.PriceQuote {
	o.mu.RLock()
	defer o.mu.RUnlock()

	e, ok := o.entries[cacheKey(symbol, region)]
	if !ok {
		return nil
	}
	out := make([]domain.PriceQuote, len(e.history))
	copy(out, e.history)
	return out
}

// freshQuote returns the cached quote for key if it is within the freshness
// window.
func (o *Oracle) freshQuote(key string) (domain.PriceQuote, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	e, ok := o.entries[key]
	if !ok {
		return domain.PriceQuote{}, false
	}
	if o.now().Sub(e.fetchedAt) >= o.cfg.FreshnessWindow {
		return domain.PriceQuote{}, false
	}
	return e.quote, true
}

// refresh performs the single in-flight upstream fetch for key and applies
// the fallback policy on failure. Called only from within the singleflight
// group, so at most one refresh per key runs at a time; the cache lock is
// never held across the upstream call.
func (o *Oracle) refresh(ctx context.Context, key string, symbol domain.CommoditySymbol, region domain.Region) (domain.PriceQuote, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
	defer cancel()

	quote, err := o.source.Fetch(fetchCtx, symbol, region)
	if err == nil {
		quote.Stale = false
		o.store(key, quote)
		o.writeThrough(ctx, quote)
		o.publish(ctx, quote)
		return quote, nil
	}

	o.logger.WarnContext(ctx, "upstream fetch failed",
		slog.String("symbol", string(symbol)),
		slog.String("region", string(region)),
		slog.String("source", o.source.Name()),
		slog.String("error", err.Error()),
	)

	// Serve the last known quote, marked stale.
	o.mu.RLock()
	e, ok := o.entries[key]
	o.mu.RUnlock()
	if ok {
		stale := e.quote
		stale.Stale = true
		return stale, nil
	}

	// Cold in-process cache: try the durable L2 before giving up.
	if o.l2 != nil {
		if q, l2err := o.l2.Get(ctx, symbol, region); l2err == nil {
			q.Stale = true
			return q, nil
		} else if !errors.Is(l2err, domain.ErrNotFound) {
			o.logger.WarnContext(ctx, "quote store lookup failed",
				slog.String("symbol", string(symbol)),
				slog.String("error", l2err.Error()),
			)
		}
	}

	return domain.PriceQuote{}, fmt.Errorf("%w: %s/%s: %v", domain.ErrPriceUnavailable, symbol, region, err)
}

// store records a freshly fetched quote and appends it to the key's history.
func (o *Oracle) store(key string, quote domain.PriceQuote) {
	o.mu.Lock()
	defer o.mu.Unlock()

	e, ok := o.entries[key]
	if !ok {
		e = &entry{}
		o.entries[key] = e
	}
	e.quote = quote
	e.fetchedAt = o.now()
	e.history = append(e.history, quote)
	if len(e.history) > o.cfg.HistoryDepth {
		e.history = e.history[len(e.history)-o.cfg.HistoryDepth:]
	}
}

func (o *Oracle) writeThrough(ctx context.Context, quote domain.PriceQuote) {
	if o.l2 == nil {
		return
	}
	if err := o.l2.Put(ctx, quote); err != nil {
		o.logger.WarnContext(ctx, "quote store write failed",
			slog.String("symbol", string(quote.Symbol)),
			slog.String("error", err.Error()),
		)
	}
}

func (o *Oracle) publish(ctx context.Context, quote domain.PriceQuote) {
	if o.bus == nil || o.cfg.PublishChannel == "" {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"event":      "quote",
		"symbol":     quote.Symbol,
		"region":     quote.Region,
		"price":      quote.Price,
		"currency":   quote.Currency,
		"source":     quote.Source,
		"observedAt": quote.ObservedAt.Format(time.RFC3339Nano),
	})
	if err := o.bus.Publish(ctx, o.cfg.PublishChannel, payload); err != nil {
		o.logger.WarnContext(ctx, "publish quote failed",
			slog.String("symbol", string(quote.Symbol)),
			slog.String("error", err.Error()),
		)
	}
}
