package domain

import (
	"context"
	"io"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// MarketStore persists the market catalog.
type MarketStore interface {
	Upsert(ctx context.Context, market Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	ListActive(ctx context.Context, opts ListOpts) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// StakeStore persists the append-only stake event ledger.
type StakeStore interface {
	// Append records exactly one immutable event. The append is atomic with
	// respect to concurrent appends.
	Append(ctx context.Context, event StakeEvent) error

	// Aggregate computes the derived ledger view from a consistent snapshot
	// of all events: a stake is either fully counted or not counted.
	Aggregate(ctx context.Context) (total float64, stakers int64, err error)

	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]StakeEvent, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]StakeEvent, error)
}

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus provides pub/sub for realtime fan-out (quote updates to the
// WebSocket hub).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (<-chan []byte, error)
}

// QuoteStore is a durable second-level quote cache. The oracle writes through
// on every successful fetch and consults it for stale-fallback when its
// in-process cache is cold (for example right after a restart).
type QuoteStore interface {
	Put(ctx context.Context, quote PriceQuote) error
	Get(ctx context.Context, symbol CommoditySymbol, region Region) (PriceQuote, error)
}
