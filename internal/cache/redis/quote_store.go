package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/afrifutures/afrimarkets/internal/domain"
)

// quoteTTL bounds how long a persisted quote can serve as a stale fallback.
// Quotes older than this are not worth serving even marked stale.
const quoteTTL = 24 * time.Hour

// QuoteStore implements domain.QuoteStore using Redis. Each quote is stored
// as JSON at key "quote:{symbol}:{region}". The oracle writes through on
// every successful fetch and reads back only when its in-process cache is
// cold, so this layer makes stale-fallback survive restarts.
type QuoteStore struct {
	rdb *redis.Client
}

// NewQuoteStore creates a QuoteStore backed by the given Client.
func NewQuoteStore(c *Client) *QuoteStore {
	return &QuoteStore{rdb: c.Underlying()}
}

func quoteKey(symbol domain.CommoditySymbol, region domain.Region) string {
	return fmt.Sprintf("quote:%s:%s", symbol, region)
}

// Put persists the latest quote for its (symbol, region) key.
func (qs *QuoteStore) Put(ctx context.Context, quote domain.PriceQuote) error {
	payload, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("redis: marshal quote %s/%s: %w", quote.Symbol, quote.Region, err)
	}
	key := quoteKey(quote.Symbol, quote.Region)
	if err := qs.rdb.Set(ctx, key, payload, quoteTTL).Err(); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", key, err)
	}
	return nil
}

// Get retrieves the last persisted quote for a (symbol, region) key. It
// returns domain.ErrNotFound when no quote is stored.
func (qs *QuoteStore) Get(ctx context.Context, symbol domain.CommoditySymbol, region domain.Region) (domain.PriceQuote, error) {
	key := quoteKey(symbol, region)
	payload, err := qs.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.PriceQuote{}, domain.ErrNotFound
		}
		return domain.PriceQuote{}, fmt.Errorf("redis: get quote %s: %w", key, err)
	}

	var quote domain.PriceQuote
	if err := json.Unmarshal(payload, &quote); err != nil {
		return domain.PriceQuote{}, fmt.Errorf("redis: decode quote %s: %w", key, err)
	}
	return quote, nil
}

// Compile-time interface check.
var _ domain.QuoteStore = (*QuoteStore)(nil)
