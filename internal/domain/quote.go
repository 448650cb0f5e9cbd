package domain

import "time"

// PriceQuote is a single observed price for a (symbol, region) pair.
// Quotes are immutable once produced: a fresher fetch supersedes the cached
// quote, it never mutates it.
type PriceQuote struct {
	Symbol     CommoditySymbol `json:"symbol"`
	Region     Region          `json:"region"`
	Price      float64         `json:"price"`
	Currency   string          `json:"currency"`
	ObservedAt time.Time       `json:"observedAt"`
	Source     string          `json:"source"`

	// Stale marks a quote served from cache past its freshness window
	// because the upstream fetch failed.
	Stale bool `json:"stale,omitempty"`
}

// BatchQuote is one positional element of a batch price lookup. Exactly one
// of Quote/Err is meaningful: failed symbols carry their error without
// aborting the rest of the batch.
type BatchQuote struct {
	Symbol CommoditySymbol
	Quote  PriceQuote
	Err    error
}
