package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrUnknownSymbol    = errors.New("unknown commodity symbol")
	ErrUnknownRegion    = errors.New("unknown region")
	ErrUnknownHorizon   = errors.New("unknown horizon")
	ErrUnknownMarket    = errors.New("unknown market")
	ErrInvalidStake     = errors.New("invalid stake")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrForecastFailed   = errors.New("forecast failed")
	ErrRateLimited      = errors.New("rate limited")
	ErrUnauthorized     = errors.New("unauthorized")
)
