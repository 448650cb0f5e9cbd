// Package domain defines the core types and the store/cache interfaces of the
// afrimarkets backend. Concrete implementations live in internal/store,
// internal/cache, and internal/platform.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// CommoditySymbol identifies a tradable agricultural commodity.
type CommoditySymbol string

const (
	SymbolTea       CommoditySymbol = "TEA"
	SymbolCoffee    CommoditySymbol = "COFFEE"
	SymbolCocoa     CommoditySymbol = "COCOA"
	SymbolAvocado   CommoditySymbol = "AVOCADO"
	SymbolMacadamia CommoditySymbol = "MACADAMIA"
	SymbolGold      CommoditySymbol = "GOLD"
	SymbolWheat     CommoditySymbol = "WHEAT"
	SymbolMaize     CommoditySymbol = "MAIZE"
)

// Symbols lists every supported commodity symbol.
var Symbols = []CommoditySymbol{
	SymbolTea, SymbolCoffee, SymbolCocoa, SymbolAvocado,
	SymbolMacadamia, SymbolGold, SymbolWheat, SymbolMaize,
}

// ParseSymbol validates a raw symbol string (case-insensitive). Unknown
// symbols are rejected, never coerced.
func ParseSymbol(raw string) (CommoditySymbol, error) {
	s := CommoditySymbol(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range Symbols {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSymbol, raw)
}

// Region identifies the market region a quote refers to.
type Region string

const (
	RegionAfrica Region = "AFRICA"
	RegionLatam  Region = "LATAM"
	RegionGlobal Region = "GLOBAL"
)

// Regions lists every supported region.
var Regions = []Region{RegionAfrica, RegionLatam, RegionGlobal}

// ParseRegion validates a raw region string (case-insensitive).
func ParseRegion(raw string) (Region, error) {
	r := Region(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range Regions {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRegion, raw)
}

// Horizon is a fixed forecasting window.
type Horizon string

const (
	Horizon1D  Horizon = "1d"
	Horizon3D  Horizon = "3d"
	Horizon7D  Horizon = "7d"
	Horizon14D Horizon = "14d"
)

// Horizons lists every supported forecasting horizon.
var Horizons = []Horizon{Horizon1D, Horizon3D, Horizon7D, Horizon14D}

// ParseHorizon validates a raw horizon string. An unsupported horizon is a
// request-validation failure, not a forecasting failure.
func ParseHorizon(raw string) (Horizon, error) {
	h := Horizon(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Horizons {
		if h == known {
			return h, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownHorizon, raw)
}

// Duration returns the calendar length of the horizon.
func (h Horizon) Duration() time.Duration {
	switch h {
	case Horizon1D:
		return 24 * time.Hour
	case Horizon3D:
		return 3 * 24 * time.Hour
	case Horizon7D:
		return 7 * 24 * time.Hour
	case Horizon14D:
		return 14 * 24 * time.Hour
	default:
		return 0
	}
}
