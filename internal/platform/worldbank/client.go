// Package worldbank implements the fallback price source adapter against the
// World Bank pink-sheet commodity price API. It is free and keyless, so it
// covers every supported symbol as the chain's last resort.
package worldbank

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/afrifutures/afrimarkets/internal/domain"
)

const sourceName = "worldbank"

// indicatorMap maps commodity symbols to pink-sheet indicator codes. Some
// symbols use a proxy indicator (fruits for avocado, nuts for macadamia).
var indicatorMap = map[domain.CommoditySymbol]string{
	domain.SymbolCoffee:    "PCOFFOTM", // Coffee, Other Mild Arabicas
	domain.SymbolCocoa:     "PCOCO",
	domain.SymbolTea:       "PTEA",
	domain.SymbolGold:      "PGOLD",
	domain.SymbolAvocado:   "PFRUVT", // fruits proxy
	domain.SymbolMacadamia: "PNUTS",  // nuts proxy
	domain.SymbolWheat:     "PWHEAMT",
	domain.SymbolMaize:     "PMAIZMT",
}

// Client is the REST client for the World Bank indicator API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new World Bank client.
//
// baseURL is the API root, e.g. "https://api.worldbank.org/v2".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name identifies the provider for logging and quote attribution.
func (c *Client) Name() string {
	return sourceName
}

// Fetch returns the most recent monthly pink-sheet value for the symbol.
func (c *Client) Fetch(ctx context.Context, symbol domain.CommoditySymbol, region domain.Region) (domain.PriceQuote, error) {
	indicator, ok := indicatorMap[symbol]
	if !ok {
		return domain.PriceQuote{}, fmt.Errorf("%w: %s not covered", domain.ErrNotFound, symbol)
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("mrv", "1") // most recent value only

	path := fmt.Sprintf("/country/all/indicator/%s?%s", url.PathEscape(indicator), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("worldbank: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("worldbank: fetch %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.PriceQuote{}, fmt.Errorf("worldbank: fetch %s: unexpected status %d", symbol, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("worldbank: read body: %w", err)
	}

	// The API returns a two-element array: [pagination metadata, data points].
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.PriceQuote{}, fmt.Errorf("worldbank: decode %s: %w", symbol, err)
	}
	if len(raw) < 2 {
		return domain.PriceQuote{}, fmt.Errorf("worldbank: malformed response for %s", symbol)
	}

	var points []struct {
		Value *float64 `json:"value"`
		Date  string   `json:"date"`
	}
	if err := json.Unmarshal(raw[1], &points); err != nil {
		return domain.PriceQuote{}, fmt.Errorf("worldbank: decode points for %s: %w", symbol, err)
	}
	if len(points) == 0 || points[0].Value == nil {
		return domain.PriceQuote{}, fmt.Errorf("worldbank: no value for %s", symbol)
	}

	return domain.PriceQuote{
		Symbol:     symbol,
		Region:     region,
		Price:      math.Round(*points[0].Value*100) / 100,
		Currency:   "USD",
		ObservedAt: time.Now().UTC(),
		Source:     sourceName,
	}, nil
}
