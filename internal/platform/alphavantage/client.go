// Package alphavantage implements the primary price source adapter against
// the Alpha Vantage market-data API.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/afrifutures/afrimarkets/internal/domain"
)

const sourceName = "alphavantage"

// symbolMap maps commodity symbols to Alpha Vantage function symbols.
// Commodities without coverage are absent and resolve through the next
// provider in the chain.
var symbolMap = map[domain.CommoditySymbol]string{
	domain.SymbolCoffee: "COFFEE",
	domain.SymbolCocoa:  "COCOA",
	domain.SymbolWheat:  "WHEAT",
	domain.SymbolMaize:  "CORN",
}

// Client is the REST client for the Alpha Vantage API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new Alpha Vantage client.
//
// baseURL is the API root, e.g. "https://www.alphavantage.co".
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name identifies the provider for logging and quote attribution.
func (c *Client) Name() string {
	return sourceName
}

// Fetch returns the latest price for the given symbol. Symbols outside Alpha
// Vantage coverage (and all fetches when no API key is configured) return
// domain.ErrNotFound so the source chain moves on.
func (c *Client) Fetch(ctx context.Context, symbol domain.CommoditySymbol, region domain.Region) (domain.PriceQuote, error) {
	if c.apiKey == "" {
		return domain.PriceQuote{}, fmt.Errorf("%w: no api key", domain.ErrNotFound)
	}

	if symbol == domain.SymbolGold {
		return c.fetchGold(ctx, region)
	}

	code, ok := symbolMap[symbol]
	if !ok {
		return domain.PriceQuote{}, fmt.Errorf("%w: %s not covered", domain.ErrNotFound, symbol)
	}

	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	params.Set("symbol", code)
	params.Set("apikey", c.apiKey)

	body, err := c.doGet(ctx, "/query?"+params.Encode())
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("alphavantage: fetch %s: %w", symbol, err)
	}

	var resp struct {
		Series map[string]struct {
			Close string `json:"4. close"`
		} `json:"Time Series (Daily)"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.PriceQuote{}, fmt.Errorf("alphavantage: decode %s: %w", symbol, err)
	}
	if len(resp.Series) == 0 {
		return domain.PriceQuote{}, fmt.Errorf("alphavantage: empty series for %s", symbol)
	}

	// The latest trading day sorts last lexicographically (YYYY-MM-DD keys).
	var latest string
	for day := range resp.Series {
		if day > latest {
			latest = day
		}
	}
	price, err := strconv.ParseFloat(resp.Series[latest].Close, 64)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("alphavantage: parse close for %s: %w", symbol, err)
	}

	return quote(symbol, region, price), nil
}

// fetchGold uses the FX endpoint: gold trades as the XAU currency pair.
func (c *Client) fetchGold(ctx context.Context, region domain.Region) (domain.PriceQuote, error) {
	params := url.Values{}
	params.Set("function", "CURRENCY_EXCHANGE_RATE")
	params.Set("from_currency", "XAU")
	params.Set("to_currency", "USD")
	params.Set("apikey", c.apiKey)

	body, err := c.doGet(ctx, "/query?"+params.Encode())
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("alphavantage: fetch gold: %w", err)
	}

	var resp struct {
		Rate struct {
			ExchangeRate string `json:"5. Exchange Rate"`
		} `json:"Realtime Currency Exchange Rate"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.PriceQuote{}, fmt.Errorf("alphavantage: decode gold: %w", err)
	}
	rate, err := strconv.ParseFloat(resp.Rate.ExchangeRate, 64)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("alphavantage: parse gold rate: %w", err)
	}

	return quote(domain.SymbolGold, region, rate), nil
}

func quote(symbol domain.CommoditySymbol, region domain.Region, price float64) domain.PriceQuote {
	return domain.PriceQuote{
		Symbol:     symbol,
		Region:     region,
		Price:      math.Round(price*100) / 100,
		Currency:   "USD",
		ObservedAt: time.Now().UTC(),
		Source:     sourceName,
	}
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
