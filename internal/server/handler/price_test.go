package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afrifutures/afrimarkets/internal/domain"
)

// fakeOracle resolves known symbols to a fixed price and fails the rest.
type fakeOracle struct {
	prices map[domain.CommoditySymbol]float64
}

func (f *fakeOracle) GetPrice(ctx context.Context, symbol domain.CommoditySymbol, region domain.Region) (domain.PriceQuote, error) {
	s, err := domain.ParseSymbol(string(symbol))
	if err != nil {
		return domain.PriceQuote{}, err
	}
	price, ok := f.prices[s]
	if !ok {
		return domain.PriceQuote{}, domain.ErrPriceUnavailable
	}
	return domain.PriceQuote{Symbol: s, Region: region, Price: price, Currency: "USD"}, nil
}

func (f *fakeOracle) GetPrices(ctx context.Context, symbols []domain.CommoditySymbol, region domain.Region) []domain.BatchQuote {
	out := make([]domain.BatchQuote, len(symbols))
	for i, s := range symbols {
		q, err := f.GetPrice(ctx, s, region)
		out[i] = domain.BatchQuote{Symbol: s, Quote: q, Err: err}
	}
	return out
}

func (f *fakeOracle) History(symbol domain.CommoditySymbol, region domain.Region) []domain.PriceQuote {
	return nil
}

func newPriceHandler() *PriceHandler {
	return NewPriceHandler(&fakeOracle{prices: map[domain.CommoditySymbol]float64{
		domain.SymbolTea:    2.45,
		domain.SymbolCoffee: 4.10,
	}}, discardLogger())
}

func TestGetPrice_OK(t *testing.T) {
	h := newPriceHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/price?symbol=tea&region=africa", nil)
	rec := httptest.NewRecorder()
	h.GetPrice(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var quote domain.PriceQuote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.Equal(t, domain.SymbolTea, quote.Symbol)
	assert.Equal(t, 2.45, quote.Price)
}

func TestGetPrice_UnknownSymbolIs400(t *testing.T) {
	h := newPriceHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/price?symbol=BOGUS", nil)
	rec := httptest.NewRecorder()
	h.GetPrice(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPrice_UnavailableIs503(t *testing.T) {
	h := newPriceHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/price?symbol=GOLD", nil)
	rec := httptest.NewRecorder()
	h.GetPrice(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetPrices_PreservesOrderWithPerEntryErrors(t *testing.T) {
	h := newPriceHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/prices?symbols=TEA,BOGUS,COFFEE", nil)
	rec := httptest.NewRecorder()
	h.GetPrices(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Quotes []batchQuoteEntry `json:"quotes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Quotes, 3)

	assert.Equal(t, "TEA", resp.Quotes[0].Symbol)
	require.NotNil(t, resp.Quotes[0].Quote)
	assert.Equal(t, 2.45, resp.Quotes[0].Quote.Price)
	assert.Empty(t, resp.Quotes[0].Error)

	assert.Equal(t, "BOGUS", resp.Quotes[1].Symbol)
	assert.Nil(t, resp.Quotes[1].Quote)
	assert.NotEmpty(t, resp.Quotes[1].Error)

	assert.Equal(t, "COFFEE", resp.Quotes[2].Symbol)
	require.NotNil(t, resp.Quotes[2].Quote)
	assert.Equal(t, 4.10, resp.Quotes[2].Quote.Price)
}

func TestGetPrices_MissingSymbolsIs400(t *testing.T) {
	h := newPriceHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/prices", nil)
	rec := httptest.NewRecorder()
	h.GetPrices(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPrices_BadRegionIs400(t *testing.T) {
	h := newPriceHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/prices?symbols=TEA&region=MARS", nil)
	rec := httptest.NewRecorder()
	h.GetPrices(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
