package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/afrifutures/afrimarkets/internal/domain"
)

// PriceService defines the methods that the price handler requires from the
// oracle. It is declared locally so the handler package does not depend on
// the concrete oracle implementation.
type PriceService interface {
	GetPrice(ctx context.Context, symbol domain.CommoditySymbol, region domain.Region) (domain.PriceQuote, error)
	GetPrices(ctx context.Context, symbols []domain.CommoditySymbol, region domain.Region) []domain.BatchQuote
	History(symbol domain.CommoditySymbol, region domain.Region) []domain.PriceQuote
}

// PriceHandler serves commodity price endpoints.
type PriceHandler struct {
	oracle PriceService
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler with the given oracle and logger.
func NewPriceHandler(oracle PriceService, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{
		oracle: oracle,
		logger: logger,
	}
}

// GetPrice returns the current quote for one commodity.
// GET /api/price?symbol=TEA&region=AFRICA
func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	symbol, err := domain.ParseSymbol(r.URL.Query().Get("symbol"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	region, err := queryRegion(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	quote, err := h.oracle.GetPrice(r.Context(), symbol, region)
	if err != nil {
		if errors.Is(err, domain.ErrPriceUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "price unavailable for "+string(symbol))
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get price failed",
			slog.String("symbol", string(symbol)),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get price")
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// batchQuoteEntry is one positional element of the batch price response.
type batchQuoteEntry struct {
	Symbol string             `json:"symbol"`
	Quote  *domain.PriceQuote `json:"quote,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// GetPrices resolves quotes for a comma-separated symbol list in one region.
// The response preserves request order; invalid or unresolvable symbols carry
// a per-entry error without failing the batch.
// GET /api/prices?symbols=TEA,COFFEE,COCOA&region=AFRICA
func (h *PriceHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("symbols")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing symbols parameter")
		return
	}
	region, err := queryRegion(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	parts := strings.Split(raw, ",")
	symbols := make([]domain.CommoditySymbol, len(parts))
	for i, p := range parts {
		// Unknown symbols flow through so the oracle reports them as
		// per-entry errors at their original position.
		symbols[i] = domain.CommoditySymbol(strings.ToUpper(strings.TrimSpace(p)))
	}

	results := h.oracle.GetPrices(r.Context(), symbols, region)

	entries := make([]batchQuoteEntry, len(results))
	for i, res := range results {
		entries[i] = batchQuoteEntry{Symbol: string(res.Symbol)}
		if res.Err != nil {
			entries[i].Error = res.Err.Error()
			continue
		}
		q := res.Quote
		entries[i].Quote = &q
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"region": region,
		"quotes": entries,
	})
}

// GetHistory returns the retained quote history for one commodity, oldest
// first. Serves only what the cache already holds.
// GET /api/price/history?symbol=TEA&region=AFRICA
func (h *PriceHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	symbol, err := domain.ParseSymbol(r.URL.Query().Get("symbol"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	region, err := queryRegion(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":  symbol,
		"region":  region,
		"history": h.oracle.History(symbol, region),
	})
}
