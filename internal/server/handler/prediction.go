package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/afrifutures/afrimarkets/internal/domain"
)

// PredictionService defines the forecasting surface the handler requires.
type PredictionService interface {
	Predict(ctx context.Context, symbol domain.CommoditySymbol, region domain.Region, horizon domain.Horizon, includeNarrative bool) (domain.Prediction, error)
}

// PredictionHandler serves the price-prediction endpoint.
type PredictionHandler struct {
	engine PredictionService
	logger *slog.Logger
}

// NewPredictionHandler creates a PredictionHandler.
func NewPredictionHandler(engine PredictionService, logger *slog.Logger) *PredictionHandler {
	return &PredictionHandler{
		engine: engine,
		logger: logger,
	}
}

// GetPrediction returns a model-generated price forecast for one commodity.
// The narrative is generated only when includeNarrative=true.
// GET /api/prediction?symbol=COFFEE&region=AFRICA&horizon=7d&includeNarrative=true
func (h *PredictionHandler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	symbol, err := domain.ParseSymbol(q.Get("symbol"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	region, err := queryRegion(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	horizon, err := domain.ParseHorizon(q.Get("horizon"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	includeNarrative := false
	if v := q.Get("includeNarrative"); v != "" {
		includeNarrative, _ = strconv.ParseBool(v)
	}

	pred, err := h.engine.Predict(r.Context(), symbol, region, horizon, includeNarrative)
	if err != nil {
		if errors.Is(err, domain.ErrPriceUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "no price available to forecast from")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: prediction failed",
			slog.String("symbol", string(symbol)),
			slog.String("horizon", string(horizon)),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to generate prediction")
		return
	}

	writeJSON(w, http.StatusOK, pred)
}
