package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/afrifutures/afrimarkets/internal/domain"
)

// StakingService defines the ledger surface the staking handler requires.
type StakingService interface {
	RecordStake(ctx context.Context, userID, marketID string, side domain.StakeSide, amount float64) (domain.StakeEvent, error)
	GetAggregate(ctx context.Context) (domain.LedgerAggregate, error)
	ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.StakeEvent, error)
	ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.StakeEvent, error)
}

// StakingHandler serves stake recording and ledger aggregate endpoints.
type StakingHandler struct {
	ledger StakingService
	logger *slog.Logger
}

// NewStakingHandler creates a StakingHandler.
func NewStakingHandler(ledger StakingService, logger *slog.Logger) *StakingHandler {
	return &StakingHandler{
		ledger: ledger,
		logger: logger,
	}
}

// recordStakeRequest is the POST /api/stakes request body.
type recordStakeRequest struct {
	UserID   string  `json:"userId"`
	MarketID string  `json:"marketId"`
	Side     string  `json:"side"`
	Amount   float64 `json:"amount"`
}

// RecordStake appends one stake event to the ledger.
// POST /api/stakes
func (h *StakingHandler) RecordStake(w http.ResponseWriter, r *http.Request) {
	var req recordStakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	side, err := domain.ParseSide(req.Side)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.ledger.RecordStake(r.Context(), req.UserID, req.MarketID, side, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidStake):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrUnknownMarket):
			writeError(w, http.StatusNotFound, "market not found")
		default:
			h.logger.ErrorContext(r.Context(), "handler: record stake failed",
				slog.String("market_id", req.MarketID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusServiceUnavailable, "stake not recorded, retry")
		}
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// GetAggregate returns the ledger-wide staking totals.
// GET /api/staking/aggregate
func (h *StakingHandler) GetAggregate(w http.ResponseWriter, r *http.Request) {
	agg, err := h.ledger.GetAggregate(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: aggregate failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute aggregate")
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// ListMarketStakes returns the stake events for one market.
// GET /api/markets/{id}/stakes?limit=50&offset=0
func (h *StakingHandler) ListMarketStakes(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	events, err := h.ledger.ListByMarket(r.Context(), id, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list market stakes failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list stakes")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"stakes": events})
}

// ListUserStakes returns the stake events recorded by one user.
// GET /api/users/{id}/stakes?limit=50&offset=0
func (h *StakingHandler) ListUserStakes(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	events, err := h.ledger.ListByUser(r.Context(), id, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list user stakes failed",
			slog.String("user_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list stakes")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"stakes": events})
}
