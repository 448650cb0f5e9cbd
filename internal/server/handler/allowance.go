package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/afrifutures/afrimarkets/internal/domain"
)

// AllowanceService defines the chain surface the allowance handler requires.
type AllowanceService interface {
	CheckAllowance(ctx context.Context, ownerAddress string) (domain.AllowanceStatus, error)
}

// AllowanceHandler serves the settlement-token allowance check.
type AllowanceHandler struct {
	chain  AllowanceService
	logger *slog.Logger
}

// NewAllowanceHandler creates an AllowanceHandler.
func NewAllowanceHandler(chain AllowanceService, logger *slog.Logger) *AllowanceHandler {
	return &AllowanceHandler{
		chain:  chain,
		logger: logger,
	}
}

// CheckAllowance reports whether a wallet has approved enough settlement
// tokens to stake. The on-chain read happens on every request; results are
// never cached.
// GET /api/allowance?address=0x...
func (h *AllowanceHandler) CheckAllowance(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "missing address parameter")
		return
	}

	status, err := h.chain.CheckAllowance(r.Context(), address)
	if err != nil {
		// Only malformed addresses reach here; RPC failures resolve to an
		// unverified needs-approval status instead of an error.
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, status)
}
