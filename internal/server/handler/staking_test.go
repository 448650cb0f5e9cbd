package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afrifutures/afrimarkets/internal/domain"
)

// fakeLedger is a scriptable StakingService.
type fakeLedger struct {
	recordErr error
	agg       domain.LedgerAggregate
}

func (f *fakeLedger) RecordStake(ctx context.Context, userID, marketID string, side domain.StakeSide, amount float64) (domain.StakeEvent, error) {
	if f.recordErr != nil {
		return domain.StakeEvent{}, f.recordErr
	}
	return domain.StakeEvent{
		ID:       "3f1e2a60-0000-4000-8000-000000000001",
		UserID:   userID,
		MarketID: marketID,
		Side:     side,
		Amount:   amount,
	}, nil
}

func (f *fakeLedger) GetAggregate(ctx context.Context) (domain.LedgerAggregate, error) {
	return f.agg, nil
}

func (f *fakeLedger) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.StakeEvent, error) {
	return nil, nil
}

func (f *fakeLedger) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.StakeEvent, error) {
	return nil, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func postStake(t *testing.T, h *StakingHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/stakes", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.RecordStake(rec, req)
	return rec
}

func TestRecordStake_Created(t *testing.T) {
	h := NewStakingHandler(&fakeLedger{}, discardLogger())

	rec := postStake(t, h, `{"userId":"user-1","marketId":"tea-bop-q1","side":"YES","amount":100}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var event domain.StakeEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &event))
	assert.Equal(t, "user-1", event.UserID)
	assert.Equal(t, domain.SideYes, event.Side)
}

func TestRecordStake_BadBody(t *testing.T) {
	h := NewStakingHandler(&fakeLedger{}, discardLogger())
	rec := postStake(t, h, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordStake_BadSide(t *testing.T) {
	h := NewStakingHandler(&fakeLedger{}, discardLogger())
	rec := postStake(t, h, `{"userId":"u","marketId":"m","side":"MAYBE","amount":10}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordStake_ValidationErrorIs400(t *testing.T) {
	h := NewStakingHandler(&fakeLedger{recordErr: domain.ErrInvalidStake}, discardLogger())
	rec := postStake(t, h, `{"userId":"","marketId":"m","side":"NO","amount":10}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordStake_UnknownMarketIs404(t *testing.T) {
	h := NewStakingHandler(&fakeLedger{recordErr: domain.ErrUnknownMarket}, discardLogger())
	rec := postStake(t, h, `{"userId":"u","marketId":"nope","side":"NO","amount":10}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecordStake_StoreFailureIs503(t *testing.T) {
	h := NewStakingHandler(&fakeLedger{recordErr: errors.New("connection reset")}, discardLogger())
	rec := postStake(t, h, `{"userId":"u","marketId":"m","side":"NO","amount":10}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetAggregate_OK(t *testing.T) {
	h := NewStakingHandler(&fakeLedger{agg: domain.LedgerAggregate{
		TotalValueLocked: 2_400_000,
		ActiveStakers:    1194,
		AverageAPY:       12.4,
	}}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/staking/aggregate", nil)
	rec := httptest.NewRecorder()
	h.GetAggregate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var agg domain.LedgerAggregate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agg))
	assert.Equal(t, 2_400_000.0, agg.TotalValueLocked)
	assert.EqualValues(t, 1194, agg.ActiveStakers)
	assert.Equal(t, 12.4, agg.AverageAPY)
}
