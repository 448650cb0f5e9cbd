// Package ledger implements the staking ledger: an append-only stake event
// log with a derived aggregate view. Reads degrade to a fixed fallback when
// the backing store is unreachable; writes fail loudly so a stake is never
// silently dropped.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/afrifutures/afrimarkets/internal/domain"
)

// Fallback aggregate served when the event store is unreachable. These mirror
// the launch-period platform totals shown while the store is down.
var fallbackAggregate = domain.LedgerAggregate{
	TotalValueLocked: 2_400_000,
	ActiveStakers:    1194,
	AverageAPY:       12.4,
}

// YieldPolicy computes the effective APY over the ledger. The exact yield
// model is a policy decision, so it is pluggable rather than a constant baked
// into the service.
type YieldPolicy interface {
	AverageAPY(ctx context.Context, totalValueLocked float64, activeStakers int64) float64
}

// FixedYield is a YieldPolicy that returns a constant rate.
type FixedYield float64

// AverageAPY returns the fixed rate regardless of ledger state.
func (f FixedYield) AverageAPY(ctx context.Context, totalValueLocked float64, activeStakers int64) float64 {
	return float64(f)
}

// Service coordinates stake recording and aggregate computation.
type Service struct {
	stakes  domain.StakeStore
	markets domain.MarketStore
	yield   YieldPolicy
	now     func() time.Time
	logger  *slog.Logger
}

// New creates a ledger Service. clock may be nil, in which case time.Now is
// used.
func New(stakes domain.StakeStore, markets domain.MarketStore, yield YieldPolicy, clock func() time.Time, logger *slog.Logger) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		stakes:  stakes,
		markets: markets,
		yield:   yield,
		now:     clock,
		logger:  logger.With(slog.String("component", "ledger")),
	}
}

// RecordStake validates and appends exactly one immutable stake event.
//
// Non-positive amounts and unknown market IDs are validation failures. Store
// failures are surfaced to the caller as retryable errors: a write that did
// not durably land is never reported as recorded.
func (s *Service) RecordStake(ctx context.Context, userID, marketID string, side domain.StakeSide, amount float64) (domain.StakeEvent, error) {
	if userID == "" {
		return domain.StakeEvent{}, fmt.Errorf("%w: missing user id", domain.ErrInvalidStake)
	}
	if amount <= 0 {
		return domain.StakeEvent{}, fmt.Errorf("%w: amount must be positive, got %v", domain.ErrInvalidStake, amount)
	}
	if side != domain.SideYes && side != domain.SideNo {
		return domain.StakeEvent{}, fmt.Errorf("%w: side %q", domain.ErrInvalidStake, side)
	}

	market, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.StakeEvent{}, fmt.Errorf("%w: %q", domain.ErrUnknownMarket, marketID)
		}
		return domain.StakeEvent{}, fmt.Errorf("ledger: resolve market %q: %w", marketID, err)
	}
	if market.Status != domain.MarketStatusActive {
		return domain.StakeEvent{}, fmt.Errorf("%w: market %q is %s", domain.ErrInvalidStake, marketID, market.Status)
	}

	event := domain.StakeEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		MarketID:  marketID,
		Side:      side,
		Amount:    amount,
		CreatedAt: s.now().UTC(),
	}

	if err := s.stakes.Append(ctx, event); err != nil {
		return domain.StakeEvent{}, fmt.Errorf("ledger: append stake: %w", err)
	}

	s.logger.InfoContext(ctx, "stake recorded",
		slog.String("stake_id", event.ID),
		slog.String("market_id", marketID),
		slog.String("side", string(side)),
		slog.Float64("amount", amount),
	)
	return event, nil
}

// GetAggregate returns the derived ledger view computed from a consistent
// snapshot of all events. When the backing store is unreachable it returns
// the documented fallback triple instead of failing; the UI never blocks on
// a store outage.
func (s *Service) GetAggregate(ctx context.Context) (domain.LedgerAggregate, error) {
	total, stakers, err := s.stakes.Aggregate(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "aggregate query failed, serving fallback",
			slog.String("error", err.Error()),
		)
		return fallbackAggregate, nil
	}

	return domain.LedgerAggregate{
		TotalValueLocked: total,
		ActiveStakers:    stakers,
		AverageAPY:       s.yield.AverageAPY(ctx, total, stakers),
	}, nil
}

// ListByMarket returns the stake events recorded against one market, newest
// first. Unlike GetAggregate this is a plain read with no fallback: listing
// is a detail view, not a headline number.
func (s *Service) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.StakeEvent, error) {
	events, err := s.stakes.ListByMarket(ctx, marketID, opts)
	if err != nil {
		return nil, fmt.Errorf("ledger: list stakes for market %s: %w", marketID, err)
	}
	return events, nil
}

// ListByUser returns the stake events recorded by one user, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.StakeEvent, error) {
	events, err := s.stakes.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("ledger: list stakes for user %s: %w", userID, err)
	}
	return events, nil
}
