package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afrifutures/afrimarkets/internal/domain"
)

// fakeStakeStore is an in-memory append-only event store.
type fakeStakeStore struct {
	mu        sync.Mutex
	events    []domain.StakeEvent
	appendErr error
	aggErr    error
}

func (s *fakeStakeStore) Append(ctx context.Context, event domain.StakeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.events = append(s.events, event)
	return nil
}

func (s *fakeStakeStore) Aggregate(ctx context.Context) (float64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aggErr != nil {
		return 0, 0, s.aggErr
	}
	var total float64
	users := make(map[string]bool)
	for _, e := range s.events {
		total += e.Amount
		users[e.UserID] = true
	}
	return total, int64(len(users)), nil
}

func (s *fakeStakeStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.StakeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.StakeEvent
	for _, e := range s.events {
		if e.MarketID == marketID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStakeStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.StakeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.StakeEvent
	for _, e := range s.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// fakeMarketStore serves a fixed market set.
type fakeMarketStore struct {
	markets map[string]domain.Market
}

func (s *fakeMarketStore) Upsert(ctx context.Context, market domain.Market) error {
	s.markets[market.ID] = market
	return nil
}

func (s *fakeMarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *fakeMarketStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	var out []domain.Market
	for _, m := range s.markets {
		if m.Status == domain.MarketStatusActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeMarketStore) Count(ctx context.Context) (int64, error) {
	return int64(len(s.markets)), nil
}

func newTestService(stakes domain.StakeStore, markets domain.MarketStore) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return New(stakes, markets, FixedYield(12.4), clock, logger)
}

func activeMarkets() *fakeMarketStore {
	return &fakeMarketStore{markets: map[string]domain.Market{
		"tea-bop-q1": {ID: "tea-bop-q1", Status: domain.MarketStatusActive},
		"closed-mkt": {ID: "closed-mkt", Status: domain.MarketStatusClosed},
	}}
}

func TestRecordStake_Success(t *testing.T) {
	store := &fakeStakeStore{}
	svc := newTestService(store, activeMarkets())

	event, err := svc.RecordStake(context.Background(), "user-1", "tea-bop-q1", domain.SideYes, 150)
	require.NoError(t, err)

	_, err = uuid.Parse(event.ID)
	assert.NoError(t, err, "event id must be a valid uuid")
	assert.Equal(t, "user-1", event.UserID)
	assert.Equal(t, domain.SideYes, event.Side)
	assert.Equal(t, 150.0, event.Amount)
	assert.Len(t, store.events, 1)
}

func TestRecordStake_RejectsMissingUser(t *testing.T) {
	svc := newTestService(&fakeStakeStore{}, activeMarkets())

	_, err := svc.RecordStake(context.Background(), "", "tea-bop-q1", domain.SideYes, 100)
	assert.ErrorIs(t, err, domain.ErrInvalidStake)
}

func TestRecordStake_RejectsNonPositiveAmount(t *testing.T) {
	svc := newTestService(&fakeStakeStore{}, activeMarkets())

	for _, amount := range []float64{0, -5} {
		_, err := svc.RecordStake(context.Background(), "user-1", "tea-bop-q1", domain.SideNo, amount)
		assert.ErrorIs(t, err, domain.ErrInvalidStake)
	}
}

func TestRecordStake_RejectsUnknownMarket(t *testing.T) {
	svc := newTestService(&fakeStakeStore{}, activeMarkets())

	_, err := svc.RecordStake(context.Background(), "user-1", "no-such-market", domain.SideYes, 100)
	assert.ErrorIs(t, err, domain.ErrUnknownMarket)
}

func TestRecordStake_RejectsInactiveMarket(t *testing.T) {
	svc := newTestService(&fakeStakeStore{}, activeMarkets())

	_, err := svc.RecordStake(context.Background(), "user-1", "closed-mkt", domain.SideYes, 100)
	assert.ErrorIs(t, err, domain.ErrInvalidStake)
}

func TestRecordStake_AppendFailureIsLoud(t *testing.T) {
	store := &fakeStakeStore{appendErr: errors.New("connection reset")}
	svc := newTestService(store, activeMarkets())

	_, err := svc.RecordStake(context.Background(), "user-1", "tea-bop-q1", domain.SideYes, 100)
	require.Error(t, err)
	assert.Empty(t, store.events)
}

func TestRecordStake_UniqueEventIDs(t *testing.T) {
	store := &fakeStakeStore{}
	svc := newTestService(store, activeMarkets())

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		event, err := svc.RecordStake(context.Background(), "user-1", "tea-bop-q1", domain.SideNo, 10)
		require.NoError(t, err)
		assert.False(t, seen[event.ID])
		seen[event.ID] = true
	}
}

func TestRecordStake_ConcurrentWritesAllLand(t *testing.T) {
	store := &fakeStakeStore{}
	svc := newTestService(store, activeMarkets())

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordStake(context.Background(), "user-1", "tea-bop-q1", domain.SideYes, 5)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	agg, err := svc.GetAggregate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(writers)*5, agg.TotalValueLocked)
}

func TestGetAggregate_ComputesFromEvents(t *testing.T) {
	store := &fakeStakeStore{}
	svc := newTestService(store, activeMarkets())

	_, err := svc.RecordStake(context.Background(), "user-1", "tea-bop-q1", domain.SideYes, 100)
	require.NoError(t, err)
	_, err = svc.RecordStake(context.Background(), "user-2", "tea-bop-q1", domain.SideNo, 250)
	require.NoError(t, err)

	agg, err := svc.GetAggregate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 350.0, agg.TotalValueLocked)
	assert.EqualValues(t, 2, agg.ActiveStakers)
	assert.Equal(t, 12.4, agg.AverageAPY)
}

func TestGetAggregate_FallbackOnStoreFailure(t *testing.T) {
	store := &fakeStakeStore{aggErr: errors.New("connection refused")}
	svc := newTestService(store, activeMarkets())

	agg, err := svc.GetAggregate(context.Background())
	require.NoError(t, err, "aggregate reads degrade, they do not fail")
	assert.Equal(t, 2_400_000.0, agg.TotalValueLocked)
	assert.EqualValues(t, 1194, agg.ActiveStakers)
	assert.Equal(t, 12.4, agg.AverageAPY)
}

func TestListByMarket_FiltersEvents(t *testing.T) {
	store := &fakeStakeStore{}
	markets := activeMarkets()
	markets.markets["coffee-q1"] = domain.Market{ID: "coffee-q1", Status: domain.MarketStatusActive}
	svc := newTestService(store, markets)

	_, err := svc.RecordStake(context.Background(), "user-1", "tea-bop-q1", domain.SideYes, 100)
	require.NoError(t, err)
	_, err = svc.RecordStake(context.Background(), "user-1", "coffee-q1", domain.SideYes, 50)
	require.NoError(t, err)

	events, err := svc.ListByMarket(context.Background(), "tea-bop-q1", domain.ListOpts{Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "tea-bop-q1", events[0].MarketID)
}
