package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/afrifutures/afrimarkets/internal/domain"
)

// StakeStore implements domain.StakeStore using PostgreSQL. The stake_events
// table is append-only: this store exposes no update or delete path.
type StakeStore struct {
	pool *pgxpool.Pool
}

// NewStakeStore creates a new StakeStore backed by the given connection pool.
func NewStakeStore(pool *pgxpool.Pool) *StakeStore {
	return &StakeStore{pool: pool}
}

const stakeSelectCols = `id, user_id, market_id, side, amount, created_at`

func scanStakeRows(rows pgx.Rows) ([]domain.StakeEvent, error) {
	var events []domain.StakeEvent
	for rows.Next() {
		var e domain.StakeEvent
		var side string
		if err := rows.Scan(&e.ID, &e.UserID, &e.MarketID, &side, &e.Amount, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Side = domain.StakeSide(side)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Append records exactly one immutable stake event. The single INSERT is
// atomic with respect to concurrent appends; the primary key rejects
// duplicate IDs.
func (s *StakeStore) Append(ctx context.Context, event domain.StakeEvent) error {
	const query = `
		INSERT INTO stake_events (id, user_id, market_id, side, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, query,
		event.ID, event.UserID, event.MarketID,
		string(event.Side), event.Amount, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append stake %s: %w", event.ID, err)
	}
	return nil
}

// Aggregate computes the total staked value and distinct staker count in a
// single statement, so the result reflects one snapshot of the table:
// concurrent in-flight appends are either fully counted or not counted.
func (s *StakeStore) Aggregate(ctx context.Context) (float64, int64, error) {
	const query = `
		SELECT COALESCE(SUM(amount), 0), COUNT(DISTINCT user_id)
		FROM stake_events`

	var total float64
	var stakers int64
	if err := s.pool.QueryRow(ctx, query).Scan(&total, &stakers); err != nil {
		return 0, 0, fmt.Errorf("postgres: aggregate stakes: %w", err)
	}
	return total, stakers, nil
}

// ListByMarket returns stake events for a market, newest first.
func (s *StakeStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.StakeEvent, error) {
	return s.list(ctx, "market_id", marketID, opts)
}

// ListByUser returns stake events for a user, newest first.
func (s *StakeStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.StakeEvent, error) {
	return s.list(ctx, "user_id", userID, opts)
}

func (s *StakeStore) list(ctx context.Context, column, value string, opts domain.ListOpts) ([]domain.StakeEvent, error) {
	query := `SELECT ` + stakeSelectCols + ` FROM stake_events WHERE ` + column + ` = $1 ORDER BY created_at DESC`
	args := []any{value}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list stakes by %s: %w", column, err)
	}
	defer rows.Close()

	events, err := scanStakeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan stakes by %s: %w", column, err)
	}
	return events, nil
}

// Compile-time interface check.
var _ domain.StakeStore = (*StakeStore)(nil)
