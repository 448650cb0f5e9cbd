package domain

import (
	"fmt"
	"strings"
	"time"
)

// StakeSide is the outcome a stake backs.
type StakeSide string

const (
	SideYes StakeSide = "YES"
	SideNo  StakeSide = "NO"
)

// ParseSide validates a raw side string (case-insensitive).
func ParseSide(raw string) (StakeSide, error) {
	switch StakeSide(strings.ToUpper(strings.TrimSpace(raw))) {
	case SideYes:
		return SideYes, nil
	case SideNo:
		return SideNo, nil
	default:
		return "", fmt.Errorf("%w: side %q", ErrInvalidStake, raw)
	}
}

// StakeEvent is one append-only ledger entry. Events are never deleted or
// edited; corrections are new offsetting events.
type StakeEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	MarketID  string    `json:"marketId"`
	Side      StakeSide `json:"side"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"createdAt"`
}

// LedgerAggregate is the derived view over all stake events. It is recomputed
// from a consistent snapshot on read, never stored directly.
type LedgerAggregate struct {
	TotalValueLocked float64 `json:"totalValueLocked"`
	ActiveStakers    int64   `json:"activeStakers"`
	AverageAPY       float64 `json:"averageAPY"`
}
