package domain

import "time"

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusActive  MarketStatus = "active"
	MarketStatusClosed  MarketStatus = "closed"
	MarketStatusSettled MarketStatus = "settled"
)

// Market is a binary-outcome contract on a commodity price threshold.
// Read-mostly reference data; stakes attach to it by ID.
type Market struct {
	ID               string          `json:"id"`
	Question         string          `json:"question"`
	Commodity        CommoditySymbol `json:"commodity"`
	Region           Region          `json:"region"`
	YesPrice         float64         `json:"yesPrice"`
	NoPrice          float64         `json:"noPrice"`
	Volume           float64         `json:"volume"`
	ParticipantCount int             `json:"participantCount"`
	Deadline         time.Time       `json:"deadline"`
	Description      string          `json:"description"`
	Status           MarketStatus    `json:"status"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}
