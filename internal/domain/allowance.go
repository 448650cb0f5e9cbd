package domain

import "math/big"

// AllowanceStatus is the result of an on-chain token allowance check.
// Ephemeral by contract: allowances can change out-of-band through direct
// approval transactions, so these results are recomputed on every check and
// never cached.
type AllowanceStatus struct {
	Owner           string   `json:"owner"`
	Token           string   `json:"token"`
	Spender         string   `json:"spender"`
	Allowance       *big.Int `json:"allowance"`
	MinimumRequired *big.Int `json:"minimumRequired"`
	NeedsApproval   bool     `json:"needsApproval"`

	// Verified is false when the chain could not be queried and the check
	// failed open (NeedsApproval forced true).
	Verified bool `json:"verified"`
}
