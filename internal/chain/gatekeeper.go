// Package chain implements the settlement gatekeeper: before a trade is
// permitted, the user's on-chain token allowance for the prediction-market
// contract is checked against a minimum threshold.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/afrifutures/afrimarkets/internal/domain"
)

const erc20AllowanceABI = `[{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

// ContractCaller is the slice of the chain RPC surface the gatekeeper needs.
// *ethclient.Client satisfies it; tests inject a fake.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Config holds gatekeeper parameters.
type Config struct {
	// TokenAddress is the ERC-20 token (USDC) contract.
	TokenAddress string

	// SpenderAddress is the prediction-market contract that must be
	// approved to pull stakes.
	SpenderAddress string

	// MinAllowanceUnits is the approval threshold in the token's smallest
	// unit (6 decimals for USDC).
	MinAllowanceUnits int64

	// CallTimeout bounds every RPC call.
	CallTimeout time.Duration
}

// Gatekeeper checks token allowances. Results are recomputed on every check
// and never cached: allowances change out-of-band through direct approval
// transactions, so staleness is unacceptable here.
type Gatekeeper struct {
	caller  ContractCaller
	token   common.Address
	spender common.Address
	minimum *big.Int
	timeout time.Duration
	erc20   abi.ABI
	logger  *slog.Logger
}

// Dial connects to the chain RPC endpoint and returns a Gatekeeper over it.
func Dial(ctx context.Context, rpcURL string, cfg Config, logger *slog.Logger) (*Gatekeeper, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}
	return New(client, cfg, logger)
}

// New creates a Gatekeeper over an existing caller.
func New(caller ContractCaller, cfg Config, logger *slog.Logger) (*Gatekeeper, error) {
	if !common.IsHexAddress(cfg.TokenAddress) {
		return nil, fmt.Errorf("chain: invalid token address %q", cfg.TokenAddress)
	}
	if !common.IsHexAddress(cfg.SpenderAddress) {
		return nil, fmt.Errorf("chain: invalid spender address %q", cfg.SpenderAddress)
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 8 * time.Second
	}

	parsed, err := abi.JSON(strings.NewReader(erc20AllowanceABI))
	if err != nil {
		return nil, fmt.Errorf("chain: parse erc20 abi: %w", err)
	}

	return &Gatekeeper{
		caller:  caller,
		token:   common.HexToAddress(cfg.TokenAddress),
		spender: common.HexToAddress(cfg.SpenderAddress),
		minimum: big.NewInt(cfg.MinAllowanceUnits),
		timeout: cfg.CallTimeout,
		erc20:   parsed,
		logger:  logger.With(slog.String("component", "gatekeeper")),
	}, nil
}

// CheckAllowance queries the owner's current allowance for the configured
// spender and decides whether an approval transaction is needed first.
//
// On any upstream failure it fails open toward safety: a successful result
// with NeedsApproval=true and Verified=false. A chain outage must never block
// the UI, but an unverifiable allowance is never reported as sufficient.
func (g *Gatekeeper) CheckAllowance(ctx context.Context, ownerAddress string) (domain.AllowanceStatus, error) {
	status := domain.AllowanceStatus{
		Owner:           ownerAddress,
		Token:           g.token.Hex(),
		Spender:         g.spender.Hex(),
		MinimumRequired: new(big.Int).Set(g.minimum),
		NeedsApproval:   true,
	}

	if !common.IsHexAddress(ownerAddress) {
		return domain.AllowanceStatus{}, fmt.Errorf("chain: invalid owner address %q", ownerAddress)
	}
	owner := common.HexToAddress(ownerAddress)

	data, err := g.erc20.Pack("allowance", owner, g.spender)
	if err != nil {
		return domain.AllowanceStatus{}, fmt.Errorf("chain: pack allowance call: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.caller.CallContract(callCtx, ethereum.CallMsg{
		To:   &g.token,
		Data: data,
	}, nil)
	if err != nil {
		g.logger.WarnContext(ctx, "allowance call failed, failing open",
			slog.String("owner", ownerAddress),
			slog.String("error", err.Error()),
		)
		return status, nil
	}

	out, err := g.erc20.Unpack("allowance", raw)
	if err != nil || len(out) == 0 {
		g.logger.WarnContext(ctx, "allowance result malformed, failing open",
			slog.String("owner", ownerAddress),
		)
		return status, nil
	}
	allowance, ok := out[0].(*big.Int)
	if !ok {
		return status, nil
	}

	status.Allowance = allowance
	status.NeedsApproval = allowance.Cmp(g.minimum) < 0
	status.Verified = true
	return status, nil
}
