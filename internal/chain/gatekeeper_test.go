package chain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken   = "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582"
	testSpender = "0x000000000000000000000000000000000000dEaD"
	testOwner   = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"
)

// fakeCaller returns a canned uint256 or an error, and records calls.
type fakeCaller struct {
	allowance *big.Int
	err       error
	calls     int
}

func (f *fakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return common.LeftPadBytes(f.allowance.Bytes(), 32), nil
}

func newTestGatekeeper(t *testing.T, caller ContractCaller) *Gatekeeper {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	g, err := New(caller, Config{
		TokenAddress:      testToken,
		SpenderAddress:    testSpender,
		MinAllowanceUnits: 1_000_000_000, // 1000 USDC at 6 decimals
	}, logger)
	require.NoError(t, err)
	return g
}

func TestCheckAllowance_BelowMinimumNeedsApproval(t *testing.T) {
	g := newTestGatekeeper(t, &fakeCaller{allowance: big.NewInt(500_000_000)})

	status, err := g.CheckAllowance(context.Background(), testOwner)
	require.NoError(t, err)
	assert.True(t, status.NeedsApproval)
	assert.True(t, status.Verified)
	assert.Equal(t, int64(500_000_000), status.Allowance.Int64())
}

func TestCheckAllowance_ExactMinimumIsSufficient(t *testing.T) {
	g := newTestGatekeeper(t, &fakeCaller{allowance: big.NewInt(1_000_000_000)})

	status, err := g.CheckAllowance(context.Background(), testOwner)
	require.NoError(t, err)
	assert.False(t, status.NeedsApproval)
	assert.True(t, status.Verified)
}

func TestCheckAllowance_AboveMinimumIsSufficient(t *testing.T) {
	g := newTestGatekeeper(t, &fakeCaller{allowance: big.NewInt(5_000_000_000)})

	status, err := g.CheckAllowance(context.Background(), testOwner)
	require.NoError(t, err)
	assert.False(t, status.NeedsApproval)
}

func TestCheckAllowance_RPCFailureFailsOpen(t *testing.T) {
	g := newTestGatekeeper(t, &fakeCaller{err: errors.New("rpc timeout")})

	status, err := g.CheckAllowance(context.Background(), testOwner)
	require.NoError(t, err, "chain outage must not surface as an error")
	assert.True(t, status.NeedsApproval)
	assert.False(t, status.Verified)
	assert.Nil(t, status.Allowance)
}

func TestCheckAllowance_InvalidOwnerRejected(t *testing.T) {
	caller := &fakeCaller{allowance: big.NewInt(0)}
	g := newTestGatekeeper(t, caller)

	_, err := g.CheckAllowance(context.Background(), "not-an-address")
	require.Error(t, err)
	assert.Equal(t, 0, caller.calls)
}

func TestCheckAllowance_NeverCached(t *testing.T) {
	caller := &fakeCaller{allowance: big.NewInt(0)}
	g := newTestGatekeeper(t, caller)

	for i := 0; i < 3; i++ {
		_, err := g.CheckAllowance(context.Background(), testOwner)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, caller.calls)
}

func TestNew_RejectsBadAddresses(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := New(&fakeCaller{}, Config{
		TokenAddress:      "nope",
		SpenderAddress:    testSpender,
		MinAllowanceUnits: 1,
	}, logger)
	assert.Error(t, err)

	_, err = New(&fakeCaller{}, Config{
		TokenAddress:      testToken,
		SpenderAddress:    "",
		MinAllowanceUnits: 1,
	}, logger)
	assert.Error(t, err)
}
