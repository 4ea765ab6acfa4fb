package contract_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sigweihq/traceledger/pkg/chains"
	"github.com/sigweihq/traceledger/pkg/contract"
	"github.com/sigweihq/traceledger/pkg/contract/contracttest"
	"github.com/sigweihq/traceledger/pkg/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSource hands out handles on a contracttest chain
type mockSource struct {
	chain    *contracttest.Chain
	signer   bool // best provider is a wallet signer
	noBest   bool // no wallet and the default pool is down
	readOnly bool // read-only pool answers
}

func (m *mockSource) GetBestProvider(ctx context.Context) (chains.Provider, error) {
	if m.noBest {
		return nil, errors.New("cannot connect to any Ethereum node")
	}
	if m.signer {
		return m.chain.Signer(ownerAddr), nil
	}
	return m.chain.Provider(), nil
}

func (m *mockSource) GetReadOnlyProvider(ctx context.Context, chainID int64) (chains.Provider, bool) {
	if !m.readOnly {
		return nil, false
	}
	return m.chain.Provider(), true
}

func newInvoker(source *mockSource, unit time.Duration) *contract.Invoker {
	inv := contract.NewInvoker(source.chain.Address(), contracttest.ChainID, source, slog.New(slog.NewTextHandler(io.Discard, nil)))
	inv.RetryUnit = unit
	return inv
}

func TestExecute_RetriesWithLinearBackoff(t *testing.T) {
	chain := contracttest.NewChain(ownerAddr)
	chain.FailNext("owner", 2)
	inv := newInvoker(&mockSource{chain: chain, signer: true}, 25*time.Millisecond)

	var attempts []time.Time
	owner, err := contract.Execute(context.Background(), inv, false, func(ctx context.Context, c *contract.Contract) (common.Address, error) {
		attempts = append(attempts, time.Now())
		return c.Owner(ctx)
	})
	require.NoError(t, err)
	assert.Equal(t, ownerAddr, owner)

	require.Len(t, attempts, 3, "succeeds by the third attempt")
	first := attempts[1].Sub(attempts[0])
	second := attempts[2].Sub(attempts[1])
	assert.GreaterOrEqual(t, first, 25*time.Millisecond)
	assert.GreaterOrEqual(t, second, first, "delays are non-decreasing")
	assert.Zero(t, chain.OpenHandles(), "every attempt closes its handle")
	assert.Equal(t, 3, chain.Handles(), "a fresh handle per attempt")
}

func TestExecute_UserRejectionIsNotRetried(t *testing.T) {
	chain := contracttest.NewChain(ownerAddr)
	inv := newInvoker(&mockSource{chain: chain, signer: true}, time.Millisecond)

	calls := 0
	_, err := contract.Execute(context.Background(), inv, true, func(ctx context.Context, c *contract.Contract) (struct{}, error) {
		calls++
		return struct{}{}, errors.New("user rejected transaction")
	})
	require.Error(t, err)
	assert.True(t, wallet.IsUserRejected(err))
	assert.Equal(t, 1, calls)
}

func TestExecute_SurfacesLastError(t *testing.T) {
	chain := contracttest.NewChain(ownerAddr)
	inv := newInvoker(&mockSource{chain: chain, signer: true}, time.Millisecond)

	calls := 0
	_, err := contract.Execute(context.Background(), inv, false, func(ctx context.Context, c *contract.Contract) (bool, error) {
		calls++
		return false, fmt.Errorf("timeout on attempt %d", calls)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.EqualError(t, err, "timeout on attempt 3")
}

func TestExecute_RevertIsNotRetried(t *testing.T) {
	chain := contracttest.NewChain(ownerAddr)
	inv := newInvoker(&mockSource{chain: chain, signer: true}, time.Millisecond)

	calls := 0
	_, err := contract.Execute(context.Background(), inv, true, func(ctx context.Context, c *contract.Contract) (struct{}, error) {
		calls++
		_, err := c.AddStep(ctx, "missing", "Warehouse", "Stored", 3)
		return struct{}{}, err
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	reason, ok := contract.RevertReason(err)
	require.True(t, ok)
	assert.Equal(t, "Product does not exist", reason)
}

func TestExecute_PossiblyBroadcastIsNotRetried(t *testing.T) {
	chain := contracttest.NewChain(ownerAddr)
	inv := newInvoker(&mockSource{chain: chain, signer: true}, time.Millisecond)

	sendErr := &wallet.BroadcastError{Hash: common.HexToHash("0xabc"), Err: errors.New("connection reset by peer")}
	calls := 0
	_, err := contract.Execute(context.Background(), inv, true, func(ctx context.Context, c *contract.Contract) (struct{}, error) {
		calls++
		return struct{}{}, sendErr
	})
	assert.ErrorIs(t, err, sendErr)
	assert.Equal(t, 1, calls, "a transaction that may be on the network is never sent again")
}

func TestGetContract(t *testing.T) {
	tests := []struct {
		name        string
		source      mockSource
		needsSigner bool
		wantErr     error
		wantSigner  bool
	}{
		{name: "signer for writes", source: mockSource{signer: true}, needsSigner: true, wantSigner: true},
		{name: "read-only provider cannot write", source: mockSource{readOnly: true}, needsSigner: true, wantErr: contract.ErrSignerRequired},
		{name: "no provider cannot write", source: mockSource{noBest: true, readOnly: true}, needsSigner: true, wantErr: contract.ErrSignerRequired},
		{name: "reads prefer connected provider", source: mockSource{signer: true}, wantSigner: true},
		{name: "reads fall back to pool", source: mockSource{noBest: true, readOnly: true}},
		{name: "no connection", source: mockSource{noBest: true}, wantErr: contract.ErrNoConnection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := contracttest.NewChain(ownerAddr)
			source := tt.source
			source.chain = chain
			inv := newInvoker(&source, time.Millisecond)

			c, err := inv.GetContract(context.Background(), tt.needsSigner)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, chain.OpenHandles())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSigner, c.CanSign())
			c.Close()
		})
	}
}

func TestExecute_SignerRequiredIsNotRetried(t *testing.T) {
	chain := contracttest.NewChain(ownerAddr)
	inv := newInvoker(&mockSource{chain: chain, readOnly: true}, time.Millisecond)

	calls := 0
	_, err := contract.Execute(context.Background(), inv, true, func(ctx context.Context, c *contract.Contract) (struct{}, error) {
		calls++
		return struct{}{}, nil
	})
	assert.ErrorIs(t, err, contract.ErrSignerRequired)
	assert.Zero(t, calls)
	assert.Equal(t, 1, chain.Handles())
}
