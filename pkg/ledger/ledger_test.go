package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sigweihq/traceledger/pkg/chains"
	"github.com/sigweihq/traceledger/pkg/chains/evm"
	"github.com/sigweihq/traceledger/pkg/contract/contracttest"
	"github.com/sigweihq/traceledger/pkg/types"
	"github.com/sigweihq/traceledger/pkg/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ownerAddr    = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	userA        = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	userB        = common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
	testEndpoint = []string{"http://node-a.invalid", "http://node-b.invalid"}
)

type mockVerifier struct {
	resp  *types.WalletVerifyResponse
	err   error
	calls []string
}

func (m *mockVerifier) VerifyWallet(ctx context.Context, addr string) (*types.WalletVerifyResponse, error) {
	m.calls = append(m.calls, addr)
	if m.err != nil {
		return nil, m.err
	}
	if m.resp == nil {
		return &types.WalletVerifyResponse{Success: true}, nil
	}
	return m.resp, nil
}

type mockContent struct {
	metadata *types.ContentMetadata
	err      error
	hashes   []string
}

func (m *mockContent) FetchMetadata(ctx context.Context, hash string) (*types.ContentMetadata, error) {
	m.hashes = append(m.hashes, hash)
	return m.metadata, m.err
}

type harness struct {
	chain     *contracttest.Chain
	wallet    *contracttest.Wallet
	registry  *chains.Registry
	providers *evm.ProviderManager
	queue     *Queue
	verifier  *mockVerifier
	client    *Client
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newHarness wires a Client to an in-memory chain. A nil accounts slice means no wallet.
func newHarness(t *testing.T, accounts []common.Address, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		chain:    contracttest.NewChain(ownerAddr),
		registry: chains.NewRegistry(),
		queue:    NewQueue(16),
		verifier: &mockVerifier{},
	}
	require.NoError(t, h.registry.Register(chains.NewPool(contracttest.ChainID, testEndpoint)))

	pmOpts := []evm.ProviderManagerOption{
		evm.WithDialer(h.chain.Dial),
		evm.WithDefaultChainID(contracttest.ChainID),
	}
	clientOpts := []Option{
		WithNotifier(h.queue),
		WithVerifier(h.verifier),
		WithLogger(discardLogger()),
		WithRetry(3, time.Millisecond),
	}
	if accounts != nil {
		h.wallet = h.chain.NewWallet(accounts...)
		pmOpts = append(pmOpts, evm.WithInjectedProvider(h.wallet))
		clientOpts = append(clientOpts, WithWallet(h.wallet))
	}
	h.providers = evm.NewProviderManager(h.registry, discardLogger(), pmOpts...)

	cfg := Config{
		ContractAddress:        h.chain.Address().Hex(),
		ChainID:                contracttest.ChainID,
		PermissionCheckTimeout: time.Second,
	}
	client, err := NewClient(cfg, h.providers, append(clientOpts, opts...)...)
	require.NoError(t, err)
	h.client = client
	return h
}

func (h *harness) connect(t *testing.T) types.WalletSession {
	t.Helper()
	sess, err := h.client.Connect(context.Background())
	require.NoError(t, err)
	return sess
}

func (h *harness) lastNotification(t *testing.T) Notification {
	t.Helper()
	items := h.queue.Drain()
	require.NotEmpty(t, items)
	return items[len(items)-1]
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", DefaultConfig("0x5FbDB2315678afecb367f032d93F642f64180aa3"), false},
		{"missing address", Config{ChainID: 1}, true},
		{"bad address", Config{ContractAddress: "0x1234", ChainID: 1}, true},
		{"bad chain", Config{ContractAddress: "0x5FbDB2315678afecb367f032d93F642f64180aa3"}, true},
		{"negative timeout", Config{ContractAddress: "0x5FbDB2315678afecb367f032d93F642f64180aa3", ChainID: 1, PermissionCheckTimeout: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewClient_RejectsInvalidConfig(t *testing.T) {
	_, err := NewClient(Config{}, evm.NewProviderManager(chains.NewRegistry(), discardLogger()))
	assert.Error(t, err)

	_, err = NewClient(DefaultConfig("0x5FbDB2315678afecb367f032d93F642f64180aa3"), nil)
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
		kind    error
	}{
		{
			name:    "revert reason wins",
			err:     errors.New("estimating gas: execution reverted: Not authorized"),
			message: "Not authorized",
		},
		{
			name:    "user rejected",
			err:     errors.New("MetaMask Tx Signature: user rejected transaction"),
			message: wallet.ErrUserRejected.Error(),
			kind:    wallet.ErrUserRejected,
		},
		{
			name:    "insufficient funds",
			err:     errors.New("insufficient funds for gas * price + value"),
			message: wallet.ErrInsufficientFunds.Error(),
			kind:    wallet.ErrInsufficientFunds,
		},
		{
			name:    "raw message",
			err:     errors.New("nonce too low"),
			message: "nonce too low",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmdErr := classify(OpCreateProduct, tt.err)
			assert.Equal(t, tt.message, cmdErr.Error())
			assert.Equal(t, OpCreateProduct, cmdErr.Op)
			assert.ErrorIs(t, cmdErr, tt.err)
			if tt.kind != nil {
				assert.ErrorIs(t, cmdErr, tt.kind)
			} else {
				assert.Nil(t, cmdErr.Kind)
			}
		})
	}
}

func TestQueue(t *testing.T) {
	q := NewQueue(2)
	q.Notify(Notification{Level: LevelInfo, Message: "one"})
	q.Notify(Notification{Level: LevelInfo, Message: "two"})
	q.Notify(Notification{Level: LevelError, Message: "three"})
	assert.Equal(t, 2, q.Len())

	items := q.Drain()
	require.Len(t, items, 2)
	assert.Equal(t, "two", items[0].Message)
	assert.Equal(t, "three", items[1].Message)
	assert.Zero(t, q.Len())
}
