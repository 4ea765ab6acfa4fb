package evm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sigweihq/traceledger/pkg/chains"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider answers the liveness probe according to healthy
type mockProvider struct {
	endpoint string
	healthy  bool
	closed   bool
}

func (m *mockProvider) BlockNumber(ctx context.Context) (uint64, error) {
	if !m.healthy {
		return 0, errors.New("429 too many requests")
	}
	return 100, nil
}

func (m *mockProvider) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (m *mockProvider) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return nil, nil
}

func (m *mockProvider) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, nil
}

func (m *mockProvider) Close() {
	m.closed = true
}

// mockSigner is a healthy or unhealthy wallet connection
type mockSigner struct {
	mockProvider
}

func (m *mockSigner) Account() common.Address {
	return common.HexToAddress("0x1")
}

func (m *mockSigner) SendCall(ctx context.Context, to common.Address, data []byte) (*ethtypes.Transaction, error) {
	return nil, errors.New("not implemented")
}

func (m *mockSigner) WaitMined(ctx context.Context, tx *ethtypes.Transaction) (*ethtypes.Receipt, error) {
	return nil, errors.New("not implemented")
}

type mockInjected struct {
	signer *mockSigner
	err    error
}

func (m *mockInjected) Signer(ctx context.Context) (chains.SigningProvider, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.signer, nil
}

// mockNetwork records dials and serves providers by endpoint health
type mockNetwork struct {
	mu      sync.Mutex
	health  map[string]bool
	dialed  []string
	dialErr map[string]error
}

func (n *mockNetwork) dial(ctx context.Context, endpoint string) (chains.Provider, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dialed = append(n.dialed, endpoint)
	if err := n.dialErr[endpoint]; err != nil {
		return nil, err
	}
	return &mockProvider{endpoint: endpoint, healthy: n.health[endpoint]}, nil
}

func (n *mockNetwork) resetDials() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dialed = nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, network *mockNetwork, endpoints []string, opts ...ProviderManagerOption) (*ProviderManager, *chains.Pool) {
	t.Helper()
	registry := chains.NewRegistry()
	pool := chains.NewPool(1, endpoints)
	require.NoError(t, registry.Register(pool))
	opts = append([]ProviderManagerOption{WithDialer(network.dial), WithDefaultChainID(1)}, opts...)
	return NewProviderManager(registry, testLogger(), opts...), pool
}

func TestGetProvider_ReturnsFirstHealthyAndRemembersIt(t *testing.T) {
	network := &mockNetwork{health: map[string]bool{"a": false, "b": true, "c": true}}
	manager, pool := newTestManager(t, network, []string{"a", "b", "c"})

	provider, ok := manager.GetProvider(context.Background(), 1)
	require.True(t, ok)
	assert.Equal(t, "b", provider.(*mockProvider).endpoint)
	assert.Equal(t, 1, pool.Preferred())
	assert.Equal(t, []string{"a", "b"}, network.dialed)

	// The next call starts at the known-good endpoint instead of re-probing "a"
	network.resetDials()
	provider, ok = manager.GetProvider(context.Background(), 1)
	require.True(t, ok)
	assert.Equal(t, "b", provider.(*mockProvider).endpoint)
	assert.Equal(t, []string{"b"}, network.dialed)
}

func TestGetProvider_WrapsAroundOnce(t *testing.T) {
	network := &mockNetwork{health: map[string]bool{"a": true, "b": false, "c": false}}
	manager, pool := newTestManager(t, network, []string{"a", "b", "c"})
	pool.SetPreferred(1)

	provider, ok := manager.GetProvider(context.Background(), 1)
	require.True(t, ok)
	assert.Equal(t, "a", provider.(*mockProvider).endpoint)
	assert.Equal(t, []string{"b", "c", "a"}, network.dialed)
	assert.Equal(t, 0, pool.Preferred())
}

func TestGetProvider_SkipsDialFailures(t *testing.T) {
	network := &mockNetwork{
		health:  map[string]bool{"a": true, "b": true},
		dialErr: map[string]error{"a": errors.New("dial tcp: connection refused")},
	}
	manager, _ := newTestManager(t, network, []string{"a", "b"})

	provider, ok := manager.GetProvider(context.Background(), 1)
	require.True(t, ok)
	assert.Equal(t, "b", provider.(*mockProvider).endpoint)
}

func TestGetProvider_NoneAvailable(t *testing.T) {
	network := &mockNetwork{health: map[string]bool{}}
	manager, pool := newTestManager(t, network, []string{"a", "b"})
	pool.SetPreferred(1)

	provider, ok := manager.GetProvider(context.Background(), 1)
	assert.False(t, ok)
	assert.Nil(t, provider)
	assert.Len(t, network.dialed, 2, "each endpoint is probed exactly once")
	assert.Equal(t, 1, pool.Preferred(), "preferred index is untouched when nothing answers")
}

func TestGetProvider_UnknownChain(t *testing.T) {
	network := &mockNetwork{health: map[string]bool{"a": true}}
	manager, _ := newTestManager(t, network, []string{"a"})

	provider, ok := manager.GetProvider(context.Background(), 999)
	assert.False(t, ok)
	assert.Nil(t, provider)
	assert.Empty(t, network.dialed)
}

func TestGetReadOnlyProvider_DefaultsChain(t *testing.T) {
	network := &mockNetwork{health: map[string]bool{"a": true}}
	manager, _ := newTestManager(t, network, []string{"a"})

	provider, ok := manager.GetReadOnlyProvider(context.Background(), 0)
	require.True(t, ok)
	assert.Equal(t, "a", provider.(*mockProvider).endpoint)
}

func TestGetBestProvider(t *testing.T) {
	tests := []struct {
		name         string
		injected     *mockInjected
		poolHealthy  bool
		wantSigner   bool
		wantEndpoint string
		wantErr      bool
	}{
		{
			name:        "healthy wallet is preferred",
			injected:    &mockInjected{signer: &mockSigner{mockProvider{endpoint: "wallet", healthy: true}}},
			poolHealthy: true,
			wantSigner:  true,
		},
		{
			name:         "unhealthy wallet falls back to pool",
			injected:     &mockInjected{signer: &mockSigner{mockProvider{endpoint: "wallet", healthy: false}}},
			poolHealthy:  true,
			wantEndpoint: "a",
		},
		{
			name:         "wallet error falls back to pool",
			injected:     &mockInjected{err: errors.New("no accounts")},
			poolHealthy:  true,
			wantEndpoint: "a",
		},
		{
			name:         "no wallet uses pool",
			poolHealthy:  true,
			wantEndpoint: "a",
		},
		{
			name:        "wallet and pool both fail",
			injected:    &mockInjected{err: errors.New("no accounts")},
			poolHealthy: false,
			wantErr:     true,
		},
		{
			name:        "no wallet and pool fails",
			poolHealthy: false,
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			network := &mockNetwork{health: map[string]bool{"a": tt.poolHealthy}}
			var opts []ProviderManagerOption
			if tt.injected != nil {
				opts = append(opts, WithInjectedProvider(tt.injected))
			}
			manager, _ := newTestManager(t, network, []string{"a"}, opts...)

			provider, err := manager.GetBestProvider(context.Background())
			if tt.wantErr {
				var connErr *ConnectivityError
				require.ErrorAs(t, err, &connErr)
				assert.Equal(t, int64(1), connErr.ChainID)
				assert.Nil(t, provider)
				return
			}

			require.NoError(t, err)
			_, isSigner := provider.(chains.SigningProvider)
			assert.Equal(t, tt.wantSigner, isSigner)
			if tt.wantEndpoint != "" {
				assert.Equal(t, tt.wantEndpoint, provider.(*mockProvider).endpoint)
			}
			if tt.injected != nil && tt.injected.signer != nil && !tt.wantSigner {
				assert.True(t, tt.injected.signer.closed, "failed wallet handle is closed")
			}
		})
	}
}

func TestNewProviderManager_NilRegistryUsesGlobal(t *testing.T) {
	manager := NewProviderManager(nil, nil)
	assert.Same(t, chains.InitGlobalRegistry(), manager.Registry())
}

func TestReset_ForgetsPreferredEndpoints(t *testing.T) {
	network := &mockNetwork{health: map[string]bool{"a": false, "b": true}}
	manager, pool := newTestManager(t, network, []string{"a", "b"})

	_, ok := manager.GetProvider(context.Background(), 1)
	require.True(t, ok)
	assert.Equal(t, 1, pool.Preferred())

	manager.Reset()
	assert.Equal(t, 0, pool.Preferred())
}

func TestConnectivityError_Message(t *testing.T) {
	err := &ConnectivityError{ChainID: 1, Err: errors.New("wallet locked")}
	assert.Contains(t, err.Error(), "chain 1")
	assert.Contains(t, err.Error(), "wallet locked")
	assert.ErrorContains(t, errors.Unwrap(err), "wallet locked")
}
