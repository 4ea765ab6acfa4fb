package evm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sigweihq/traceledger/pkg/chains"
	"github.com/sigweihq/traceledger/pkg/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitChainsWithEndpoints(t *testing.T) {
	registry := chains.NewRegistry()
	existing := chains.NewPool(constants.ChainIDSepolia, []string{"https://old.example.org"})
	require.NoError(t, registry.Register(existing))

	err := InitChainsWithEndpoints(registry, testLogger(), map[int64][]string{
		constants.ChainIDSepolia:   {"https://new.example.org"},
		constants.ChainIDLocalhost: {"http://127.0.0.1:8545"},
		constants.ChainIDMainnet:   {},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://new.example.org"}, existing.Endpoints())

	local, err := registry.Get(constants.ChainIDLocalhost)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://127.0.0.1:8545"}, local.Endpoints())

	assert.False(t, registry.IsSupported(constants.ChainIDMainnet), "empty endpoint lists are skipped")
}

func TestInitChains_RefreshesInBackground(t *testing.T) {
	var fetches atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		json.NewEncoder(w).Encode([]ChainListResponse{})
	}))
	defer server.Close()

	network := &mockNetwork{health: map[string]bool{}}
	registry := chains.NewRegistry()
	provider := NewChainListEndpointProvider(registry, testLogger())
	provider.sourceURL = server.URL
	provider.httpClient = server.Client()
	provider.dial = network.dial

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, initChains(ctx, provider, testLogger(), 10*time.Millisecond, []int64{constants.ChainIDLocalhost}))
	assert.True(t, registry.IsSupported(constants.ChainIDLocalhost))

	assert.Eventually(t, func() bool { return fetches.Load() >= 3 }, time.Second, 5*time.Millisecond)

	cancel()
	time.Sleep(30 * time.Millisecond)
	settled := fetches.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, fetches.Load(), "refresh stops with the context")
}

func TestInitChains_NoChains(t *testing.T) {
	registry := chains.NewRegistry()
	require.NoError(t, InitChains(context.Background(), registry, nil, 0))
	assert.Empty(t, registry.GetSupportedChains())
}
