package evm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sigweihq/traceledger/pkg/chains"
	"github.com/sigweihq/traceledger/pkg/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddChainlistEndpoints(t *testing.T) {
	var data []ChainListResponse
	require.NoError(t, json.Unmarshal([]byte(`[
		{"chainId": 1, "rpc": [
			{"url": "https://eth.example.org"},
			{"url": "http://insecure.example.org"},
			{"url": "https://mainnet.infura.io/v3/${INFURA_API_KEY}"},
			{"url": "https://rpc.ankr.com/eth"}
		]},
		{"chainId": 56, "rpc": [{"url": "https://bsc.example.org"}]}
	]`), &data))

	endpoints := map[int64][]string{1: {"https://rpc.ankr.com/eth"}}
	addChainlistEndpoints(endpoints, data)

	assert.Equal(t, []string{"https://rpc.ankr.com/eth", "https://eth.example.org"}, endpoints[1])
	_, added := endpoints[56]
	assert.False(t, added, "chains that were not requested are ignored")
}

func TestRefreshEndpoints_PrioritizesHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"chainId": constants.ChainIDLocalhost, "rpc": []map[string]string{{"url": "https://healthy.example.org"}}},
		})
	}))
	defer server.Close()

	network := &mockNetwork{health: map[string]bool{"https://healthy.example.org": true}}
	registry := chains.NewRegistry()
	provider := NewChainListEndpointProvider(registry, testLogger())
	provider.sourceURL = server.URL
	provider.httpClient = server.Client()
	provider.dial = network.dial

	err := provider.RefreshEndpoints(context.Background(), constants.ChainIDLocalhost)
	require.NoError(t, err)

	pool, err := registry.Get(constants.ChainIDLocalhost)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://healthy.example.org", "http://localhost:8545"}, pool.Endpoints())
}

func TestRefreshEndpoints_FetchFailureKeepsOfficialEndpoints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	network := &mockNetwork{health: map[string]bool{}}
	registry := chains.NewRegistry()
	existing := chains.NewPool(constants.ChainIDSepolia, []string{"https://stale.example.org"})
	require.NoError(t, registry.Register(existing))

	provider := NewChainListEndpointProvider(registry, testLogger())
	provider.sourceURL = server.URL
	provider.httpClient = server.Client()
	provider.dial = network.dial

	err := provider.RefreshEndpoints(context.Background(), constants.ChainIDSepolia)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "502")

	assert.Equal(t, constants.OfficialRPCEndpoints[constants.ChainIDSepolia], existing.Endpoints())
}
