package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sigweihq/traceledger/pkg/chains"
	"github.com/sigweihq/traceledger/pkg/constants"
	"github.com/sigweihq/traceledger/pkg/utils"
)

// ChainListResponse represents a chain entry from chainlist.org/rpcs.json
type ChainListResponse struct {
	ChainID int `json:"chainId"`
	RPC     []struct {
		URL string `json:"url"`
	} `json:"rpc"`
}

// ChainListEndpointProvider extends registry pools with endpoints from
// chainlist.org and orders healthy endpoints first
type ChainListEndpointProvider struct {
	registry   *chains.Registry
	sourceURL  string
	httpClient *http.Client
	dial       Dialer
	logger     *slog.Logger
}

// NewChainListEndpointProvider creates a provider that fetches from chainlist.org
func NewChainListEndpointProvider(registry *chains.Registry, logger *slog.Logger) *ChainListEndpointProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChainListEndpointProvider{
		registry:   registry,
		sourceURL:  constants.ChainListURL,
		httpClient: utils.CreateHTTPClientWithTimeouts(),
		dial:       DialProvider,
		logger:     logger,
	}
}

// RefreshEndpoints rebuilds the pools of the given chains: official endpoints
// first, then chainlist.org endpoints, healthy ones ahead of unhealthy ones.
// If the chainlist fetch fails the pools keep the official endpoints and the
// error is returned.
func (p *ChainListEndpointProvider) RefreshEndpoints(ctx context.Context, chainIDs ...int64) error {
	endpoints := make(map[int64][]string, len(chainIDs))
	for _, chainID := range chainIDs {
		endpoints[chainID] = append([]string(nil), constants.OfficialRPCEndpoints[chainID]...)
	}

	chainListData, fetchErr := p.fetchAllChains(ctx)
	if fetchErr != nil {
		p.logger.Warn("failed to fetch from chainlist.org, using official endpoints only", "error", fetchErr)
	} else {
		addChainlistEndpoints(endpoints, chainListData)
	}

	for chainID, candidates := range endpoints {
		if len(candidates) == 0 {
			p.logger.Warn("no endpoints available for chain", "chainID", chainID)
			continue
		}
		ordered := p.healthCheckAndPrioritize(ctx, chainID, candidates)

		pool, err := p.registry.Get(chainID)
		if err != nil {
			pool = chains.NewPool(chainID, ordered)
			if err := p.registry.Register(pool); err != nil {
				return fmt.Errorf("failed to register pool for chain %d: %w", chainID, err)
			}
			continue
		}
		pool.SetEndpoints(ordered)
	}

	return fetchErr
}

// fetchAllChains fetches chain data from chainlist.org
func (p *ChainListEndpointProvider) fetchAllChains(ctx context.Context) ([]ChainListResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create chainlist request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chainlist data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chainlist.org returned status %d", resp.StatusCode)
	}

	var chainList []ChainListResponse
	limited := io.LimitReader(resp.Body, int64(constants.MaxResponseBodySize))
	if err := json.NewDecoder(limited).Decode(&chainList); err != nil {
		return nil, fmt.Errorf("failed to decode chainlist data: %w", err)
	}

	return chainList, nil
}

// addChainlistEndpoints appends HTTPS, non-templated, not-yet-known endpoints for the requested chains
func addChainlistEndpoints(endpoints map[int64][]string, chainListData []ChainListResponse) {
	for _, chain := range chainListData {
		chainID := int64(chain.ChainID)
		known, wanted := endpoints[chainID]
		if !wanted {
			continue
		}
		seen := make(map[string]bool, len(known))
		for _, endpoint := range known {
			seen[endpoint] = true
		}
		for _, rpc := range chain.RPC {
			// Only include HTTPS URLs and exclude templated URLs
			if strings.HasPrefix(rpc.URL, "https://") && !strings.Contains(rpc.URL, "${") && !seen[rpc.URL] {
				known = append(known, rpc.URL)
				seen[rpc.URL] = true
			}
		}
		endpoints[chainID] = known
	}
}

// healthCheckAndPrioritize checks endpoint health and puts working ones first
func (p *ChainListEndpointProvider) healthCheckAndPrioritize(ctx context.Context, chainID int64, endpoints []string) []string {
	var healthyEndpoints, unhealthyEndpoints []string
	for _, endpoint := range endpoints {
		if IsHealthy(ctx, p.dial, endpoint) {
			healthyEndpoints = append(healthyEndpoints, endpoint)
		} else {
			unhealthyEndpoints = append(unhealthyEndpoints, endpoint)
		}
	}

	p.logger.Debug("health check complete",
		"chainID", chainID,
		"healthy", len(healthyEndpoints),
		"unhealthy", len(unhealthyEndpoints))

	// Prioritize healthy endpoints first, then unhealthy as backup
	return append(healthyEndpoints, unhealthyEndpoints...)
}
