package evm

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sigweihq/traceledger/pkg/chains"
	"github.com/sigweihq/traceledger/pkg/constants"
)

// Dialer opens a provider handle for an endpoint. Handles are cheap and are
// re-created per use; only probe results are cached.
type Dialer func(ctx context.Context, endpoint string) (chains.Provider, error)

// DialProvider is the default Dialer backed by ethclient
func DialProvider(ctx context.Context, endpoint string) (chains.Provider, error) {
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, &RPCError{Endpoint: endpoint, Err: err}
	}
	return client, nil
}

// Probe performs the cheap liveness check (current block height) on a provider
func Probe(ctx context.Context, provider chains.Provider) error {
	ctx, cancel := context.WithTimeout(ctx, constants.ProbeTimeout)
	defer cancel()

	if _, err := provider.BlockNumber(ctx); err != nil {
		return fmt.Errorf("liveness probe failed: %w", err)
	}
	return nil
}

// IsHealthy dials an endpoint and probes it
func IsHealthy(ctx context.Context, dial Dialer, endpoint string) bool {
	provider, err := dial(ctx, endpoint)
	if err != nil {
		return false
	}
	defer provider.Close()

	return Probe(ctx, provider) == nil
}
