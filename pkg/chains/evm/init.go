package evm

import (
	"context"
	"log/slog"
	"time"

	"github.com/sigweihq/traceledger/pkg/chains"
)

// InitChains rebuilds the pools of chainIDs from the official endpoints plus
// chainlist.org, healthy endpoints first. With a positive refreshInterval the
// pools keep being refreshed in the background until ctx ends.
//
// A failed chainlist fetch is logged and the official endpoints are kept, so
// the returned error only reports a registry failure.
func InitChains(ctx context.Context, registry *chains.Registry, logger *slog.Logger, refreshInterval time.Duration, chainIDs ...int64) error {
	if logger == nil {
		logger = slog.Default()
	}
	provider := NewChainListEndpointProvider(registry, logger)
	return initChains(ctx, provider, logger, refreshInterval, chainIDs)
}

func initChains(ctx context.Context, provider *ChainListEndpointProvider, logger *slog.Logger, refreshInterval time.Duration, chainIDs []int64) error {
	if len(chainIDs) == 0 {
		return nil
	}

	if err := provider.RefreshEndpoints(ctx, chainIDs...); err != nil {
		logger.Warn("initial endpoint refresh failed, using official endpoints only", "error", err)
	}
	for _, chainID := range chainIDs {
		if !provider.registry.IsSupported(chainID) {
			logger.Warn("no endpoints available for chain", "chainID", chainID)
		}
	}

	if refreshInterval > 0 {
		go startBackgroundRefresh(ctx, logger, provider, refreshInterval, chainIDs)
	}
	return nil
}

// InitChainsWithEndpoints sets user-provided endpoints for each chain,
// replacing what the registry held
func InitChainsWithEndpoints(registry *chains.Registry, logger *slog.Logger, endpoints map[int64][]string) error {
	if logger == nil {
		logger = slog.Default()
	}

	for chainID, chainEndpoints := range endpoints {
		if len(chainEndpoints) == 0 {
			logger.Warn("no endpoints provided for chain", "chainID", chainID)
			continue
		}

		if pool, err := registry.Get(chainID); err == nil {
			pool.SetEndpoints(chainEndpoints)
			continue
		}
		if err := registry.Register(chains.NewPool(chainID, chainEndpoints)); err != nil {
			logger.Warn("failed to register pool", "chainID", chainID, "error", err)
		}
	}

	return nil
}

// startBackgroundRefresh refreshes the pools periodically until ctx ends
func startBackgroundRefresh(ctx context.Context, logger *slog.Logger, provider *ChainListEndpointProvider, interval time.Duration, chainIDs []int64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := provider.RefreshEndpoints(ctx, chainIDs...); err != nil {
				logger.Warn("background endpoint refresh failed", "error", err)
			}
		}
	}
}
