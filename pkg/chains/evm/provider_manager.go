package evm

import (
	"context"
	"log/slog"

	"github.com/sigweihq/traceledger/pkg/chains"
	"github.com/sigweihq/traceledger/pkg/constants"
)

// InjectedProvider is the connection a wallet hands out when one is present.
// wallet.Wallet implements it.
type InjectedProvider interface {
	Signer(ctx context.Context) (chains.SigningProvider, error)
}

// ProviderManager produces a working chain connection despite flaky or
// rate-limited endpoints. It prefers the injected wallet and falls back to
// the pooled JSON-RPC endpoints of the registry.
type ProviderManager struct {
	registry       *chains.Registry
	injected       InjectedProvider
	dial           Dialer
	defaultChainID int64
	logger         *slog.Logger
}

// ProviderManagerOption configures a ProviderManager
type ProviderManagerOption func(*ProviderManager)

// WithInjectedProvider sets the wallet-supplied provider preferred by GetBestProvider
func WithInjectedProvider(injected InjectedProvider) ProviderManagerOption {
	return func(m *ProviderManager) {
		m.injected = injected
	}
}

// WithDialer overrides how endpoint handles are opened
func WithDialer(dial Dialer) ProviderManagerOption {
	return func(m *ProviderManager) {
		m.dial = dial
	}
}

// WithDefaultChainID sets the chain GetBestProvider falls back to
func WithDefaultChainID(chainID int64) ProviderManagerOption {
	return func(m *ProviderManager) {
		m.defaultChainID = chainID
	}
}

// NewProviderManager creates a manager over the given registry.
// A nil registry selects the process-wide registry.
func NewProviderManager(registry *chains.Registry, logger *slog.Logger, opts ...ProviderManagerOption) *ProviderManager {
	if registry == nil {
		registry = chains.InitGlobalRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &ProviderManager{
		registry:       registry,
		dial:           DialProvider,
		defaultChainID: constants.DefaultChainID,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the registry the manager draws endpoints from
func (m *ProviderManager) Registry() *chains.Registry {
	return m.registry
}

// DefaultChainID returns the fallback chain
func (m *ProviderManager) DefaultChainID() int64 {
	return m.defaultChainID
}

// GetProvider returns a live provider for the chain, starting at the last
// known-good endpoint and wrapping around once. The second return value is
// false when no endpoint answered; unavailability is not an error.
func (m *ProviderManager) GetProvider(ctx context.Context, chainID int64) (chains.Provider, bool) {
	pool, err := m.registry.Get(chainID)
	if err != nil {
		m.logger.Debug("no endpoint pool for chain", "chainID", chainID)
		return nil, false
	}

	endpoints := pool.Endpoints()
	if len(endpoints) == 0 {
		return nil, false
	}

	startIdx := pool.Preferred()
	for i := 0; i < len(endpoints); i++ {
		if ctx.Err() != nil {
			return nil, false
		}

		// Wrap around using modulo for round-robin
		endpointIdx := (startIdx + i) % len(endpoints)
		endpoint := endpoints[endpointIdx]

		provider, err := m.dial(ctx, endpoint)
		if err != nil {
			m.logger.Warn("provider dial failed", "chainID", chainID, "index", endpointIdx, "error", err)
			continue
		}

		if err := Probe(ctx, provider); err != nil {
			provider.Close()
			m.logger.Warn("provider failed", "chainID", chainID, "index", endpointIdx, "error", err)
			continue
		}

		pool.SetPreferred(endpointIdx)
		m.logger.Debug("provider selected", "chainID", chainID, "index", endpointIdx)
		return provider, true
	}

	return nil, false
}

// GetReadOnlyProvider returns a pooled provider; chainID 0 selects the default chain
func (m *ProviderManager) GetReadOnlyProvider(ctx context.Context, chainID int64) (chains.Provider, bool) {
	if chainID == 0 {
		chainID = m.defaultChainID
	}
	return m.GetProvider(ctx, chainID)
}

// GetBestProvider prefers the injected wallet (the only path that can sign)
// and falls back to the default chain's pool. It fails with a
// *ConnectivityError only when both paths are exhausted.
func (m *ProviderManager) GetBestProvider(ctx context.Context) (chains.Provider, error) {
	var walletErr error
	if m.injected != nil {
		signer, err := m.injected.Signer(ctx)
		if err == nil {
			if err = Probe(ctx, signer); err == nil {
				return signer, nil
			}
			signer.Close()
		}
		walletErr = err
		m.logger.Warn("wallet provider failed, trying fallback", "error", err)
	}

	if provider, ok := m.GetProvider(ctx, m.defaultChainID); ok {
		return provider, nil
	}

	return nil, &ConnectivityError{ChainID: m.defaultChainID, Err: walletErr}
}

// Reset forgets every known-good endpoint. Called after a chain switch so no
// chain-scoped state survives it.
func (m *ProviderManager) Reset() {
	m.registry.ResetPreferred()
}
