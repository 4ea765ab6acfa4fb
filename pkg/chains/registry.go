package chains

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sigweihq/traceledger/pkg/constants"
)

// Registry manages endpoint pools keyed by chain ID
type Registry struct {
	pools map[int64]*Pool
	mu    sync.RWMutex
}

var (
	globalRegistry     *Registry
	globalRegistryOnce sync.Once
)

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		pools: make(map[int64]*Pool),
	}
}

// NewDefaultRegistry creates a registry holding a pool for every chain in constants.OfficialRPCEndpoints
func NewDefaultRegistry() *Registry {
	registry := NewRegistry()
	for chainID, endpoints := range constants.OfficialRPCEndpoints {
		_ = registry.Register(NewPool(chainID, endpoints))
	}
	return registry
}

// InitGlobalRegistry lazily initializes the process-wide registry with the official endpoints
func InitGlobalRegistry() *Registry {
	globalRegistryOnce.Do(func() {
		globalRegistry = NewDefaultRegistry()
	})
	return globalRegistry
}

// Register adds a pool (uses pool.ChainID() as key).
// An existing pool for the same chain is replaced.
func (r *Registry) Register(pool *Pool) error {
	if pool == nil {
		return fmt.Errorf("cannot register nil pool")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.pools[pool.ChainID()] = pool
	return nil
}

// Get retrieves the pool for a chain
func (r *Registry) Get(chainID int64) (*Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pool, exists := r.pools[chainID]
	if !exists {
		return nil, fmt.Errorf("no endpoint pool registered for chain: %d", chainID)
	}

	return pool, nil
}

// GetSupportedChains returns the registered chain IDs in ascending order
func (r *Registry) GetSupportedChains() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chainIDs := make([]int64, 0, len(r.pools))
	for chainID := range r.pools {
		chainIDs = append(chainIDs, chainID)
	}
	sort.Slice(chainIDs, func(i, j int) bool { return chainIDs[i] < chainIDs[j] })
	return chainIDs
}

// IsSupported checks if a chain has a pool
func (r *Registry) IsSupported(chainID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.pools[chainID]
	return exists
}

// Unregister removes a pool (useful for testing)
func (r *Registry) Unregister(chainID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.pools, chainID)
}

// ResetPreferred forgets the known-good endpoint of every pool
func (r *Registry) ResetPreferred() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, pool := range r.pools {
		pool.ResetPreferred()
	}
}
