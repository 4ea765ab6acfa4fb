package chains

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Provider is the read-only capability: chain queries and eth_call.
// *ethclient.Client satisfies it.
type Provider interface {
	// BlockNumber is the liveness probe used by the provider manager
	BlockNumber(ctx context.Context) (uint64, error)

	ChainID(ctx context.Context) (*big.Int, error)

	// CodeAt returns the bytecode at account, empty when nothing is deployed
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)

	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)

	Close()
}

// SigningProvider is the submit-and-sign capability. Only a wallet can hand one out.
type SigningProvider interface {
	Provider

	// Account is the address transactions are signed with
	Account() common.Address

	// SendCall signs and broadcasts a transaction carrying data to the given contract
	SendCall(ctx context.Context, to common.Address, data []byte) (*ethtypes.Transaction, error)

	// WaitMined blocks until the transaction is included and returns its receipt
	WaitMined(ctx context.Context, tx *ethtypes.Transaction) (*ethtypes.Receipt, error)
}

// Pool is the ordered list of fallback endpoints for one chain.
// The preferred index is only moved by the failover loop.
type Pool struct {
	chainID   int64
	endpoints []string
	preferred int
	mu        sync.RWMutex
}

// NewPool creates a pool that starts probing at the first endpoint
func NewPool(chainID int64, endpoints []string) *Pool {
	return &Pool{
		chainID:   chainID,
		endpoints: append([]string(nil), endpoints...),
	}
}

// ChainID returns the chain the pool serves
func (p *Pool) ChainID() int64 {
	return p.chainID
}

// Endpoints returns a copy of the endpoint list
func (p *Pool) Endpoints() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.endpoints...)
}

// Preferred returns the index of the last endpoint that passed a probe
func (p *Pool) Preferred() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.preferred
}

// SetPreferred remembers a known-good endpoint. Out-of-range indexes are ignored.
func (p *Pool) SetPreferred(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index >= 0 && index < len(p.endpoints) {
		p.preferred = index
	}
}

// ResetPreferred forgets the known-good endpoint
func (p *Pool) ResetPreferred() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.preferred = 0
}

// SetEndpoints replaces the endpoint list and resets the preferred index
func (p *Pool) SetEndpoints(endpoints []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endpoints = append([]string(nil), endpoints...)
	p.preferred = 0
}
