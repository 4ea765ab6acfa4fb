package contracttest

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sigweihq/traceledger/pkg/chains"
	"github.com/sigweihq/traceledger/pkg/wallet"
)

// Wallet is an injected wallet connected to a Chain
type Wallet struct {
	chain *Chain

	mu        sync.Mutex
	accounts  []common.Address
	chainID   int64
	reject    bool
	signerErr error
	requests  int
	closed    bool
	events    chan wallet.Event
}

// NewWallet returns a wallet exposing accounts, the first being active
func (c *Chain) NewWallet(accounts ...common.Address) *Wallet {
	return &Wallet{
		chain:    c,
		accounts: accounts,
		chainID:  ChainID,
		events:   make(chan wallet.Event, 16),
	}
}

func (w *Wallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.requests++
	if w.reject {
		return nil, errors.New("MetaMask: User rejected the request.")
	}
	return append([]common.Address(nil), w.accounts...), nil
}

func (w *Wallet) Signer(ctx context.Context) (chains.SigningProvider, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.signerErr != nil {
		return nil, w.signerErr
	}
	if len(w.accounts) == 0 {
		return nil, errors.New("no accounts connected")
	}
	return w.chain.Signer(w.accounts[0]), nil
}

func (w *Wallet) ChainID(ctx context.Context) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chainID, nil
}

func (w *Wallet) Events() <-chan wallet.Event {
	return w.events
}

// Requests returns how many account requests the wallet received
func (w *Wallet) Requests() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.requests
}

// RejectAccounts makes the account prompt decline
func (w *Wallet) RejectAccounts(reject bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reject = reject
}

// FailSigner makes Signer fail with err; nil restores it
func (w *Wallet) FailSigner(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.signerErr = err
}

// SwitchAccounts replaces the exposed accounts and emits AccountsChanged
func (w *Wallet) SwitchAccounts(accounts ...common.Address) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.accounts = accounts
	w.emit(wallet.Event{Kind: wallet.AccountsChanged, Accounts: append([]common.Address(nil), accounts...)})
}

// SwitchChain emits ChainChanged
func (w *Wallet) SwitchChain(chainID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chainID = chainID
	w.emit(wallet.Event{Kind: wallet.ChainChanged, ChainID: chainID})
}

func (w *Wallet) emit(ev wallet.Event) {
	if !w.closed {
		w.events <- ev
	}
}

// Close closes the Events channel
func (w *Wallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.events)
	}
}

var _ wallet.Wallet = (*Wallet)(nil)
