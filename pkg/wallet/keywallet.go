package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sigweihq/traceledger/pkg/chains"
)

const eventBufferSize = 16

var (
	_ Wallet                  = (*KeyWallet)(nil)
	_ chains.SigningProvider = (*KeySigner)(nil)
)

// BackendDialer opens a node connection and returns the function that releases it
type BackendDialer func(ctx context.Context, endpoint string) (Backend, func(), error)

// DialBackend is the default BackendDialer backed by ethclient
func DialBackend(ctx context.Context, endpoint string) (Backend, func(), error) {
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("dialing %s: %w", endpoint, err)
	}
	return client, client.Close, nil
}

// KeyWallet is a Wallet holding local keys and talking to one node endpoint,
// the way a browser extension holds keys and talks to its configured network.
type KeyWallet struct {
	mu       sync.RWMutex
	keys     []*ecdsa.PrivateKey
	active   int
	endpoint string
	chainID  int64
	closed   bool

	events  chan Event
	dial    BackendDialer
	approve ApproveFunc
	logger  *slog.Logger
}

// KeyWalletOption configures a KeyWallet
type KeyWalletOption func(*KeyWallet)

// WithApproval sets the confirmation prompt for account and transaction requests
func WithApproval(fn ApproveFunc) KeyWalletOption {
	return func(w *KeyWallet) {
		w.approve = fn
	}
}

// WithBackendDialer overrides how node connections are opened
func WithBackendDialer(dial BackendDialer) KeyWalletOption {
	return func(w *KeyWallet) {
		w.dial = dial
	}
}

func WithLogger(logger *slog.Logger) KeyWalletOption {
	return func(w *KeyWallet) {
		w.logger = logger
	}
}

// NewKeyWallet creates a wallet over keys; the first key is the active account
func NewKeyWallet(endpoint string, chainID int64, keys []*ecdsa.PrivateKey, opts ...KeyWalletOption) (*KeyWallet, error) {
	if len(keys) == 0 {
		return nil, errors.New("at least one key is required")
	}
	w := &KeyWallet{
		keys:     keys,
		endpoint: endpoint,
		chainID:  chainID,
		events:   make(chan Event, eventBufferSize),
		dial:     DialBackend,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w, nil
}

// accounts returns the addresses with the active one first. Caller holds mu.
func (w *KeyWallet) accounts() []common.Address {
	addrs := make([]common.Address, 0, len(w.keys))
	addrs = append(addrs, crypto.PubkeyToAddress(w.keys[w.active].PublicKey))
	for i, key := range w.keys {
		if i != w.active {
			addrs = append(addrs, crypto.PubkeyToAddress(key.PublicKey))
		}
	}
	return addrs
}

func (w *KeyWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if w.approve != nil {
		if err := w.approve(ctx, Request{Method: MethodRequestAccounts}); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUserRejected, err)
		}
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.accounts(), nil
}

func (w *KeyWallet) Signer(ctx context.Context) (chains.SigningProvider, error) {
	w.mu.RLock()
	key, endpoint, chainID := w.keys[w.active], w.endpoint, w.chainID
	w.mu.RUnlock()

	backend, closer, err := w.dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	return NewKeySigner(backend, key, chainID,
		WithApprove(w.approve),
		WithCloser(closer),
		WithSignerLogger(w.logger),
	), nil
}

func (w *KeyWallet) ChainID(ctx context.Context) (int64, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.chainID, nil
}

func (w *KeyWallet) Events() <-chan Event {
	return w.events
}

// SwitchAccount makes the key at index active and emits AccountsChanged
func (w *KeyWallet) SwitchAccount(index int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if index < 0 || index >= len(w.keys) {
		return fmt.Errorf("account index %d out of range", index)
	}
	w.active = index
	w.emit(Event{Kind: AccountsChanged, Accounts: w.accounts()})
	return nil
}

// SwitchChain points the wallet at another network and emits ChainChanged
func (w *KeyWallet) SwitchChain(chainID int64, endpoint string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.chainID = chainID
	w.endpoint = endpoint
	w.emit(Event{Kind: ChainChanged, ChainID: chainID})
}

// emit delivers ev without blocking. Caller holds mu.
func (w *KeyWallet) emit(ev Event) {
	if w.closed {
		return
	}
	select {
	case w.events <- ev:
	default:
		w.logger.Warn("wallet event dropped, listener is not keeping up", "event", ev.Kind.String())
	}
}

// Close stops event delivery and closes the Events channel
func (w *KeyWallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true
	close(w.events)
}
