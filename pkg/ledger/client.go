// Package ledger is the product traceability client: it gates wallet
// connections, guards and submits write commands and serves read queries
// over the traceability contract.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sigweihq/traceledger/pkg/chains/evm"
	"github.com/sigweihq/traceledger/pkg/constants"
	"github.com/sigweihq/traceledger/pkg/contract"
	"github.com/sigweihq/traceledger/pkg/types"
	"github.com/sigweihq/traceledger/pkg/wallet"
)

// Verifier checks that a wallet belongs to the logged-in backend user.
// *backendclient.AuthClient implements it.
type Verifier interface {
	VerifyWallet(ctx context.Context, wallet string) (*types.WalletVerifyResponse, error)
}

// ContentFetcher resolves a product's content hash. *content.Gateway implements it.
type ContentFetcher interface {
	FetchMetadata(ctx context.Context, hash string) (*types.ContentMetadata, error)
}

// Client runs traceability operations for one user
type Client struct {
	cfg       Config
	address   common.Address
	wallet    wallet.Wallet
	providers *evm.ProviderManager
	invoker   *contract.Invoker
	verifier  Verifier
	content   ContentFetcher
	notifier  Notifier
	logger    *slog.Logger

	retries   uint
	retryUnit time.Duration

	mu      sync.RWMutex
	session types.WalletSession
}

// Option configures a Client
type Option func(*Client)

// WithWallet sets the injected wallet. The same wallet should be given to
// the ProviderManager with evm.WithInjectedProvider.
func WithWallet(w wallet.Wallet) Option {
	return func(c *Client) {
		c.wallet = w
	}
}

// WithVerifier sets the backend wallet verification. Without one the
// verification step is skipped.
func WithVerifier(v Verifier) Option {
	return func(c *Client) {
		c.verifier = v
	}
}

func WithContent(f ContentFetcher) Option {
	return func(c *Client) {
		c.content = f
	}
}

func WithNotifier(n Notifier) Option {
	return func(c *Client) {
		c.notifier = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRetry overrides the invoker's attempt count and backoff unit
func WithRetry(retries uint, unit time.Duration) Option {
	return func(c *Client) {
		c.retries = retries
		c.retryUnit = unit
	}
}

func NewClient(cfg Config, providers *evm.ProviderManager, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.PermissionCheckTimeout == 0 {
		cfg.PermissionCheckTimeout = constants.PermissionCheckTimeout
	}
	if providers == nil {
		return nil, errors.New("provider manager is required")
	}

	address := common.HexToAddress(cfg.ContractAddress)
	c := &Client{
		cfg:       cfg,
		address:   address,
		providers: providers,
		notifier:  NewQueue(constants.NotificationQueueSize),
		logger:    slog.Default(),
		retries:   constants.DefaultRetries,
		retryUnit: constants.RetryUnit,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	c.invoker = contract.NewInvoker(address, cfg.ChainID, providers, c.logger)
	c.invoker.Retries = c.retries
	c.invoker.RetryUnit = c.retryUnit
	return c, nil
}

// Session returns the current wallet session
func (c *Client) Session() types.WalletSession {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Notifier returns where user-facing notifications go
func (c *Client) Notifier() Notifier {
	return c.notifier
}

func (c *Client) notify(level Level, msg string) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(Notification{Level: level, Message: msg, Time: time.Now()})
}
