package contract

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sigweihq/traceledger/pkg/chains"
	"github.com/sigweihq/traceledger/pkg/constants"
	"github.com/sigweihq/traceledger/pkg/wallet"
)

// ProviderSource hands out provider handles. *evm.ProviderManager implements it.
type ProviderSource interface {
	GetBestProvider(ctx context.Context) (chains.Provider, error)
	GetReadOnlyProvider(ctx context.Context, chainID int64) (chains.Provider, bool)
}

// Invoker obtains a fresh contract handle per attempt and retries failed
// calls with linear backoff. User rejections are never retried.
type Invoker struct {
	address common.Address
	chainID int64
	source  ProviderSource
	logger  *slog.Logger

	// Retries is the number of attempts made by Execute
	Retries uint
	// RetryUnit is multiplied by the attempt number to get the delay before the next attempt
	RetryUnit time.Duration
}

func NewInvoker(address common.Address, chainID int64, source ProviderSource, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{
		address:   address,
		chainID:   chainID,
		source:    source,
		logger:    logger,
		Retries:   constants.DefaultRetries,
		RetryUnit: constants.RetryUnit,
	}
}

func (inv *Invoker) Address() common.Address {
	return inv.address
}

// GetContract returns a handle on the contract. With needsSigner the handle
// must be able to sign, otherwise ErrSignerRequired. Reads prefer the
// connected provider and fall back to the read-only pool, then ErrNoConnection.
func (inv *Invoker) GetContract(ctx context.Context, needsSigner bool) (*Contract, error) {
	provider, err := inv.source.GetBestProvider(ctx)
	if needsSigner {
		if err != nil {
			return nil, ErrSignerRequired
		}
		if _, ok := provider.(chains.SigningProvider); !ok {
			provider.Close()
			return nil, ErrSignerRequired
		}
		return New(inv.address, provider)
	}

	if err != nil {
		inv.logger.Debug("no connected provider, using read-only pool", "error", err)
		var ok bool
		provider, ok = inv.source.GetReadOnlyProvider(ctx, inv.chainID)
		if !ok {
			return nil, ErrNoConnection
		}
	}
	return New(inv.address, provider)
}

// Execute runs call against a fresh handle on every attempt, closing it
// afterwards, and returns the first success or the last error.
func Execute[T any](ctx context.Context, inv *Invoker, needsSigner bool, call func(ctx context.Context, c *Contract) (T, error)) (T, error) {
	attempts := inv.Retries
	if attempts == 0 {
		attempts = 1
	}

	attempt := 0
	operation := func() (T, error) {
		attempt++
		var zero T

		c, err := inv.GetContract(ctx, needsSigner)
		if err != nil {
			return zero, classifyAttempt(err)
		}
		defer c.Close()

		result, err := call(ctx, c)
		if err != nil {
			inv.logger.Warn("contract call attempt failed", "attempt", attempt, "of", attempts, "error", err)
			return zero, classifyAttempt(err)
		}
		return result, nil
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(&linearBackOff{unit: inv.RetryUnit}),
		backoff.WithMaxTries(attempts),
	)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return result, permanent.Err
		}
		return result, err
	}
	return result, nil
}

// classifyAttempt marks errors that another attempt cannot fix as permanent
func classifyAttempt(err error) error {
	var decodeErr *DecodeError
	var receiptErr *ReceiptError
	var broadcastErr *wallet.BroadcastError
	switch {
	case wallet.IsUserRejected(err),
		errors.Is(err, ErrSignerRequired),
		errors.Is(err, ErrContractNotDeployed),
		errors.As(err, &decodeErr),
		errors.As(err, &receiptErr),
		errors.As(err, &broadcastErr):
		return backoff.Permanent(err)
	}
	if _, reverted := RevertReason(err); reverted {
		return backoff.Permanent(err)
	}
	return err
}

// linearBackOff waits attempt × unit before each retry
type linearBackOff struct {
	unit    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.unit
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}
