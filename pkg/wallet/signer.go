package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sigweihq/traceledger/pkg/constants"
)

// Backend is the node surface a KeySigner needs. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// KeySigner signs and submits transactions for one account with a local key.
// It implements chains.SigningProvider.
type KeySigner struct {
	backend      Backend
	key          *ecdsa.PrivateKey
	account      common.Address
	chainID      *big.Int
	approve      ApproveFunc
	closer       func()
	pollInterval time.Duration
	logger       *slog.Logger
}

// SignerOption configures a KeySigner
type SignerOption func(*KeySigner)

// WithApprove gates every transaction behind fn
func WithApprove(fn ApproveFunc) SignerOption {
	return func(s *KeySigner) {
		s.approve = fn
	}
}

// WithCloser sets the function that releases the backend on Close
func WithCloser(fn func()) SignerOption {
	return func(s *KeySigner) {
		s.closer = fn
	}
}

// WithPollInterval sets the initial receipt poll interval
func WithPollInterval(d time.Duration) SignerOption {
	return func(s *KeySigner) {
		s.pollInterval = d
	}
}

// WithSignerLogger sets the logger
func WithSignerLogger(logger *slog.Logger) SignerOption {
	return func(s *KeySigner) {
		s.logger = logger
	}
}

func NewKeySigner(backend Backend, key *ecdsa.PrivateKey, chainID int64, opts ...SignerOption) *KeySigner {
	s := &KeySigner{
		backend:      backend,
		key:          key,
		account:      crypto.PubkeyToAddress(key.PublicKey),
		chainID:      big.NewInt(chainID),
		pollInterval: constants.ReceiptPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func (s *KeySigner) Account() common.Address {
	return s.account
}

func (s *KeySigner) BlockNumber(ctx context.Context) (uint64, error) {
	return s.backend.BlockNumber(ctx)
}

func (s *KeySigner) ChainID(ctx context.Context) (*big.Int, error) {
	return s.backend.ChainID(ctx)
}

func (s *KeySigner) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return s.backend.CodeAt(ctx, account, blockNumber)
}

func (s *KeySigner) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if call.From == (common.Address{}) {
		call.From = s.account
	}
	return s.backend.CallContract(ctx, call, blockNumber)
}

func (s *KeySigner) Close() {
	if s.closer != nil {
		s.closer()
	}
}

// SendCall signs and submits a transaction carrying data to the contract at to.
// Gas and fees are estimated by the backend. A send that fails without a node
// reply is a *BroadcastError.
func (s *KeySigner) SendCall(ctx context.Context, to common.Address, data []byte) (*ethtypes.Transaction, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return nil, fmt.Errorf("creating transactor: %w", err)
	}
	opts.Context = ctx

	// Estimate up front so revert data from the node reaches the caller intact
	gas, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{From: s.account, To: &to, Data: data})
	if err != nil {
		return nil, fmt.Errorf("estimating gas: %w", err)
	}
	opts.GasLimit = gas

	if s.approve != nil {
		sign := opts.Signer
		opts.Signer = func(from common.Address, tx *ethtypes.Transaction) (*ethtypes.Transaction, error) {
			req := Request{Method: MethodSendTransaction, From: from, To: tx.To(), Data: tx.Data()}
			if err := s.approve(ctx, req); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUserRejected, err)
			}
			return sign(from, tx)
		}
	}

	// Sign only; failures up to here happen before anything reaches the node
	opts.NoSend = true
	bound := bind.NewBoundContract(to, abi.ABI{}, s.backend, s.backend, s.backend)
	tx, err := bound.RawTransact(opts, data)
	if err != nil {
		return nil, err
	}

	if err := s.backend.SendTransaction(ctx, tx); err != nil {
		return nil, sendError(tx.Hash(), err)
	}

	s.logger.Debug("transaction submitted", "hash", tx.Hash().Hex(), "from", s.account.Hex(), "to", to.Hex())
	return tx, nil
}

// WaitMined polls for the receipt of tx with exponential backoff until it is
// mined, the context ends or constants.TransactionWaitTimeout elapses.
// The receipt is returned whatever its status.
func (s *KeySigner) WaitMined(ctx context.Context, tx *ethtypes.Transaction) (*ethtypes.Receipt, error) {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = s.pollInterval
	exponentialBackoff.MaxInterval = constants.ReceiptPollMaxInterval
	exponentialBackoff.Multiplier = 2.0

	operation := func() (*ethtypes.Receipt, error) {
		receipt, err := s.backend.TransactionReceipt(ctx, tx.Hash())
		if err != nil {
			// Transaction not yet mined, retry
			return nil, err
		}
		return receipt, nil
	}

	receipt, err := backoff.Retry(
		ctx,
		operation,
		backoff.WithBackOff(exponentialBackoff),
		backoff.WithMaxElapsedTime(constants.TransactionWaitTimeout),
		backoff.WithNotify(func(err error, duration time.Duration) {
			s.logger.Debug("transaction not yet confirmed", "hash", tx.Hash().Hex(), "retryIn", duration)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("waiting for transaction %s: %w", tx.Hash().Hex(), err)
	}

	return receipt, nil
}
