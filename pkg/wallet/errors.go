package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	// ErrNoWallet is returned when no wallet is configured for the client
	ErrNoWallet = errors.New("no wallet found, configure a wallet to continue")
	// ErrUserRejected is returned when the wallet holder declines a request
	ErrUserRejected = errors.New("transaction rejected by user")
	// ErrInsufficientFunds is returned when the account cannot pay for gas
	ErrInsufficientFunds = errors.New("not enough ETH to pay for the transaction")
)

// IsUserRejected reports whether err is a wallet rejection. Wallets and RPC
// nodes report it only as text, so the message is matched as well.
func IsUserRejected(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUserRejected) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied")
}

// IsInsufficientFunds reports whether err means the account balance cannot cover the transaction
func IsInsufficientFunds(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInsufficientFunds) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "insufficient funds")
}

// BroadcastError is returned when submitting a signed transaction failed
// without a reply from the node. The node may still have accepted it, so
// the transaction must not be sent again.
type BroadcastError struct {
	Hash common.Hash
	Err  error
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("transaction %s may have been broadcast: %v", e.Hash.Hex(), e.Err)
}

func (e *BroadcastError) Unwrap() error {
	return e.Err
}

// sendError classifies a SendTransaction failure. A JSON-RPC error reply
// means the node refused the transaction; anything else is ambiguous.
func sendError(hash common.Hash, err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("sending transaction: %w", err)
	}
	return &BroadcastError{Hash: hash, Err: err}
}
