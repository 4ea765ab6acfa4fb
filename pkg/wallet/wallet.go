// Package wallet abstracts the user's injected wallet: the account list it
// exposes, the signing connection it hands out, and the account/chain change
// notifications it emits.
package wallet

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sigweihq/traceledger/pkg/chains"
)

// Wallet is an injected wallet. It satisfies evm.InjectedProvider.
type Wallet interface {
	// RequestAccounts asks the holder to expose accounts. The active account comes first.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// Signer returns a fresh signing connection for the active account
	Signer(ctx context.Context) (chains.SigningProvider, error)
	ChainID(ctx context.Context) (int64, error)
	// Events delivers account and chain switches. The channel closes with the wallet.
	Events() <-chan Event
}

type EventKind int

const (
	AccountsChanged EventKind = iota
	ChainChanged
)

func (k EventKind) String() string {
	switch k {
	case AccountsChanged:
		return "accountsChanged"
	case ChainChanged:
		return "chainChanged"
	default:
		return "unknown"
	}
}

// Event is an account or chain switch reported by the wallet
type Event struct {
	Kind     EventKind
	Accounts []common.Address
	ChainID  int64
}

// Request methods passed to an ApproveFunc
const (
	MethodRequestAccounts = "eth_requestAccounts"
	MethodSendTransaction = "eth_sendTransaction"
)

// Request describes what the holder is asked to approve
type Request struct {
	Method string
	From   common.Address
	To     *common.Address
	Data   []byte
}

// ApproveFunc stands in for the wallet's confirmation prompt. Returning an
// error rejects the request.
type ApproveFunc func(ctx context.Context, req Request) error
