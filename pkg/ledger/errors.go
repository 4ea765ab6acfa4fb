package ledger

import (
	"errors"
	"fmt"

	"github.com/sigweihq/traceledger/pkg/contract"
	"github.com/sigweihq/traceledger/pkg/wallet"
)

var (
	ErrDuplicateProduct = errors.New("a product with this ID already exists")
	ErrProductNotFound  = errors.New("product does not exist")
	ErrInvalidAddress   = errors.New("invalid wallet address")
	ErrInvalidStatus    = errors.New("invalid step status")
)

// PermissionError is returned by a command the session is not allowed to
// run. It is raised before any network call.
type PermissionError struct {
	Op     string
	Reason string
}

func (e *PermissionError) Error() string {
	return e.Reason
}

// WalletMismatchError is returned when the backend refuses the wallet for
// the logged-in user
type WalletMismatchError struct {
	Message string
}

func (e *WalletMismatchError) Error() string {
	if e.Message == "" {
		return "wallet does not match the logged-in account"
	}
	return e.Message
}

// CommandError carries the user-facing message of a failed command.
// Kind is the classified sentinel, nil when the failure was not recognized.
type CommandError struct {
	Op      string
	Message string
	Kind    error
	Err     error
}

func (e *CommandError) Error() string {
	return e.Message
}

func (e *CommandError) Unwrap() []error {
	if e.Kind != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Err}
}

// classify turns a command failure into its user-facing form: the revert
// reason verbatim, then rejection, then lack of funds, then the raw message
func classify(op string, err error) *CommandError {
	if reason, ok := contract.RevertReason(err); ok {
		return &CommandError{Op: op, Message: reason, Err: err}
	}
	switch {
	case wallet.IsUserRejected(err):
		return &CommandError{Op: op, Message: wallet.ErrUserRejected.Error(), Kind: wallet.ErrUserRejected, Err: err}
	case wallet.IsInsufficientFunds(err):
		return &CommandError{Op: op, Message: wallet.ErrInsufficientFunds.Error(), Kind: wallet.ErrInsufficientFunds, Err: err}
	}
	msg := err.Error()
	if msg == "" {
		msg = fmt.Sprintf("%s failed", op)
	}
	return &CommandError{Op: op, Message: msg, Err: err}
}
