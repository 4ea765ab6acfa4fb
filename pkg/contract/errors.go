package contract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	ErrSignerRequired      = errors.New("a wallet that can sign transactions is required")
	ErrNoConnection        = errors.New("no connection to the blockchain network")
	ErrContractNotDeployed = errors.New("smart contract does not exist at the configured address, check the network")
	ErrTransactionFailed   = errors.New("transaction failed")
)

// DecodeError is returned when a contract response does not match the expected ABI shape
type DecodeError struct {
	Method string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s result, check the network and try again: %v", e.Method, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ReceiptError is returned once a transaction has been broadcast but could
// not be confirmed. Such a transaction must never be resubmitted.
type ReceiptError struct {
	Hash common.Hash
	Err  error
}

func (e *ReceiptError) Error() string {
	return fmt.Sprintf("transaction %s: %v", e.Hash.Hex(), e.Err)
}

func (e *ReceiptError) Unwrap() error {
	return e.Err
}

const revertPrefix = "execution reverted: "

// RevertReason extracts the Error(string) reason of a reverted call or gas
// estimation. Structured revert data is preferred over the message text.
func RevertReason(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data, ok := dataErr.ErrorData().(string); ok {
			if raw, decodeErr := hexutil.Decode(data); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil && reason != "" {
					return reason, true
				}
			}
		}
	}

	msg := err.Error()
	if idx := strings.Index(msg, revertPrefix); idx >= 0 {
		if reason := strings.TrimSpace(msg[idx+len(revertPrefix):]); reason != "" {
			return reason, true
		}
	}
	return "", false
}
