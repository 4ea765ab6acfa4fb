package evm

import "fmt"

// RPCError represents an RPC-related error
type RPCError struct {
	Endpoint string
	Err      error
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error on %s: %v", e.Endpoint, e.Err)
}

func (e *RPCError) Unwrap() error {
	return e.Err
}

// ConnectivityError is returned when neither the wallet nor any pooled endpoint answered
type ConnectivityError struct {
	ChainID int64
	Err     error // last wallet error, if any
}

func (e *ConnectivityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot connect to any Ethereum node (chain %d): %v", e.ChainID, e.Err)
	}
	return fmt.Sprintf("cannot connect to any Ethereum node (chain %d)", e.ChainID)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}
