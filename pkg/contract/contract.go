// Package contract binds the product traceability contract: typed calls over
// a chains.Provider and a retrying invoker that re-creates handles per attempt.
package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/samber/lo"
	"github.com/sigweihq/traceledger/pkg/chains"
	"github.com/sigweihq/traceledger/pkg/constants"
	"github.com/sigweihq/traceledger/pkg/types"
)

// Contract is a handle on the deployed contract through one provider.
// Mutating methods need the provider to be a chains.SigningProvider.
type Contract struct {
	address  common.Address
	abi      abi.ABI
	provider chains.Provider
	signer   chains.SigningProvider
}

// New binds the contract at address through provider
func New(address common.Address, provider chains.Provider) (*Contract, error) {
	parsed, err := ParseABI()
	if err != nil {
		return nil, fmt.Errorf("parsing contract ABI: %w", err)
	}
	c := &Contract{
		address:  address,
		abi:      parsed,
		provider: provider,
	}
	if signer, ok := provider.(chains.SigningProvider); ok {
		c.signer = signer
	}
	return c, nil
}

func (c *Contract) Address() common.Address {
	return c.address
}

// CanSign reports whether the handle can submit transactions
func (c *Contract) CanSign() bool {
	return c.signer != nil
}

// Close releases the underlying provider
func (c *Contract) Close() {
	c.provider.Close()
}

// Code returns the bytecode at the contract address; empty means nothing is deployed
func (c *Contract) Code(ctx context.Context) ([]byte, error) {
	code, err := c.provider.CodeAt(ctx, c.address, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching contract code: %w", err)
	}
	return code, nil
}

// EnsureDeployed fails with ErrContractNotDeployed when the address holds no code
func (c *Contract) EnsureDeployed(ctx context.Context) error {
	code, err := c.Code(ctx)
	if err != nil {
		return err
	}
	if len(code) == 0 {
		return ErrContractNotDeployed
	}
	return nil
}

func (c *Contract) call(ctx context.Context, method string, args ...any) ([]byte, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, constants.CallContractTimeout)
	defer cancel()

	msg := ethereum.CallMsg{To: &c.address, Data: input}
	if c.signer != nil {
		msg.From = c.signer.Account()
	}
	out, err := c.provider.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}
	return out, nil
}

// unpackSingle decodes a method with exactly one output of type T
func unpackSingle[T any](c *Contract, method string, data []byte) (T, error) {
	var zero T
	values, err := c.abi.Unpack(method, data)
	if err != nil {
		return zero, &DecodeError{Method: method, Err: err}
	}
	if len(values) != 1 {
		return zero, &DecodeError{Method: method, Err: fmt.Errorf("expected 1 value, got %d", len(values))}
	}
	v, ok := values[0].(T)
	if !ok {
		return zero, &DecodeError{Method: method, Err: fmt.Errorf("unexpected result type %T", values[0])}
	}
	return v, nil
}

func (c *Contract) Owner(ctx context.Context) (common.Address, error) {
	out, err := c.call(ctx, "owner")
	if err != nil {
		return common.Address{}, err
	}
	return unpackSingle[common.Address](c, "owner", out)
}

func (c *Contract) IsAuthorized(ctx context.Context, user common.Address) (bool, error) {
	out, err := c.call(ctx, "isAuthorized", user)
	if err != nil {
		return false, err
	}
	return unpackSingle[bool](c, "isAuthorized", out)
}

func (c *Contract) IsProductExists(ctx context.Context, productID string) (bool, error) {
	out, err := c.call(ctx, "isProductExists", productID)
	if err != nil {
		return false, err
	}
	return unpackSingle[bool](c, "isProductExists", out)
}

func (c *Contract) GetProductsByCreator(ctx context.Context, creator common.Address) ([]string, error) {
	out, err := c.call(ctx, "getProductsByCreator", creator)
	if err != nil {
		return nil, err
	}
	return unpackSingle[[]string](c, "getProductsByCreator", out)
}

// GetProduct decodes the product record. A malformed response is a *DecodeError.
func (c *Contract) GetProduct(ctx context.Context, productID string) (*types.Product, error) {
	out, err := c.call(ctx, "getProduct", productID)
	if err != nil {
		return nil, err
	}

	var tuple productTuple
	if err := c.abi.UnpackIntoInterface(&tuple, "getProduct", out); err != nil {
		return nil, &DecodeError{Method: "getProduct", Err: err}
	}

	return &types.Product{
		ID:          productID,
		Name:        tuple.Name,
		ContentHash: tuple.IpfsHash,
		Creator:     tuple.Creator.Hex(),
		Location:    tuple.Location,
		Status:      tuple.Status,
		Steps:       toSteps(tuple.Steps),
	}, nil
}

// GetSteps decodes the product's steps in creation order
func (c *Contract) GetSteps(ctx context.Context, productID string) ([]types.Step, error) {
	out, err := c.call(ctx, "getSteps", productID)
	if err != nil {
		return nil, err
	}

	var tuples []StepTuple
	if err := c.abi.UnpackIntoInterface(&tuples, "getSteps", out); err != nil {
		return nil, &DecodeError{Method: "getSteps", Err: err}
	}
	return toSteps(tuples), nil
}

func toSteps(tuples []StepTuple) []types.Step {
	return lo.Map(tuples, func(t StepTuple, _ int) types.Step {
		var ts int64
		if t.Timestamp != nil {
			ts = t.Timestamp.Int64()
		}
		return types.Step{
			Location:    t.Location,
			Description: t.Description,
			Timestamp:   ts,
			Actor:       t.Actor.Hex(),
			Status:      types.StepStatus(t.Status),
		}
	})
}

func (c *Contract) CreateProduct(ctx context.Context, productID, name, contentHash, location string, status types.ProductStatus) (*PendingTx, error) {
	return c.transact(ctx, "createProduct", productID, name, contentHash, location, uint8(status))
}

func (c *Contract) AddStep(ctx context.Context, productID, location, description string, status types.StepStatus) (*PendingTx, error) {
	return c.transact(ctx, "addStep", productID, location, description, uint8(status))
}

func (c *Contract) Authorize(ctx context.Context, user common.Address) (*PendingTx, error) {
	return c.transact(ctx, "authorize", user)
}

func (c *Contract) Revoke(ctx context.Context, user common.Address) (*PendingTx, error) {
	return c.transact(ctx, "revoke", user)
}

func (c *Contract) transact(ctx context.Context, method string, args ...any) (*PendingTx, error) {
	if c.signer == nil {
		return nil, ErrSignerRequired
	}
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", method, err)
	}
	tx, err := c.signer.SendCall(ctx, c.address, input)
	if err != nil {
		return nil, fmt.Errorf("sending %s: %w", method, err)
	}
	return &PendingTx{method: method, tx: tx, signer: c.signer}, nil
}

// PendingTx is a broadcast transaction awaiting inclusion
type PendingTx struct {
	method string
	tx     *ethtypes.Transaction
	signer chains.SigningProvider
}

func (p *PendingTx) Hash() common.Hash {
	return p.tx.Hash()
}

func (p *PendingTx) Transaction() *ethtypes.Transaction {
	return p.tx
}

// Wait blocks until the transaction is mined. Any failure, including a
// reverted receipt, is a *ReceiptError.
func (p *PendingTx) Wait(ctx context.Context) (*ethtypes.Receipt, error) {
	receipt, err := p.signer.WaitMined(ctx, p.tx)
	if err != nil {
		return nil, &ReceiptError{Hash: p.tx.Hash(), Err: err}
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return receipt, &ReceiptError{
			Hash: p.tx.Hash(),
			Err:  fmt.Errorf("%w: %s reverted in block %s", ErrTransactionFailed, p.method, blockString(receipt.BlockNumber)),
		}
	}
	return receipt, nil
}

func blockString(n *big.Int) string {
	if n == nil {
		return "unknown"
	}
	return n.String()
}
