package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sigweihq/traceledger/pkg/contract"
	"github.com/sigweihq/traceledger/pkg/types"
)

const (
	OpCreateProduct = "createProduct"
	OpAddStep       = "addStep"
	OpAuthorize     = "authorize"
	OpRevoke        = "revoke"
)

// CreateProduct registers a product with the initial Created status and
// waits for the transaction to be mined
func (c *Client) CreateProduct(ctx context.Context, sess types.WalletSession, productID, name, contentHash, location string) (*ethtypes.Receipt, error) {
	if !sess.IsConnected || !sess.IsAuthorized {
		return nil, c.deny(OpCreateProduct, "you are not allowed to create products")
	}
	if productID == "" {
		return nil, c.fail(OpCreateProduct, errors.New("product ID is required"))
	}

	exists, err := c.productExists(ctx, productID)
	if err != nil {
		c.logger.Warn("could not check whether product exists", "productID", productID, "error", err)
	} else if exists {
		return nil, c.fail(OpCreateProduct, ErrDuplicateProduct)
	}

	receipt, err := c.submit(ctx, func(ctx context.Context, k *contract.Contract) (*contract.PendingTx, error) {
		return k.CreateProduct(ctx, productID, name, contentHash, location, types.ProductCreated)
	})
	if err != nil {
		return nil, c.fail(OpCreateProduct, err)
	}

	c.logger.Info("product created", "productID", productID, "tx", receipt.TxHash.Hex())
	c.notify(LevelSuccess, fmt.Sprintf("Product %s created", productID))
	return receipt, nil
}

// AddStep appends a step to an existing product and waits for the
// transaction to be mined
func (c *Client) AddStep(ctx context.Context, sess types.WalletSession, productID, location, description string, status types.StepStatus) (*ethtypes.Receipt, error) {
	if !sess.IsConnected || !sess.IsAuthorized {
		return nil, c.deny(OpAddStep, "you are not allowed to add steps")
	}
	if !status.Valid() {
		return nil, c.fail(OpAddStep, fmt.Errorf("%w: %d", ErrInvalidStatus, uint8(status)))
	}

	exists, err := c.productExists(ctx, productID)
	if err != nil {
		c.logger.Warn("could not check whether product exists", "productID", productID, "error", err)
	} else if !exists {
		return nil, c.fail(OpAddStep, ErrProductNotFound)
	}

	receipt, err := c.submit(ctx, func(ctx context.Context, k *contract.Contract) (*contract.PendingTx, error) {
		return k.AddStep(ctx, productID, location, description, status)
	})
	if err != nil {
		return nil, c.fail(OpAddStep, err)
	}

	c.logger.Info("step added", "productID", productID, "status", status.String(), "tx", receipt.TxHash.Hex())
	c.notify(LevelSuccess, fmt.Sprintf("Step %s added to %s", status, productID))
	return receipt, nil
}

// Authorize adds user to the contract's write allow-list. Owner only.
func (c *Client) Authorize(ctx context.Context, sess types.WalletSession, user string) (*ethtypes.Receipt, error) {
	return c.setAuthorization(ctx, sess, OpAuthorize, user)
}

// Revoke removes user from the contract's write allow-list. Owner only.
func (c *Client) Revoke(ctx context.Context, sess types.WalletSession, user string) (*ethtypes.Receipt, error) {
	return c.setAuthorization(ctx, sess, OpRevoke, user)
}

func (c *Client) setAuthorization(ctx context.Context, sess types.WalletSession, op, user string) (*ethtypes.Receipt, error) {
	if !sess.IsConnected || !sess.IsOwner {
		return nil, c.deny(op, "only the contract owner can manage authorizations")
	}
	if !common.IsHexAddress(user) {
		return nil, c.fail(op, fmt.Errorf("%w: %q", ErrInvalidAddress, user))
	}
	addr := common.HexToAddress(user)

	receipt, err := c.submit(ctx, func(ctx context.Context, k *contract.Contract) (*contract.PendingTx, error) {
		if op == OpRevoke {
			return k.Revoke(ctx, addr)
		}
		return k.Authorize(ctx, addr)
	})
	if err != nil {
		return nil, c.fail(op, err)
	}

	c.logger.Info("authorization changed", "op", op, "user", addr.Hex(), "tx", receipt.TxHash.Hex())
	c.notify(LevelSuccess, fmt.Sprintf("%s %s succeeded", op, addr.Hex()))
	return receipt, nil
}

// productExists asks the contract once, without retries
func (c *Client) productExists(ctx context.Context, productID string) (bool, error) {
	k, err := c.invoker.GetContract(ctx, false)
	if err != nil {
		return false, err
	}
	defer k.Close()
	return k.IsProductExists(ctx, productID)
}

// submit sends a transaction through the invoker and waits for it to be mined.
// Once broadcast a transaction is never resubmitted.
func (c *Client) submit(ctx context.Context, send func(ctx context.Context, k *contract.Contract) (*contract.PendingTx, error)) (*ethtypes.Receipt, error) {
	return contract.Execute(ctx, c.invoker, true, func(ctx context.Context, k *contract.Contract) (*ethtypes.Receipt, error) {
		pending, err := send(ctx, k)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("transaction sent, waiting for confirmation", "tx", pending.Hash().Hex())
		return pending.Wait(ctx)
	})
}

func (c *Client) deny(op, reason string) error {
	c.notify(LevelError, reason)
	return &PermissionError{Op: op, Reason: reason}
}

func (c *Client) fail(op string, err error) error {
	cmdErr := classify(op, err)
	c.logger.Warn("command failed", "op", op, "error", err)
	c.notify(LevelError, cmdErr.Message)
	return cmdErr
}
