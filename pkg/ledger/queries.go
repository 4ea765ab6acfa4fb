package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sigweihq/traceledger/pkg/contract"
	"github.com/sigweihq/traceledger/pkg/types"
)

// GetProduct returns the product or nil when it does not exist.
// A response that does not decode is a *contract.DecodeError.
func (c *Client) GetProduct(ctx context.Context, productID string) (*types.Product, error) {
	return contract.Execute(ctx, c.invoker, false, func(ctx context.Context, k *contract.Contract) (*types.Product, error) {
		if err := k.EnsureDeployed(ctx); err != nil {
			return nil, err
		}
		exists, err := k.IsProductExists(ctx, productID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, nil
		}
		return k.GetProduct(ctx, productID)
	})
}

// GetSteps returns the product's steps in creation order. A response that
// does not decode is read as no steps.
func (c *Client) GetSteps(ctx context.Context, productID string) ([]types.Step, error) {
	steps, err := contract.Execute(ctx, c.invoker, false, func(ctx context.Context, k *contract.Contract) ([]types.Step, error) {
		return k.GetSteps(ctx, productID)
	})

	var decodeErr *contract.DecodeError
	if errors.As(err, &decodeErr) {
		c.logger.Debug("steps did not decode, treating as none", "productID", productID, "error", err)
		return []types.Step{}, nil
	}
	if err != nil {
		c.notify(LevelError, err.Error())
		return nil, err
	}
	return steps, nil
}

// GetProductsByCreator returns the IDs of the products creator registered
func (c *Client) GetProductsByCreator(ctx context.Context, creator string) ([]string, error) {
	if !common.IsHexAddress(creator) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, creator)
	}
	addr := common.HexToAddress(creator)

	return contract.Execute(ctx, c.invoker, false, func(ctx context.Context, k *contract.Contract) ([]string, error) {
		return k.GetProductsByCreator(ctx, addr)
	})
}

// GetProductDetails returns the product with its content metadata. A
// product that does not exist is nil; metadata that cannot be fetched is nil.
func (c *Client) GetProductDetails(ctx context.Context, productID string) (*types.ProductDetails, error) {
	product, err := c.GetProduct(ctx, productID)
	if err != nil || product == nil {
		return nil, err
	}

	details := &types.ProductDetails{Product: product}
	if c.content == nil || product.ContentHash == "" {
		return details, nil
	}

	metadata, err := c.content.FetchMetadata(ctx, product.ContentHash)
	if err != nil {
		c.logger.Warn("could not fetch product metadata", "productID", productID, "hash", product.ContentHash, "error", err)
		return details, nil
	}
	details.Metadata = metadata
	return details, nil
}
