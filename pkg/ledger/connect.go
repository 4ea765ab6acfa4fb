package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sigweihq/traceledger/pkg/contract"
	"github.com/sigweihq/traceledger/pkg/types"
	"github.com/sigweihq/traceledger/pkg/utils"
	"github.com/sigweihq/traceledger/pkg/wallet"
	"golang.org/x/sync/errgroup"
)

// Connect runs the full connection sequence and returns the new session.
// On failure the previous session is kept and returned with the error.
func (c *Client) Connect(ctx context.Context) (types.WalletSession, error) {
	session, err := c.connect(ctx)
	if err != nil {
		c.logger.Warn("wallet connection failed", "error", err)
		c.notify(LevelError, err.Error())
		return c.Session(), err
	}

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	c.logger.Info("wallet connected",
		"address", session.Address,
		"authorized", session.IsAuthorized,
		"owner", session.IsOwner)
	return session, nil
}

func (c *Client) connect(ctx context.Context) (types.WalletSession, error) {
	if c.wallet == nil {
		return types.WalletSession{}, wallet.ErrNoWallet
	}

	if err := c.checkContractLiveness(ctx); err != nil {
		return types.WalletSession{}, err
	}

	accounts, err := c.wallet.RequestAccounts(ctx)
	if err != nil {
		if wallet.IsUserRejected(err) {
			return types.WalletSession{}, wallet.ErrUserRejected
		}
		return types.WalletSession{}, fmt.Errorf("requesting accounts: %w", err)
	}
	if len(accounts) == 0 {
		return types.WalletSession{}, errors.New("wallet returned no accounts")
	}
	account := accounts[0]

	if err := c.verifyWallet(ctx, account); err != nil {
		return types.WalletSession{}, err
	}

	isAuthorized, isOwner := c.derivePermissions(ctx, account)

	return types.WalletSession{
		Address:      account.Hex(),
		IsConnected:  true,
		IsAuthorized: isAuthorized,
		IsOwner:      isOwner,
	}, nil
}

// checkContractLiveness fetches the contract code on the wallet's network
func (c *Client) checkContractLiveness(ctx context.Context) error {
	signer, err := c.wallet.Signer(ctx)
	if err != nil {
		return fmt.Errorf("connecting to wallet network: %w", err)
	}
	defer signer.Close()

	code, err := signer.CodeAt(ctx, c.address, nil)
	if err != nil {
		return fmt.Errorf("fetching contract code: %w", err)
	}
	if len(code) == 0 {
		return contract.ErrContractNotDeployed
	}
	return nil
}

func (c *Client) verifyWallet(ctx context.Context, account common.Address) error {
	if c.verifier == nil {
		c.logger.Debug("no backend verifier configured, skipping wallet verification")
		return nil
	}

	resp, err := c.verifier.VerifyWallet(ctx, account.Hex())
	if err != nil {
		return fmt.Errorf("verifying wallet: %w", err)
	}
	if !resp.Success {
		return &WalletMismatchError{Message: resp.Error}
	}
	return nil
}

// derivePermissions runs the authorization and ownership checks concurrently,
// each under its own timeout. A failed or timed out check leaves its flag false.
func (c *Client) derivePermissions(ctx context.Context, account common.Address) (isAuthorized, isOwner bool) {
	var g errgroup.Group

	g.Go(func() error {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.PermissionCheckTimeout)
		defer cancel()

		authorized, err := contract.Execute(ctx, c.invoker, false, func(ctx context.Context, k *contract.Contract) (bool, error) {
			return k.IsAuthorized(ctx, account)
		})
		if err != nil {
			c.logger.Warn("authorization check failed", "address", account.Hex(), "error", err)
			return nil
		}
		isAuthorized = authorized
		return nil
	})

	g.Go(func() error {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.PermissionCheckTimeout)
		defer cancel()

		owner, err := contract.Execute(ctx, c.invoker, false, func(ctx context.Context, k *contract.Contract) (common.Address, error) {
			return k.Owner(ctx)
		})
		if err != nil {
			c.logger.Warn("owner check failed", "address", account.Hex(), "error", err)
			return nil
		}
		isOwner = utils.AddressesEqual(owner.Hex(), account.Hex())
		return nil
	})

	// Neither check returns an error
	_ = g.Wait()
	return isAuthorized, isOwner
}

// Disconnect drops the session and returns the disconnected one
func (c *Client) Disconnect() types.WalletSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = types.WalletSession{}
	c.logger.Info("wallet disconnected")
	return c.session
}

// Watch re-runs Connect whenever the wallet switches account or chain and
// reports every result to onChange. A chain switch first drops all
// chain-scoped state. Watch returns when ctx ends or the wallet closes its
// event stream.
func (c *Client) Watch(ctx context.Context, onChange func(types.WalletSession, error)) error {
	if c.wallet == nil {
		return wallet.ErrNoWallet
	}

	events := c.wallet.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.logger.Debug("wallet event", "kind", ev.Kind.String(), "chainID", ev.ChainID)

			switch ev.Kind {
			case wallet.ChainChanged:
				c.providers.Reset()
			case wallet.AccountsChanged:
				if len(ev.Accounts) == 0 {
					onChange(c.Disconnect(), nil)
					continue
				}
			}

			session, err := c.Connect(ctx)
			onChange(session, err)
		}
	}
}
