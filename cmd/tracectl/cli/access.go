package cli

import (
	"context"
	"fmt"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/spf13/cobra"

	"github.com/sigweihq/traceledger/pkg/types"
)

var (
	authorizeCmd = &cobra.Command{
		Use:   "authorize <address>",
		Short: "Allow an address to register products and add steps (owner only)",
		Args:  cobra.ExactArgs(1),
		RunE:  doAuthorize,
	}

	revokeCmd = &cobra.Command{
		Use:   "revoke <address>",
		Short: "Remove an address from the allow-list (owner only)",
		Args:  cobra.ExactArgs(1),
		RunE:  doRevoke,
	}
)

type accessFunc func(ctx context.Context, sess types.WalletSession, user string) (*ethtypes.Receipt, error)

func doAuthorize(cmd *cobra.Command, args []string) error {
	return runAccess(cmd, args[0], func(e *env) accessFunc { return e.client.Authorize })
}

func doRevoke(cmd *cobra.Command, args []string) error {
	return runAccess(cmd, args[0], func(e *env) accessFunc { return e.client.Revoke })
}

func runAccess(cmd *cobra.Command, user string, pick func(*env) accessFunc) error {
	ctx := cmd.Context()
	e, err := newLedgerEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	sess, err := e.connect(ctx)
	if err != nil {
		return err
	}
	receipt, err := pick(e)(ctx, sess, user)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s\n", receipt.TxHash.Hex())
	return nil
}
