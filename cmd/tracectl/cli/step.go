package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sigweihq/traceledger/pkg/types"
)

var (
	stepCmd = &cobra.Command{
		Use:   "step",
		Short: "Record custody steps",
	}

	stepAddCmd = &cobra.Command{
		Use:   "add <product-id>",
		Short: "Append a step to a product",
		Args:  cobra.ExactArgs(1),
		RunE:  doStepAdd,
	}
)

func init() {
	stepAddCmd.Flags().String("location", "", "where the step happened")
	cobra.CheckErr(stepAddCmd.MarkFlagRequired("location"))
	stepAddCmd.Flags().String("description", "", "what happened")
	stepAddCmd.Flags().String("status", "", "step status, a label such as Shipped or its code 0-8")
	cobra.CheckErr(stepAddCmd.MarkFlagRequired("status"))

	stepCmd.AddCommand(stepAddCmd)
}

func doStepAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rawStatus, _ := cmd.Flags().GetString("status")
	status, err := types.ParseStepStatus(rawStatus)
	if err != nil {
		return err
	}
	location, _ := cmd.Flags().GetString("location")
	description, _ := cmd.Flags().GetString("description")

	e, err := newLedgerEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	sess, err := e.connect(ctx)
	if err != nil {
		return err
	}
	receipt, err := e.client.AddStep(ctx, sess, args[0], location, description, status)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s\n", receipt.TxHash.Hex())
	return nil
}
