package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	productCmd = &cobra.Command{
		Use:   "product",
		Short: "Register and look up products",
	}

	productCreateCmd = &cobra.Command{
		Use:   "create <product-id>",
		Short: "Register a product",
		Args:  cobra.ExactArgs(1),
		RunE:  doProductCreate,
	}

	productGetCmd = &cobra.Command{
		Use:   "get <product-id>",
		Short: "Show a product and its content metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  doProductGet,
	}

	productStepsCmd = &cobra.Command{
		Use:   "steps <product-id>",
		Short: "Show a product's custody history",
		Args:  cobra.ExactArgs(1),
		RunE:  doProductSteps,
	}

	productListCmd = &cobra.Command{
		Use:   "list",
		Short: "List the products an address registered",
		Args:  cobra.NoArgs,
		RunE:  doProductList,
	}
)

func init() {
	productCreateCmd.Flags().String("name", "", "product name")
	cobra.CheckErr(productCreateCmd.MarkFlagRequired("name"))
	productCreateCmd.Flags().String("location", "", "where the product is registered")
	cobra.CheckErr(productCreateCmd.MarkFlagRequired("location"))
	productCreateCmd.Flags().String("hash", "", "content hash of the product's metadata")
	productCreateCmd.Flags().String("file", "", "pin this file and use its CID as the content hash")
	productCreateCmd.MarkFlagsMutuallyExclusive("hash", "file")

	productGetCmd.Flags().Bool("no-metadata", false, "skip fetching the content metadata")

	productListCmd.Flags().String("creator", "", "creator address (defaults to the connected wallet)")

	productCmd.AddCommand(productCreateCmd)
	productCmd.AddCommand(productGetCmd)
	productCmd.AddCommand(productStepsCmd)
	productCmd.AddCommand(productListCmd)
}

func doProductCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := newLedgerEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	name, _ := cmd.Flags().GetString("name")
	location, _ := cmd.Flags().GetString("location")
	hash, _ := cmd.Flags().GetString("hash")
	file, _ := cmd.Flags().GetString("file")

	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("opening %s: %w", file, err)
		}
		defer f.Close()

		c, err := e.gateway.Pin(ctx, filepath.Base(file), f)
		if err != nil {
			return fmt.Errorf("pinning %s: %w", file, err)
		}
		hash = c.String()
		fmt.Fprintf(e.errOut, "Pinned %s as %s\n", file, hash)
	}
	if hash == "" {
		return errors.New("a content hash is required (--hash or --file)")
	}

	sess, err := e.connect(ctx)
	if err != nil {
		return err
	}
	receipt, err := e.client.CreateProduct(ctx, sess, args[0], name, hash, location)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s\n", receipt.TxHash.Hex())
	return nil
}

func doProductGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := newLedgerEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	noMetadata, _ := cmd.Flags().GetBool("no-metadata")
	if noMetadata {
		product, err := e.client.GetProduct(ctx, args[0])
		if err != nil {
			return err
		}
		if product == nil {
			return fmt.Errorf("product %s does not exist", args[0])
		}
		return printJSON(e.out, product)
	}

	details, err := e.client.GetProductDetails(ctx, args[0])
	if err != nil {
		return err
	}
	if details == nil {
		return fmt.Errorf("product %s does not exist", args[0])
	}
	return printJSON(e.out, details)
}

func doProductSteps(cmd *cobra.Command, args []string) error {
	e, err := newLedgerEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	steps, err := e.client.GetSteps(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		fmt.Fprintf(e.errOut, "No steps recorded for %s\n", args[0])
		return nil
	}
	return printSteps(e.out, steps)
}

func doProductList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	e, err := newLedgerEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	creator, _ := cmd.Flags().GetString("creator")
	if creator == "" {
		sess, err := e.connect(ctx)
		if err != nil {
			return fmt.Errorf("no --creator given and no wallet connected: %w", err)
		}
		creator = sess.Address
	}

	ids, err := e.client.GetProductsByCreator(ctx, creator)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(e.out, id)
	}
	return nil
}
