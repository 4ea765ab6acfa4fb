package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sigweihq/traceledger/pkg/content"
)

var (
	contentCmd = &cobra.Command{
		Use:   "content",
		Short: "Read and pin product content on IPFS",
	}

	contentGetCmd = &cobra.Command{
		Use:   "get <cid>",
		Short: "Fetch content from the gateway",
		Args:  cobra.ExactArgs(1),
		RunE:  doContentGet,
	}

	contentPinCmd = &cobra.Command{
		Use:   "pin <file>",
		Short: "Upload a file to the pinning service and print its CID",
		Args:  cobra.ExactArgs(1),
		RunE:  doContentPin,
	}
)

func init() {
	contentGetCmd.Flags().StringP("output", "o", "", "write the content to this file instead of stdout")

	contentPinCmd.Flags().String("pin-url", "", "pinning endpoint (defaults to Pinata's pinFileToIPFS)")
	cobra.CheckErr(viper.BindPFlag("content.pin_url", contentPinCmd.Flags().Lookup("pin-url")))

	contentCmd.AddCommand(contentGetCmd)
	contentCmd.AddCommand(contentPinCmd)
}

func doContentGet(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}

	c, err := e.gateway.Fetch(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output != "" {
		if err := os.WriteFile(output, c.Data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", output, err)
		}
		fmt.Fprintf(e.errOut, "Wrote %d bytes of %s content to %s\n", len(c.Data), c.Kind, output)
		return nil
	}

	if c.Kind != content.KindJSON && c.Kind != content.KindText {
		url, _ := e.gateway.URL(args[0])
		fmt.Fprintf(e.errOut, "%s content, use --output to save it or open %s\n", c.Kind, url)
		return nil
	}
	_, err = e.out.Write(c.Data)
	return err
}

func doContentPin(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening %s: %w", args[0], err)
	}
	defer f.Close()

	c, err := e.gateway.Pin(cmd.Context(), filepath.Base(args[0]), f)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, c.String())
	return nil
}
