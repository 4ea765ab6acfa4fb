package cli

import (
	"github.com/spf13/cobra"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect the wallet and show its permissions",
	Args:  cobra.NoArgs,
	RunE:  doConnect,
}

func doConnect(cmd *cobra.Command, _ []string) error {
	e, err := newLedgerEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	sess, err := e.connect(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(e.out, sess)
}
