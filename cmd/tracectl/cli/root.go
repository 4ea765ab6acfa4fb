// Package cli implements the tracectl commands
package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sigweihq/traceledger/pkg/constants"
)

const shortDescription = "Register products and trace their custody on chain"

const longDescription = `
tracectl drives the traceability contract: connect a wallet, register
products, append custody steps, read a product's history and manage the
contract's write allow-list. Configuration is read from tracectl.yaml,
TRACECTL_* environment variables and flags, in increasing priority.
`

var (
	cfgFile  string
	logLevel string
	rootCmd  = &cobra.Command{
		Use:          "tracectl",
		Short:        shortDescription,
		Long:         longDescription,
		SilenceUsage: true,
	}
)

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "logging level (debug, info, warn, error)")

	rootCmd.PersistentFlags().String("contract", "", "address of the traceability contract")
	cobra.CheckErr(viper.BindPFlag("contract.address", rootCmd.PersistentFlags().Lookup("contract")))

	rootCmd.PersistentFlags().Int64("chain-id", constants.DefaultChainID, "chain the contract is deployed on")
	cobra.CheckErr(viper.BindPFlag("chain.id", rootCmd.PersistentFlags().Lookup("chain-id")))

	rootCmd.PersistentFlags().StringSlice("rpc", nil, "RPC endpoints, in preference order (defaults to the chain's public endpoints)")
	cobra.CheckErr(viper.BindPFlag("chain.rpc", rootCmd.PersistentFlags().Lookup("rpc")))

	rootCmd.PersistentFlags().String("key-file", "", "path to a file holding the wallet's hex private key")
	cobra.CheckErr(rootCmd.MarkPersistentFlagFilename("key-file"))
	cobra.CheckErr(viper.BindPFlag("wallet.key_file", rootCmd.PersistentFlags().Lookup("key-file")))

	rootCmd.PersistentFlags().String("keystore", "", "path to an encrypted keystore file (password from TRACECTL_WALLET_PASSWORD)")
	cobra.CheckErr(viper.BindPFlag("wallet.keystore", rootCmd.PersistentFlags().Lookup("keystore")))

	rootCmd.PersistentFlags().BoolP("yes", "y", false, "sign transactions without asking")
	cobra.CheckErr(viper.BindPFlag("wallet.auto_approve", rootCmd.PersistentFlags().Lookup("yes")))

	rootCmd.PersistentFlags().String("backend-url", constants.DefaultBackendURL, "URL of the user backend")
	cobra.CheckErr(viper.BindPFlag("backend.url", rootCmd.PersistentFlags().Lookup("backend-url")))

	rootCmd.PersistentFlags().String("gateway", constants.DefaultGatewayURL, "IPFS gateway URL")
	cobra.CheckErr(viper.BindPFlag("content.gateway", rootCmd.PersistentFlags().Lookup("gateway")))

	viper.SetDefault("contract.permission_timeout", constants.PermissionCheckTimeout)
	viper.SetDefault("wallet.private_key", "")
	viper.SetDefault("wallet.password", "")
	viper.SetDefault("backend.token_file", filepath.Join(lo.Must(os.UserHomeDir()), ".tracectl", "token"))
	viper.SetDefault("backend.password", "")
	viper.SetDefault("content.pin_url", constants.DefaultPinningURL)
	viper.SetDefault("content.pin_token", "")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(productCmd)
	rootCmd.AddCommand(stepCmd)
	rootCmd.AddCommand(authorizeCmd)
	rootCmd.AddCommand(revokeCmd)
	rootCmd.AddCommand(contentCmd)
	rootCmd.AddCommand(endpointsCmd)
	rootCmd.AddCommand(usersCmd)
}

func initConfig() {
	viper.SetEnvPrefix("TRACECTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		cobra.CheckErr(viper.ReadInConfig())
		return
	}

	viper.SetConfigName("tracectl")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath(filepath.Join(lo.Must(os.UserHomeDir()), ".tracectl"))
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			cobra.CheckErr(err)
		}
	}
}
