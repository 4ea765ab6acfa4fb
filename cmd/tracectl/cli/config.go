package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/sigweihq/traceledger/pkg/constants"
	"github.com/sigweihq/traceledger/pkg/ledger"
)

type Config struct {
	Contract ContractConfig `mapstructure:"contract"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Content  ContentConfig  `mapstructure:"content"`
}

type ContractConfig struct {
	Address           string        `mapstructure:"address"`
	PermissionTimeout time.Duration `mapstructure:"permission_timeout"`
}

type ChainConfig struct {
	ID  int64    `mapstructure:"id"`
	RPC []string `mapstructure:"rpc"`
}

type WalletConfig struct {
	PrivateKey  string `mapstructure:"private_key"`
	KeyFile     string `mapstructure:"key_file"`
	Keystore    string `mapstructure:"keystore"`
	Password    string `mapstructure:"password"`
	AutoApprove bool   `mapstructure:"auto_approve"`
}

// HasKey reports whether any key source is configured
func (w WalletConfig) HasKey() bool {
	return w.PrivateKey != "" || w.KeyFile != "" || w.Keystore != ""
}

type BackendConfig struct {
	URL       string `mapstructure:"url"`
	TokenFile string `mapstructure:"token_file"`
	Password  string `mapstructure:"password"`
}

type ContentConfig struct {
	Gateway  string `mapstructure:"gateway"`
	PinURL   string `mapstructure:"pin_url"`
	PinToken string `mapstructure:"pin_token"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Chain.ID == 0 {
		cfg.Chain.ID = constants.DefaultChainID
	}
	return cfg, nil
}

// Validate checks what the contract commands need
func (c Config) Validate() error {
	if c.Contract.Address == "" {
		return errors.New("contract address is required (--contract or TRACECTL_CONTRACT_ADDRESS)")
	}
	sources := 0
	for _, s := range []string{c.Wallet.PrivateKey, c.Wallet.KeyFile, c.Wallet.Keystore} {
		if s != "" {
			sources++
		}
	}
	if sources > 1 {
		return errors.New("configure only one of wallet.private_key, wallet.key_file and wallet.keystore")
	}
	lc := c.ledgerConfig()
	return lc.Validate()
}

func (c Config) ledgerConfig() ledger.Config {
	return ledger.Config{
		ContractAddress:        c.Contract.Address,
		ChainID:                c.Chain.ID,
		PermissionCheckTimeout: c.Contract.PermissionTimeout,
	}
}

// endpoints returns the configured RPC endpoints, or the chain's public ones
func (c Config) endpoints() []string {
	if len(c.Chain.RPC) > 0 {
		return c.Chain.RPC
	}
	return constants.OfficialRPCEndpoints[c.Chain.ID]
}
