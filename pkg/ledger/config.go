package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sigweihq/traceledger/pkg/constants"
)

// Config identifies the deployed contract the client talks to
type Config struct {
	ContractAddress string
	ChainID         int64
	// PermissionCheckTimeout bounds each permission query during Connect
	PermissionCheckTimeout time.Duration
}

// DefaultConfig returns a config for the default chain with the default timeouts
func DefaultConfig(contractAddress string) Config {
	return Config{
		ContractAddress:        contractAddress,
		ChainID:                constants.DefaultChainID,
		PermissionCheckTimeout: constants.PermissionCheckTimeout,
	}
}

func (c *Config) Validate() error {
	if c.ContractAddress == "" {
		return errors.New("contract address is required")
	}
	if !common.IsHexAddress(c.ContractAddress) {
		return fmt.Errorf("invalid contract address: %s", c.ContractAddress)
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("invalid chain ID: %d", c.ChainID)
	}
	if c.PermissionCheckTimeout < 0 {
		return fmt.Errorf("permission check timeout must not be negative: %s", c.PermissionCheckTimeout)
	}
	return nil
}
