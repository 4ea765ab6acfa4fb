package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sigweihq/traceledger/pkg/chains/evm"
)

var (
	endpointsCmd = &cobra.Command{
		Use:   "endpoints",
		Short: "Inspect the RPC endpoint pools",
	}

	endpointsRefreshCmd = &cobra.Command{
		Use:   "refresh [chain-id...]",
		Short: "Discover endpoints on chainlist.org, health check them and print the pools",
		RunE:  doEndpointsRefresh,
	}
)

func init() {
	endpointsCmd.AddCommand(endpointsRefreshCmd)
}

func doEndpointsRefresh(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}

	chainIDs := []int64{e.cfg.Chain.ID}
	if len(args) > 0 {
		chainIDs = chainIDs[:0]
		for _, arg := range args {
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chain ID %q: %w", arg, err)
			}
			chainIDs = append(chainIDs, id)
		}
	}

	if err := evm.InitChains(cmd.Context(), e.registry, e.logger, 0, chainIDs...); err != nil {
		return err
	}

	pools := make(map[int64][]string, len(chainIDs))
	for _, id := range chainIDs {
		pool, err := e.registry.Get(id)
		if err != nil {
			continue
		}
		pools[id] = pool.Endpoints()
	}
	return printJSON(e.out, pools)
}
