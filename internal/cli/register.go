package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/spool-labs/tape-node/internal/chainclient"
)

func newRegisterCmd() *cobra.Command {
	var submitEndpoint string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "submit an instruction registering this node's keypair as a miner",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				fatal(ExitConfigError, "%v", err)
			}
			if submitEndpoint == "" {
				submitEndpoint = cfg.Chain.RPCURL + "/submit"
			}

			minerAddr, err := minerAddrFromConfig(cfg)
			if err != nil {
				return err
			}

			payload, err := json.Marshal(map[string]string{"miner_address": minerAddr.String()})
			if err != nil {
				return err
			}

			submitter := chainclient.NewHTTPSubmitter(submitEndpoint)
			return submitter.Submit(chainclient.Instruction{Kind: "register", Data: payload})
		},
	}
	cmd.Flags().StringVar(&submitEndpoint, "submit-endpoint", "", "chain-client submission boundary URL")
	return cmd
}
