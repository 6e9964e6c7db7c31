package cli

import (
	"encoding/base64"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/spool-labs/tape-node/internal/chainclient"
)

type writePayload struct {
	TapeAddress string `json:"tape_address"`
	Data        string `json:"data"`
}

func newWriteCmd() *cobra.Command {
	var tapeAddress, dataFile, submitEndpoint string
	cmd := &cobra.Command{
		Use:   "write",
		Short: "submit a raw segment write instruction to the chain-client boundary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				fatal(ExitConfigError, "%v", err)
			}
			if submitEndpoint == "" {
				submitEndpoint = cfg.Chain.RPCURL + "/submit"
			}

			data, err := os.ReadFile(dataFile)
			if err != nil {
				return err
			}

			payload := writePayload{TapeAddress: tapeAddress, Data: base64.StdEncoding.EncodeToString(data)}
			raw, err := json.Marshal(payload)
			if err != nil {
				return err
			}

			submitter := chainclient.NewHTTPSubmitter(submitEndpoint)
			return submitter.Submit(chainclient.Instruction{Kind: "write", Data: raw})
		},
	}
	cmd.Flags().StringVar(&tapeAddress, "tape", "", "base58 tape address to write into")
	cmd.Flags().StringVar(&dataFile, "file", "", "path to the raw segment bytes to write")
	cmd.Flags().StringVar(&submitEndpoint, "submit-endpoint", "", "chain-client submission boundary URL")
	cmd.MarkFlagRequired("tape")
	cmd.MarkFlagRequired("file")
	return cmd
}
