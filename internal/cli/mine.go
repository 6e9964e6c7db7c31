package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spool-labs/tape-node/internal/chainclient"
	"github.com/spool-labs/tape-node/internal/merkle"
	"github.com/spool-labs/tape-node/internal/mining"
	"github.com/spool-labs/tape-node/internal/packer"
	"github.com/spool-labs/tape-node/internal/primitives"
	"github.com/spool-labs/tape-node/internal/store"
	"github.com/spool-labs/tape-node/internal/telemetry"
)

func newMineCmd() *cobra.Command {
	var submitEndpoint string
	cmd := &cobra.Command{
		Use:   "mine",
		Short: "run the mining loop (challenge resolution, PoA/PoW, submission)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				fatal(ExitConfigError, "%v", err)
			}
			logger := loggerFor("mine", cfg)

			shutdownTelemetry, _ := telemetry.Init(cmd.Context(), "tape-node-mine")
			defer shutdownTelemetry(context.Background())

			primaryDir := filepath.Join(cfg.Node.DataDir, primaryDirName)
			dir := filepath.Join(cfg.Node.DataDir, "db_tapestore_read_mine")
			s, err := store.OpenSecondary(dir, primaryDir)
			if err != nil {
				return err
			}
			defer s.Close()

			minerAddr, err := minerAddrFromConfig(cfg)
			if err != nil {
				return err
			}

			reader := chainclient.NewRPCReader(cfg.Chain.RPCURL)
			submitter := chainclient.NewHTTPSubmitter(submitEndpoint)
			cache := merkle.New(s)
			p := packer.NewPacker(primitives.HashPacker{}, 0)

			loop := mining.NewLoop(reader, submitter, s, cache, p, primitives.HashPow{}, minerAddr, cfg.Mining.PowWorkers, logger)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return loop.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&submitEndpoint, "submit-endpoint", "http://127.0.0.1:8899/submit", "chain-client submission boundary URL")
	return cmd
}
