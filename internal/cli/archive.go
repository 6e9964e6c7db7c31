package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spool-labs/tape-node/internal/archive"
	"github.com/spool-labs/tape-node/internal/chainclient"
	"github.com/spool-labs/tape-node/internal/merkle"
	"github.com/spool-labs/tape-node/internal/packer"
	"github.com/spool-labs/tape-node/internal/peersync"
	"github.com/spool-labs/tape-node/internal/primitives"
	"github.com/spool-labs/tape-node/internal/store"
	"github.com/spool-labs/tape-node/internal/telemetry"
)

// primaryDirName is the fixed subdirectory name for the archive writer's
// exclusive store.
const primaryDirName = "db_tapestore"

func newArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "run the archive pipeline (T-Live, T-Challenge, T-Pack)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				fatal(ExitConfigError, "%v", err)
			}
			logger := loggerFor("archive", cfg)

			shutdownTelemetry, _ := telemetry.Init(cmd.Context(), "tape-node-archive")
			defer shutdownTelemetry(context.Background())

			dir := filepath.Join(cfg.Node.DataDir, primaryDirName)
			s, err := store.Open(dir, store.ModeExclusiveWriter)
			if err != nil {
				return err
			}
			defer s.Close()

			reader := chainclient.NewRPCReader(cfg.Chain.RPCURL)
			minerAddr, err := minerAddrFromConfig(cfg)
			if err != nil {
				return err
			}

			var peer *peersync.Client
			if len(cfg.Archive.PeerEndpoints) > 0 {
				peer = peersync.NewClient(cfg.Archive.PeerEndpoints[0])
			}

			queue := archive.NewQueue(cfg.Archive.QueueCapacity)
			p := packer.NewPacker(primitives.HashPacker{}, 0)
			cache := merkle.New(s)

			live := archive.NewLiveTailer(reader, queue, s, logger)
			challenge := archive.NewChallengeSyncer(reader, queue, s, peer, minerAddr, logger)
			pack := archive.NewPackTask(queue, p, s, cache, reader, minerAddr, logger)
			pipeline := archive.NewPipeline(queue, live, challenge, pack, logger)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return pipeline.Run(ctx)
		},
	}
}

