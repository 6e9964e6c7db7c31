package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spool-labs/tape-node/internal/rpcserver"
	"github.com/spool-labs/tape-node/internal/store"
	"github.com/spool-labs/tape-node/internal/telemetry"
)

func newWebCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "web [port]",
		Short: "run the read RPC server (C7) over the local store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				fatal(ExitConfigError, "%v", err)
			}
			logger := loggerFor("web", cfg)

			shutdownTelemetry, _ := telemetry.Init(cmd.Context(), "tape-node-web")
			defer shutdownTelemetry(context.Background())

			port := cfg.RPC.ListenPort
			if len(args) == 1 {
				parsed, err := strconv.Atoi(args[0])
				if err != nil {
					fatal(ExitConfigError, "invalid port %q: %v", args[0], err)
				}
				port = parsed
			}

			primaryDir := filepath.Join(cfg.Node.DataDir, primaryDirName)
			dir := filepath.Join(cfg.Node.DataDir, "db_tapestore_read_web")
			s, err := store.OpenSecondary(dir, primaryDir)
			if err != nil {
				return err
			}
			defer s.Close()

			srv := rpcserver.NewServer(s, logger)
			httpSrv := &http.Server{
				Addr:    fmt.Sprintf(":%d", port),
				Handler: srv.Handler(),
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			errCh := make(chan error, 1)
			go func() { errCh <- httpSrv.ListenAndServe() }()

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return httpSrv.Shutdown(shutdownCtx)
			case err := <-errCh:
				if err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			}
		},
	}
}
