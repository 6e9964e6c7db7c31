// Package cli implements the node's command-line surface: one file per
// subcommand, each a *cobra.Command registered onto a shared root.
package cli

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	"github.com/spool-labs/tape-node/internal/addr"
	"github.com/spool-labs/tape-node/internal/config"
	"github.com/spool-labs/tape-node/internal/logging"
)

// exit codes.
const (
	ExitOK           = 0
	ExitConfigError  = 1
	ExitRuntimeError = 2
)

var cfgPath string

// NewRootCommand builds the tape-node root command with every subcommand
// wired on.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "tape-node",
		Short: "Off-chain archival and mining node for TapeDrive",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to TOML config file")

	root.AddCommand(
		newReadCmd(),
		newWriteCmd(),
		newClaimCmd(),
		newArchiveCmd(),
		newMineCmd(),
		newWebCmd(),
		newRegisterCmd(),
		newSnapshotCmd(),
		newInfoCmd(),
	)
	return root
}

// loadConfig loads the config from --config and the environment; every call
// re-reads it. Callers treat a Configuration error here as fatal.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgPath)
}

// fatal prints a human message and exits with code.
func fatal(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "tape-node: "+format+"\n", args...)
	os.Exit(code)
}

// loggerFor applies the config's logging settings as the environment
// logging.Init reads, then builds the component logger.
func loggerFor(component string, cfg *config.Config) *slog.Logger {
	if cfg.Logging.JSON {
		os.Setenv("TAPE_JSON_LOG", "1")
	}
	if cfg.Logging.Level != "" {
		os.Setenv("TAPE_LOG_LEVEL", cfg.Logging.Level)
	}
	return logging.Init(component)
}

// minerAddrFromConfig derives this node's miner address from its keypair
// file. A base58-encoded 32-byte public key is used verbatim; any other
// file content is hashed into an address, since signing itself is the
// external chain-client's concern and this node only needs a
// stable identity to key its packed segments and challenge derivation.
func minerAddrFromConfig(cfg *config.Config) (addr.Address, error) {
	if cfg.Node.KeypairPath == "" {
		return addr.Zero, nil
	}
	data, err := os.ReadFile(cfg.Node.KeypairPath)
	if err != nil {
		return addr.Address{}, &config.Error{Stage: "read keypair", Err: err}
	}
	if decoded, err := base58.Decode(string(data)); err == nil && len(decoded) == 32 {
		var a addr.Address
		copy(a[:], decoded)
		return a, nil
	}
	sum := sha256.Sum256(data)
	return addr.Address(sum), nil
}
