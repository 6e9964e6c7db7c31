// Command tape-node is the off-chain archival and mining node for
// TapeDrive. It wires the cobra root command from internal/cli
// and exits with this node's documented exit codes.
package main

import (
	"os"

	"github.com/spool-labs/tape-node/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		os.Stderr.WriteString("tape-node: " + err.Error() + "\n")
		os.Exit(cli.ExitRuntimeError)
	}
}
