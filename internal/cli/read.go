package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spool-labs/tape-node/internal/store"
)

func newReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read",
		Short: "open the local store read-only and print its health summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				fatal(ExitConfigError, "%v", err)
			}

			dir := filepath.Join(cfg.Node.DataDir, primaryDirName)
			s, err := store.Open(dir, store.ModeReadOnly)
			if err != nil {
				return err
			}
			defer s.Close()

			h, err := s.GetHealth()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(h, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}
