package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spool-labs/tape-node/internal/addr"
	"github.com/spool-labs/tape-node/internal/chainclient"
	"github.com/spool-labs/tape-node/internal/store"
)

func newInfoCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "info",
		Short: "print read-only chain/node diagnostics",
	}
	root.AddCommand(
		newInfoTapeCmd(),
		newInfoMinerCmd(),
		newInfoArchiveCmd(),
		newInfoEpochCmd(),
		newInfoBlockCmd(),
		newInfoFindTapeCmd(),
	)
	return root
}

func readerFromConfig() (*chainclient.RPCReader, error) {
	cfg, err := loadConfig()
	if err != nil {
		fatal(ExitConfigError, "%v", err)
	}
	return chainclient.NewRPCReader(cfg.Chain.RPCURL), nil
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func newInfoTapeCmd() *cobra.Command {
	var tapeAddress string
	var tapeNumber uint64
	cmd := &cobra.Command{
		Use:   "tape",
		Short: "print a tape's on-chain record",
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := readerFromConfig()
			if err != nil {
				return err
			}
			var tape chainclient.Tape
			if tapeAddress != "" {
				a, err := addr.Parse(tapeAddress)
				if err != nil {
					return err
				}
				tape, err = reader.TapeByAddress(a)
				if err != nil {
					return err
				}
			} else {
				tape, err = reader.TapeByNumber(tapeNumber)
				if err != nil {
					return err
				}
			}
			return printJSON(tape)
		},
	}
	cmd.Flags().StringVar(&tapeAddress, "address", "", "base58 tape address")
	cmd.Flags().Uint64Var(&tapeNumber, "number", 0, "tape number")
	return cmd
}

func newInfoMinerCmd() *cobra.Command {
	var minerAddress string
	cmd := &cobra.Command{
		Use:   "miner",
		Short: "print a miner's on-chain record",
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := readerFromConfig()
			if err != nil {
				return err
			}
			var a addr.Address
			if minerAddress != "" {
				var err error
				a, err = addr.Parse(minerAddress)
				if err != nil {
					return err
				}
			} else {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				a, err = minerAddrFromConfig(cfg)
				if err != nil {
					return err
				}
			}
			miner, err := reader.MinerRecord(a)
			if err != nil {
				return err
			}
			return printJSON(miner)
		},
	}
	cmd.Flags().StringVar(&minerAddress, "address", "", "base58 miner address (defaults to this node's own keypair)")
	return cmd
}

func newInfoArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "print the local archive pipeline's health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				fatal(ExitConfigError, "%v", err)
			}
			s, err := store.Open(cfg.Node.DataDir+"/"+primaryDirName, store.ModeReadOnly)
			if err != nil {
				return err
			}
			defer s.Close()
			h, err := s.GetHealth()
			if err != nil {
				return err
			}
			return printJSON(h)
		},
	}
}

func newInfoEpochCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "epoch",
		Short: "print the current epoch's parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := readerFromConfig()
			if err != nil {
				return err
			}
			epoch, err := reader.EpochRecord()
			if err != nil {
				return err
			}
			return printJSON(epoch)
		},
	}
}

func newInfoBlockCmd() *cobra.Command {
	var slot uint64
	cmd := &cobra.Command{
		Use:   "block",
		Short: "print a block header (defaults to the current tip)",
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := readerFromConfig()
			if err != nil {
				return err
			}
			if slot == 0 {
				slot, err = reader.CurrentSlot()
				if err != nil {
					return err
				}
			}
			block, err := reader.BlockHeader(slot)
			if err != nil {
				return err
			}
			return printJSON(block)
		},
	}
	cmd.Flags().Uint64Var(&slot, "slot", 0, "slot to inspect (0 = current tip)")
	return cmd
}

func newInfoFindTapeCmd() *cobra.Command {
	var name string
	var maxScan uint64
	cmd := &cobra.Command{
		Use:   "find-tape",
		Short: "scan tape numbers for a matching fixed-width name",
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := readerFromConfig()
			if err != nil {
				return err
			}
			var want [32]byte
			copy(want[:], name)

			for n := uint64(1); n <= maxScan; n++ {
				tape, err := reader.TapeByNumber(n)
				if err != nil {
					continue
				}
				if tape.Name == want {
					return printJSON(tape)
				}
			}
			return fmt.Errorf("find-tape: no tape named %q found within first %d tapes", name, maxScan)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "fixed-width tape name to search for")
	cmd.Flags().Uint64Var(&maxScan, "max-scan", 10000, "upper bound of tape numbers to scan")
	cmd.MarkFlagRequired("name")
	return cmd
}
