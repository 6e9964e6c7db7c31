package cli

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/spool-labs/tape-node/internal/addr"
	"github.com/spool-labs/tape-node/internal/archive"
	"github.com/spool-labs/tape-node/internal/chainclient"
	"github.com/spool-labs/tape-node/internal/merkle"
	"github.com/spool-labs/tape-node/internal/packer"
	"github.com/spool-labs/tape-node/internal/peersync"
	"github.com/spool-labs/tape-node/internal/primitives"
	"github.com/spool-labs/tape-node/internal/snapshot"
	"github.com/spool-labs/tape-node/internal/store"
)

// manifestFileName is the bbolt side-table's fixed file name within the
// node's data directory.
const manifestFileName = "snapshots.manifest.db"

func newSnapshotCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "snapshot",
		Short: "manage gzip-tar snapshots of the primary store",
	}
	root.AddCommand(
		newSnapshotStatsCmd(),
		newSnapshotCreateCmd(),
		newSnapshotLoadCmd(),
		newSnapshotGetTapeCmd(),
		newSnapshotGetSegmentCmd(),
		newSnapshotResyncCmd(),
	)
	return root
}

func newSnapshotStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "list recorded snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				fatal(ExitConfigError, "%v", err)
			}
			mf, err := snapshot.OpenManifest(filepath.Join(cfg.Node.DataDir, manifestFileName))
			if err != nil {
				return err
			}
			defer mf.Close()

			entries, err := mf.List()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func newSnapshotCreateCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "gzip-tar the primary store directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				fatal(ExitConfigError, "%v", err)
			}
			dir := filepath.Join(cfg.Node.DataDir, primaryDirName)
			manifestPath := filepath.Join(cfg.Node.DataDir, manifestFileName)

			entry, err := snapshot.Create(dir, out, manifestPath)
			if err != nil {
				return err
			}
			fmt.Printf("created %s (%d bytes)\n", entry.Name, entry.SizeBytes)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "tapestore.snapshot.tar.gz", "destination tar.gz path")
	return cmd
}

func newSnapshotLoadCmd() *cobra.Command {
	var src, dest string
	cmd := &cobra.Command{
		Use:   "load",
		Short: "extract a snapshot into a fresh primary directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return snapshot.Load(src, dest)
		},
	}
	cmd.Flags().StringVar(&src, "src", "", "source tar.gz path")
	cmd.Flags().StringVar(&dest, "dest", "", "fresh destination directory")
	cmd.MarkFlagRequired("src")
	cmd.MarkFlagRequired("dest")
	return cmd
}

func newSnapshotGetTapeCmd() *cobra.Command {
	var dir, tapeAddress string
	cmd := &cobra.Command{
		Use:   "get-tape",
		Short: "print every locally stored segment for a tape",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.Open(dir, store.ModeReadOnly)
			if err != nil {
				return err
			}
			defer s.Close()

			a, err := addr.Parse(tapeAddress)
			if err != nil {
				return err
			}
			segments, err := s.GetTapeSegments(a)
			if err != nil {
				return err
			}

			type entry struct {
				SegmentNumber uint64 `json:"segment_number"`
				Data          string `json:"data"`
			}
			out := make([]entry, 0, len(segments))
			for _, seg := range segments {
				out = append(out, entry{SegmentNumber: seg.GlobalIndex, Data: base64.StdEncoding.EncodeToString(seg.Data)})
			}
			raw, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(raw))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "store directory to inspect")
	cmd.Flags().StringVar(&tapeAddress, "tape-address", "", "base58 tape address")
	cmd.MarkFlagRequired("dir")
	cmd.MarkFlagRequired("tape-address")
	return cmd
}

func newSnapshotGetSegmentCmd() *cobra.Command {
	var dir, tapeAddress string
	var segmentNumber uint64
	cmd := &cobra.Command{
		Use:   "get-segment",
		Short: "print one locally stored packed segment",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.Open(dir, store.ModeReadOnly)
			if err != nil {
				return err
			}
			defer s.Close()

			a, err := addr.Parse(tapeAddress)
			if err != nil {
				return err
			}
			data, err := s.GetSegment(a, segmentNumber)
			if err != nil {
				return err
			}
			fmt.Println(base64.StdEncoding.EncodeToString(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "store directory to inspect")
	cmd.Flags().StringVar(&tapeAddress, "tape-address", "", "base58 tape address")
	cmd.Flags().Uint64Var(&segmentNumber, "segment-number", 0, "global segment index")
	cmd.MarkFlagRequired("dir")
	cmd.MarkFlagRequired("tape-address")
	return cmd
}

func newSnapshotResyncCmd() *cobra.Command {
	var peerEndpoint string
	var tapesStored uint64
	cmd := &cobra.Command{
		Use:   "resync",
		Short: "bulk-fetch tape addresses and segments from a trusted peer (C5)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				fatal(ExitConfigError, "%v", err)
			}
			logger := loggerFor("resync", cfg)

			dir := filepath.Join(cfg.Node.DataDir, primaryDirName)
			s, err := store.Open(dir, store.ModeExclusiveWriter)
			if err != nil {
				return err
			}
			defer s.Close()

			minerAddr, err := minerAddrFromConfig(cfg)
			if err != nil {
				return err
			}
			reader := chainclient.NewRPCReader(cfg.Chain.RPCURL)

			// Route bulk-synced raw segments through the same queue/packer
			// path the live pipeline uses, so a resync produces packed segments
			// exactly like T-Pack would.
			queue := archive.NewQueue(archive.QueueCapacity)
			p := packer.NewPacker(primitives.HashPacker{}, 0)
			cache := merkle.New(s)
			pack := archive.NewPackTask(queue, p, s, cache, reader, minerAddr, logger)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				pack.Run(ctx)
				close(done)
			}()

			client := peersync.NewClient(peerEndpoint)
			client.BulkSync(ctx, tapesStored, s, queue, logger)

			for queue.Len() > 0 {
				time.Sleep(50 * time.Millisecond)
			}
			time.Sleep(200 * time.Millisecond) // let the last in-flight pack finish
			cancel()
			<-done
			return nil
		},
	}
	cmd.Flags().StringVar(&peerEndpoint, "peer", "", "trusted peer's read RPC endpoint")
	cmd.Flags().Uint64Var(&tapesStored, "tapes-stored", 0, "upper bound of tape numbers to walk")
	cmd.MarkFlagRequired("peer")
	cmd.MarkFlagRequired("tapes-stored")
	return cmd
}
