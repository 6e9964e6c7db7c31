package archive

import (
	"context"
	"log/slog"
	"time"

	"github.com/spool-labs/tape-node/internal/chainclient"
	"github.com/spool-labs/tape-node/internal/store"
)

// pollInterval paces retries when there is nothing new to process, so a
// quiet chain or a transient RPC error doesn't spin the task.
const pollInterval = 500 * time.Millisecond

// tipRefreshEvery is how many T-Live iterations elapse between re-reading
// the chain tip.
const tipRefreshEvery = 10

// blockBatchSize is the maximum number of blocks T-Live fetches per
// iteration.
const blockBatchSize = 100

// LiveTailer is T-Live: it follows the chain tip, persists tape
// finalization events, and enqueues segment-write events for T-Pack.
type LiveTailer struct {
	reader chainclient.Reader
	queue  *Queue
	store  *store.Store
	logger *slog.Logger
}

// NewLiveTailer builds T-Live.
func NewLiveTailer(reader chainclient.Reader, queue *Queue, s *store.Store, logger *slog.Logger) *LiveTailer {
	return &LiveTailer{reader: reader, queue: queue, store: s, logger: logger.With("task", "t-live")}
}

// Run tails the chain until ctx is cancelled.
func (t *LiveTailer) Run(ctx context.Context) error {
	health, err := t.store.GetHealth()
	if err != nil {
		return err
	}
	lastSlot := health.LastProcessedSlot

	var tip uint64
	iteration := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if iteration%tipRefreshEvery == 0 {
			newTip, err := t.reader.CurrentSlot()
			if err != nil {
				t.logger.Warn("fetch current slot failed", "error", err)
				if !sleepOrDone(ctx, pollInterval) {
					return nil
				}
				continue
			}
			tip = newTip
		}
		iteration++

		if lastSlot >= tip {
			if !sleepOrDone(ctx, pollInterval) {
				return nil
			}
			continue
		}
		to := lastSlot + blockBatchSize
		if to > tip {
			to = tip
		}

		blocks, err := t.reader.BlockRange(lastSlot+1, to)
		if err != nil {
			t.logger.Warn("fetch block range failed", "from", lastSlot+1, "to", to, "error", err)
			if !sleepOrDone(ctx, pollInterval) {
				return nil
			}
			continue
		}

		for _, block := range blocks {
			if err := t.processBlock(ctx, block); err != nil {
				t.logger.Error("process block failed; halting advance", "slot", block.Slot, "error", err)
				return err
			}
			lastSlot = block.Slot
		}

		drift := uint64(0)
		if tip > lastSlot {
			drift = tip - lastSlot
		}
		if err := t.store.UpdateHealth(store.Health{LastProcessedSlot: lastSlot, DriftSlots: drift}); err != nil {
			t.logger.Warn("update health failed", "error", err)
		}
	}
}

// processBlock persists finalization events and enqueues segment-write
// events. Segments are keyed by tape address, not number, so a
// segment-write observed before its tape's finalization event still
// enqueues cleanly; the number<->address mapping is only needed for
// number-keyed lookups and is filled in once finalization arrives.
func (t *LiveTailer) processBlock(ctx context.Context, block chainclient.BlockEvents) error {
	for _, fin := range block.Finalized {
		if err := t.store.PutTapeAddress(fin.TapeNumber, fin.TapeAddress); err != nil {
			return err
		}
	}
	for _, sw := range block.SegmentWrite {
		if err := t.queue.Enqueue(ctx, sw.TapeAddress, sw.SegmentIdx, sw.RawBytes); err != nil {
			return err
		}
	}
	return nil
}
