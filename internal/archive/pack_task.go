package archive

import (
	"context"
	"log/slog"

	"github.com/spool-labs/tape-node/internal/addr"
	"github.com/spool-labs/tape-node/internal/chainclient"
	"github.com/spool-labs/tape-node/internal/merkle"
	"github.com/spool-labs/tape-node/internal/packer"
	"github.com/spool-labs/tape-node/internal/store"
)

// PackTask is T-Pack: it drains the queue, packs each raw segment under the
// node's own miner identity, persists the result, and invalidates that
// segment's canopy entry so the next GetProof reflects the write.
type PackTask struct {
	queue     *Queue
	packer    *packer.Packer
	store     *store.Store
	cache     *merkle.Cache
	reader    chainclient.Reader
	minerAddr addr.Address
	logger    *slog.Logger
}

// NewPackTask builds T-Pack.
func NewPackTask(queue *Queue, p *packer.Packer, s *store.Store, cache *merkle.Cache, reader chainclient.Reader, minerAddr addr.Address, logger *slog.Logger) *PackTask {
	return &PackTask{queue: queue, packer: p, store: s, cache: cache, reader: reader, minerAddr: minerAddr, logger: logger.With("task", "t-pack")}
}

// Run drains jobs until ctx is cancelled; the queue itself is never closed
// since producers (T-Live, T-Challenge, bulk sync) may outlive any single
// Run call during shutdown.
func (t *PackTask) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job := <-t.queue.Jobs():
			t.process(ctx, job)
		}
	}
}

func (t *PackTask) process(ctx context.Context, job SegmentJob) {
	epoch, err := t.reader.EpochRecord()
	if err != nil {
		t.logger.Error("fetch epoch record failed; dropping job", "error", err)
		return
	}

	packed, err := t.packer.Pack(ctx, t.minerAddr, job.RawBytes, epoch.PackingDifficulty)
	if err != nil {
		t.logger.Error("pack failed; dropping job", "tape_address", job.TapeAddress, "segment_idx", job.SegIdx, "error", err)
		return
	}

	if err := t.store.PutSegment(job.TapeAddress, job.SegIdx, packed); err != nil {
		t.logger.Error("persist packed segment failed", "tape_address", job.TapeAddress, "segment_idx", job.SegIdx, "error", err)
		return
	}

	if err := t.cache.InvalidateSegment(job.TapeAddress, job.SegIdx); err != nil {
		t.logger.Error("canopy invalidation failed", "tape_address", job.TapeAddress, "segment_idx", job.SegIdx, "error", err)
	}
}
