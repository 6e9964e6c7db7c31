package peersync

import (
	"context"
	"log/slog"
	"sync"

	"github.com/spool-labs/tape-node/internal/addr"
	"github.com/spool-labs/tape-node/internal/store"
)

// JobSink accepts a raw segment discovered during bulk sync, destined for
// the Packer.
type JobSink interface {
	Enqueue(ctx context.Context, tapeAddress addr.Address, segIdx uint64, raw []byte) error
}

// BulkSync walks tape numbers 1..=tapesStored, fetching each tape's address
// and raw segments from the peer. Concurrency is bounded by the Client's own
// per-endpoint in-flight limit; a failed fetch for one tape never aborts the
// others.
func (c *Client) BulkSync(ctx context.Context, tapesStored uint64, tapeStore *store.Store, sink JobSink, logger *slog.Logger) {
	var wg sync.WaitGroup
	for number := uint64(1); number <= tapesStored; number++ {
		wg.Add(1)
		go func(number uint64) {
			defer wg.Done()
			c.syncOneTape(ctx, number, tapeStore, sink, logger)
		}(number)
	}
	wg.Wait()
}

func (c *Client) syncOneTape(ctx context.Context, number uint64, tapeStore *store.Store, sink JobSink, logger *slog.Logger) {
	address, err := c.FetchTapeAddress(ctx, number)
	if err != nil {
		logger.Warn("peersync: fetch tape address failed", "tape_number", number, "error", err)
		return
	}
	if err := tapeStore.PutTapeAddress(number, address); err != nil {
		logger.Warn("peersync: persist tape address failed", "tape_number", number, "error", err)
		return
	}

	segments, err := c.FetchTapeSegments(ctx, address)
	if err != nil {
		logger.Warn("peersync: fetch tape segments failed", "tape_number", number, "error", err)
		return
	}
	for _, seg := range segments {
		if err := sink.Enqueue(ctx, address, seg.Idx, seg.Raw); err != nil {
			logger.Warn("peersync: enqueue segment failed", "tape_number", number, "segment_idx", seg.Idx, "error", err)
		}
	}
}
