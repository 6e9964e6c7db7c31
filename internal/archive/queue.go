// Package archive implements C4: the three cooperating tasks (T-Live,
// T-Challenge, T-Pack) that follow the chain tip, extract and back-fill
// segment-write events, and feed them through the Packer into the store.
package archive

import (
	"context"

	"github.com/spool-labs/tape-node/internal/addr"
)

// QueueCapacity is the bounded queue's fixed capacity.
const QueueCapacity = 10000

// SegmentJob is a raw segment awaiting packing.
type SegmentJob struct {
	TapeAddress addr.Address
	SegIdx      uint64
	RawBytes    []byte
}

// Queue is the bounded channel shared by the pipeline's producers and
// T-Pack. A full queue blocks producers rather than drops jobs.
type Queue struct {
	ch chan SegmentJob
}

// NewQueue builds a queue with the given capacity (QueueCapacity in production).
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = QueueCapacity
	}
	return &Queue{ch: make(chan SegmentJob, capacity)}
}

// Enqueue blocks until there is room or ctx is done. Implements
// peersync.JobSink so bulk sync can feed discovered segments through the
// same queue as the live tailer.
func (q *Queue) Enqueue(ctx context.Context, tapeAddress addr.Address, segIdx uint64, raw []byte) error {
	select {
	case q.ch <- SegmentJob{TapeAddress: tapeAddress, SegIdx: segIdx, RawBytes: raw}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jobs exposes the receive side for T-Pack.
func (q *Queue) Jobs() <-chan SegmentJob { return q.ch }

// Len reports the number of jobs currently buffered (diagnostic only).
func (q *Queue) Len() int { return len(q.ch) }
