package packer

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/spool-labs/tape-node/internal/addr"
	"github.com/spool-labs/tape-node/internal/resilience"
	"github.com/spool-labs/tape-node/internal/store"
)

const (
	solveAttempts = 5
	solveBaseWait = 200 * time.Millisecond
)

// Packer transforms raw segments into miner-specific packed segments on a
// blocking worker pool, so CPU-bound solving never stalls the pipeline's
// async tasks.
type Packer struct {
	solver Solver
	sem    chan struct{}

	packed   metric.Int64Counter
	failed   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewPacker builds a Packer whose worker pool is sized to the host core
// count minus one. workers <= 0 selects that default.
func NewPacker(solver Solver, workers int) *Packer {
	if workers <= 0 {
		workers = runtime.NumCPU() - 1
		if workers < 1 {
			workers = 1
		}
	}
	meter := otel.Meter("tape-node-packer")
	packed, _ := meter.Int64Counter("tape_packer_segments_packed_total")
	failed, _ := meter.Int64Counter("tape_packer_segments_failed_total")
	duration, _ := meter.Float64Histogram("tape_packer_pack_duration_seconds")

	return &Packer{
		solver:   solver,
		sem:      make(chan struct{}, workers),
		packed:   packed,
		failed:   failed,
		duration: duration,
	}
}

// padCanonical right-zero-pads raw to SEG bytes, or rejects oversize input
//.
func padCanonical(raw []byte) ([]byte, error) {
	if len(raw) > store.SegSize {
		return nil, ErrInvalidRawSize
	}
	if len(raw) == store.SegSize {
		return raw, nil
	}
	out := make([]byte, store.SegSize)
	copy(out, raw)
	return out, nil
}

// Pack runs pack_solve (retried with exponential backoff on recoverable
// failure) then pack_verify, and frames the result as a fixed PSEG-sized
// packed segment: canonical bytes followed by the solution.
func (p *Packer) Pack(ctx context.Context, minerAddr addr.Address, rawSeg []byte, difficulty uint64) ([]byte, error) {
	canonical, err := padCanonical(rawSeg)
	if err != nil {
		return nil, err
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-p.sem }()

	start := time.Now()
	sol, err := resilience.Retry(ctx, solveAttempts, solveBaseWait, func() (Solution, error) {
		s, ok, err := p.solver.Solve(ctx, minerAddr, canonical, difficulty)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrSolveFailed
		}
		return s, nil
	})
	p.duration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		p.failed.Add(ctx, 1)
		return nil, err
	}

	if !p.solver.Verify(minerAddr, canonical, sol, difficulty) {
		p.failed.Add(ctx, 1)
		return nil, ErrVerifyFailed
	}

	want := store.PackedSegSize - store.SegSize
	padded := make(Solution, want)
	if len(sol) >= want {
		copy(padded, sol[:want])
	} else {
		copy(padded, sol)
	}

	packed := make([]byte, 0, store.PackedSegSize)
	packed = append(packed, canonical...)
	packed = append(packed, padded...)

	p.packed.Add(ctx, 1, metric.WithAttributes(attribute.Int64("difficulty", int64(difficulty))))
	return packed, nil
}

// Unpack recovers the canonical raw bytes from a packed segment, satisfying
// unpack(miner, pack(miner, raw)) == raw.
func (p *Packer) Unpack(packed []byte) ([]byte, error) {
	if len(packed) != store.PackedSegSize {
		return nil, ErrInvalidPackedSize
	}
	out := make([]byte, store.SegSize)
	copy(out, packed[:store.SegSize])
	return out, nil
}
