package packer

import (
	"context"
	"crypto/sha256"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spool-labs/tape-node/internal/addr"
	"github.com/spool-labs/tape-node/internal/store"
)

// hashSolver is a deterministic, non-memory-hard stand-in for the external
// pack_solve/pack_verify primitives, used only to exercise the pack/unpack
// framing in tests.
type hashSolver struct {
	failuresBeforeSuccess int32
	calls                 atomic.Int32
}

func (h *hashSolver) Solve(_ context.Context, minerKey addr.Address, canonical []byte, difficulty uint64) (Solution, bool, error) {
	n := h.calls.Add(1)
	if n <= h.failuresBeforeSuccess {
		return nil, false, nil
	}
	return h.solutionFor(minerKey, canonical, difficulty), true, nil
}

func (h *hashSolver) Verify(minerKey addr.Address, canonical []byte, sol Solution, difficulty uint64) bool {
	want := h.solutionFor(minerKey, canonical, difficulty)
	if len(sol) != len(want) {
		return false
	}
	for i := range sol {
		if sol[i] != want[i] {
			return false
		}
	}
	return true
}

func (h *hashSolver) solutionFor(minerKey addr.Address, canonical []byte, difficulty uint64) Solution {
	sum := sha256.Sum256(append(append([]byte{}, minerKey[:]...), canonical...))
	out := make(Solution, store.PackedSegSize-store.SegSize)
	for i := range out {
		out[i] = sum[i%len(sum)]
	}
	return out
}

func TestPackUnpackRoundTrip(t *testing.T) {
	p := NewPacker(&hashSolver{}, 2)
	var miner addr.Address
	miner[0] = 7

	raw := make([]byte, store.SegSize)
	for i := range raw {
		raw[i] = byte(i)
	}

	packed, err := p.Pack(context.Background(), miner, raw, 1)
	require.NoError(t, err)
	require.Len(t, packed, store.PackedSegSize)

	unpacked, err := p.Unpack(packed)
	require.NoError(t, err)
	require.Equal(t, raw, unpacked)
}

func TestPackPadsShortSegments(t *testing.T) {
	p := NewPacker(&hashSolver{}, 1)
	var miner addr.Address

	raw := make([]byte, store.SegSize-1)
	packed, err := p.Pack(context.Background(), miner, raw, 1)
	require.NoError(t, err)

	unpacked, err := p.Unpack(packed)
	require.NoError(t, err)
	require.Equal(t, store.SegSize, len(unpacked))
	require.Equal(t, byte(0), unpacked[store.SegSize-1])
}

func TestPackRejectsOversizeSegments(t *testing.T) {
	p := NewPacker(&hashSolver{}, 1)
	var miner addr.Address

	raw := make([]byte, store.SegSize+1)
	_, err := p.Pack(context.Background(), miner, raw, 1)
	require.ErrorIs(t, err, ErrInvalidRawSize)
}

func TestPackRetriesOnRecoverableSolveFailure(t *testing.T) {
	solver := &hashSolver{failuresBeforeSuccess: 2}
	p := NewPacker(solver, 1)
	var miner addr.Address

	raw := make([]byte, store.SegSize)
	packed, err := p.Pack(context.Background(), miner, raw, 1)
	require.NoError(t, err)
	require.Len(t, packed, store.PackedSegSize)
	require.GreaterOrEqual(t, solver.calls.Load(), int32(3))
}

func TestUnpackRejectsWrongSize(t *testing.T) {
	p := NewPacker(&hashSolver{}, 1)
	_, err := p.Unpack(make([]byte, store.PackedSegSize-1))
	require.ErrorIs(t, err, ErrInvalidPackedSize)
}
