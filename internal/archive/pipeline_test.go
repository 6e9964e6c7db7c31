package archive

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spool-labs/tape-node/internal/addr"
	"github.com/spool-labs/tape-node/internal/chainclient"
	"github.com/spool-labs/tape-node/internal/merkle"
	"github.com/spool-labs/tape-node/internal/packer"
	"github.com/spool-labs/tape-node/internal/store"
)

// fakeReader is a minimal in-memory chainclient.Reader for pipeline tests.
type fakeReader struct {
	tip   uint64
	block chainclient.Block
	miner chainclient.Miner
	epoch chainclient.Epoch
	tape  chainclient.Tape
	jobs  []chainclient.BlockEvents
}

func (f *fakeReader) CurrentSlot() (uint64, error) { return f.tip, nil }

func (f *fakeReader) BlockRange(from, to uint64) ([]chainclient.BlockEvents, error) {
	var out []chainclient.BlockEvents
	for _, be := range f.jobs {
		if be.Slot >= from && be.Slot <= to {
			out = append(out, be)
		}
	}
	return out, nil
}

func (f *fakeReader) BlockHeader(slot uint64) (chainclient.Block, error) { return f.block, nil }
func (f *fakeReader) MinerRecord(addr.Address) (chainclient.Miner, error) { return f.miner, nil }
func (f *fakeReader) EpochRecord() (chainclient.Epoch, error)             { return f.epoch, nil }
func (f *fakeReader) TapeByNumber(uint64) (chainclient.Tape, error)       { return f.tape, nil }
func (f *fakeReader) TapeByAddress(addr.Address) (chainclient.Tape, error) {
	return f.tape, nil
}

// alwaysSolver is a trivial packer.Solver stand-in for pipeline tests.
type alwaysSolver struct{}

func (alwaysSolver) Solve(_ context.Context, minerKey addr.Address, canonical []byte, difficulty uint64) (packer.Solution, bool, error) {
	return make(packer.Solution, store.PackedSegSize-store.SegSize), true, nil
}

func (alwaysSolver) Verify(addr.Address, []byte, packer.Solution, uint64) bool { return true }

func TestPipelineLiveToPack(t *testing.T) {
	s, err := store.Open(t.TempDir(), store.ModeExclusiveWriter)
	require.NoError(t, err)
	defer s.Close()

	var tapeAddr, minerAddr addr.Address
	tapeAddr[0] = 0x11
	minerAddr[0] = 0x22

	reader := &fakeReader{
		tip:   1,
		tape:  chainclient.Tape{Address: tapeAddr, TotalSegments: 1},
		epoch: chainclient.Epoch{PackingDifficulty: 1, ChallengeSet: 0},
		jobs: []chainclient.BlockEvents{
			{
				Slot: 1,
				SegmentWrite: []chainclient.SegmentWriteEvent{
					{TapeAddress: tapeAddr, SegmentIdx: 0, RawBytes: []byte("hello-segment"), Slot: 1},
				},
			},
		},
	}

	logger := slog.Default()
	queue := NewQueue(10)
	p := packer.NewPacker(alwaysSolver{}, 1)

	cache := merkle.New(s)

	live := NewLiveTailer(reader, queue, s, logger)
	challenge := NewChallengeSyncer(reader, queue, s, nil, minerAddr, logger)
	pack := NewPackTask(queue, p, s, cache, reader, minerAddr, logger)
	pipeline := NewPipeline(queue, live, challenge, pack, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- pipeline.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		count, err := s.GetSegmentCount(tapeAddr)
		require.NoError(t, err)
		if count == 1 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	count, err := s.GetSegmentCount(tapeAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)

	got, err := s.GetSegment(tapeAddr, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("hello-segment"), got[:len("hello-segment")])

	// The proof read before any explicit BuildCanopy call must have full
	// length and match the proof after a from-scratch rebuild. For segment 0
	// the canopy-level siblings are sectors 1 and up, so canopy entry 0
	// itself is not part of this proof.
	proofBeforeRebuild, err := cache.GetProof(tapeAddr, 0)
	require.NoError(t, err)
	require.Len(t, proofBeforeRebuild, merkle.SegTreeHeight)

	require.NoError(t, cache.BuildCanopy(tapeAddr))
	proofAfterRebuild, err := cache.GetProof(tapeAddr, 0)
	require.NoError(t, err)
	require.Equal(t, proofAfterRebuild, proofBeforeRebuild)

	cancel()
	<-runErr
}
