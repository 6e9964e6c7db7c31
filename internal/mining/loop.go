package mining

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/spool-labs/tape-node/internal/addr"
	"github.com/spool-labs/tape-node/internal/chainclient"
	"github.com/spool-labs/tape-node/internal/merkle"
	"github.com/spool-labs/tape-node/internal/packer"
	"github.com/spool-labs/tape-node/internal/store"
)

// tickInterval is the mining loop's cadence, bound by the chain's block
// time.
const tickInterval = 1 * time.Second

// minePayload is the opaque Instruction.Data this node submits; the chain
// client's submission boundary treats it as bytes.
type minePayload struct {
	TapeAddress addr.Address `json:"tape_address"`
	SegmentIdx  uint64       `json:"segment_idx"`
	PowSolution []byte       `json:"pow_solution"`
	Proof       [][32]byte   `json:"proof"`
	Expired     bool         `json:"expired"`
}

// Loop is C6: the mining loop.
type Loop struct {
	reader    chainclient.Reader
	submitter chainclient.Submitter
	store     *store.Store // opened in ModeSecondary
	cache     *merkle.Cache
	packer    *packer.Packer
	pow       PowPrimitive
	minerAddr addr.Address
	workers   int
	logger    *slog.Logger
}

// NewLoop builds the mining loop. workers <= 0 uses runtime.NumCPU().
func NewLoop(reader chainclient.Reader, submitter chainclient.Submitter, s *store.Store, cache *merkle.Cache, p *packer.Packer, pow PowPrimitive, minerAddr addr.Address, workers int, logger *slog.Logger) *Loop {
	return &Loop{
		reader:    reader,
		submitter: submitter,
		store:     s,
		cache:     cache,
		packer:    p,
		pow:       pow,
		minerAddr: minerAddr,
		workers:   workers,
		logger:    logger.With("component", "mining-loop"),
	}
}

// Run ticks until ctx is cancelled. Each tick has a hard budget equal to
// tickInterval; an abandoned tick is simply superseded by the next.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.runTick(ctx)
		}
	}
}

func (l *Loop) runTick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, tickInterval)
	defer cancel()
	if err := l.tick(tickCtx); err != nil {
		l.logger.Warn("mining tick failed", "error", err)
	}
}

func (l *Loop) tick(ctx context.Context) error {
	var (
		block    chainclient.Block
		minerRec chainclient.Miner
		epoch    chainclient.Epoch

		blockErr, minerErr, epochErr error
	)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		slot, err := l.reader.CurrentSlot()
		if err != nil {
			blockErr = err
			return
		}
		block, blockErr = l.reader.BlockHeader(slot)
	}()
	go func() {
		defer wg.Done()
		minerRec, minerErr = l.reader.MinerRecord(l.minerAddr)
	}()
	go func() {
		defer wg.Done()
		epoch, epochErr = l.reader.EpochRecord()
	}()
	wg.Wait()

	if blockErr != nil {
		return blockErr
	}
	if minerErr != nil {
		return minerErr
	}
	if epochErr != nil {
		return epochErr
	}
	if epoch.ChallengeSet == 0 {
		return nil
	}

	minerChallenge := deriveChallenge(block.Challenge, minerRec.Challenge)
	tapeNumber := mapToModulus(minerChallenge, epoch.ChallengeSet) + 1

	tapeAddress, err := l.store.GetTapeAddress(tapeNumber)
	if err != nil {
		// Recall tape not finalized locally yet; the archive pipeline will fill it.
		return nil
	}

	tape, err := l.reader.TapeByAddress(tapeAddress)
	if err != nil {
		return err
	}

	var (
		segIdx  uint64
		raw     []byte
		proof   []merkle.Hash
		expired = tape.IsExpired(block.Slot)
	)
	if expired {
		raw = make([]byte, store.SegSize)
		proof = make([]merkle.Hash, merkle.SegTreeHeight)
	} else {
		segIdx = mapToModulus(minerChallenge, tape.TotalSegments)
		packed, err := l.store.GetSegment(tapeAddress, segIdx)
		if err != nil {
			// Recall segment not archived locally yet; skip this tick.
			return nil
		}
		raw, err = l.packer.Unpack(packed)
		if err != nil {
			return err
		}
		proof, err = l.cache.GetProof(tapeAddress, segIdx)
		if err != nil {
			return err
		}
	}

	solution, ok := RaceSolve(ctx, l.pow, minerChallenge, raw, epoch.MiningDifficulty, l.workers)
	if !ok {
		l.logger.Warn("pow not solved within tick budget; abandoning tick")
		return nil
	}

	payload := minePayload{
		TapeAddress: tapeAddress,
		SegmentIdx:  segIdx,
		PowSolution: solution,
		Proof:       toRawProof(proof),
		Expired:     expired,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return l.submitter.Submit(chainclient.Instruction{Kind: "mine", Data: data})
}

func toRawProof(proof []merkle.Hash) [][32]byte {
	out := make([][32]byte, len(proof))
	for i, h := range proof {
		out[i] = [32]byte(h)
	}
	return out
}

func deriveChallenge(blockChallenge, minerChallenge [32]byte) [32]byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, blockChallenge[:]...)
	buf = append(buf, minerChallenge[:]...)
	return sha256.Sum256(buf)
}

func mapToModulus(challenge [32]byte, modulus uint64) uint64 {
	v := binary.BigEndian.Uint64(challenge[:8])
	return v % modulus
}
