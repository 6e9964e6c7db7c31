package archive

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"log/slog"
	"time"

	"github.com/spool-labs/tape-node/internal/addr"
	"github.com/spool-labs/tape-node/internal/chainclient"
	"github.com/spool-labs/tape-node/internal/peersync"
	"github.com/spool-labs/tape-node/internal/store"
)

// challengeInterval is T-Challenge's tick cadence.
const challengeInterval = 10 * time.Second

// maxBackfillBlocks bounds a single ancestor walk so a long-unsynced tape
// can't monopolize one tick (original_source supplements bound the walk by
// the tape's first_slot; this is a hard cap on top of that bound).
const maxBackfillBlocks = 500

// ChallengeSyncer is T-Challenge: it derives the node's recall tape from
// the current challenge and back-fills any gap in its locally stored
// segment count, either by walking chain ancestors or via a trusted peer.
type ChallengeSyncer struct {
	reader    chainclient.Reader
	queue     *Queue
	store     *store.Store
	peer      *peersync.Client // nil disables peer-assisted back-fill
	minerAddr addr.Address
	logger    *slog.Logger
}

// NewChallengeSyncer builds T-Challenge. peer may be nil.
func NewChallengeSyncer(reader chainclient.Reader, queue *Queue, s *store.Store, peer *peersync.Client, minerAddr addr.Address, logger *slog.Logger) *ChallengeSyncer {
	return &ChallengeSyncer{
		reader:    reader,
		queue:     queue,
		store:     s,
		peer:      peer,
		minerAddr: minerAddr,
		logger:    logger.With("task", "t-challenge"),
	}
}

// Run ticks every challengeInterval until ctx is cancelled.
func (c *ChallengeSyncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(challengeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.tick(ctx); err != nil {
				c.logger.Warn("tick failed", "error", err)
			}
		}
	}
}

func (c *ChallengeSyncer) tick(ctx context.Context) error {
	slot, err := c.reader.CurrentSlot()
	if err != nil {
		return err
	}
	block, err := c.reader.BlockHeader(slot)
	if err != nil {
		return err
	}
	miner, err := c.reader.MinerRecord(c.minerAddr)
	if err != nil {
		return err
	}
	epoch, err := c.reader.EpochRecord()
	if err != nil {
		return err
	}
	if epoch.ChallengeSet == 0 {
		return nil
	}

	minerChallenge := deriveMinerChallenge(block.Challenge, miner.Challenge)
	tapeNumber := mapToModulus(minerChallenge, epoch.ChallengeSet) + 1 // tape numbers are 1-based

	tapeAddress, err := c.store.GetTapeAddress(tapeNumber)
	if err != nil {
		// Not finalized locally yet; T-Live will pick it up.
		return nil
	}
	tape, err := c.reader.TapeByAddress(tapeAddress)
	if err != nil {
		return err
	}

	localCount, err := c.store.GetSegmentCount(tapeAddress)
	if err != nil {
		return err
	}
	if localCount >= tape.TotalSegments {
		return nil
	}

	if c.peer != nil {
		return c.backfillFromPeer(ctx, tape)
	}
	return c.backfillFromChain(ctx, tape)
}

func deriveMinerChallenge(blockChallenge, minerChallenge [32]byte) [32]byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, blockChallenge[:]...)
	buf = append(buf, minerChallenge[:]...)
	return sha256.Sum256(buf)
}

func mapToModulus(challenge [32]byte, modulus uint64) uint64 {
	v := binary.BigEndian.Uint64(challenge[:8])
	return v % modulus
}

func (c *ChallengeSyncer) backfillFromPeer(ctx context.Context, tape chainclient.Tape) error {
	segments, err := c.peer.FetchTapeSegments(ctx, tape.Address)
	if err != nil {
		return err
	}
	for _, seg := range segments {
		if err := c.queue.Enqueue(ctx, tape.Address, seg.Idx, seg.Raw); err != nil {
			return err
		}
	}
	return nil
}

// backfillFromChain walks segment-write ancestors backward from the tape's
// tail slot to its first slot, following each segment-write's prev_slot
// pointer.
func (c *ChallengeSyncer) backfillFromChain(ctx context.Context, tape chainclient.Tape) error {
	cursor := tape.TailSlot
	for walked := 0; walked < maxBackfillBlocks && cursor >= tape.FirstSlot; walked++ {
		blocks, err := c.reader.BlockRange(cursor, cursor)
		if err != nil {
			return err
		}
		if len(blocks) == 0 {
			if cursor == tape.FirstSlot {
				return nil
			}
			cursor--
			continue
		}

		next := uint64(0)
		haveNext := false
		for _, sw := range blocks[0].SegmentWrite {
			if sw.TapeAddress != tape.Address {
				continue
			}
			if sw.PrevSlot > cursor {
				return ErrAncestorInconsistent
			}
			if err := c.queue.Enqueue(ctx, tape.Address, sw.SegmentIdx, sw.RawBytes); err != nil {
				return err
			}
			if !haveNext || sw.PrevSlot > next {
				next = sw.PrevSlot
				haveNext = true
			}
		}

		if cursor == tape.FirstSlot {
			return nil
		}
		if haveNext {
			cursor = next
		} else {
			cursor--
		}
	}
	return nil
}
