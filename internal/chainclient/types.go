// Package chainclient defines the read-only view of on-chain state this
// node consumes, and the opaque submission boundary it writes through.
//
// The on-chain program logic (rent curve, epoch/block
// accounting, reward math) and the transaction-building/signing layer are
// external collaborators. This package only declares the shapes the rest
// of the node needs and an interface boundary; it never reimplements
// consensus or reward math.
package chainclient

import (
	"time"

	"github.com/spool-labs/tape-node/internal/addr"
)

// Address is a 32-byte on-chain account identifier.
type Address = addr.Address

// TapeState mirrors the on-chain lifecycle of a tape.
type TapeState uint8

const (
	TapeCreated TapeState = iota
	TapeWriting
	TapeFinalized
	TapeExpired
)

// Tape is the chain-visible record for a single tape.
type Tape struct {
	Number        uint64
	Address       Address
	Authority     Address
	Name          [32]byte
	MerkleRoot    [32]byte
	TotalSegments uint64
	FirstSlot     uint64
	TailSlot      uint64
	Balance       uint64
	RentPerBlock  uint64
	State         TapeState
}

// IsExpired derives tape expiry from balance vs. elapsed rent, matching the
// on-chain rule this node only consumes read-only.
func (t Tape) IsExpired(currentBlock uint64) bool {
	if t.State == TapeExpired {
		return true
	}
	if currentBlock <= t.TailSlot {
		return false
	}
	elapsed := currentBlock - t.TailSlot
	owed := elapsed * t.RentPerBlock
	return owed > t.Balance
}

// Block is the minimal chain-tip view T-Live and the mining loop consume.
type Block struct {
	Slot      uint64
	Challenge [32]byte
	Timestamp time.Time
}

// Miner is this node's on-chain miner record.
type Miner struct {
	Address        Address
	UnclaimedYield uint64
	Challenge      [32]byte
}

// Epoch carries the per-epoch parameters that gate packing/mining difficulty.
type Epoch struct {
	Number            uint64 `json:"number"`
	PackingDifficulty uint64 `json:"packing_difficulty"`
	MiningDifficulty  uint64 `json:"mining_difficulty"`
	ChallengeSet      uint64 `json:"challenge_set"` // count of tapes finalized at epoch construction time
}

// SegmentWriteEvent is a single segment-write extracted from a block.
type SegmentWriteEvent struct {
	TapeAddress Address
	SegmentIdx  uint64
	RawBytes    []byte
	Slot        uint64
	PrevSlot    uint64
}

// TapeFinalizedEvent marks a tape transitioning into TapeFinalized.
type TapeFinalizedEvent struct {
	TapeNumber  uint64
	TapeAddress Address
}

// BlockEvents is everything T-Live extracts from one block.
type BlockEvents struct {
	Slot         uint64
	Finalized    []TapeFinalizedEvent
	SegmentWrite []SegmentWriteEvent
}

// Instruction is an opaque payload destined for the chain-client submission
// boundary; this node never inspects or builds transactions, it
// only hands instructions to Submitter.
type Instruction struct {
	Kind string
	Data []byte
}

// Submitter is the external transaction-building/signing boundary.
type Submitter interface {
	Submit(instr Instruction) error
}

// Reader is the read-only chain surface the archive pipeline and mining
// loop consume. A real implementation talks to the chain's RPC; tests use
// an in-memory fake.
type Reader interface {
	CurrentSlot() (uint64, error)
	BlockRange(fromSlot, toSlot uint64) ([]BlockEvents, error)
	BlockHeader(slot uint64) (Block, error)
	MinerRecord(addr Address) (Miner, error)
	EpochRecord() (Epoch, error)
	TapeByNumber(number uint64) (Tape, error)
	TapeByAddress(addr Address) (Tape, error)
}
