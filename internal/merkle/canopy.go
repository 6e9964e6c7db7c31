package merkle

import (
	"github.com/spool-labs/tape-node/internal/addr"
	"github.com/spool-labs/tape-node/internal/store"
)

// SegTreeHeight is the on-chain authentication-path height for a tape's
// segment tree. The store's sector size fixes the
// canopy at store.CanopyLayer levels above the leaves.
const SegTreeHeight = store.SegTreeHeight

// Cache builds and serves canopy proofs for one backing store. A Cache has
// no per-tape state of its own; everything is persisted through Store so
// multiple processes opening the same directory in different modes agree.
type Cache struct {
	store *store.Store
}

// New wraps a segment store with canopy/proof operations.
func New(s *store.Store) *Cache {
	return &Cache{store: s}
}

// GetZeros returns the tape's empty-subtree vector, computing and
// persisting it on first read.
func (c *Cache) GetZeros(address addr.Address) ([]Hash, error) {
	raw, err := c.store.GetMerkleLayer(address, 0, store.MerkleKindZeros)
	if err == nil && len(raw) == (SegTreeHeight+1)*32 {
		return decodeHashes(raw), nil
	}
	if err != nil && err != store.ErrSegmentNotFound {
		return nil, err
	}

	zeros := buildZeros(address, SegTreeHeight)
	if err := c.store.PutMerkleLayer(address, 0, store.MerkleKindZeros, encodeHashes(zeros)); err != nil {
		return nil, err
	}
	return zeros, nil
}

// BuildCanopy recomputes the tape's canopy: one subtree root for every
// sector number from 0 up to the highest stored sector. A sector in that
// range with no data gets the empty-subtree root; sectors beyond it are not
// materialized, and GetProof takes the zero table for them.
func (c *Cache) BuildCanopy(address addr.Address) error {
	zeros, err := c.GetZeros(address)
	if err != nil {
		return err
	}

	highest, found, err := c.store.HighestSector(address)
	if err != nil {
		return err
	}
	if !found {
		return c.store.PutMerkleLayer(address, store.CanopyLayer, store.MerkleKindTapeLayer, nil)
	}

	canopy := make([]Hash, highest+1)
	for n := uint64(0); n <= highest; n++ {
		view, err := c.store.ReadSector(address, n)
		if err != nil {
			return err
		}
		root, err := sectorRoot(view, n, zeros[0])
		if err != nil {
			return err
		}
		canopy[n] = root
	}

	return c.store.PutMerkleLayer(address, store.CanopyLayer, store.MerkleKindTapeLayer, encodeHashes(canopy))
}

// InvalidateSegment recomputes just the canopy entry for the sector that
// owns segIdx, extending the persisted canopy vector with empty-subtree
// roots for any skipped sectors in between. This is the cheap path callers
// take after a single PutSegment: cost is one sector read plus one hash
// pass over its L leaves, independent of how many sectors the tape has,
// unlike a full BuildCanopy rescan.
func (c *Cache) InvalidateSegment(address addr.Address, segIdx uint64) error {
	zeros, err := c.GetZeros(address)
	if err != nil {
		return err
	}

	sectorNumber := segIdx / store.SectorSlots
	view, err := c.store.ReadSector(address, sectorNumber)
	if err != nil {
		return err
	}
	root, err := sectorRoot(view, sectorNumber, zeros[0])
	if err != nil {
		return err
	}

	raw, err := c.store.GetMerkleLayer(address, store.CanopyLayer, store.MerkleKindTapeLayer)
	if err != nil && err != store.ErrSegmentNotFound {
		return err
	}
	canopy := decodeHashes(raw)

	emptySectorRoot := zeros[canopyHeight()]
	for uint64(len(canopy)) <= sectorNumber {
		canopy = append(canopy, emptySectorRoot)
	}
	canopy[sectorNumber] = root

	return c.store.PutMerkleLayer(address, store.CanopyLayer, store.MerkleKindTapeLayer, encodeHashes(canopy))
}

// sectorRoot hashes one sector's L leaves into its subtree root.
func sectorRoot(view store.SectorView, sectorNumber uint64, emptyLeaf Hash) (Hash, error) {
	leaves := make([]Hash, store.SectorSlots)
	for slot := 0; slot < store.SectorSlots; slot++ {
		if view.Present[slot] {
			globalIdx := sectorNumber*store.SectorSlots + uint64(slot)
			leaves[slot] = leafHash(globalIdx, view.Leaves[slot])
		} else {
			leaves[slot] = emptyLeaf
		}
	}
	_, root := proofPath(leaves, canopyHeight(), 0, func(int) Hash { return emptyLeaf })
	return root, nil
}

func canopyHeight() int { return log2(store.SectorSlots) }

func log2(n int) int {
	h := 0
	for (1 << uint(h)) < n {
		h++
	}
	return h
}

// GetProof builds a full authentication path for segIdx: the within-sector
// path (canopyHeight levels, hashed from the live sector bytes) spliced with
// the canopy-to-root path (SegTreeHeight-canopyHeight levels, read from the
// persisted canopy and the zero table). The result has exactly
// SegTreeHeight entries, ordered leaf-ward to root-ward.
func (c *Cache) GetProof(address addr.Address, segIdx uint64) ([]Hash, error) {
	zeros, err := c.GetZeros(address)
	if err != nil {
		return nil, err
	}

	sectorNumber := segIdx / store.SectorSlots
	slot := int(segIdx % store.SectorSlots)

	view, err := c.store.ReadSector(address, sectorNumber)
	if err != nil {
		return nil, err
	}
	leaves := make([]Hash, store.SectorSlots)
	for i := 0; i < store.SectorSlots; i++ {
		if view.Present[i] {
			globalIdx := sectorNumber*store.SectorSlots + uint64(i)
			leaves[i] = leafHash(globalIdx, view.Leaves[i])
		} else {
			leaves[i] = zeros[0]
		}
	}
	lowerSiblings, _ := proofPath(leaves, canopyHeight(), slot, func(level int) Hash { return zeros[level] })

	raw, err := c.store.GetMerkleLayer(address, store.CanopyLayer, store.MerkleKindTapeLayer)
	if err != nil && err != store.ErrSegmentNotFound {
		return nil, err
	}
	canopy := decodeHashes(raw)

	upperHeight := SegTreeHeight - canopyHeight()
	upperSiblings, _ := proofPath(canopy, upperHeight, int(sectorNumber), func(level int) Hash {
		return zeros[canopyHeight()+level]
	})

	proof := make([]Hash, 0, SegTreeHeight)
	proof = append(proof, lowerSiblings...)
	proof = append(proof, upperSiblings...)
	return proof, nil
}

// proofPath computes the authentication-path siblings for index within a
// conceptually complete binary tree of height, whose present leaves are
// given by leaves (shorter slices are treated as absent beyond their
// length); missing nodes at a given level fall back to zeroAt(level).
// Returns the siblings ordered leaf-to-root, and the tree's root.
func proofPath(leaves []Hash, height int, index int, zeroAt func(level int) Hash) ([]Hash, Hash) {
	width := 1 << uint(height)
	level := make([]Hash, width)
	for i := 0; i < width; i++ {
		if i < len(leaves) {
			level[i] = leaves[i]
		} else {
			level[i] = zeroAt(0)
		}
	}

	siblings := make([]Hash, 0, height)
	idx := index
	for h := 0; h < height; h++ {
		siblingIdx := idx ^ 1
		siblings = append(siblings, level[siblingIdx])

		next := make([]Hash, len(level)/2)
		for i := 0; i < len(next); i++ {
			next[i] = combine(level[2*i], level[2*i+1])
		}
		level = next
		idx /= 2
	}
	return siblings, level[0]
}
