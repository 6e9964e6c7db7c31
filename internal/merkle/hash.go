// Package merkle implements the per-tape canopy cache (C2): a materialized
// interior layer of each tape's segment Merkle tree that turns inclusion
// proof generation into one sector read plus a handful of canopy hashes,
// instead of touching every leaf on the authentication path.
//
// Hashing follows a sha256 "combine(left, right)" convention.
package merkle

import (
	"crypto/sha256"
	"encoding/binary"
)

// Hash is a 32-byte tree node.
type Hash [32]byte

func combine(left, right Hash) Hash {
	var buf [64]byte
	copy(buf[:32], left[:])
	copy(buf[32:], right[:])
	return sha256.Sum256(buf[:])
}

// leafHash computes H(seg_idx_le8 || segment_bytes).
func leafHash(segIdx uint64, data []byte) Hash {
	buf := make([]byte, 8+len(data))
	binary.LittleEndian.PutUint64(buf[:8], segIdx)
	copy(buf[8:], data)
	return sha256.Sum256(buf)
}

// zeroSeed derives the tape's unique empty-leaf hash from its address, so
// that two tapes never share an empty-subtree value.
func zeroSeed(address [32]byte) Hash {
	buf := make([]byte, 0, 32+len(zeroSeedTag))
	buf = append(buf, address[:]...)
	buf = append(buf, zeroSeedTag...)
	return sha256.Sum256(buf)
}

const zeroSeedTag = "tapedrive-empty-leaf"

// buildZeros returns the H_seg+1 empty-subtree hashes for a tape, indexed by
// height (zeros[0] is the empty leaf, zeros[h] is the empty subtree root at
// height h).
func buildZeros(address [32]byte, height int) []Hash {
	zeros := make([]Hash, height+1)
	zeros[0] = zeroSeed(address)
	for i := 1; i <= height; i++ {
		zeros[i] = combine(zeros[i-1], zeros[i-1])
	}
	return zeros
}

func encodeHashes(hs []Hash) []byte {
	out := make([]byte, len(hs)*32)
	for i, h := range hs {
		copy(out[i*32:], h[:])
	}
	return out
}

func decodeHashes(raw []byte) []Hash {
	n := len(raw) / 32
	out := make([]Hash, n)
	for i := 0; i < n; i++ {
		copy(out[i][:], raw[i*32:i*32+32])
	}
	return out
}
