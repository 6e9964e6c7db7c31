// Package primitives supplies default, in-process implementations of the
// two externally specified memory-hard functions treated as
// black boxes: pack_solve/pack_verify and pow_solve/pow_verify. Production
// deployments are expected to swap these for the protocol's real
// memory-hard primitives; this package exists only so `packer.Packer` and
// `mining.RaceSolve` have a concrete capability object to run against
//.
package primitives

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	"github.com/spool-labs/tape-node/internal/addr"
	"github.com/spool-labs/tape-node/internal/packer"
)

// HashPacker implements packer.Solver with an iterated sha256 binding,
// standing in for the protocol's memory-hard packing function.
type HashPacker struct{}

// Solve binds canonicalSeg to minerKey by hashing them together, then
// re-hashing the digest difficulty%64+1 times; it never fails to find a solution (the real primitive's budget
// exhaustion path is exercised via packer's retry/backoff, not here).
func (HashPacker) Solve(ctx context.Context, minerKey addr.Address, canonicalSeg []byte, difficulty uint64) (packer.Solution, bool, error) {
	h := sha256.New()
	h.Write(minerKey[:])
	h.Write(canonicalSeg)
	sum := h.Sum(nil)
	for i := uint64(0); i < difficulty%64+1; i++ {
		h2 := sha256.Sum256(sum)
		sum = h2[:]
	}
	return packer.Solution(sum), true, nil
}

// Verify recomputes the same binding and compares.
func (HashPacker) Verify(minerKey addr.Address, canonicalSeg []byte, sol packer.Solution, difficulty uint64) bool {
	got, _, _ := HashPacker{}.Solve(context.Background(), minerKey, canonicalSeg, difficulty)
	want := make([]byte, len(got))
	copy(want, got)
	if len(sol) < len(want) {
		return false
	}
	for i := range want {
		if sol[i] != want[i] {
			return false
		}
	}
	return true
}

// HashPow implements mining.PowPrimitive with a leading-zero-bits hash
// search, standing in for the protocol's memory-hard proof of work.
type HashPow struct{}

// Attempt hashes (challenge, data, nonce) and reports a solution iff the
// digest's leading difficulty%24 bits are zero.
func (HashPow) Attempt(challenge [32]byte, data []byte, nonce uint64, difficulty uint64) ([]byte, bool) {
	h := sha256.New()
	h.Write(challenge[:])
	h.Write(data)
	var nb [8]byte
	binary.LittleEndian.PutUint64(nb[:], nonce)
	h.Write(nb[:])
	digest := h.Sum(nil)

	bits := difficulty % 24 // bounded so a solution is always reachable in-process
	if !leadingZeroBits(digest, bits) {
		return nil, false
	}
	out := make([]byte, 8)
	copy(out, nb[:])
	return out, true
}

// Verify re-hashes and re-checks the leading-zero-bit requirement.
func (HashPow) Verify(challenge [32]byte, data []byte, solution []byte, difficulty uint64) bool {
	if len(solution) != 8 {
		return false
	}
	h := sha256.New()
	h.Write(challenge[:])
	h.Write(data)
	h.Write(solution)
	digest := h.Sum(nil)
	return leadingZeroBits(digest, difficulty%24)
}

func leadingZeroBits(digest []byte, bits uint64) bool {
	fullBytes := bits / 8
	rem := bits % 8
	for i := uint64(0); i < fullBytes; i++ {
		if digest[i] != 0 {
			return false
		}
	}
	if rem == 0 {
		return true
	}
	mask := byte(0xFF << (8 - rem))
	return digest[fullBytes]&mask == 0
}
