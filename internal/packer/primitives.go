// Package packer implements the CPU-bound raw-segment -> packed-segment
// transform (C3). The actual memory-hard binding functions are treated as
// external black boxes; this package only defines the
// pluggable boundary (Solver) and the pack/unpack framing around it.
package packer

import (
	"context"

	"github.com/spool-labs/tape-node/internal/addr"
)

// Solution is the opaque proof a Solver produces, embedded verbatim in the
// packed segment's trailing bytes.
type Solution []byte

// Solver wraps the two externally specified primitives pack_solve and
// pack_verify. A real implementation is a memory-hard function
// binding canonicalSeg to minerKey; this package never reimplements one.
type Solver interface {
	// Solve attempts to produce a Solution binding canonicalSeg to minerKey
	// at the given difficulty. ok is false on a recoverable solve failure
	// (budget exhausted), distinct from err which signals a hard fault.
	Solve(ctx context.Context, minerKey addr.Address, canonicalSeg []byte, difficulty uint64) (sol Solution, ok bool, err error)
	// Verify checks a previously produced Solution.
	Verify(minerKey addr.Address, canonicalSeg []byte, sol Solution, difficulty uint64) bool
}
