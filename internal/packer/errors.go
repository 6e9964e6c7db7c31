package packer

import "errors"

var (
	// ErrSolveFailed is returned when a Solver exhausts its budget without
	// producing a solution; Pack retries with backoff before returning it.
	ErrSolveFailed = errors.New("packer: solve failed")
	// ErrVerifyFailed is returned when a produced Solution doesn't verify.
	ErrVerifyFailed = errors.New("packer: solution failed verification")
	// ErrInvalidRawSize is returned when a raw segment exceeds the fixed
	// segment size.
	ErrInvalidRawSize = errors.New("packer: raw segment exceeds SEG")
	// ErrInvalidPackedSize is returned by Unpack when its input isn't PSEG bytes.
	ErrInvalidPackedSize = errors.New("packer: packed segment is not PSEG bytes")
)
