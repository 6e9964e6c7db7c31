package store

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spool-labs/tape-node/internal/addr"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), ModeExclusiveWriter)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testAddress(b byte) addr.Address {
	var a addr.Address
	a[0] = b
	return a
}

func TestTapeAddressRoundTrip(t *testing.T) {
	s := openTestStore(t)
	a := testAddress(1)

	require.NoError(t, s.PutTapeAddress(42, a))

	gotAddr, err := s.GetTapeAddress(42)
	require.NoError(t, err)
	require.Equal(t, a, gotAddr)

	gotNum, err := s.GetTapeNumber(a)
	require.NoError(t, err)
	require.Equal(t, uint64(42), gotNum)
}

func TestTapeAddressNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetTapeAddress(7)
	require.ErrorIs(t, err, ErrTapeByNumberNotFound)

	_, err = s.GetTapeNumber(testAddress(9))
	require.ErrorIs(t, err, ErrTapeByAddressNotFound)
}

func TestPutSegmentRejectsWrongSize(t *testing.T) {
	s := openTestStore(t)
	err := s.PutSegment(testAddress(1), 0, make([]byte, PackedSegSize-1))
	require.ErrorIs(t, err, ErrInvalidSegmentSize)
}

func TestPutGetSegmentAndCounter(t *testing.T) {
	s := openTestStore(t)
	a := testAddress(2)
	payload := bytes.Repeat([]byte{0x11}, PackedSegSize)

	require.NoError(t, s.PutSegment(a, 0, payload))
	count, err := s.GetSegmentCount(a)
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)

	got, err := s.GetSegment(a, 0)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	// rewriting the same index must not bump the counter again.
	rewrite := bytes.Repeat([]byte{0x22}, PackedSegSize)
	require.NoError(t, s.PutSegment(a, 0, rewrite))
	count, err = s.GetSegmentCount(a)
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)

	got, err = s.GetSegment(a, 0)
	require.NoError(t, err)
	require.Equal(t, rewrite, got)
}

func TestPutSegmentSectorBoundary(t *testing.T) {
	s := openTestStore(t)
	a := testAddress(3)
	payload := bytes.Repeat([]byte{0x33}, PackedSegSize)

	// last slot of sector 0 and first slot of sector 1.
	require.NoError(t, s.PutSegment(a, SectorSlots-1, payload))
	require.NoError(t, s.PutSegment(a, SectorSlots, payload))

	count, err := s.GetSegmentCount(a)
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)

	_, err = s.GetSegment(a, SectorSlots-1)
	require.NoError(t, err)
	_, err = s.GetSegment(a, SectorSlots)
	require.NoError(t, err)

	// an untouched neighboring index is still absent.
	_, err = s.GetSegment(a, SectorSlots-2)
	require.ErrorIs(t, err, ErrSegmentNotFound)
}

func TestGetTapeSegmentsOrdering(t *testing.T) {
	s := openTestStore(t)
	a := testAddress(4)

	// written out of order; get_tape_segments must still yield ascending
	// global indices (invariant 4).
	writeOrder := []uint64{2 * SectorSlots, 0, SectorSlots + 3, 5}
	for _, idx := range writeOrder {
		payload := bytes.Repeat([]byte{byte(idx)}, PackedSegSize)
		require.NoError(t, s.PutSegment(a, idx, payload))
	}

	segs, err := s.GetTapeSegments(a)
	require.NoError(t, err)
	require.Len(t, segs, len(writeOrder))

	want := []uint64{0, 5, SectorSlots + 3, 2 * SectorSlots}
	for i, seg := range segs {
		require.Equal(t, want[i], seg.GlobalIndex)
		if i > 0 {
			require.Greater(t, seg.GlobalIndex, segs[i-1].GlobalIndex)
		}
	}
}

func TestHealthRoundTrip(t *testing.T) {
	s := openTestStore(t)

	h, err := s.GetHealth()
	require.NoError(t, err)
	require.Equal(t, Health{}, h)

	require.NoError(t, s.UpdateHealth(Health{LastProcessedSlot: 100, DriftSlots: 3}))
	h, err = s.GetHealth()
	require.NoError(t, err)
	require.Equal(t, Health{LastProcessedSlot: 100, DriftSlots: 3}, h)
}

func TestReadOnlyStoreRejectsWrites(t *testing.T) {
	dir := t.TempDir()
	rw, err := Open(dir, ModeExclusiveWriter)
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	ro, err := Open(dir, ModeReadOnly)
	require.NoError(t, err)
	defer ro.Close()

	err = ro.PutTapeAddress(1, testAddress(1))
	require.Error(t, err)
}

func TestOpenRejectsModeSecondary(t *testing.T) {
	_, err := Open(t.TempDir(), ModeSecondary)
	require.ErrorIs(t, err, ErrUseOpenSecondary)
}

func TestOpenSecondaryRefreshesFromPrimary(t *testing.T) {
	primaryDir := t.TempDir()
	primary, err := Open(primaryDir, ModeExclusiveWriter)
	require.NoError(t, err)

	a := testAddress(7)
	require.NoError(t, primary.PutTapeAddress(3, a))
	payload := bytes.Repeat([]byte{0x42}, PackedSegSize)
	require.NoError(t, primary.PutSegment(a, 0, payload))
	require.NoError(t, primary.Close())

	secondary, err := OpenSecondary(t.TempDir(), primaryDir)
	require.NoError(t, err)
	defer secondary.Close()

	gotAddr, err := secondary.GetTapeAddress(3)
	require.NoError(t, err)
	require.Equal(t, a, gotAddr)

	gotSeg, err := secondary.GetSegment(a, 0)
	require.NoError(t, err)
	require.Equal(t, payload, gotSeg)
}
