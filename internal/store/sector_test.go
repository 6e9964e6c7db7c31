package store

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSectorSetBitFlipOnlyOnce(t *testing.T) {
	s := newSector()
	require.True(t, s.setBit(5))
	require.False(t, s.setBit(5))
	require.True(t, s.bitSet(5))
	require.False(t, s.bitSet(6))
}

func TestSectorEncodeDecodeRoundTrip(t *testing.T) {
	s := newSector()
	s.setBit(0)
	s.setBit(SectorSlots - 1)
	payload := bytes.Repeat([]byte{0xAB}, PackedSegSize)
	s.writeSlot(0, payload)

	raw := s.encode()
	require.Len(t, raw, SectorSize)

	decoded, err := decodeSector(raw)
	require.NoError(t, err)
	require.True(t, decoded.bitSet(0))
	require.True(t, decoded.bitSet(SectorSlots-1))
	require.False(t, decoded.bitSet(1))
	require.Equal(t, payload, decoded.readSlot(0))
	require.Equal(t, 2, decoded.popcount())
}

func TestDecodeSectorRejectsWrongLength(t *testing.T) {
	_, err := decodeSector(make([]byte, SectorSize-1))
	require.ErrorIs(t, err, ErrCorruptSector)
}

func TestDecodeSectorDetectsCorruption(t *testing.T) {
	s := newSector()
	s.setBit(3)
	raw := s.encode()
	raw[0] ^= 0xFF // flip a bitmap bit without recomputing the checksum

	_, err := decodeSector(raw)
	require.ErrorIs(t, err, ErrCorruptSector)
}
