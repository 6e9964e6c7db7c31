package store

import (
	"encoding/binary"

	"github.com/spool-labs/tape-node/internal/addr"
)

func keyTapeByNumber(number uint64) []byte {
	k := make([]byte, 1+8)
	k[0] = prefixTapeByNumber
	binary.BigEndian.PutUint64(k[1:], number)
	return k
}

func keyTapeByAddress(a addr.Address) []byte {
	k := make([]byte, 1+32)
	k[0] = prefixTapeByAddress
	copy(k[1:], a[:])
	return k
}

func keyTapeSegments(a addr.Address) []byte {
	k := make([]byte, 1+32)
	k[0] = prefixTapeSegments
	copy(k[1:], a[:])
	return k
}

// keySectorPrefix returns the prefix shared by every sector belonging to a
// tape; used for the prefix-scan that get_tape_segments relies on. Because
// sector numbers are encoded big-endian immediately after this prefix,
// iterating it yields sectors in ascending order.
func keySectorPrefix(a addr.Address) []byte {
	k := make([]byte, 1+32)
	k[0] = prefixSectors
	copy(k[1:], a[:])
	return k
}

func keySector(a addr.Address, sectorNumber uint64) []byte {
	k := make([]byte, 1+32+8)
	k[0] = prefixSectors
	copy(k[1:33], a[:])
	binary.BigEndian.PutUint64(k[33:], sectorNumber)
	return k
}

func sectorNumberFromKey(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[33:41])
}

func keyMerkleHashes(a addr.Address, layer uint8, kind MerkleKind) []byte {
	k := make([]byte, 1+32+1+1+2)
	k[0] = prefixMerkleHashes
	copy(k[1:33], a[:])
	k[33] = layer
	k[34] = byte(kind)
	return k
}

func keyHealth(name string) []byte {
	k := make([]byte, 1+len(name))
	k[0] = prefixHealth
	copy(k[1:], name)
	return k
}

// globalIndexFromSector recovers a segment's global index from its sector
// number and in-sector slot offset.
func globalIndexFromSector(sectorNumber uint64, slot int) uint64 {
	return sectorNumber*SectorSlots + uint64(slot)
}

func sectorOf(globalIdx uint64) (sectorNumber uint64, slot int) {
	return globalIdx / SectorSlots, int(globalIdx % SectorSlots)
}
