package store

import (
	badger "github.com/dgraph-io/badger/v4"

	"github.com/spool-labs/tape-node/internal/addr"
)

// PutSegment writes a packed segment at globalIdx into its sector, flipping
// the sector's membership bit and bumping tape_segments atomically iff this
// is the first write to that index. Rewrites of an already
// set index are idempotent no-ops on the counter but still overwrite bytes,
// matching the "last write wins within a slot" rule.
func (s *Store) PutSegment(address addr.Address, globalIdx uint64, packed []byte) error {
	if len(packed) != PackedSegSize {
		return ErrInvalidSegmentSize
	}
	sectorNumber, slot := sectorOf(globalIdx)
	key := keySector(address, sectorNumber)

	return s.db.Update(func(txn *badger.Txn) error {
		sec, err := loadOrNewSectorTxn(txn, key)
		if err != nil {
			return err
		}

		flipped := sec.setBit(slot)
		sec.writeSlot(slot, packed)

		if err := txn.Set(key, sec.encode()); err != nil {
			return &BackendError{Err: err}
		}

		if flipped {
			count, err := getSegmentCountTxn(txn, address)
			if err != nil {
				return err
			}
			if err := setSegmentCountTxn(txn, address, count+1); err != nil {
				return &BackendError{Err: err}
			}
		}
		return nil
	})
}

// GetSegment reads back one packed segment, or ErrSegmentNotFound if the
// index was never written.
func (s *Store) GetSegment(address addr.Address, globalIdx uint64) ([]byte, error) {
	sectorNumber, slot := sectorOf(globalIdx)
	key := keySector(address, sectorNumber)

	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrSegmentNotFound
			}
			return &BackendError{Err: err}
		}
		var raw []byte
		if err := item.Value(func(val []byte) error {
			raw = append(raw, val...)
			return nil
		}); err != nil {
			return &BackendError{Err: err}
		}
		sec, err := decodeSector(raw)
		if err != nil {
			return err
		}
		if !sec.bitSet(slot) {
			return ErrSegmentNotFound
		}
		out = sec.readSlot(slot)
		return nil
	})
	return out, err
}

// TapeSegment is one entry of an ordered GetTapeSegments scan.
type TapeSegment struct {
	GlobalIndex uint64
	Data        []byte
}

// GetTapeSegments returns every written segment for a tape, in strictly
// ascending global-index order, by prefix-scanning the sectors table.
// Ordering falls out of the key layout rather than an explicit sort:
// badger's iterator walks sector keys in ascending big-endian sector-number
// order, and each sector's slots are scanned 0..L, so the concatenation is
// already sorted by global index.
func (s *Store) GetTapeSegments(address addr.Address) ([]TapeSegment, error) {
	var out []TapeSegment
	prefix := keySectorPrefix(address)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			sectorNumber := sectorNumberFromKey(item.Key())

			var raw []byte
			if err := item.Value(func(val []byte) error {
				raw = append(raw, val...)
				return nil
			}); err != nil {
				return &BackendError{Err: err}
			}
			sec, err := decodeSector(raw)
			if err != nil {
				return err
			}
			for slot := 0; slot < SectorSlots; slot++ {
				if sec.bitSet(slot) {
					idx := globalIndexFromSector(sectorNumber, slot)
					out = append(out, TapeSegment{GlobalIndex: idx, Data: sec.readSlot(slot)})
				}
			}
		}
		return nil
	})
	return out, err
}

func loadOrNewSectorTxn(txn *badger.Txn, key []byte) (*sector, error) {
	item, err := txn.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return newSector(), nil
		}
		return nil, &BackendError{Err: err}
	}
	var raw []byte
	if err := item.Value(func(val []byte) error {
		raw = append(raw, val...)
		return nil
	}); err != nil {
		return nil, &BackendError{Err: err}
	}
	return decodeSector(raw)
}
