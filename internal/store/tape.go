package store

import (
	"encoding/binary"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/spool-labs/tape-node/internal/addr"
)

// PutTapeAddress records the tape_number <-> tape_address mapping in a
// single atomic batch, since these are cross-table writes that must
// commit together.
func (s *Store) PutTapeAddress(number uint64, address addr.Address) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(keyTapeByNumber(number), address[:]); err != nil {
			return err
		}
		var numBuf [8]byte
		binary.BigEndian.PutUint64(numBuf[:], number)
		return txn.Set(keyTapeByAddress(address), numBuf[:])
	})
}

// GetTapeAddress resolves a tape number to its address.
func (s *Store) GetTapeAddress(number uint64) (addr.Address, error) {
	var out addr.Address
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyTapeByNumber(number))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrTapeByNumberNotFound
			}
			return &BackendError{Err: err}
		}
		return item.Value(func(val []byte) error {
			if len(val) != 32 {
				return ErrCorruptSector
			}
			copy(out[:], val)
			return nil
		})
	})
	return out, err
}

// GetTapeNumber resolves a tape address to its number.
func (s *Store) GetTapeNumber(address addr.Address) (uint64, error) {
	var out uint64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyTapeByAddress(address))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrTapeByAddressNotFound
			}
			return &BackendError{Err: err}
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return ErrCorruptSector
			}
			out = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	return out, err
}

// GetSegmentCount is an O(1) read of the tape_segments counter.
func (s *Store) GetSegmentCount(address addr.Address) (uint64, error) {
	var out uint64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyTapeSegments(address))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil // no segments written yet; count is zero
			}
			return &BackendError{Err: err}
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return ErrCorruptSector
			}
			out = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	return out, err
}

func getSegmentCountTxn(txn *badger.Txn, address addr.Address) (uint64, error) {
	item, err := txn.Get(keyTapeSegments(address))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return 0, nil
		}
		return 0, &BackendError{Err: err}
	}
	var out uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return ErrCorruptSector
		}
		out = binary.BigEndian.Uint64(val)
		return nil
	})
	return out, err
}

func setSegmentCountTxn(txn *badger.Txn, address addr.Address, count uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], count)
	return txn.Set(keyTapeSegments(address), buf[:])
}
