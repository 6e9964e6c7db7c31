package store

import (
	"encoding/binary"

	badger "github.com/dgraph-io/badger/v4"
)

// Health is the singleton row tracking how far the archive pipeline has
// progressed, and its estimated drift behind the chain tip.
type Health struct {
	LastProcessedSlot uint64
	DriftSlots         uint64
}

// UpdateHealth overwrites the health singleton.
func (s *Store) UpdateHealth(h Health) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var slotBuf, driftBuf [8]byte
		binary.BigEndian.PutUint64(slotBuf[:], h.LastProcessedSlot)
		binary.BigEndian.PutUint64(driftBuf[:], h.DriftSlots)

		if err := txn.Set(keyHealth(healthKeyLastSlot), slotBuf[:]); err != nil {
			return err
		}
		return txn.Set(keyHealth(healthKeyDrift), driftBuf[:])
	})
}

// GetHealth reads back the health singleton. A never-written store reports
// zero values rather than an error, since health is meaningful from the
// first block onward only.
func (s *Store) GetHealth() (Health, error) {
	var h Health
	err := s.db.View(func(txn *badger.Txn) error {
		if v, ok, err := readUint64(txn, keyHealth(healthKeyLastSlot)); err != nil {
			return err
		} else if ok {
			h.LastProcessedSlot = v
		}
		if v, ok, err := readUint64(txn, keyHealth(healthKeyDrift)); err != nil {
			return err
		} else if ok {
			h.DriftSlots = v
		}
		return nil
	})
	return h, err
}

func readUint64(txn *badger.Txn, key []byte) (uint64, bool, error) {
	item, err := txn.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return 0, false, nil
		}
		return 0, false, &BackendError{Err: err}
	}
	var out uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return ErrCorruptSector
		}
		out = binary.BigEndian.Uint64(val)
		return nil
	})
	return out, true, err
}
