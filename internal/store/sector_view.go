package store

import (
	badger "github.com/dgraph-io/badger/v4"

	"github.com/spool-labs/tape-node/internal/addr"
)

// SectorView is a read-only snapshot of one sector's membership and slot
// bytes, used by the Merkle cache to hash leaves without re-deriving the
// store's internal sector encoding.
type SectorView struct {
	Present [SectorSlots]bool
	Leaves  [SectorSlots][]byte // nil when Present[i] is false
}

// ReadSector loads the sector at (address, sectorNumber), or a fully-empty
// view if the sector has never been written.
func (s *Store) ReadSector(address addr.Address, sectorNumber uint64) (SectorView, error) {
	var view SectorView
	key := keySector(address, sectorNumber)

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
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
		for slot := 0; slot < SectorSlots; slot++ {
			if sec.bitSet(slot) {
				view.Present[slot] = true
				view.Leaves[slot] = sec.readSlot(slot)
			}
		}
		return nil
	})
	return view, err
}

// HighestSector returns the largest sector number with at least one set bit
// for the tape, and whether any sector exists at all.
func (s *Store) HighestSector(address addr.Address) (uint64, bool, error) {
	var (
		highest uint64
		found   bool
	)
	prefix := keySectorPrefix(address)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n := sectorNumberFromKey(it.Item().Key())
			if !found || n > highest {
				highest = n
				found = true
			}
		}
		return nil
	})
	return highest, found, err
}
