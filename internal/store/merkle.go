package store

import (
	badger "github.com/dgraph-io/badger/v4"

	"github.com/spool-labs/tape-node/internal/addr"
)

// PutMerkleLayer persists one canopy layer's hash row for a tape.
func (s *Store) PutMerkleLayer(address addr.Address, layer uint8, kind MerkleKind, data []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyMerkleHashes(address, layer, kind), data)
	})
}

// GetMerkleLayer reads back a previously stored canopy layer.
func (s *Store) GetMerkleLayer(address addr.Address, layer uint8, kind MerkleKind) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyMerkleHashes(address, layer, kind))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrSegmentNotFound
			}
			return &BackendError{Err: err}
		}
		return item.Value(func(val []byte) error {
			out = append(out, val...)
			return nil
		})
	})
	return out, err
}
