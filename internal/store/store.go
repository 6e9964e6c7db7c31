// Package store implements the sharded key/value segment store (C1):
// an embedded LSM (badger) holding tapes, sectorized packed segments,
// Merkle canopy layers, and a health singleton.
package store

import (
	"bytes"
	"log/slog"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// Mode selects how the store opens its badger directory.
type Mode int

const (
	// ModeExclusiveWriter is the archive process's mode: sole read/write
	// owner of the primary directory.
	ModeExclusiveWriter Mode = iota
	// ModeReadOnly opens the primary directory without taking the write lock,
	// for CLI inspection.
	ModeReadOnly
	// ModeSecondary is a catch-up handle over its own directory, refreshed
	// from a primary directory's contents on a poll cadence. Build one with
	// OpenSecondary, not Open.
	ModeSecondary
)

// secondaryRefreshInterval is the minimum poll cadence for a catch-up
// secondary handle (spec: "secondary opens poll the primary at >= 15s
// cadence").
const secondaryRefreshInterval = 15 * time.Second

// Store wraps a single badger.DB and implements the six logical tables of
// key-prefixed rows within it, following a prefix-key column-family idiom.
type Store struct {
	db   *badger.DB
	mode Mode
	path string

	primaryPath   string
	since         uint64 // badger Backup/Load watermark, ModeSecondary only
	closeStopPoll chan struct{}
	lastRefresh   atomic.Int64 // unix nanos of the last successful refresh
}

// Open opens (creating if necessary) a store at dir in the given mode. Mode
// must be ModeExclusiveWriter or ModeReadOnly; use OpenSecondary for a
// catch-up handle.
func Open(dir string, mode Mode) (*Store, error) {
	if mode == ModeSecondary {
		return nil, ErrUseOpenSecondary
	}
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.WARNING)
	if mode == ModeReadOnly {
		opts = opts.WithReadOnly(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, &BackendError{Err: err}
	}
	return &Store{db: db, mode: mode, path: dir}, nil
}

// OpenSecondary opens (creating if necessary) a catch-up secondary store at
// dir, backed by periodic badger Backup/Load refreshes pulled from
// primaryDir. badger supports opening the same directory concurrently from
// a second process in read-only mode (its own "online backup" mechanism),
// so the refresh loop briefly opens primaryDir read-only on each tick,
// streams an incremental Backup since the last watermark, and Loads it into
// this store's own directory — no external rsync/copy step required.
func OpenSecondary(dir, primaryDir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, &BackendError{Err: err}
	}
	s := &Store{db: db, mode: ModeSecondary, path: dir, primaryPath: primaryDir}
	s.closeStopPoll = make(chan struct{})

	// Prime the secondary with a full backup before serving any reads, so a
	// freshly-started mining/web process doesn't see an empty store for the
	// first refresh interval.
	if err := s.refreshFromPrimary(); err != nil {
		db.Close()
		return nil, err
	}
	go s.pollPrimary()
	return s, nil
}

// pollPrimary refreshes a secondary handle from its primary directory on
// secondaryRefreshInterval, logging and retrying on failure rather than
// treating a single missed refresh as fatal (the primary may be mid-restart
// or briefly unreachable).
func (s *Store) pollPrimary() {
	ticker := time.NewTicker(secondaryRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.closeStopPoll:
			return
		case <-ticker.C:
			if err := s.refreshFromPrimary(); err != nil {
				slog.Default().Warn("store: secondary refresh failed", "dir", s.path, "primary", s.primaryPath, "error", err)
			}
		}
	}
}

// refreshFromPrimary opens primaryPath read-only, streams every entry
// written since the last watermark via badger's Backup, and Loads the
// stream into this store's own badger.DB. Incremental: since advances to
// the watermark badger.Backup returns, so a steady-state refresh only
// transfers what changed since the previous tick.
func (s *Store) refreshFromPrimary() error {
	primaryOpts := badger.DefaultOptions(s.primaryPath).WithReadOnly(true).WithLoggingLevel(badger.WARNING)
	primary, err := badger.Open(primaryOpts)
	if err != nil {
		return &BackendError{Err: err}
	}
	defer primary.Close()

	var buf bytes.Buffer
	next, err := primary.Backup(&buf, s.since)
	if err != nil {
		return &BackendError{Err: err}
	}
	if buf.Len() > 0 {
		if err := s.db.Load(&buf, 256); err != nil {
			return &BackendError{Err: err}
		}
	}
	s.since = next
	s.lastRefresh.Store(time.Now().UnixNano())
	return nil
}

// Close releases the underlying badger handle.
func (s *Store) Close() error {
	if s.closeStopPoll != nil {
		close(s.closeStopPoll)
	}
	if err := s.db.Close(); err != nil {
		return &BackendError{Err: err}
	}
	return nil
}

// Path returns the directory this store was opened against.
func (s *Store) Path() string { return s.path }
