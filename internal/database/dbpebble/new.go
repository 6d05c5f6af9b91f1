package dbpebble

import (
	"errors"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/setavenger/blindbit-explorer/internal/logging"
)

// OpenDB opens (or creates) the pebble database at dbPath.
func OpenDB(dbPath string, cacheMB int64) (*pebble.DB, error) {
	opts := newOptions(cacheMB)
	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		logging.L.Err(err).Str("path", dbPath).Msg("failed to open pebble")
		return nil, err
	}
	return db, nil
}

func newOptions(cacheMB int64) *pebble.Options {
	// during DB open
	opts := (&pebble.Options{}).EnsureDefaults()
	if cacheMB > 0 {
		opts.Cache = pebble.NewCache(cacheMB << 20)
	}
	opts.BytesPerSync = 1 << 22 // smoother background flushes (SST sync pacing)
	opts.MaxConcurrentCompactions = func() int { return 4 }
	return opts
}

// Open opens the database at dbPath and wraps it in a Store.
func Open(dbPath string, cacheMB int64) (*Store, error) {
	db, err := OpenDB(dbPath, cacheMB)
	if err != nil {
		return nil, err
	}
	s, err := NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenInMemory backs the store with an in-memory filesystem. Used by tests.
func OpenInMemory() (*Store, error) {
	opts := newOptions(0)
	opts.FS = vfs.NewMem()
	db, err := pebble.Open("", opts)
	if err != nil {
		return nil, err
	}
	return NewStore(db)
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return errors.New("store not open")
	}
	return s.DB.Close()
}
