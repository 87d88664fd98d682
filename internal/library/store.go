// Package library is the track catalog: an embedded sqlite database holding
// scanned tracks and the persisted queue/player state. It implements the
// coordinator's resolver boundary.
package library

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	appName    = "coda"
	dbFileName = "coda.db"
)

// Store is the catalog handle. Safe for concurrent use; database/sql
// serializes access to the single sqlite file.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the catalog location under the XDG data dir.
func DefaultPath() (string, error) {
	return xdg.DataFile(filepath.Join(appName, dbFileName))
}

// Open opens (creating if needed) the catalog at path. Use ":memory:" for
// an ephemeral store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
