// Package store provides the durable local store: one persistent table per
// entity type plus the operation queue, backed by SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/keepsakehq/keepsake-go/internal/errs"
	"github.com/keepsakehq/keepsake-go/internal/models"
)

// Store wraps the SQLite database holding the local cache and the queue.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (or creates) the local store under dataDir.
// The database is opened with:
// - WAL mode for concurrent reads/writes
// - foreign key constraints enabled
// - a single writer connection (SQLite doesn't support multiple writers)
func Open(dataDir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errs.Wrap(errs.CodeStorage, "create data directory", err)
	}

	dbPath := filepath.Join(dataDir, "keepsake.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errs.Wrap(errs.CodeStorage, "open database", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, errs.Wrap(errs.CodeStorage, "enable WAL mode", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return nil, errs.Wrap(errs.CodeStorage, "enable foreign keys", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		return nil, errs.Wrap(errs.CodeStorage, "set busy timeout", err)
	}

	s := &Store{db: db, log: log}
	if err := s.applySchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// validTables whitelists every table name that may be interpolated into SQL.
var validTables = func() map[string]bool {
	m := make(map[string]bool, len(models.EntityTags))
	for _, t := range models.EntityTags {
		m[t] = true
	}
	return m
}()

func checkTable(table string) error {
	if !validTables[table] {
		return errs.New(errs.CodeInvalid, fmt.Sprintf("unknown table %q", table))
	}
	return nil
}
