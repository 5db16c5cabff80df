package store

import (
	"fmt"
	"strings"

	"github.com/keepsakehq/keepsake-go/internal/errs"
	"github.com/keepsakehq/keepsake-go/internal/models"
)

// Entity tables share one shape: the record id, two denormalized index
// columns for scoped queries, the sync attributes, and the record body as
// JSON text. The schema ships compiled in; there is no migrations directory
// to deploy alongside a library.
const recordTableDDL = `
CREATE TABLE IF NOT EXISTS %[1]s (
    id          TEXT PRIMARY KEY,
    owner_id    TEXT NOT NULL DEFAULT '',
    scope_id    TEXT NOT NULL DEFAULT '',
    sync_status TEXT NOT NULL DEFAULT 'synced',
    last_sync   INTEGER NOT NULL DEFAULT 0,
    data        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_owner ON %[1]s(owner_id);
CREATE INDEX IF NOT EXISTS idx_%[1]s_scope ON %[1]s(scope_id);
`

const queueTableDDL = `
CREATE TABLE IF NOT EXISTS sync_queue (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    operation     TEXT NOT NULL CHECK(operation IN ('create','update','delete')),
    entity        TEXT NOT NULL,
    entity_id     TEXT NOT NULL,
    data          TEXT NOT NULL DEFAULT '{}',
    created_at    INTEGER NOT NULL,
    retry_count   INTEGER NOT NULL DEFAULT 0,
    next_retry_at INTEGER NOT NULL DEFAULT 0,
    last_error    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_sync_queue_ready ON sync_queue(next_retry_at, id);
`

// applySchema creates all tables. Idempotent.
func (s *Store) applySchema() error {
	var ddl strings.Builder
	for _, table := range models.EntityTags {
		fmt.Fprintf(&ddl, recordTableDDL, table)
	}
	ddl.WriteString(queueTableDDL)

	if _, err := s.db.Exec(ddl.String()); err != nil {
		return errs.Wrap(errs.CodeStorage, "apply schema", err)
	}
	return nil
}
