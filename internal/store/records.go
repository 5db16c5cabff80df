package store

import (
	"database/sql"
	"errors"

	"github.com/keepsakehq/keepsake-go/internal/errs"
	"github.com/keepsakehq/keepsake-go/internal/models"
)

// Record is one row of an entity table: the sync attributes plus the entity
// body as JSON.
type Record struct {
	ID       string
	OwnerID  string
	ScopeID  string
	Status   models.SyncStatus
	LastSync int64
	Data     []byte
}

// Put upserts a record. A single put is atomic.
func (s *Store) Put(table string, r Record) error {
	if err := checkTable(table); err != nil {
		return err
	}
	query := `
	INSERT INTO ` + table + ` (id, owner_id, scope_id, sync_status, last_sync, data)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		owner_id = excluded.owner_id,
		scope_id = excluded.scope_id,
		sync_status = excluded.sync_status,
		last_sync = excluded.last_sync,
		data = excluded.data
	`
	_, err := s.db.Exec(query, r.ID, r.OwnerID, r.ScopeID, string(r.Status), r.LastSync, string(r.Data))
	if err != nil {
		return errs.Wrap(errs.CodeStorage, "put record", err)
	}
	return nil
}

// Get retrieves a record by id. Returns errs.ErrNotFound when absent.
func (s *Store) Get(table, id string) (*Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	query := `SELECT id, owner_id, scope_id, sync_status, last_sync, data FROM ` + table + ` WHERE id = ?`

	var r Record
	var status, data string
	err := s.db.QueryRow(query, id).Scan(&r.ID, &r.OwnerID, &r.ScopeID, &status, &r.LastSync, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, errs.Wrap(errs.CodeStorage, "get record", err)
	}
	r.Status = models.SyncStatus(status)
	r.Data = []byte(data)
	return &r, nil
}

// MarkSynced flips a record to synced state after its queued operations have
// drained. Marking an absent record is not an error.
func (s *Store) MarkSynced(table, id string, now int64) error {
	if err := checkTable(table); err != nil {
		return err
	}
	_, err := s.db.Exec(`UPDATE `+table+` SET sync_status = ?, last_sync = ? WHERE id = ?`,
		string(models.StatusSynced), now, id)
	if err != nil {
		return errs.Wrap(errs.CodeStorage, "mark record synced", err)
	}
	return nil
}

// Delete removes a record by id. Deleting an absent record is not an error.
func (s *Store) Delete(table, id string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM `+table+` WHERE id = ?`, id); err != nil {
		return errs.Wrap(errs.CodeStorage, "delete record", err)
	}
	return nil
}

// ListByOwner returns all records scoped to a user, oldest id first.
func (s *Store) ListByOwner(table, ownerID string) ([]Record, error) {
	return s.list(table, "owner_id", ownerID)
}

// ListByScope returns all records under a parent record (e.g. all comments
// for one memory).
func (s *Store) ListByScope(table, scopeID string) ([]Record, error) {
	return s.list(table, "scope_id", scopeID)
}

// ListAll returns every record in a table.
func (s *Store) ListAll(table string) ([]Record, error) {
	return s.list(table, "", "")
}

func (s *Store) list(table, column, value string) ([]Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	query := `SELECT id, owner_id, scope_id, sync_status, last_sync, data FROM ` + table
	var args []any
	if column != "" {
		query += ` WHERE ` + column + ` = ?`
		args = append(args, value)
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.CodeStorage, "list records", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var status, data string
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.ScopeID, &status, &r.LastSync, &data); err != nil {
			return nil, errs.Wrap(errs.CodeStorage, "scan record", err)
		}
		r.Status = models.SyncStatus(status)
		r.Data = []byte(data)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.CodeStorage, "iterate records", err)
	}
	return out, nil
}
