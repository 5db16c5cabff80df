package store

import (
	"database/sql"
	"time"

	"github.com/keepsakehq/keepsake-go/internal/errs"
	"github.com/keepsakehq/keepsake-go/internal/models"
)

// Enqueue appends an entry to the operation queue. The entry's ID and
// CreatedAt are assigned here.
func (s *Store) Enqueue(e *models.QueueEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.CodeStorage, "begin enqueue", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := enqueueTx(tx, e); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.CodeStorage, "commit enqueue", err)
	}
	return nil
}

func enqueueTx(tx *sql.Tx, e *models.QueueEntry) error {
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	if len(e.Data) == 0 {
		e.Data = []byte("{}")
	}
	res, err := tx.Exec(`
	INSERT INTO sync_queue (operation, entity, entity_id, data, created_at, retry_count, next_retry_at, last_error)
	VALUES (?, ?, ?, ?, ?, 0, 0, '')`,
		string(e.Operation), e.Entity, e.EntityID, string(e.Data), e.CreatedAt)
	if err != nil {
		return errs.Wrap(errs.CodeStorage, "enqueue operation", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errs.Wrap(errs.CodeStorage, "enqueue operation id", err)
	}
	e.ID = id
	return nil
}

// PutWithEntry upserts a record and enqueues its replay entry in one
// transaction. An optimistic write that cannot be queued has not met its
// durability contract, so both land or neither does.
func (s *Store) PutWithEntry(table string, r Record, e *models.QueueEntry) error {
	if err := checkTable(table); err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.CodeStorage, "begin write", err)
	}
	defer func() { _ = tx.Rollback() }()

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
	if _, err := tx.Exec(query, r.ID, r.OwnerID, r.ScopeID, string(r.Status), r.LastSync, string(r.Data)); err != nil {
		return errs.Wrap(errs.CodeStorage, "put record", err)
	}
	if err := enqueueTx(tx, e); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.CodeStorage, "commit write", err)
	}
	return nil
}

// DeleteWithEntry removes a record and enqueues its replay entry in one
// transaction.
func (s *Store) DeleteWithEntry(table, id string, e *models.QueueEntry) error {
	if err := checkTable(table); err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.CodeStorage, "begin delete", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM `+table+` WHERE id = ?`, id); err != nil {
		return errs.Wrap(errs.CodeStorage, "delete record", err)
	}
	if err := enqueueTx(tx, e); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.CodeStorage, "commit delete", err)
	}
	return nil
}

// NextBatch returns up to limit entries whose retry time has arrived,
// oldest first. Replay order within a batch is insertion order. An entry is
// held back while an earlier entry for the same record is still deferred;
// a record's operation history must replay in order across passes too.
func (s *Store) NextBatch(limit int, now int64) ([]models.QueueEntry, error) {
	rows, err := s.db.Query(`
	SELECT id, operation, entity, entity_id, data, created_at, retry_count, next_retry_at, last_error
	FROM sync_queue AS q
	WHERE q.next_retry_at <= ?
	  AND NOT EXISTS (
	      SELECT 1 FROM sync_queue AS p
	      WHERE p.entity = q.entity AND p.entity_id = q.entity_id
	        AND p.id < q.id AND p.next_retry_at > ?
	  )
	ORDER BY q.id ASC
	LIMIT ?`, now, now, limit)
	if err != nil {
		return nil, errs.Wrap(errs.CodeStorage, "fetch queue batch", err)
	}
	defer rows.Close()

	var out []models.QueueEntry
	for rows.Next() {
		var e models.QueueEntry
		var op, data string
		if err := rows.Scan(&e.ID, &op, &e.Entity, &e.EntityID, &data, &e.CreatedAt, &e.RetryCount, &e.NextRetryAt, &e.LastError); err != nil {
			return nil, errs.Wrap(errs.CodeStorage, "scan queue entry", err)
		}
		e.Operation = models.Operation(op)
		e.Data = []byte(data)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.CodeStorage, "iterate queue", err)
	}
	return out, nil
}

// DeleteEntry removes a queue entry after successful replay (or a drop).
func (s *Store) DeleteEntry(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM sync_queue WHERE id = ?`, id); err != nil {
		return errs.Wrap(errs.CodeStorage, "delete queue entry", err)
	}
	return nil
}

// MarkEntryFailed records a failed replay attempt.
func (s *Store) MarkEntryFailed(id int64, retryCount int, lastError string, nextRetryAt int64) error {
	_, err := s.db.Exec(`
	UPDATE sync_queue SET retry_count = ?, last_error = ?, next_retry_at = ?
	WHERE id = ?`, retryCount, lastError, nextRetryAt, id)
	if err != nil {
		return errs.Wrap(errs.CodeStorage, "mark queue entry failed", err)
	}
	return nil
}

// PendingFor returns how many queue entries still reference a record.
func (s *Store) PendingFor(entityID string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sync_queue WHERE entity_id = ?`, entityID).Scan(&n); err != nil {
		return 0, errs.Wrap(errs.CodeStorage, "count pending entries", err)
	}
	return n, nil
}

// QueueDepth returns the number of entries in the queue.
func (s *Store) QueueDepth() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sync_queue`).Scan(&n); err != nil {
		return 0, errs.Wrap(errs.CodeStorage, "count queue", err)
	}
	return n, nil
}

// QueueStats returns total and retry-waiting entry counts.
func (s *Store) QueueStats(now int64) (total, waiting int, err error) {
	err = s.db.QueryRow(`
	SELECT COUNT(*), COALESCE(SUM(CASE WHEN next_retry_at > ? THEN 1 ELSE 0 END), 0)
	FROM sync_queue`, now).Scan(&total, &waiting)
	if err != nil {
		return 0, 0, errs.Wrap(errs.CodeStorage, "queue stats", err)
	}
	return total, waiting, nil
}

// ReconcileCreate rewrites a temp client id to the server-assigned id: the
// record's key, and any queued entries still referencing the temp id as the
// entity id or as a foreign key inside their payload (e.g. pending comments
// on a memory that just got its server id). Payload rewriting is a textual
// replace; UUIDs don't collide with other payload content in practice.
func (s *Store) ReconcileCreate(table, tempID, serverID string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.CodeStorage, "begin reconcile", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`UPDATE `+table+` SET id = ?, data = replace(data, ?, ?) WHERE id = ?`,
		serverID, tempID, serverID, tempID); err != nil {
		return errs.Wrap(errs.CodeStorage, "rekey record", err)
	}
	// Child records pointing at the temp id through their scope column.
	for _, t := range models.EntityTags {
		if _, err := tx.Exec(
			`UPDATE `+t+` SET scope_id = ?, data = replace(data, ?, ?) WHERE scope_id = ?`,
			serverID, tempID, serverID, tempID); err != nil {
			return errs.Wrap(errs.CodeStorage, "rekey child records", err)
		}
	}
	if _, err := tx.Exec(
		`UPDATE sync_queue SET entity_id = replace(entity_id, ?, ?), data = replace(data, ?, ?)`,
		tempID, serverID, tempID, serverID); err != nil {
		return errs.Wrap(errs.CodeStorage, "rekey queue entries", err)
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.CodeStorage, "commit reconcile", err)
	}
	return nil
}
