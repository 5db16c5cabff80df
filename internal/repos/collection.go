// Package repos implements the entity repositories: offline-first reads
// backed by the local store with background refresh, and optimistic writes
// that mutate locally and enqueue a replay operation.
package repos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keepsakehq/keepsake-go/internal/errs"
	"github.com/keepsakehq/keepsake-go/internal/gateway"
	"github.com/keepsakehq/keepsake-go/internal/models"
	"github.com/keepsakehq/keepsake-go/internal/netmon"
	"github.com/keepsakehq/keepsake-go/internal/store"
)

// DrainNotifier wakes the sync engine after an enqueue.
type DrainNotifier interface {
	NotifyEnqueued()
}

// Deps bundles what every repository needs. The composition root builds one
// and hands it to each constructor.
type Deps struct {
	Store    *store.Store
	Gateway  *gateway.Gateway
	Monitor  *netmon.Monitor
	Notifier DrainNotifier
	Log      zerolog.Logger
}

// entityPtr constrains a pointer-to-entity that the store can cache.
type entityPtr[T any] interface {
	*T
	models.Syncable
}

// collection is the shared repository core. Per-entity repositories wrap it
// and add their domain operations.
type collection[T any, PT entityPtr[T]] struct {
	deps  Deps
	table string
	// touch stamps entity timestamps on create/update.
	touch func(e PT, now int64)
	// deletePayload builds the replay payload for a delete ({} by default).
	deletePayload func(e PT) map[string]any
}

func (c *collection[T, PT]) decode(rec store.Record) (PT, error) {
	e := PT(new(T))
	if err := json.Unmarshal(rec.Data, e); err != nil {
		return nil, errs.Wrap(errs.CodeStorage, "decode record", err)
	}
	// Columns are authoritative after reconciliation rewrites.
	e.SetRecordID(rec.ID)
	meta := e.Meta()
	meta.SyncStatus = rec.Status
	meta.LastSync = rec.LastSync
	return e, nil
}

func (c *collection[T, PT]) encode(e PT) (store.Record, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return store.Record{}, errs.Wrap(errs.CodeStorage, "encode record", err)
	}
	meta := e.Meta()
	return store.Record{
		ID:       e.RecordID(),
		OwnerID:  e.OwnerID(),
		ScopeID:  e.ScopeID(),
		Status:   meta.SyncStatus,
		LastSync: meta.LastSync,
		Data:     data,
	}, nil
}

func (c *collection[T, PT]) decodeAll(recs []store.Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		e, err := c.decode(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

// get returns the locally cached record.
func (c *collection[T, PT]) get(id string) (PT, error) {
	rec, err := c.deps.Store.Get(c.table, id)
	if err != nil {
		return nil, err
	}
	return c.decode(*rec)
}

// listScope selects which index column backs a getAll call.
type listScope int

const (
	byOwner listScope = iota
	byScope
)

// getAll serves the offline-first read: local records immediately, refreshed
// from the remote list endpoint when online, returning whatever the local
// store holds after the write-through. Network failures fall back to the
// local result and never reach the caller.
func (c *collection[T, PT]) getAll(ctx context.Context, scope listScope, key, path string) ([]T, error) {
	local, err := c.localList(scope, key)
	if err != nil {
		return nil, err
	}
	if !c.deps.Monitor.Online() {
		return c.decodeAll(local)
	}

	raw, err := c.deps.Gateway.Get(ctx, path)
	if err != nil {
		c.deps.Log.Warn().Err(err).Str("entity", c.table).Msg("background refresh failed, serving cache")
		return c.decodeAll(local)
	}

	var fetched []T
	if err := json.Unmarshal(raw, &fetched); err != nil {
		c.deps.Log.Warn().Err(err).Str("entity", c.table).Msg("unparsable refresh response, serving cache")
		return c.decodeAll(local)
	}

	if err := c.writeThrough(local, fetched); err != nil {
		c.deps.Log.Warn().Err(err).Str("entity", c.table).Msg("refresh write-through failed, serving cache")
		return c.decodeAll(local)
	}

	// Re-read so the caller sees exactly what is now cached.
	merged, err := c.localList(scope, key)
	if err != nil {
		return nil, err
	}
	return c.decodeAll(merged)
}

func (c *collection[T, PT]) localList(scope listScope, key string) ([]store.Record, error) {
	if scope == byScope {
		return c.deps.Store.ListByScope(c.table, key)
	}
	return c.deps.Store.ListByOwner(c.table, key)
}

// writeThrough merges server records into the local store. Records with an
// unconfirmed local edit are left alone until their queued operation drains;
// synced records absent from the server response are evicted.
func (c *collection[T, PT]) writeThrough(local []store.Record, fetched []T) error {
	now := time.Now().Unix()
	serverIDs := make(map[string]bool, len(fetched))

	for i := range fetched {
		e := PT(&fetched[i])
		serverIDs[e.RecordID()] = true

		existing, err := c.deps.Store.Get(c.table, e.RecordID())
		if err != nil && !errs.HasCode(err, errs.CodeNotFound) {
			return err
		}
		if existing != nil && existing.Status.Unconfirmed() {
			continue
		}
		if existing == nil {
			// No local copy but queued operations still reference the id:
			// an optimistic delete that has not drained. Writing the fetched
			// record through would resurrect it.
			pending, err := c.deps.Store.PendingFor(e.RecordID())
			if err != nil {
				return err
			}
			if pending > 0 {
				continue
			}
		}

		meta := e.Meta()
		meta.SyncStatus = models.StatusSynced
		meta.LastSync = now
		rec, err := c.encode(e)
		if err != nil {
			return err
		}
		if err := c.deps.Store.Put(c.table, rec); err != nil {
			return err
		}
	}

	for _, rec := range local {
		if rec.Status == models.StatusSynced && !serverIDs[rec.ID] {
			if err := c.deps.Store.Delete(c.table, rec.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// create performs the optimistic create: local record with a generated id
// and a pending/offline marker, plus the replay entry, in one step. Errors
// are hard; a write that cannot be queued has not been saved.
func (c *collection[T, PT]) create(e PT) error {
	if e.RecordID() == "" {
		e.SetRecordID(uuid.NewString())
	}
	now := time.Now().Unix()
	if c.touch != nil {
		c.touch(e, now)
	}

	meta := e.Meta()
	if c.deps.Monitor.Online() {
		meta.SyncStatus = models.StatusPending
	} else {
		meta.SyncStatus = models.StatusOffline
	}
	meta.LastSync = now

	rec, err := c.encode(e)
	if err != nil {
		return err
	}
	payload, err := createPayload(e)
	if err != nil {
		return err
	}
	entry := &models.QueueEntry{
		Operation: models.OpCreate,
		Entity:    c.table,
		EntityID:  e.RecordID(),
		Data:      payload,
	}
	if err := c.deps.Store.PutWithEntry(c.table, rec, entry); err != nil {
		return err
	}
	c.deps.Notifier.NotifyEnqueued()
	return nil
}

// update applies mutate to a copy of the cached record. When the mutation
// changes nothing the call is a no-op: no store write, no queue entry, no
// syncStatus/lastSync change.
func (c *collection[T, PT]) update(id string, mutate func(PT)) (PT, error) {
	rec, err := c.deps.Store.Get(c.table, id)
	if err != nil {
		return nil, err
	}
	old, err := c.decode(*rec)
	if err != nil {
		return nil, err
	}
	next, err := c.decode(*rec)
	if err != nil {
		return nil, err
	}

	mutate(next)
	next.SetRecordID(old.RecordID()) // ids are immutable

	delta, err := diffFields(old, next)
	if err != nil {
		return nil, err
	}
	if len(delta) == 0 {
		return old, nil
	}

	now := time.Now().Unix()
	if c.touch != nil {
		c.touch(next, now)
	}
	next.Meta().SyncStatus = models.StatusPending

	nextRec, err := c.encode(next)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(delta)
	if err != nil {
		return nil, errs.Wrap(errs.CodeInvalid, "encode update delta", err)
	}
	entry := &models.QueueEntry{
		Operation: models.OpUpdate,
		Entity:    c.table,
		EntityID:  id,
		Data:      payload,
	}
	if err := c.deps.Store.PutWithEntry(c.table, nextRec, entry); err != nil {
		return nil, err
	}
	c.deps.Notifier.NotifyEnqueued()
	return next, nil
}

// remove performs the optimistic delete: the record disappears from the
// local store immediately and the delete is queued for replay.
func (c *collection[T, PT]) remove(id string) error {
	rec, err := c.deps.Store.Get(c.table, id)
	if err != nil {
		return err
	}
	e, err := c.decode(*rec)
	if err != nil {
		return err
	}

	payload := map[string]any{}
	if c.deletePayload != nil {
		payload = c.deletePayload(e)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return errs.Wrap(errs.CodeInvalid, "encode delete payload", err)
	}
	entry := &models.QueueEntry{
		Operation: models.OpDelete,
		Entity:    c.table,
		EntityID:  id,
		Data:      data,
	}
	if err := c.deps.Store.DeleteWithEntry(c.table, id, entry); err != nil {
		return err
	}
	c.deps.Notifier.NotifyEnqueued()
	return nil
}
