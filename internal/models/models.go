// Package models provides data model definitions for the Keepsake sync core.
package models

import "time"

// SyncStatus tracks how a local record relates to server state.
type SyncStatus string

const (
	// StatusSynced means the record last matched server state.
	StatusSynced SyncStatus = "synced"
	// StatusPending means a local mutation was made while online and has
	// not yet been confirmed by the server.
	StatusPending SyncStatus = "pending"
	// StatusOffline means a local mutation was made while disconnected.
	StatusOffline SyncStatus = "offline"
	// StatusError is reserved; it is not currently surfaced.
	StatusError SyncStatus = "error"
)

// Unconfirmed reports whether the status marks a not-yet-replayed local edit.
func (s SyncStatus) Unconfirmed() bool {
	return s == StatusPending || s == StatusOffline
}

// Operation is a queued mutation kind.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// SyncMeta carries the synchronization attributes every local record has.
type SyncMeta struct {
	SyncStatus SyncStatus `json:"syncStatus"`
	LastSync   int64      `json:"lastSync"`
}

// LastSyncTime returns LastSync as time.Time.
func (m *SyncMeta) LastSyncTime() time.Time {
	return time.Unix(m.LastSync, 0)
}

// Syncable is implemented by every entity record the local store caches.
type Syncable interface {
	// RecordID returns the record's globally unique id.
	RecordID() string
	// SetRecordID sets the record's id.
	SetRecordID(id string)
	// OwnerID returns the user the record is scoped to.
	OwnerID() string
	// ScopeID returns the parent record id ("" when the entity is top-level).
	ScopeID() string
	// Meta returns the record's mutable sync attributes.
	Meta() *SyncMeta
}

// Entity type tags. These double as local store table names and as the
// entity field of queue entries.
const (
	EntityMemory       = "memory"
	EntityComment      = "comment"
	EntityReaction     = "reaction"
	EntityFamily       = "family"
	EntityNotification = "notification"
	EntityTag          = "tag"
	EntityStory        = "story"
	EntityUser         = "user"
)

// EntityTags lists every entity table the store manages.
var EntityTags = []string{
	EntityMemory, EntityComment, EntityReaction, EntityFamily,
	EntityNotification, EntityTag, EntityStory, EntityUser,
}
