package models

import "encoding/json"

// QueueEntry is one pending mutation in the durable operation queue.
// Data is captured at enqueue time and never mutated afterward; it is the
// payload the remote gateway replays for this (entity, operation) pair.
type QueueEntry struct {
	ID          int64           `db:"id" json:"id"`
	Operation   Operation       `db:"operation" json:"operation"`
	Entity      string          `db:"entity" json:"entity"`
	EntityID    string          `db:"entity_id" json:"entityId"`
	Data        json.RawMessage `db:"data" json:"data"`
	CreatedAt   int64           `db:"created_at" json:"createdAt"`
	RetryCount  int             `db:"retry_count" json:"retryCount"`
	NextRetryAt int64           `db:"next_retry_at" json:"nextRetryAt"`
	LastError   string          `db:"last_error" json:"lastError,omitempty"`
}

// TableName returns the table name for QueueEntry.
func (QueueEntry) TableName() string {
	return "sync_queue"
}
