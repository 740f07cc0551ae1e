package model

import (
	"encoding/json"
	"time"
)

// Sync queue actions.
const (
	SyncActionCreate = "create"
	SyncActionUpdate = "update"
	SyncActionDelete = "delete"
)

// Entity types carried through the sync queue.
const (
	SyncEntityCheck     = "check"
	SyncEntityCheckItem = "check_item"
	SyncEntityPayment   = "payment"
)

// MaxSyncAttempts bounds automatic retries.  An item that has failed this
// many uploads is dead: the drain worker skips it and it must be surfaced
// to an operator instead of being dropped.
const MaxSyncAttempts = 10

// SyncQueueItem is one pending upload to the cloud system of record.  The
// payload is a full snapshot of the entity, never a delta, so duplicate or
// re-ordered delivery is safe as long as the cloud applies last-write-wins
// per entity id.
type SyncQueueItem struct {
	ID          int64           // sync_queue.id (insertion order)
	EntityType  string          // sync_queue.entity_type
	EntityID    string          // sync_queue.entity_id
	Action      string          // sync_queue.action
	Payload     json.RawMessage // sync_queue.payload (full entity snapshot)
	Attempts    int             // sync_queue.attempts
	LastAttempt *time.Time      // sync_queue.last_attempt (nullable)
	LastError   *string         // sync_queue.error (nullable)
	CreatedAt   time.Time       // sync_queue.created_at
}

// Dead reports whether the item has exhausted its automatic retries.
func (s *SyncQueueItem) Dead() bool {
	return s.Attempts >= MaxSyncAttempts
}
