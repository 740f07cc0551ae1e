package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/iliyamo/pos-check-service/internal/model"
)

// SyncQueueRepo provides data access to the sync_queue table, the durable
// outbox of entity snapshots awaiting upload to the cloud of record.
// Entries are created inside the same transaction as the local mutation
// they describe, so a crash between commit and enqueue cannot leave a
// visible change unsynced.  Rows are removed only on confirmed cloud
// acceptance; after model.MaxSyncAttempts failures an entry is dead and
// must be surfaced to an operator, never dropped.
type SyncQueueRepo struct {
	db *sql.DB
}

// NewSyncQueueRepo returns a new SyncQueueRepo bound to the provided database.
func NewSyncQueueRepo(db *sql.DB) *SyncQueueRepo { return &SyncQueueRepo{db: db} }

// AddTx appends a pending snapshot within the provided transaction with
// attempts = 0.
func (r *SyncQueueRepo) AddTx(ctx context.Context, tx *sql.Tx, entityType, entityID, action string, payload json.RawMessage) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO sync_queue (entity_type, entity_id, action, payload, attempts, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		entityType, entityID, action, string(payload), time.Now().UTC(),
	)
	return err
}

// Add appends a pending snapshot in its own transaction.  Used by callers
// outside the coordinator, e.g. a manual re-queue from the admin surface.
func (r *SyncQueueRepo) Add(ctx context.Context, entityType, entityID, action string, payload json.RawMessage) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_queue (entity_type, entity_id, action, payload, attempts, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		entityType, entityID, action, string(payload), time.Now().UTC(),
	)
	return err
}

// GetPending returns the oldest entries still eligible for automatic
// retry, in insertion order.
func (r *SyncQueueRepo) GetPending(ctx context.Context, limit int) ([]model.SyncQueueItem, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, entity_type, entity_id, action, payload, attempts, last_attempt, error, created_at
		 FROM sync_queue WHERE attempts < ? ORDER BY id LIMIT ?`,
		model.MaxSyncAttempts, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectSyncItems(rows)
}

// GetDead returns entries that have exhausted automatic retries, oldest
// first, for the operator view.
func (r *SyncQueueRepo) GetDead(ctx context.Context, limit int) ([]model.SyncQueueItem, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, entity_type, entity_id, action, payload, attempts, last_attempt, error, created_at
		 FROM sync_queue WHERE attempts >= ? ORDER BY id LIMIT ?`,
		model.MaxSyncAttempts, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectSyncItems(rows)
}

func collectSyncItems(rows *sql.Rows) ([]model.SyncQueueItem, error) {
	defer rows.Close()
	var out []model.SyncQueueItem
	for rows.Next() {
		var it model.SyncQueueItem
		var payload string
		if err := rows.Scan(&it.ID, &it.EntityType, &it.EntityID, &it.Action,
			&payload, &it.Attempts, &it.LastAttempt, &it.LastError, &it.CreatedAt); err != nil {
			return nil, err
		}
		it.Payload = json.RawMessage(payload)
		out = append(out, it)
	}
	return out, rows.Err()
}

// MarkAttempt increments the attempt counter and records the failure.  The
// entry is kept; crossing the attempt ceiling merely stops automatic
// retries.  It returns the new attempt count so the caller can detect the
// crossing and alert an operator exactly once.
func (r *SyncQueueRepo) MarkAttempt(ctx context.Context, id int64, uploadErr error) (int, error) {
	var msg *string
	if uploadErr != nil {
		s := uploadErr.Error()
		msg = &s
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET attempts = attempts + 1, last_attempt = ?, error = ? WHERE id = ?`,
		time.Now().UTC(), msg, id,
	)
	if err != nil {
		return 0, err
	}
	var attempts int
	if err := r.db.QueryRowContext(ctx,
		`SELECT attempts FROM sync_queue WHERE id = ?`, id).Scan(&attempts); err != nil {
		return 0, err
	}
	return attempts, nil
}

// Remove deletes an entry after confirmed cloud acceptance.
func (r *SyncQueueRepo) Remove(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	return err
}

// Requeue resets a dead entry's attempt counter so the drain worker picks
// it up again.  Exposed to operators through the admin surface.
func (r *SyncQueueRepo) Requeue(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET attempts = 0, error = NULL WHERE id = ?`, id)
	return err
}
