package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pos-check-service/internal/database"
	"github.com/iliyamo/pos-check-service/internal/model"
)

// newTestDB opens a fresh embedded store under t.TempDir.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open("sqlite3", filepath.Join(t.TempDir(), "caps.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// insertOpenCheck seeds a minimal open check and returns its id.
func insertOpenCheck(t *testing.T, db *sql.DB, number int64) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO checks (id, check_number, rvc_id, employee_id, order_type, status,
			subtotal_cents, tax_cents, total_cents, current_round, created_at, cloud_synced)
		 VALUES (?, ?, 1, 1, 'dine_in', ?, 0, 0, 0, 1, ?, 0)`,
		id, number, model.CheckStatusOpen, time.Now().UTC(),
	)
	require.NoError(t, err)
	return id
}

// inTx runs fn inside a transaction and commits it.
func inTx(t *testing.T, db *sql.DB, fn func(tx *sql.Tx)) {
	t.Helper()
	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	fn(tx)
	require.NoError(t, tx.Commit())
}
