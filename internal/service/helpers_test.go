package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pos-check-service/internal/database"
	"github.com/iliyamo/pos-check-service/internal/model"
	"github.com/iliyamo/pos-check-service/internal/repository"
)

// testEnv bundles a fresh store with the coordinator and the repositories
// tests need for direct inspection.
type testEnv struct {
	db    *sql.DB
	coord *Coordinator
	syncq *repository.SyncQueueRepo
	locks *repository.CheckLockRepo
}

// newTestEnv opens an embedded store, seeds a menu cache and a check
// number range for workstation "ws-1", and wires a coordinator with an
// 8% flat tax rate.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open("sqlite3", filepath.Join(t.TempDir(), "caps.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	checks := repository.NewCheckRepo(db)
	items := repository.NewCheckItemRepo(db)
	payments := repository.NewPaymentRepo(db)
	syncq := repository.NewSyncQueueRepo(db)
	ranges := repository.NewNumberRangeRepo(db)
	menu := repository.NewMenuRepo(db)

	ctx := context.Background()
	require.NoError(t, ranges.Assign(ctx, "ws-1", 100, 199))
	for _, m := range []model.MenuItem{
		{ID: 1, Name: "Burger", PriceCents: 500, Active: true, UpdatedAt: time.Now().UTC()},
		{ID: 2, Name: "Fries", PriceCents: 250, Active: true, UpdatedAt: time.Now().UTC()},
		{ID: 3, Name: "Soda", PriceCents: 150, Active: true, UpdatedAt: time.Now().UTC()},
	} {
		require.NoError(t, menu.Upsert(ctx, m))
	}

	return &testEnv{
		db:    db,
		coord: NewCoordinator(db, checks, items, payments, syncq, ranges, menu, 0.08),
		syncq: syncq,
		locks: repository.NewCheckLockRepo(db),
	}
}

// openCheck creates a check on workstation "ws-1" with default fields.
func (e *testEnv) openCheck(t *testing.T) *model.Check {
	t.Helper()
	chk, err := e.coord.CreateCheck(context.Background(), "ws-1", CreateCheckInput{
		RVCID:      1,
		EmployeeID: 7,
		OrderType:  "dine_in",
	})
	require.NoError(t, err)
	return chk
}
