package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/pos-check-service/internal/model"
)

// CheckLockRepo provides data access to the check_locks table, the single
// authoritative lease table for a property.  Every mutating method purges
// expired rows lazily inside its own transaction before evaluating the
// request, so no background sweeper is needed: a crashed holder's lease
// simply becomes reclaimable the next time anyone touches that check.
// All timestamps are UTC.
type CheckLockRepo struct {
	db *sql.DB
}

// NewCheckLockRepo returns a new CheckLockRepo bound to the provided database.
func NewCheckLockRepo(db *sql.DB) *CheckLockRepo { return &CheckLockRepo{db: db} }

// DB exposes the underlying handle for callers that need to compose
// transactions with other repositories.
func (r *CheckLockRepo) DB() *sql.DB { return r.db }

// Acquire grants the workstation an exclusive lease on the check for the
// given TTL.  Re-acquiring a lease the workstation already holds succeeds
// and extends the expiry from now, not from the original grant.  When a
// non-expired lease belongs to a different workstation, a
// *LockConflictError carrying the holder and its expiry is returned.
func (r *CheckLockRepo) Acquire(ctx context.Context, checkID, workstationID string, employeeID uint64, ttl time.Duration) (*model.CheckLock, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if err := purgeExpiredTx(ctx, tx, now); err != nil {
		return nil, err
	}

	var holder string
	var lockedAt time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT workstation_id, locked_at FROM check_locks WHERE check_id = ?`,
		checkID,
	).Scan(&holder, &lockedAt)
	expiresAt := now.Add(ttl)
	switch {
	case err == sql.ErrNoRows:
		// No live lease; grant a fresh one.
		lockedAt = now
		_, err = tx.ExecContext(ctx,
			`INSERT INTO check_locks (check_id, workstation_id, employee_id, locked_at, expires_at)
			 VALUES (?, ?, ?, ?, ?)`,
			checkID, workstationID, employeeID, lockedAt, expiresAt,
		)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case holder != workstationID:
		// Live lease held elsewhere; report the holder so the UI can show
		// who has the check and the remaining lease time.
		var holderExpiry time.Time
		if scanErr := tx.QueryRowContext(ctx,
			`SELECT expires_at FROM check_locks WHERE check_id = ?`, checkID,
		).Scan(&holderExpiry); scanErr != nil {
			return nil, scanErr
		}
		return nil, &LockConflictError{CheckID: checkID, WorkstationID: holder, ExpiresAt: holderExpiry}
	default:
		// Idempotent re-acquire by the same workstation extends the lease.
		_, err = tx.ExecContext(ctx,
			`UPDATE check_locks SET employee_id = ?, expires_at = ? WHERE check_id = ?`,
			employeeID, expiresAt, checkID,
		)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return &model.CheckLock{
		CheckID:       checkID,
		WorkstationID: workstationID,
		EmployeeID:    employeeID,
		LockedAt:      lockedAt,
		ExpiresAt:     expiresAt,
	}, nil
}

// Release deletes the lease only when the calling workstation holds it;
// any other situation is a no-op.  It returns true when a row was
// actually removed.  Callers treat release as best effort: if the signal
// is lost, server-side expiry remains the correctness guarantee.
func (r *CheckLockRepo) Release(ctx context.Context, checkID, workstationID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM check_locks WHERE check_id = ? AND workstation_id = ?`,
		checkID, workstationID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Refresh extends the lease expiry from now for a workstation that still
// holds it.  When the lease has expired or been taken over, ErrLockLost is
// returned so the caller can stop editing and warn the operator.
func (r *CheckLockRepo) Refresh(ctx context.Context, checkID, workstationID string, ttl time.Duration) (*model.CheckLock, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if err := purgeExpiredTx(ctx, tx, now); err != nil {
		return nil, err
	}

	expiresAt := now.Add(ttl)
	res, err := tx.ExecContext(ctx,
		`UPDATE check_locks SET expires_at = ? WHERE check_id = ? AND workstation_id = ?`,
		expiresAt, checkID, workstationID,
	)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrLockLost
	}

	var lock model.CheckLock
	err = tx.QueryRowContext(ctx,
		`SELECT check_id, workstation_id, employee_id, locked_at, expires_at
		 FROM check_locks WHERE check_id = ?`, checkID,
	).Scan(&lock.CheckID, &lock.WorkstationID, &lock.EmployeeID, &lock.LockedAt, &lock.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return &lock, nil
}

// Get returns the current non-expired lease on the check, or
// ErrLockNotFound when the check is free.  It is read-only: expired rows
// are filtered out rather than deleted, so UI polling never contends with
// writers.
func (r *CheckLockRepo) Get(ctx context.Context, checkID string) (*model.CheckLock, error) {
	var lock model.CheckLock
	err := r.db.QueryRowContext(ctx,
		`SELECT check_id, workstation_id, employee_id, locked_at, expires_at
		 FROM check_locks WHERE check_id = ? AND expires_at > ?`,
		checkID, time.Now().UTC(),
	).Scan(&lock.CheckID, &lock.WorkstationID, &lock.EmployeeID, &lock.LockedAt, &lock.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLockNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lock, nil
}

// purgeExpiredTx removes every lapsed lease.  Linear in the number of
// expired rows, which stays small because the table holds at most one row
// per actively edited check.
func purgeExpiredTx(ctx context.Context, tx *sql.Tx, now time.Time) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM check_locks WHERE expires_at <= ?`, now)
	return err
}
