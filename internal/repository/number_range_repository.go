package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/pos-check-service/internal/model"
)

// NumberRangeRepo provides data access to the
// workstation_check_number_ranges table.  Each workstation owns a disjoint
// numeric sub-range, so two offline workstations can allocate check
// numbers without coordinating.  Allocation is an atomic increment at the
// storage layer, never an application-memory counter, because multiple
// process instances may share the relay-tier store.
type NumberRangeRepo struct {
	db *sql.DB
}

// NewNumberRangeRepo returns a new NumberRangeRepo bound to the provided database.
func NewNumberRangeRepo(db *sql.DB) *NumberRangeRepo { return &NumberRangeRepo{db: db} }

// AllocateTx hands out the workstation's next check number within the
// provided transaction.  The guarded UPDATE is the atomicity point: the
// row only advances while current is still inside the range, so an
// exhausted range yields ErrRangeExhausted rather than a wraparound.
func (r *NumberRangeRepo) AllocateTx(ctx context.Context, tx *sql.Tx, workstationID string) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE workstation_check_number_ranges
		 SET current = current + 1, last_seen = ?
		 WHERE workstation_id = ? AND current <= range_end`,
		time.Now().UTC(), workstationID,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		// Either no range is provisioned or the range is used up.
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM workstation_check_number_ranges WHERE workstation_id = ?`,
			workstationID,
		).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrRangeNotFound
		}
		if err != nil {
			return 0, err
		}
		return 0, ErrRangeExhausted
	}

	var current int64
	if err := tx.QueryRowContext(ctx,
		`SELECT current FROM workstation_check_number_ranges WHERE workstation_id = ?`,
		workstationID,
	).Scan(&current); err != nil {
		return 0, err
	}
	// current is now the next free number; the one just allocated precedes it.
	return current - 1, nil
}

// Assign provisions or replaces a workstation's range.  Used at enrollment
// and when an exhausted range is operationally reassigned.
func (r *NumberRangeRepo) Assign(ctx context.Context, workstationID string, start, end int64) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE workstation_check_number_ranges
		 SET range_start = ?, range_end = ?, current = ?, last_seen = ?
		 WHERE workstation_id = ?`,
		start, end, start, now, workstationID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO workstation_check_number_ranges
			 (workstation_id, range_start, range_end, current, last_seen)
			 VALUES (?, ?, ?, ?, ?)`,
			workstationID, start, end, start, now,
		)
	}
	return err
}

// Get returns the workstation's range or ErrRangeNotFound.
func (r *NumberRangeRepo) Get(ctx context.Context, workstationID string) (*model.NumberRange, error) {
	var nr model.NumberRange
	err := r.db.QueryRowContext(ctx,
		`SELECT workstation_id, range_start, range_end, current, last_seen
		 FROM workstation_check_number_ranges WHERE workstation_id = ?`,
		workstationID,
	).Scan(&nr.WorkstationID, &nr.Start, &nr.End, &nr.Current, &nr.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRangeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &nr, nil
}
