package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/pos-check-service/internal/model"
)

// CheckRepo provides data access to the checks table.  Mutating methods
// come in Tx variants so the coordinator can compose a check update, its
// item/payment writes and the matching sync queue entries into one durable
// unit of work.  All timestamps are UTC.
type CheckRepo struct {
	db *sql.DB
}

// NewCheckRepo returns a new CheckRepo bound to the provided database.
func NewCheckRepo(db *sql.DB) *CheckRepo { return &CheckRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions that
// span multiple repositories.
func (r *CheckRepo) DB() *sql.DB { return r.db }

const checkColumns = `id, check_number, rvc_id, employee_id, order_type, table_number,
	guest_count, status, subtotal_cents, tax_cents, total_cents, current_round,
	created_at, closed_at, void_reason, cloud_synced, cloud_id`

func scanCheck(row *sql.Row) (*model.Check, error) {
	var c model.Check
	err := row.Scan(&c.ID, &c.CheckNumber, &c.RVCID, &c.EmployeeID, &c.OrderType,
		&c.TableNumber, &c.GuestCount, &c.Status, &c.SubtotalCents, &c.TaxCents,
		&c.TotalCents, &c.CurrentRound, &c.CreatedAt, &c.ClosedAt, &c.VoidReason,
		&c.CloudSynced, &c.CloudID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCheckNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateTx inserts a new check within the provided transaction.  The caller
// must have populated ID, CheckNumber and CreatedAt; status defaults are
// the caller's responsibility so the row always reflects the model value.
func (r *CheckRepo) CreateTx(ctx context.Context, tx *sql.Tx, c *model.Check) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO checks (`+checkColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.CheckNumber, c.RVCID, c.EmployeeID, c.OrderType, c.TableNumber,
		c.GuestCount, c.Status, c.SubtotalCents, c.TaxCents, c.TotalCents,
		c.CurrentRound, c.CreatedAt, c.ClosedAt, c.VoidReason, c.CloudSynced, c.CloudID,
	)
	return err
}

// GetByID loads a check or returns ErrCheckNotFound.
func (r *CheckRepo) GetByID(ctx context.Context, id string) (*model.Check, error) {
	return scanCheck(r.db.QueryRowContext(ctx,
		`SELECT `+checkColumns+` FROM checks WHERE id = ?`, id))
}

// GetByIDTx is GetByID within an existing transaction.
func (r *CheckRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*model.Check, error) {
	return scanCheck(tx.QueryRowContext(ctx,
		`SELECT `+checkColumns+` FROM checks WHERE id = ?`, id))
}

// ListByStatus returns checks filtered by status, optionally scoped to a
// revenue center when rvcID is non-zero, newest first.
func (r *CheckRepo) ListByStatus(ctx context.Context, status string, rvcID uint64, limit int) ([]model.Check, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + checkColumns + ` FROM checks WHERE status = ?`
	args := []interface{}{status}
	if rvcID != 0 {
		q += ` AND rvc_id = ?`
		args = append(args, rvcID)
	}
	q += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Check
	for rows.Next() {
		var c model.Check
		if err := rows.Scan(&c.ID, &c.CheckNumber, &c.RVCID, &c.EmployeeID, &c.OrderType,
			&c.TableNumber, &c.GuestCount, &c.Status, &c.SubtotalCents, &c.TaxCents,
			&c.TotalCents, &c.CurrentRound, &c.CreatedAt, &c.ClosedAt, &c.VoidReason,
			&c.CloudSynced, &c.CloudID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateTotalsTx writes the recomputed subtotal/tax/total for the check.
func (r *CheckRepo) UpdateTotalsTx(ctx context.Context, tx *sql.Tx, id string, subtotal, tax, total int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE checks SET subtotal_cents = ?, tax_cents = ?, total_cents = ? WHERE id = ?`,
		subtotal, tax, total, id,
	)
	return err
}

// CloseTx transitions the check to closed and stamps closed_at.  The
// coordinator is responsible for verifying the check is open first.
func (r *CheckRepo) CloseTx(ctx context.Context, tx *sql.Tx, id string, closedAt time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE checks SET status = ?, closed_at = ? WHERE id = ?`,
		model.CheckStatusClosed, closedAt, id,
	)
	return err
}

// VoidTx transitions the check to voided, stamps closed_at and records the
// void reason.
func (r *CheckRepo) VoidTx(ctx context.Context, tx *sql.Tx, id string, closedAt time.Time, reason *string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE checks SET status = ?, closed_at = ?, void_reason = ? WHERE id = ?`,
		model.CheckStatusVoided, closedAt, reason, id,
	)
	return err
}

// IncrementRoundTx advances current_round after a kitchen send so that
// subsequent items land in the next round.
func (r *CheckRepo) IncrementRoundTx(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE checks SET current_round = current_round + 1 WHERE id = ?`, id)
	return err
}

// MarkCloudSynced records confirmed cloud acceptance of a check snapshot.
// Called by the drain worker outside any coordinator transaction.
func (r *CheckRepo) MarkCloudSynced(ctx context.Context, id string, cloudID *string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE checks SET cloud_synced = 1, cloud_id = COALESCE(?, cloud_id) WHERE id = ?`,
		cloudID, id,
	)
	return err
}
