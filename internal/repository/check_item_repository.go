package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/iliyamo/pos-check-service/internal/model"
)

// CheckItemRepo provides data access to the check_items table.  Items are
// append-only: voiding flips a flag and keeps the row so the audit trail
// survives.  Modifiers are persisted as a JSON array to preserve their
// order.
type CheckItemRepo struct {
	db *sql.DB
}

// NewCheckItemRepo returns a new CheckItemRepo bound to the provided database.
func NewCheckItemRepo(db *sql.DB) *CheckItemRepo { return &CheckItemRepo{db: db} }

const checkItemColumns = `id, check_id, round_number, menu_item_id, name, quantity,
	unit_price_cents, modifiers, seat_number, sent_to_kitchen, voided, void_reason, created_at`

func scanCheckItem(scan func(dest ...interface{}) error) (*model.CheckItem, error) {
	var it model.CheckItem
	var modifiers string
	err := scan(&it.ID, &it.CheckID, &it.RoundNumber, &it.MenuItemID, &it.Name,
		&it.Quantity, &it.UnitPriceCents, &modifiers, &it.SeatNumber,
		&it.SentToKitchen, &it.Voided, &it.VoidReason, &it.CreatedAt)
	if err != nil {
		return nil, err
	}
	if modifiers != "" {
		if err := json.Unmarshal([]byte(modifiers), &it.Modifiers); err != nil {
			return nil, err
		}
	}
	return &it, nil
}

// CreateMultipleTx inserts a batch of items within the provided
// transaction.  Passing an empty slice has no effect and returns nil.
func (r *CheckItemRepo) CreateMultipleTx(ctx context.Context, tx *sql.Tx, items []model.CheckItem) error {
	if len(items) == 0 {
		return nil
	}
	query := `INSERT INTO check_items (` + checkItemColumns + `) VALUES `
	args := make([]interface{}, 0, len(items)*13)
	for i, it := range items {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
		modifiers, err := json.Marshal(it.Modifiers)
		if err != nil {
			return err
		}
		if it.Modifiers == nil {
			modifiers = []byte("[]")
		}
		args = append(args, it.ID, it.CheckID, it.RoundNumber, it.MenuItemID, it.Name,
			it.Quantity, it.UnitPriceCents, string(modifiers), it.SeatNumber,
			it.SentToKitchen, it.Voided, it.VoidReason, it.CreatedAt)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// GetByIDTx loads a single item of the given check, or ErrItemNotFound.
func (r *CheckItemRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, checkID, itemID string) (*model.CheckItem, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+checkItemColumns+` FROM check_items WHERE id = ? AND check_id = ?`,
		itemID, checkID)
	it, err := scanCheckItem(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	return it, err
}

// ListByCheckTx returns all items of a check in insertion order, voided
// rows included.
func (r *CheckItemRepo) ListByCheckTx(ctx context.Context, tx *sql.Tx, checkID string) ([]model.CheckItem, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+checkItemColumns+` FROM check_items WHERE check_id = ? ORDER BY created_at, id`,
		checkID)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

// ListByCheck is ListByCheckTx without an enclosing transaction, used by
// read-only handlers.
func (r *CheckItemRepo) ListByCheck(ctx context.Context, checkID string) ([]model.CheckItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+checkItemColumns+` FROM check_items WHERE check_id = ? ORDER BY created_at, id`,
		checkID)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

func collectItems(rows *sql.Rows) ([]model.CheckItem, error) {
	defer rows.Close()
	var out []model.CheckItem
	for rows.Next() {
		it, err := scanCheckItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

// VoidTx marks one item voided with an optional reason.  The row is never
// deleted.
func (r *CheckItemRepo) VoidTx(ctx context.Context, tx *sql.Tx, checkID, itemID string, reason *string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE check_items SET voided = 1, void_reason = ? WHERE id = ? AND check_id = ?`,
		reason, itemID, checkID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}

// VoidAllTx cascades a check void to every non-voided item, recording the
// same reason on each.  It returns the ids of the items it flipped so the
// coordinator can enqueue their snapshots.
func (r *CheckItemRepo) VoidAllTx(ctx context.Context, tx *sql.Tx, checkID string, reason *string) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM check_items WHERE check_id = ? AND voided = 0`, checkID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		ids = append(ids, id)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE check_items SET voided = 1, void_reason = ? WHERE check_id = ? AND voided = 0`,
		reason, checkID)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// MarkSentTx flags every unsent, non-voided item of the check as sent to
// the kitchen and returns their ids.  Items already sent in a previous
// round are untouched, which is what lets a second wave go out without
// re-firing the first.
func (r *CheckItemRepo) MarkSentTx(ctx context.Context, tx *sql.Tx, checkID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM check_items WHERE check_id = ? AND sent_to_kitchen = 0 AND voided = 0`,
		checkID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		ids = append(ids, id)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE check_items SET sent_to_kitchen = 1 WHERE check_id = ? AND sent_to_kitchen = 0 AND voided = 0`,
		checkID)
	if err != nil {
		return nil, err
	}
	return ids, nil
}
