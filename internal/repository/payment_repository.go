package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/pos-check-service/internal/model"
)

// PaymentRepo provides data access to the payments table.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the provided database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, check_id, tender_id, tender_type, amount_cents,
	tip_cents, reference, status, created_at`

// CreateTx inserts a payment within the provided transaction.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.CheckID, p.TenderID, p.TenderType, p.AmountCents,
		p.TipCents, p.Reference, p.Status, p.CreatedAt,
	)
	return err
}

// ListByCheckTx returns all payments of a check in insertion order,
// voided payments included; settlement evaluation filters them out.
func (r *PaymentRepo) ListByCheckTx(ctx context.Context, tx *sql.Tx, checkID string) ([]model.Payment, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE check_id = ? ORDER BY created_at, id`,
		checkID)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

// ListByCheck is ListByCheckTx without an enclosing transaction.
func (r *PaymentRepo) ListByCheck(ctx context.Context, checkID string) ([]model.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE check_id = ? ORDER BY created_at, id`,
		checkID)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

func collectPayments(rows *sql.Rows) ([]model.Payment, error) {
	defer rows.Close()
	var out []model.Payment
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(&p.ID, &p.CheckID, &p.TenderID, &p.TenderType,
			&p.AmountCents, &p.TipCents, &p.Reference, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
