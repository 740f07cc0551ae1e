package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/pos-check-service/internal/model"
)

// MenuRepo provides data access to the menu_items table, the local cache
// of the cloud menu.  On a workstation that has been offline the cache may
// be stale or partial; callers resolve ids against it defensively.
type MenuRepo struct {
	db *sql.DB
}

// NewMenuRepo returns a new MenuRepo bound to the provided database.
func NewMenuRepo(db *sql.DB) *MenuRepo { return &MenuRepo{db: db} }

// GetByIDsTx resolves a batch of menu item ids inside the provided
// transaction.  Missing and inactive ids are simply absent from the
// returned map; the coordinator decides how to handle unresolved lines.
func (r *MenuRepo) GetByIDsTx(ctx context.Context, tx *sql.Tx, ids []uint64) (map[uint64]model.MenuItem, error) {
	out := make(map[uint64]model.MenuItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := `SELECT id, name, price_cents, active, updated_at FROM menu_items WHERE active = 1 AND id IN (`
	args := make([]interface{}, 0, len(ids))
	for i, id := range ids {
		if i > 0 {
			query += ","
		}
		query += "?"
		args = append(args, id)
	}
	query += ")"
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var m model.MenuItem
		if err := rows.Scan(&m.ID, &m.Name, &m.PriceCents, &m.Active, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out[m.ID] = m
	}
	return out, rows.Err()
}

// Upsert writes one cache entry.  Called by the menu replication path when
// a fresh snapshot arrives from the cloud.
func (r *MenuRepo) Upsert(ctx context.Context, m model.MenuItem) error {
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE menu_items SET name = ?, price_cents = ?, active = ?, updated_at = ? WHERE id = ?`,
		m.Name, m.PriceCents, m.Active, m.UpdatedAt, m.ID,
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
			`INSERT INTO menu_items (id, name, price_cents, active, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			m.ID, m.Name, m.PriceCents, m.Active, m.UpdatedAt,
		)
	}
	return err
}
