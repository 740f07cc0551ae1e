package model

import "time"

// MenuItem is a row in the local menu cache.  The cache is replicated down
// from the cloud menu service and may be stale or partial on a workstation
// that has been offline; item resolution must therefore tolerate missing
// ids instead of failing a whole order.
type MenuItem struct {
	ID         uint64    // menu_items.id (cloud menu item id)
	Name       string    // menu_items.name
	PriceCents int64     // menu_items.price_cents
	Active     bool      // menu_items.active
	UpdatedAt  time.Time // menu_items.updated_at
}
