package model

import "time"

// CheckItem is a single line on a check.  Items are never physically
// deleted; voiding sets the Voided flag and keeps the row for the audit
// trail.  Each item belongs to exactly one check and is stamped with the
// kitchen round that was current when it was added.
type CheckItem struct {
	ID            string    // check_items.id (UUID)
	CheckID       string    // check_items.check_id
	RoundNumber   int       // check_items.round_number
	MenuItemID    uint64    // check_items.menu_item_id
	Name          string    // check_items.name (denormalized from the menu cache)
	Quantity      int       // check_items.quantity
	UnitPriceCents int64    // check_items.unit_price_cents
	Modifiers     []string  // check_items.modifiers (JSON array, order preserved)
	SeatNumber    *int      // check_items.seat_number (nullable)
	SentToKitchen bool      // check_items.sent_to_kitchen
	Voided        bool      // check_items.voided
	VoidReason    *string   // check_items.void_reason (nullable)
	CreatedAt     time.Time // check_items.created_at
}
