package model

import "time"

// Check status values.  Transitions are monotonic: an open check may move
// to closed or voided, and both of those states are terminal.
const (
	CheckStatusOpen   = "open"
	CheckStatusClosed = "closed"
	CheckStatusVoided = "voided"
)

// Check represents a guest check (order/bill) owned by a revenue center.
// Monetary amounts are stored in cents.  The invariant Total = Subtotal + Tax
// holds after every recompute, and totals are derived only from non-voided
// items.
//
// Fields:
//  ID            – UUID primary key, allocated locally so offline
//                  workstations never collide.
//  CheckNumber   – operator-facing number drawn from the workstation's
//                  exclusive number range.
//  RVCID         – revenue center the check belongs to.
//  EmployeeID    – employee who opened the check.
//  OrderType     – dine-in, takeout, delivery, etc.
//  Status        – open, closed or voided.
//  CurrentRound  – kitchen round that new items are stamped with.
//  CloudSynced   – true once the cloud of record has accepted the check.
//  CloudID       – identifier assigned by the cloud system, when known.
type Check struct {
	ID            string     // checks.id (UUID)
	CheckNumber   int64      // checks.check_number
	RVCID         uint64     // checks.rvc_id
	EmployeeID    uint64     // checks.employee_id
	OrderType     string     // checks.order_type
	TableNumber   *string    // checks.table_number (nullable)
	GuestCount    *int       // checks.guest_count (nullable)
	Status        string     // checks.status
	SubtotalCents int64      // checks.subtotal_cents
	TaxCents      int64      // checks.tax_cents
	TotalCents    int64      // checks.total_cents
	CurrentRound  int        // checks.current_round
	CreatedAt     time.Time  // checks.created_at
	ClosedAt      *time.Time // checks.closed_at (nullable until terminal)
	VoidReason    *string    // checks.void_reason (nullable)
	CloudSynced   bool       // checks.cloud_synced
	CloudID       *string    // checks.cloud_id (nullable)
}

// Terminal reports whether the check has reached a terminal status and may
// no longer be mutated.
func (c *Check) Terminal() bool {
	return c.Status == CheckStatusClosed || c.Status == CheckStatusVoided
}
