// Package queue defines the payloads this service emits: full entity
// snapshots carried through the durable sync queue, and operator alert
// events published to the message broker.
package queue

import (
	"encoding/json"
	"time"

	"github.com/iliyamo/pos-check-service/internal/model"
)

// CheckSnapshot is the wire form of a check uploaded to the cloud of
// record.  Snapshots are always the full current state of the entity,
// never a delta, so duplicate or re-ordered delivery across retries is
// safe under the cloud's last-write-wins upsert.
type CheckSnapshot struct {
	ID            string     `json:"id"`
	CheckNumber   int64      `json:"check_number"`
	RVCID         uint64     `json:"rvc_id"`
	EmployeeID    uint64     `json:"employee_id"`
	OrderType     string     `json:"order_type"`
	TableNumber   *string    `json:"table_number,omitempty"`
	GuestCount    *int       `json:"guest_count,omitempty"`
	Status        string     `json:"status"`
	SubtotalCents int64      `json:"subtotal_cents"`
	TaxCents      int64      `json:"tax_cents"`
	TotalCents    int64      `json:"total_cents"`
	CurrentRound  int        `json:"current_round"`
	CreatedAt     time.Time  `json:"created_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	VoidReason    *string    `json:"void_reason,omitempty"`
}

// CheckItemSnapshot is the wire form of a check line item.
type CheckItemSnapshot struct {
	ID             string    `json:"id"`
	CheckID        string    `json:"check_id"`
	RoundNumber    int       `json:"round_number"`
	MenuItemID     uint64    `json:"menu_item_id"`
	Name           string    `json:"name"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Modifiers      []string  `json:"modifiers"`
	SeatNumber     *int      `json:"seat_number,omitempty"`
	SentToKitchen  bool      `json:"sent_to_kitchen"`
	Voided         bool      `json:"voided"`
	VoidReason     *string   `json:"void_reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// PaymentSnapshot is the wire form of a payment.
type PaymentSnapshot struct {
	ID          string    `json:"id"`
	CheckID     string    `json:"check_id"`
	TenderID    uint64    `json:"tender_id"`
	TenderType  string    `json:"tender_type"`
	AmountCents int64     `json:"amount_cents"`
	TipCents    int64     `json:"tip_cents"`
	Reference   *string   `json:"reference,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// MarshalCheck builds the snapshot payload for a check row.
func MarshalCheck(c *model.Check) (json.RawMessage, error) {
	return json.Marshal(CheckSnapshot{
		ID:            c.ID,
		CheckNumber:   c.CheckNumber,
		RVCID:         c.RVCID,
		EmployeeID:    c.EmployeeID,
		OrderType:     c.OrderType,
		TableNumber:   c.TableNumber,
		GuestCount:    c.GuestCount,
		Status:        c.Status,
		SubtotalCents: c.SubtotalCents,
		TaxCents:      c.TaxCents,
		TotalCents:    c.TotalCents,
		CurrentRound:  c.CurrentRound,
		CreatedAt:     c.CreatedAt,
		ClosedAt:      c.ClosedAt,
		VoidReason:    c.VoidReason,
	})
}

// MarshalCheckItem builds the snapshot payload for an item row.
func MarshalCheckItem(it *model.CheckItem) (json.RawMessage, error) {
	modifiers := it.Modifiers
	if modifiers == nil {
		modifiers = []string{}
	}
	return json.Marshal(CheckItemSnapshot{
		ID:             it.ID,
		CheckID:        it.CheckID,
		RoundNumber:    it.RoundNumber,
		MenuItemID:     it.MenuItemID,
		Name:           it.Name,
		Quantity:       it.Quantity,
		UnitPriceCents: it.UnitPriceCents,
		Modifiers:      modifiers,
		SeatNumber:     it.SeatNumber,
		SentToKitchen:  it.SentToKitchen,
		Voided:         it.Voided,
		VoidReason:     it.VoidReason,
		CreatedAt:      it.CreatedAt,
	})
}

// MarshalPayment builds the snapshot payload for a payment row.
func MarshalPayment(p *model.Payment) (json.RawMessage, error) {
	return json.Marshal(PaymentSnapshot{
		ID:          p.ID,
		CheckID:     p.CheckID,
		TenderID:    p.TenderID,
		TenderType:  p.TenderType,
		AmountCents: p.AmountCents,
		TipCents:    p.TipCents,
		Reference:   p.Reference,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
	})
}

// SyncDeadLetterEvent is published when a sync queue entry crosses the
// retry ceiling.  Financial data must never vanish without notice, so
// downstream consumers surface these to property operators.
type SyncDeadLetterEvent struct {
	QueueID    int64  `json:"queue_id"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Action     string `json:"action"`
	Attempts   int    `json:"attempts"`
	LastError  string `json:"last_error"`
	FailedAt   string `json:"failed_at"`
}

// CheckClosedEvent is published when a check reaches a terminal status.
// Consumers use it for notifications and end-of-day reporting without
// querying the local store.
type CheckClosedEvent struct {
	CheckID     string `json:"check_id"`
	CheckNumber int64  `json:"check_number"`
	RVCID       uint64 `json:"rvc_id"`
	Status      string `json:"status"`
	TotalCents  int64  `json:"total_cents"`
	ClosedAt    string `json:"closed_at"`
}
