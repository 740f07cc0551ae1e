package model

import "time"

// Payment status values.  A payment is recorded as authorized; capture and
// void are driven by external settlement flows.
const (
	PaymentStatusAuthorized = "authorized"
	PaymentStatusCaptured   = "captured"
	PaymentStatusVoided     = "voided"
)

// Payment is a tender applied to a check.  Amount and tip are stored in
// cents.  Voided payments are excluded from settlement evaluation but the
// rows are kept.
type Payment struct {
	ID          string    // payments.id (UUID)
	CheckID     string    // payments.check_id
	TenderID    uint64    // payments.tender_id
	TenderType  string    // payments.tender_type (cash, card, gift, ...)
	AmountCents int64     // payments.amount_cents
	TipCents    int64     // payments.tip_cents
	Reference   *string   // payments.reference (nullable, e.g. gateway approval code)
	Status      string    // payments.status
	CreatedAt   time.Time // payments.created_at
}
