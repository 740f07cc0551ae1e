package service

import "github.com/iliyamo/pos-check-service/internal/model"

// EvaluateSettlement decides whether a check should close given its total
// and the payments recorded so far.  Voided payments do not count toward
// settlement.  The function is pure so the close decision can be tested
// independently of payment recording: it never touches storage and has no
// side effects.
//
// A zero-total check is not auto-closed by a zero payment sum; closing an
// empty check is an explicit operator action.
func EvaluateSettlement(totalCents int64, payments []model.Payment) bool {
	if totalCents <= 0 {
		return false
	}
	var paid int64
	for _, p := range payments {
		if p.Status == model.PaymentStatusVoided {
			continue
		}
		paid += p.AmountCents + p.TipCents
	}
	return paid >= totalCents
}
