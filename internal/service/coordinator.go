package service

import (
	"context"
	"database/sql"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/pos-check-service/internal/model"
	"github.com/iliyamo/pos-check-service/internal/queue"
	"github.com/iliyamo/pos-check-service/internal/repository"
)

// Coordinator is the check-and-posting state machine.  Every lifecycle
// operation runs against the local store inside a single transaction that
// also appends the resulting entity snapshots to the sync queue, so the
// local commit and the pending upload are one durable unit of work: the
// cloud never needs to be reachable for an operation to succeed.
//
// The coordinator trusts the lock discipline: it assumes the caller holds
// the check's lease and does not re-verify it.  A caller that bypasses
// CheckLockRepo (e.g. a manager override flow) may race on totals
// recompute; that risk is accepted rather than hidden.
type Coordinator struct {
	db       *sql.DB
	checks   *repository.CheckRepo
	items    *repository.CheckItemRepo
	payments *repository.PaymentRepo
	syncq    *repository.SyncQueueRepo
	ranges   *repository.NumberRangeRepo
	menu     *repository.MenuRepo
	taxRate  float64 // flat stand-in; real tax-group computation is external
}

// NewCoordinator constructs a Coordinator.  All repositories must be bound
// to the same database handle so transactions compose.
func NewCoordinator(db *sql.DB, checks *repository.CheckRepo, items *repository.CheckItemRepo,
	payments *repository.PaymentRepo, syncq *repository.SyncQueueRepo,
	ranges *repository.NumberRangeRepo, menu *repository.MenuRepo, taxRate float64) *Coordinator {
	if db == nil || checks == nil || items == nil || payments == nil || syncq == nil || ranges == nil || menu == nil {
		panic("nil dependency passed to NewCoordinator")
	}
	return &Coordinator{
		db:       db,
		checks:   checks,
		items:    items,
		payments: payments,
		syncq:    syncq,
		ranges:   ranges,
		menu:     menu,
		taxRate:  taxRate,
	}
}

// CreateCheckInput carries the fields needed to open a check.
type CreateCheckInput struct {
	RVCID       uint64
	EmployeeID  uint64
	OrderType   string
	TableNumber *string
	GuestCount  *int
}

// ItemLine is one requested line in an AddItems batch.
type ItemLine struct {
	MenuItemID         uint64
	Quantity           int
	UnitPriceOverride  *int64 // cents; nil means use the cached menu price
	Modifiers          []string
	SeatNumber         *int
}

// PaymentInput carries the fields needed to record a payment.
type PaymentInput struct {
	TenderID   uint64
	TenderType string
	AmountCents int64
	TipCents    int64
	Reference   *string
}

// CheckDetail bundles a check with its items and payments for read paths.
type CheckDetail struct {
	Check    model.Check
	Items    []model.CheckItem
	Payments []model.Payment
}

// CreateCheck opens a new check for the calling workstation.  The check
// number comes from the workstation's exclusive range via an atomic
// storage-level increment; an exhausted range fails with
// repository.ErrRangeExhausted and requires operational reassignment.
func (s *Coordinator) CreateCheck(ctx context.Context, workstationID string, in CreateCheckInput) (*model.Check, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	number, err := s.ranges.AllocateTx(ctx, tx, workstationID)
	if err != nil {
		return nil, err
	}

	chk := &model.Check{
		ID:           uuid.NewString(),
		CheckNumber:  number,
		RVCID:        in.RVCID,
		EmployeeID:   in.EmployeeID,
		OrderType:    in.OrderType,
		TableNumber:  in.TableNumber,
		GuestCount:   in.GuestCount,
		Status:       model.CheckStatusOpen,
		CurrentRound: 1,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.checks.CreateTx(ctx, tx, chk); err != nil {
		return nil, err
	}
	if err := s.enqueueCheckTx(ctx, tx, chk, model.SyncActionCreate); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return chk, nil
}

// AddItems appends a batch of items to an open check.  Each line is
// resolved against the local menu cache; lines whose menu item id cannot
// be resolved are skipped and logged rather than failing the batch, which
// defends against a stale or partially replicated cache.  The unit price
// is the explicit override when supplied, otherwise the cached menu
// price.  Every accepted line is stamped with the check's current round,
// and totals are recomputed once for the whole batch.  The ids of skipped
// menu items are returned so the UI can tell the operator.
func (s *Coordinator) AddItems(ctx context.Context, checkID string, lines []ItemLine) (*model.Check, []model.CheckItem, []uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	chk, err := s.checks.GetByIDTx(ctx, tx, checkID)
	if err != nil {
		return nil, nil, nil, err
	}
	if chk.Terminal() {
		return nil, nil, nil, repository.ErrInvalidState
	}

	menuIDs := make([]uint64, 0, len(lines))
	for _, l := range lines {
		menuIDs = append(menuIDs, l.MenuItemID)
	}
	resolved, err := s.menu.GetByIDsTx(ctx, tx, menuIDs)
	if err != nil {
		return nil, nil, nil, err
	}

	now := time.Now().UTC()
	var added []model.CheckItem
	var skipped []uint64
	for _, l := range lines {
		m, ok := resolved[l.MenuItemID]
		if !ok {
			// Stale or partial menu cache; drop the line, keep the batch.
			log.Printf("caps: skipping unresolvable menu item %d on check %s", l.MenuItemID, checkID)
			skipped = append(skipped, l.MenuItemID)
			continue
		}
		qty := l.Quantity
		if qty <= 0 {
			qty = 1
		}
		price := m.PriceCents
		if l.UnitPriceOverride != nil {
			price = *l.UnitPriceOverride
		}
		added = append(added, model.CheckItem{
			ID:             uuid.NewString(),
			CheckID:        chk.ID,
			RoundNumber:    chk.CurrentRound,
			MenuItemID:     l.MenuItemID,
			Name:           m.Name,
			Quantity:       qty,
			UnitPriceCents: price,
			Modifiers:      l.Modifiers,
			SeatNumber:     l.SeatNumber,
			CreatedAt:      now,
		})
	}

	if err := s.items.CreateMultipleTx(ctx, tx, added); err != nil {
		return nil, nil, nil, err
	}
	if _, _, _, err := s.recomputeTotalsTx(ctx, tx, chk.ID); err != nil {
		return nil, nil, nil, err
	}

	for i := range added {
		if err := s.enqueueItemTx(ctx, tx, &added[i], model.SyncActionCreate); err != nil {
			return nil, nil, nil, err
		}
	}
	chk, err = s.checks.GetByIDTx(ctx, tx, checkID)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := s.enqueueCheckTx(ctx, tx, chk, model.SyncActionUpdate); err != nil {
		return nil, nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, nil, err
	}
	committed = true
	return chk, added, skipped, nil
}

// SendToKitchen marks every unsent, non-voided item as sent and advances
// the round counter, so the next AddItems batch lands in a new round.
// This is how a second wave goes out mid-meal without re-firing the first.
func (s *Coordinator) SendToKitchen(ctx context.Context, checkID string) (*model.Check, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	chk, err := s.checks.GetByIDTx(ctx, tx, checkID)
	if err != nil {
		return nil, 0, err
	}
	if chk.Terminal() {
		return nil, 0, repository.ErrInvalidState
	}

	sentIDs, err := s.items.MarkSentTx(ctx, tx, checkID)
	if err != nil {
		return nil, 0, err
	}
	if err := s.checks.IncrementRoundTx(ctx, tx, checkID); err != nil {
		return nil, 0, err
	}

	if len(sentIDs) > 0 {
		sent := make(map[string]struct{}, len(sentIDs))
		for _, id := range sentIDs {
			sent[id] = struct{}{}
		}
		all, err := s.items.ListByCheckTx(ctx, tx, checkID)
		if err != nil {
			return nil, 0, err
		}
		for i := range all {
			if _, ok := sent[all[i].ID]; ok {
				if err := s.enqueueItemTx(ctx, tx, &all[i], model.SyncActionUpdate); err != nil {
					return nil, 0, err
				}
			}
		}
	}

	chk, err = s.checks.GetByIDTx(ctx, tx, checkID)
	if err != nil {
		return nil, 0, err
	}
	if err := s.enqueueCheckTx(ctx, tx, chk, model.SyncActionUpdate); err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}
	committed = true
	return chk, len(sentIDs), nil
}

// VoidItem flags one item voided with an optional reason and recomputes
// the check totals.  The row is preserved for the audit trail.
func (s *Coordinator) VoidItem(ctx context.Context, checkID, itemID string, reason *string) (*model.Check, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	chk, err := s.checks.GetByIDTx(ctx, tx, checkID)
	if err != nil {
		return nil, err
	}
	if chk.Terminal() {
		return nil, repository.ErrInvalidState
	}

	if err := s.items.VoidTx(ctx, tx, checkID, itemID, reason); err != nil {
		return nil, err
	}
	if _, _, _, err := s.recomputeTotalsTx(ctx, tx, checkID); err != nil {
		return nil, err
	}

	item, err := s.items.GetByIDTx(ctx, tx, checkID, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.enqueueItemTx(ctx, tx, item, model.SyncActionUpdate); err != nil {
		return nil, err
	}
	chk, err = s.checks.GetByIDTx(ctx, tx, checkID)
	if err != nil {
		return nil, err
	}
	if err := s.enqueueCheckTx(ctx, tx, chk, model.SyncActionUpdate); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return chk, nil
}

// AddPayment records an authorized payment against an open check and then
// evaluates settlement: once the cumulative non-voided amount+tip covers
// the total, the check closes, exactly once.  A payment against an
// already-closed check fails with ErrInvalidState rather than being
// silently accepted.
func (s *Coordinator) AddPayment(ctx context.Context, checkID string, in PaymentInput) (*model.Payment, *model.Check, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	chk, err := s.checks.GetByIDTx(ctx, tx, checkID)
	if err != nil {
		return nil, nil, err
	}
	if chk.Terminal() {
		return nil, nil, repository.ErrInvalidState
	}

	pay := &model.Payment{
		ID:          uuid.NewString(),
		CheckID:     chk.ID,
		TenderID:    in.TenderID,
		TenderType:  in.TenderType,
		AmountCents: in.AmountCents,
		TipCents:    in.TipCents,
		Reference:   in.Reference,
		Status:      model.PaymentStatusAuthorized,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.payments.CreateTx(ctx, tx, pay); err != nil {
		return nil, nil, err
	}

	all, err := s.payments.ListByCheckTx(ctx, tx, checkID)
	if err != nil {
		return nil, nil, err
	}
	closed := false
	if EvaluateSettlement(chk.TotalCents, all) {
		if err := s.checks.CloseTx(ctx, tx, checkID, time.Now().UTC()); err != nil {
			return nil, nil, err
		}
		closed = true
	}

	if err := s.enqueuePaymentTx(ctx, tx, pay, model.SyncActionCreate); err != nil {
		return nil, nil, err
	}
	chk, err = s.checks.GetByIDTx(ctx, tx, checkID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.enqueueCheckTx(ctx, tx, chk, model.SyncActionUpdate); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	committed = true

	if closed {
		s.publishClosed(ctx, chk)
	}
	return pay, chk, nil
}

// CloseCheck is the explicit, payment-independent terminal transition for
// partial-payment workflows.
func (s *Coordinator) CloseCheck(ctx context.Context, checkID string) (*model.Check, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	chk, err := s.checks.GetByIDTx(ctx, tx, checkID)
	if err != nil {
		return nil, err
	}
	if chk.Terminal() {
		return nil, repository.ErrInvalidState
	}
	if err := s.checks.CloseTx(ctx, tx, checkID, time.Now().UTC()); err != nil {
		return nil, err
	}
	chk, err = s.checks.GetByIDTx(ctx, tx, checkID)
	if err != nil {
		return nil, err
	}
	if err := s.enqueueCheckTx(ctx, tx, chk, model.SyncActionUpdate); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	s.publishClosed(ctx, chk)
	return chk, nil
}

// VoidCheck is the terminal void transition.  The void cascades to every
// non-voided item with the same reason.  Payments are left untouched:
// reversing money requires the separate refund flow, never an inference
// from a check void.
func (s *Coordinator) VoidCheck(ctx context.Context, checkID string, reason *string) (*model.Check, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	chk, err := s.checks.GetByIDTx(ctx, tx, checkID)
	if err != nil {
		return nil, err
	}
	if chk.Terminal() {
		return nil, repository.ErrInvalidState
	}
	if err := s.checks.VoidTx(ctx, tx, checkID, time.Now().UTC(), reason); err != nil {
		return nil, err
	}
	voidedIDs, err := s.items.VoidAllTx(ctx, tx, checkID, reason)
	if err != nil {
		return nil, err
	}

	if len(voidedIDs) > 0 {
		voided := make(map[string]struct{}, len(voidedIDs))
		for _, id := range voidedIDs {
			voided[id] = struct{}{}
		}
		all, err := s.items.ListByCheckTx(ctx, tx, checkID)
		if err != nil {
			return nil, err
		}
		for i := range all {
			if _, ok := voided[all[i].ID]; ok {
				if err := s.enqueueItemTx(ctx, tx, &all[i], model.SyncActionUpdate); err != nil {
					return nil, err
				}
			}
		}
	}

	chk, err = s.checks.GetByIDTx(ctx, tx, checkID)
	if err != nil {
		return nil, err
	}
	if err := s.enqueueCheckTx(ctx, tx, chk, model.SyncActionUpdate); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	s.publishClosed(ctx, chk)
	return chk, nil
}

// GetCheckDetail loads a check with its items and payments for the read
// endpoints.
func (s *Coordinator) GetCheckDetail(ctx context.Context, checkID string) (*CheckDetail, error) {
	chk, err := s.checks.GetByID(ctx, checkID)
	if err != nil {
		return nil, err
	}
	items, err := s.items.ListByCheck(ctx, checkID)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByCheck(ctx, checkID)
	if err != nil {
		return nil, err
	}
	return &CheckDetail{Check: *chk, Items: items, Payments: payments}, nil
}

// ListChecks returns checks filtered by status, optionally scoped to an RVC.
func (s *Coordinator) ListChecks(ctx context.Context, status string, rvcID uint64, limit int) ([]model.Check, error) {
	return s.checks.ListByStatus(ctx, status, rvcID, limit)
}

// recomputeTotalsTx derives subtotal, tax and total from the check's
// current non-voided items and writes them back.  Pure given the current
// rows: running it twice with no intervening change yields identical
// values.  The flat tax rate stands in for the external tax-group
// computation.
func (s *Coordinator) recomputeTotalsTx(ctx context.Context, tx *sql.Tx, checkID string) (int64, int64, int64, error) {
	items, err := s.items.ListByCheckTx(ctx, tx, checkID)
	if err != nil {
		return 0, 0, 0, err
	}
	var subtotal int64
	for _, it := range items {
		if it.Voided {
			continue
		}
		subtotal += int64(it.Quantity) * it.UnitPriceCents
	}
	tax := int64(math.Round(float64(subtotal) * s.taxRate))
	total := subtotal + tax
	if err := s.checks.UpdateTotalsTx(ctx, tx, checkID, subtotal, tax, total); err != nil {
		return 0, 0, 0, err
	}
	return subtotal, tax, total, nil
}

func (s *Coordinator) enqueueCheckTx(ctx context.Context, tx *sql.Tx, chk *model.Check, action string) error {
	payload, err := queue.MarshalCheck(chk)
	if err != nil {
		return err
	}
	return s.syncq.AddTx(ctx, tx, model.SyncEntityCheck, chk.ID, action, payload)
}

func (s *Coordinator) enqueueItemTx(ctx context.Context, tx *sql.Tx, it *model.CheckItem, action string) error {
	payload, err := queue.MarshalCheckItem(it)
	if err != nil {
		return err
	}
	return s.syncq.AddTx(ctx, tx, model.SyncEntityCheckItem, it.ID, action, payload)
}

func (s *Coordinator) enqueuePaymentTx(ctx context.Context, tx *sql.Tx, p *model.Payment, action string) error {
	payload, err := queue.MarshalPayment(p)
	if err != nil {
		return err
	}
	return s.syncq.AddTx(ctx, tx, model.SyncEntityPayment, p.ID, action, payload)
}

// publishClosed emits a terminal-status broker event, best effort and off
// the request path: a broker outage must never block the operator.
func (s *Coordinator) publishClosed(ctx context.Context, chk *model.Check) {
	closedAt := ""
	if chk.ClosedAt != nil {
		closedAt = chk.ClosedAt.UTC().Format(time.RFC3339)
	}
	ev := queue.CheckClosedEvent{
		CheckID:     chk.ID,
		CheckNumber: chk.CheckNumber,
		RVCID:       chk.RVCID,
		Status:      chk.Status,
		TotalCents:  chk.TotalCents,
		ClosedAt:    closedAt,
	}
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = queue.PublishCheckClosed(pubCtx, ev)
	}()
}
