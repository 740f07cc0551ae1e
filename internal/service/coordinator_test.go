package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pos-check-service/internal/model"
	"github.com/iliyamo/pos-check-service/internal/repository"
)

func TestCreateCheck_DrawsFromWorkstationRange(t *testing.T) {
	env := newTestEnv(t)

	first := env.openCheck(t)
	second := env.openCheck(t)

	assert.Equal(t, int64(100), first.CheckNumber)
	assert.Equal(t, int64(101), second.CheckNumber)
	assert.Equal(t, model.CheckStatusOpen, first.Status)
	assert.Equal(t, 1, first.CurrentRound)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestCreateCheck_UnprovisionedWorkstation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.coord.CreateCheck(context.Background(), "ws-strange", CreateCheckInput{
		RVCID: 1, EmployeeID: 7, OrderType: "dine_in",
	})
	assert.ErrorIs(t, err, repository.ErrRangeNotFound)
}

func TestAddItems_ComputesTotals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chk := env.openCheck(t)

	chk, added, skipped, err := env.coord.AddItems(ctx, chk.ID, []ItemLine{
		{MenuItemID: 1, Quantity: 2}, // Burger 500 x2
	})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Empty(t, skipped)

	// 1000 subtotal, 8% tax = 80, total 1080.
	assert.Equal(t, int64(1000), chk.SubtotalCents)
	assert.Equal(t, int64(80), chk.TaxCents)
	assert.Equal(t, int64(1080), chk.TotalCents)
	assert.Equal(t, chk.SubtotalCents+chk.TaxCents, chk.TotalCents)
}

func TestAddItems_SkipsUnresolvableMenuIDs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chk := env.openCheck(t)

	chk, added, skipped, err := env.coord.AddItems(ctx, chk.ID, []ItemLine{
		{MenuItemID: 1, Quantity: 1},
		{MenuItemID: 999, Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, []uint64{999}, skipped)
	assert.Equal(t, int64(500), chk.SubtotalCents)
}

func TestAddItems_PriceOverrideAndQuantityFloor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chk := env.openCheck(t)

	override := int64(425)
	chk, added, _, err := env.coord.AddItems(ctx, chk.ID, []ItemLine{
		{MenuItemID: 2, Quantity: 0, UnitPriceOverride: &override},
	})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, 1, added[0].Quantity, "non-positive quantity defaults to 1")
	assert.Equal(t, int64(425), added[0].UnitPriceCents)
	assert.Equal(t, int64(425), chk.SubtotalCents)
}

func TestAddItems_RecomputeIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chk := env.openCheck(t)

	chk, _, _, err := env.coord.AddItems(ctx, chk.ID, []ItemLine{{MenuItemID: 1, Quantity: 2}})
	require.NoError(t, err)
	want := [3]int64{chk.SubtotalCents, chk.TaxCents, chk.TotalCents}

	// An empty batch still triggers a recompute; totals must not drift.
	for i := 0; i < 2; i++ {
		chk, _, _, err = env.coord.AddItems(ctx, chk.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, want, [3]int64{chk.SubtotalCents, chk.TaxCents, chk.TotalCents})
	}
}

func TestSendToKitchen_AdvancesRound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chk := env.openCheck(t)

	_, added, _, err := env.coord.AddItems(ctx, chk.ID, []ItemLine{
		{MenuItemID: 1, Quantity: 1},
		{MenuItemID: 3, Quantity: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added[0].RoundNumber)

	chk, sent, err := env.coord.SendToKitchen(ctx, chk.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, 2, chk.CurrentRound)

	// The next wave lands in round 2; re-sending does not re-fire round 1.
	_, added, _, err = env.coord.AddItems(ctx, chk.ID, []ItemLine{{MenuItemID: 2, Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, added[0].RoundNumber)

	_, sent, err = env.coord.SendToKitchen(ctx, chk.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestVoidItem_RecomputesTotals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chk := env.openCheck(t)

	_, added, _, err := env.coord.AddItems(ctx, chk.ID, []ItemLine{
		{MenuItemID: 1, Quantity: 1}, // 500
		{MenuItemID: 2, Quantity: 1}, // 250
	})
	require.NoError(t, err)

	reason := "86'd"
	chk, err = env.coord.VoidItem(ctx, chk.ID, added[1].ID, &reason)
	require.NoError(t, err)
	assert.Equal(t, int64(500), chk.SubtotalCents)
	assert.Equal(t, int64(40), chk.TaxCents)
	assert.Equal(t, int64(540), chk.TotalCents)

	detail, err := env.coord.GetCheckDetail(ctx, chk.ID)
	require.NoError(t, err)
	require.Len(t, detail.Items, 2, "voided item row is kept for the audit trail")
	var voided *model.CheckItem
	for i := range detail.Items {
		if detail.Items[i].ID == added[1].ID {
			voided = &detail.Items[i]
		}
	}
	require.NotNil(t, voided)
	assert.True(t, voided.Voided)
	require.NotNil(t, voided.VoidReason)
	assert.Equal(t, "86'd", *voided.VoidReason)
}

func TestVoidItem_UnknownItem(t *testing.T) {
	env := newTestEnv(t)
	chk := env.openCheck(t)

	_, err := env.coord.VoidItem(context.Background(), chk.ID, "no-such-item", nil)
	assert.ErrorIs(t, err, repository.ErrItemNotFound)
}

func TestAddPayment_ClosesOnFullSettlement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chk := env.openCheck(t)

	chk, _, _, err := env.coord.AddItems(ctx, chk.ID, []ItemLine{{MenuItemID: 1, Quantity: 2}})
	require.NoError(t, err)
	require.Equal(t, int64(1080), chk.TotalCents)

	pay, chk, err := env.coord.AddPayment(ctx, chk.ID, PaymentInput{
		TenderID: 1, TenderType: "card", AmountCents: 1080,
	})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusAuthorized, pay.Status)
	assert.Equal(t, model.CheckStatusClosed, chk.Status)
	require.NotNil(t, chk.ClosedAt)

	// The check closed exactly once; further tenders are rejected.
	_, _, err = env.coord.AddPayment(ctx, chk.ID, PaymentInput{
		TenderID: 1, TenderType: "cash", AmountCents: 100,
	})
	assert.ErrorIs(t, err, repository.ErrInvalidState)
}

func TestAddPayment_PartialLeavesCheckOpen(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chk := env.openCheck(t)

	chk, _, _, err := env.coord.AddItems(ctx, chk.ID, []ItemLine{{MenuItemID: 1, Quantity: 2}})
	require.NoError(t, err)

	_, chk, err = env.coord.AddPayment(ctx, chk.ID, PaymentInput{
		TenderID: 1, TenderType: "cash", AmountCents: 500,
	})
	require.NoError(t, err)
	assert.Equal(t, model.CheckStatusOpen, chk.Status)

	// Tip counts toward settlement.
	_, chk, err = env.coord.AddPayment(ctx, chk.ID, PaymentInput{
		TenderID: 1, TenderType: "card", AmountCents: 480, TipCents: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, model.CheckStatusClosed, chk.Status)
}

func TestCloseCheck_ExplicitTransition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chk := env.openCheck(t)

	chk, err := env.coord.CloseCheck(ctx, chk.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckStatusClosed, chk.Status)

	_, err = env.coord.CloseCheck(ctx, chk.ID)
	assert.ErrorIs(t, err, repository.ErrInvalidState)
}

func TestVoidCheck_CascadesToItemsNotPayments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chk := env.openCheck(t)

	_, _, _, err := env.coord.AddItems(ctx, chk.ID, []ItemLine{
		{MenuItemID: 1, Quantity: 1},
		{MenuItemID: 2, Quantity: 1},
	})
	require.NoError(t, err)
	_, _, err = env.coord.AddPayment(ctx, chk.ID, PaymentInput{
		TenderID: 1, TenderType: "cash", AmountCents: 100,
	})
	require.NoError(t, err)

	reason := "walkout"
	chk, err = env.coord.VoidCheck(ctx, chk.ID, &reason)
	require.NoError(t, err)
	assert.Equal(t, model.CheckStatusVoided, chk.Status)
	require.NotNil(t, chk.VoidReason)
	assert.Equal(t, "walkout", *chk.VoidReason)

	detail, err := env.coord.GetCheckDetail(ctx, chk.ID)
	require.NoError(t, err)
	for _, it := range detail.Items {
		assert.True(t, it.Voided)
		require.NotNil(t, it.VoidReason)
		assert.Equal(t, "walkout", *it.VoidReason)
	}
	// Payments are untouched; money reversal is a separate flow.
	require.Len(t, detail.Payments, 1)
	assert.Equal(t, model.PaymentStatusAuthorized, detail.Payments[0].Status)
}

func TestOperations_EnqueueSyncSnapshots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	chk := env.openCheck(t)
	pending, err := env.syncq.GetPending(ctx, 100)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.SyncEntityCheck, pending[0].EntityType)
	assert.Equal(t, model.SyncActionCreate, pending[0].Action)
	assert.Equal(t, chk.ID, pending[0].EntityID)

	_, added, _, err := env.coord.AddItems(ctx, chk.ID, []ItemLine{{MenuItemID: 1, Quantity: 2}})
	require.NoError(t, err)

	// One item create plus a check update on top of the original create.
	pending, err = env.syncq.GetPending(ctx, 100)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, model.SyncEntityCheckItem, pending[1].EntityType)
	assert.Equal(t, added[0].ID, pending[1].EntityID)
	assert.Equal(t, model.SyncEntityCheck, pending[2].EntityType)
	assert.Equal(t, model.SyncActionUpdate, pending[2].Action)

	_, _, err = env.coord.AddPayment(ctx, chk.ID, PaymentInput{
		TenderID: 1, TenderType: "card", AmountCents: 2000,
	})
	require.NoError(t, err)

	pending, err = env.syncq.GetPending(ctx, 100)
	require.NoError(t, err)
	require.Len(t, pending, 5)
	assert.Equal(t, model.SyncEntityPayment, pending[3].EntityType)
	assert.Equal(t, model.SyncActionCreate, pending[3].Action)
}

func TestListChecks_FiltersByStatusAndRVC(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	open := env.openCheck(t)
	closed := env.openCheck(t)
	_, err := env.coord.CloseCheck(ctx, closed.ID)
	require.NoError(t, err)

	got, err := env.coord.ListChecks(ctx, model.CheckStatusOpen, 0, 50)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, open.ID, got[0].ID)

	got, err = env.coord.ListChecks(ctx, model.CheckStatusOpen, 999, 50)
	require.NoError(t, err)
	assert.Empty(t, got)
}
