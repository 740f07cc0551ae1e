package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pos-check-service/internal/connectivity"
	"github.com/iliyamo/pos-check-service/internal/model"
	"github.com/iliyamo/pos-check-service/internal/repository"
	"github.com/iliyamo/pos-check-service/internal/service"
)

// CheckHandler exposes the check lifecycle endpoints.  Every mutating
// route delegates to the coordinator, which owns the durable unit of work
// (local commit + sync enqueue); the handler's job is binding, id
// parsing and sentinel-error translation.
type CheckHandler struct {
	Coordinator *service.Coordinator
	Monitor     *connectivity.Monitor
}

// NewCheckHandler constructs a CheckHandler.  Monitor may be nil in tests.
func NewCheckHandler(coordinator *service.Coordinator, monitor *connectivity.Monitor) *CheckHandler {
	if coordinator == nil {
		panic("nil coordinator passed to NewCheckHandler")
	}
	return &CheckHandler{Coordinator: coordinator, Monitor: monitor}
}

func checkJSON(chk *model.Check) echo.Map {
	m := echo.Map{
		"id":             chk.ID,
		"check_number":   chk.CheckNumber,
		"rvc_id":         chk.RVCID,
		"employee_id":    chk.EmployeeID,
		"order_type":     chk.OrderType,
		"status":         chk.Status,
		"subtotal_cents": chk.SubtotalCents,
		"tax_cents":      chk.TaxCents,
		"total_cents":    chk.TotalCents,
		"current_round":  chk.CurrentRound,
		"created_at":     chk.CreatedAt.UTC().Format(time.RFC3339),
		"cloud_synced":   chk.CloudSynced,
	}
	if chk.TableNumber != nil {
		m["table_number"] = *chk.TableNumber
	}
	if chk.GuestCount != nil {
		m["guest_count"] = *chk.GuestCount
	}
	if chk.ClosedAt != nil {
		m["closed_at"] = chk.ClosedAt.UTC().Format(time.RFC3339)
	}
	if chk.VoidReason != nil {
		m["void_reason"] = *chk.VoidReason
	}
	return m
}

func itemJSON(it *model.CheckItem) echo.Map {
	modifiers := it.Modifiers
	if modifiers == nil {
		modifiers = []string{}
	}
	m := echo.Map{
		"id":               it.ID,
		"check_id":         it.CheckID,
		"round_number":     it.RoundNumber,
		"menu_item_id":     it.MenuItemID,
		"name":             it.Name,
		"quantity":         it.Quantity,
		"unit_price_cents": it.UnitPriceCents,
		"modifiers":        modifiers,
		"sent_to_kitchen":  it.SentToKitchen,
		"voided":           it.Voided,
	}
	if it.SeatNumber != nil {
		m["seat_number"] = *it.SeatNumber
	}
	if it.VoidReason != nil {
		m["void_reason"] = *it.VoidReason
	}
	return m
}

func paymentJSON(p *model.Payment) echo.Map {
	m := echo.Map{
		"id":           p.ID,
		"check_id":     p.CheckID,
		"tender_id":    p.TenderID,
		"tender_type":  p.TenderType,
		"amount_cents": p.AmountCents,
		"tip_cents":    p.TipCents,
		"status":       p.Status,
		"created_at":   p.CreatedAt.UTC().Format(time.RFC3339),
	}
	if p.Reference != nil {
		m["reference"] = *p.Reference
	}
	return m
}

// checkError maps coordinator sentinel failures onto HTTP responses.
func checkError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrCheckNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "check not found"})
	case errors.Is(err, repository.ErrItemNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "check item not found"})
	case errors.Is(err, repository.ErrInvalidState):
		return c.JSON(http.StatusConflict, echo.Map{"error": "check is not open"})
	case errors.Is(err, repository.ErrRangeExhausted):
		return c.JSON(http.StatusConflict, echo.Map{"error": "check number range exhausted; reassignment required"})
	case errors.Is(err, repository.ErrRangeNotFound):
		return c.JSON(http.StatusConflict, echo.Map{"error": "no check number range for workstation"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "operation failed"})
	}
}

func (h *CheckHandler) storeDown(c echo.Context) bool {
	if h.Monitor != nil && !h.Monitor.StoreAvailable() {
		_ = c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "local store unavailable"})
		return true
	}
	return false
}

// Create handles POST /v1/checks.  The workstation id in the body selects
// which exclusive number range the check number is drawn from.
func (h *CheckHandler) Create(c echo.Context) error {
	if h.storeDown(c) {
		return nil
	}
	var body struct {
		WorkstationID string  `json:"workstation_id"`
		RVCID         uint64  `json:"rvc_id"`
		EmployeeID    uint64  `json:"employee_id"`
		OrderType     string  `json:"order_type"`
		TableNumber   *string `json:"table_number"`
		GuestCount    *int    `json:"guest_count"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.WorkstationID == "" || body.OrderType == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "workstation_id and order_type are required"})
	}

	chk, err := h.Coordinator.CreateCheck(c.Request().Context(), body.WorkstationID, service.CreateCheckInput{
		RVCID:       body.RVCID,
		EmployeeID:  body.EmployeeID,
		OrderType:   body.OrderType,
		TableNumber: body.TableNumber,
		GuestCount:  body.GuestCount,
	})
	if err != nil {
		return checkError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"check": checkJSON(chk)})
}

// AddItems handles POST /v1/checks/:id/items.  Lines with menu item ids
// the local cache cannot resolve are skipped rather than failing the
// batch; their ids come back in "skipped" so the UI can tell the
// operator.
func (h *CheckHandler) AddItems(c echo.Context) error {
	if h.storeDown(c) {
		return nil
	}
	checkID := c.Param("id")
	var body struct {
		Items []struct {
			MenuItemID     uint64   `json:"menu_item_id"`
			Quantity       int      `json:"quantity"`
			UnitPriceCents *int64   `json:"unit_price_cents"`
			Modifiers      []string `json:"modifiers"`
			SeatNumber     *int     `json:"seat_number"`
		} `json:"items"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.Items) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "items is required"})
	}
	lines := make([]service.ItemLine, 0, len(body.Items))
	for _, it := range body.Items {
		lines = append(lines, service.ItemLine{
			MenuItemID:        it.MenuItemID,
			Quantity:          it.Quantity,
			UnitPriceOverride: it.UnitPriceCents,
			Modifiers:         it.Modifiers,
			SeatNumber:        it.SeatNumber,
		})
	}

	chk, added, skipped, err := h.Coordinator.AddItems(c.Request().Context(), checkID, lines)
	if err != nil {
		return checkError(c, err)
	}
	items := make([]echo.Map, 0, len(added))
	for i := range added {
		items = append(items, itemJSON(&added[i]))
	}
	if skipped == nil {
		skipped = []uint64{}
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"check":   checkJSON(chk),
		"items":   items,
		"skipped": skipped,
	})
}

// Send handles POST /v1/checks/:id/send, firing the current round to the
// kitchen and opening the next one.
func (h *CheckHandler) Send(c echo.Context) error {
	if h.storeDown(c) {
		return nil
	}
	chk, sent, err := h.Coordinator.SendToKitchen(c.Request().Context(), c.Param("id"))
	if err != nil {
		return checkError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"check": checkJSON(chk),
		"sent":  sent,
	})
}

// VoidItem handles POST /v1/checks/:id/items/:itemID/void.
func (h *CheckHandler) VoidItem(c echo.Context) error {
	if h.storeDown(c) {
		return nil
	}
	var body struct {
		Reason *string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	chk, err := h.Coordinator.VoidItem(c.Request().Context(), c.Param("id"), c.Param("itemID"), body.Reason)
	if err != nil {
		return checkError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"check": checkJSON(chk)})
}

// AddPayment handles POST /v1/checks/:id/payments.  When the cumulative
// non-voided payments cover the total, the check closes in the same unit
// of work; the response carries the possibly-closed check.
func (h *CheckHandler) AddPayment(c echo.Context) error {
	if h.storeDown(c) {
		return nil
	}
	var body struct {
		TenderID    uint64  `json:"tender_id"`
		TenderType  string  `json:"tender_type"`
		AmountCents int64   `json:"amount_cents"`
		TipCents    int64   `json:"tip_cents"`
		Reference   *string `json:"reference"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.TenderType == "" || body.AmountCents <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tender_type and a positive amount_cents are required"})
	}

	pay, chk, err := h.Coordinator.AddPayment(c.Request().Context(), c.Param("id"), service.PaymentInput{
		TenderID:    body.TenderID,
		TenderType:  body.TenderType,
		AmountCents: body.AmountCents,
		TipCents:    body.TipCents,
		Reference:   body.Reference,
	})
	if err != nil {
		return checkError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"payment": paymentJSON(pay),
		"check":   checkJSON(chk),
	})
}

// Close handles POST /v1/checks/:id/close, the explicit terminal close
// for partial-payment workflows.
func (h *CheckHandler) Close(c echo.Context) error {
	if h.storeDown(c) {
		return nil
	}
	chk, err := h.Coordinator.CloseCheck(c.Request().Context(), c.Param("id"))
	if err != nil {
		return checkError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"check": checkJSON(chk)})
}

// Void handles POST /v1/checks/:id/void.  The void cascades to items;
// payments are untouched and must go through the refund flow.
func (h *CheckHandler) Void(c echo.Context) error {
	if h.storeDown(c) {
		return nil
	}
	var body struct {
		Reason *string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	chk, err := h.Coordinator.VoidCheck(c.Request().Context(), c.Param("id"), body.Reason)
	if err != nil {
		return checkError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"check": checkJSON(chk)})
}

// Get handles GET /v1/checks/:id, returning the check with its items and
// payments for the UI detail view.
func (h *CheckHandler) Get(c echo.Context) error {
	detail, err := h.Coordinator.GetCheckDetail(c.Request().Context(), c.Param("id"))
	if err != nil {
		return checkError(c, err)
	}
	items := make([]echo.Map, 0, len(detail.Items))
	for i := range detail.Items {
		items = append(items, itemJSON(&detail.Items[i]))
	}
	payments := make([]echo.Map, 0, len(detail.Payments))
	for i := range detail.Payments {
		payments = append(payments, paymentJSON(&detail.Payments[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"check":    checkJSON(&detail.Check),
		"items":    items,
		"payments": payments,
	})
}

// List handles GET /v1/checks?status=open&rvc_id=1&limit=50.
func (h *CheckHandler) List(c echo.Context) error {
	status := c.QueryParam("status")
	if status == "" {
		status = model.CheckStatusOpen
	}
	var rvcID uint64
	if v := c.QueryParam("rvc_id"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid rvc_id"})
		}
		rvcID = n
	}
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
		}
		limit = n
	}

	checks, err := h.Coordinator.ListChecks(c.Request().Context(), status, rvcID, limit)
	if err != nil {
		return checkError(c, err)
	}
	out := make([]echo.Map, 0, len(checks))
	for i := range checks {
		out = append(out, checkJSON(&checks[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}
