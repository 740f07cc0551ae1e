package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pos-check-service/internal/model"
	"github.com/iliyamo/pos-check-service/internal/repository"
)

// SyncAdminHandler exposes the operator view of the sync queue.  Entries
// that have exhausted their automatic retries carry financial data, so
// they are listed here and can be re-queued once the underlying problem
// is fixed — they never disappear on their own.
type SyncAdminHandler struct {
	Queue *repository.SyncQueueRepo
}

// NewSyncAdminHandler constructs a SyncAdminHandler.
func NewSyncAdminHandler(queue *repository.SyncQueueRepo) *SyncAdminHandler {
	if queue == nil {
		panic("nil repository passed to NewSyncAdminHandler")
	}
	return &SyncAdminHandler{Queue: queue}
}

func syncItemJSON(it *model.SyncQueueItem) echo.Map {
	m := echo.Map{
		"id":          it.ID,
		"entity_type": it.EntityType,
		"entity_id":   it.EntityID,
		"action":      it.Action,
		"attempts":    it.Attempts,
		"created_at":  it.CreatedAt.UTC().Format(time.RFC3339),
	}
	if it.LastAttempt != nil {
		m["last_attempt"] = it.LastAttempt.UTC().Format(time.RFC3339)
	}
	if it.LastError != nil {
		m["error"] = *it.LastError
	}
	return m
}

// ListDead handles GET /v1/sync/dead.
func (h *SyncAdminHandler) ListDead(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
		}
		limit = n
	}
	items, err := h.Queue.GetDead(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load dead entries"})
	}
	out := make([]echo.Map, 0, len(items))
	for i := range items {
		out = append(out, syncItemJSON(&items[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// ListPending handles GET /v1/sync/pending, mostly for the property
// dashboard's backlog gauge.
func (h *SyncAdminHandler) ListPending(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
		}
		limit = n
	}
	items, err := h.Queue.GetPending(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load pending entries"})
	}
	out := make([]echo.Map, 0, len(items))
	for i := range items {
		out = append(out, syncItemJSON(&items[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// Requeue handles POST /v1/sync/:id/requeue, resetting a dead entry's
// attempt counter after the operator has addressed the failure cause.
func (h *SyncAdminHandler) Requeue(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid sync entry id"})
	}
	if err := h.Queue.Requeue(c.Request().Context(), id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to requeue entry"})
	}
	return c.JSON(http.StatusOK, echo.Map{"requeued": true})
}
