package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pos-check-service/internal/connectivity"
	"github.com/iliyamo/pos-check-service/internal/model"
	"github.com/iliyamo/pos-check-service/internal/repository"
)

// LockHandler exposes the check lock lease endpoints.  The handler is
// deliberately thin: all lease semantics, including the lazy expiry purge
// and idempotent re-acquire, live in the repository so they hold for any
// caller, not just HTTP ones.
type LockHandler struct {
	Locks   *repository.CheckLockRepo
	Monitor *connectivity.Monitor
	TTL     time.Duration // default lease duration
}

// NewLockHandler constructs a LockHandler.  Monitor may be nil in tests.
func NewLockHandler(locks *repository.CheckLockRepo, monitor *connectivity.Monitor, ttl time.Duration) *LockHandler {
	if locks == nil {
		panic("nil repository passed to NewLockHandler")
	}
	return &LockHandler{Locks: locks, Monitor: monitor, TTL: ttl}
}

func lockJSON(l *model.CheckLock) echo.Map {
	return echo.Map{
		"check_id":       l.CheckID,
		"workstation_id": l.WorkstationID,
		"employee_id":    l.EmployeeID,
		"locked_at":      l.LockedAt.UTC().Format(time.RFC3339),
		"expires_at":     l.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

func (h *LockHandler) storeDown(c echo.Context) bool {
	if h.Monitor != nil && !h.Monitor.StoreAvailable() {
		_ = c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "local store unavailable"})
		return true
	}
	return false
}

// Acquire handles POST /v1/checks/:id/lock.  The body must carry the
// workstation and employee ids.  A conflicting lease answers 409 with the
// holder and its expiry so the UI can show who has the check and for how
// long.  A failure to reach the store fails closed: no lock is granted
// and no automatic retry loop is started.
func (h *LockHandler) Acquire(c echo.Context) error {
	if h.storeDown(c) {
		return nil
	}
	checkID := c.Param("id")
	if checkID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid check id"})
	}
	var body struct {
		WorkstationID string `json:"workstation_id"`
		EmployeeID    uint64 `json:"employee_id"`
		TTLSeconds    int    `json:"ttl_seconds"`
	}
	if err := c.Bind(&body); err != nil || body.WorkstationID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "workstation_id is required"})
	}
	ttl := h.TTL
	if body.TTLSeconds > 0 {
		ttl = time.Duration(body.TTLSeconds) * time.Second
	}

	lock, err := h.Locks.Acquire(c.Request().Context(), checkID, body.WorkstationID, body.EmployeeID, ttl)
	if err != nil {
		var conflict *repository.LockConflictError
		if errors.As(err, &conflict) {
			return c.JSON(http.StatusConflict, echo.Map{
				"error":      "check locked by another workstation",
				"locked_by":  conflict.WorkstationID,
				"expires_at": conflict.ExpiresAt.UTC().Format(time.RFC3339),
			})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to acquire lock"})
	}
	return c.JSON(http.StatusOK, echo.Map{"lock": lockJSON(lock)})
}

// Release handles POST /v1/checks/:id/unlock.  Only the holding
// workstation can release; anything else is a 404 so a stale client
// learns its lease is gone.
func (h *LockHandler) Release(c echo.Context) error {
	if h.storeDown(c) {
		return nil
	}
	checkID := c.Param("id")
	if checkID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid check id"})
	}
	var body struct {
		WorkstationID string `json:"workstation_id"`
	}
	if err := c.Bind(&body); err != nil || body.WorkstationID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "workstation_id is required"})
	}
	released, err := h.Locks.Release(c.Request().Context(), checkID, body.WorkstationID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to release lock"})
	}
	if !released {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "lock not held by workstation"})
	}
	return c.JSON(http.StatusOK, echo.Map{"released": true})
}

// Refresh handles POST /v1/checks/:id/lock/refresh.  A lease that expired
// or was taken over answers 409 so the client stops editing and warns the
// operator.
func (h *LockHandler) Refresh(c echo.Context) error {
	if h.storeDown(c) {
		return nil
	}
	checkID := c.Param("id")
	if checkID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid check id"})
	}
	var body struct {
		WorkstationID string `json:"workstation_id"`
		TTLSeconds    int    `json:"ttl_seconds"`
	}
	if err := c.Bind(&body); err != nil || body.WorkstationID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "workstation_id is required"})
	}
	ttl := h.TTL
	if body.TTLSeconds > 0 {
		ttl = time.Duration(body.TTLSeconds) * time.Second
	}

	lock, err := h.Locks.Refresh(c.Request().Context(), checkID, body.WorkstationID, ttl)
	if err != nil {
		if errors.Is(err, repository.ErrLockLost) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "lock lease lost"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to refresh lock"})
	}
	return c.JSON(http.StatusOK, echo.Map{"lock": lockJSON(lock)})
}

// Get handles GET /v1/checks/:id/lock, the read-only status used by the
// UI to render available / held-by-self / held-by-other.
func (h *LockHandler) Get(c echo.Context) error {
	checkID := c.Param("id")
	if checkID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid check id"})
	}
	lock, err := h.Locks.Get(c.Request().Context(), checkID)
	if err != nil {
		if errors.Is(err, repository.ErrLockNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no lock on check"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to read lock"})
	}
	return c.JSON(http.StatusOK, echo.Map{"lock": lockJSON(lock)})
}
