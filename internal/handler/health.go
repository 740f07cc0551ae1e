package handler // HTTP handlers for the check transaction service

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pos-check-service/internal/connectivity"
)

// Health reports liveness plus the current connectivity mode so load
// balancers and the property dashboard see which tier is authoritative
// at a glance.
func Health(monitor *connectivity.Monitor) echo.HandlerFunc {
	return func(c echo.Context) error {
		mode := connectivity.ModeRed
		if monitor != nil {
			mode = monitor.Current()
		}
		return c.JSON(http.StatusOK, echo.Map{
			"status": "ok",
			"mode":   mode.String(),
		})
	}
}
