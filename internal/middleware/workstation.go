package middleware // reusable HTTP middleware for the check service

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// WorkstationAuth returns an Echo middleware that validates a Bearer
// workstation token and injects its claims into the request context.
// Tokens are minted by the provisioning service when a workstation is
// enrolled at a property; they carry the workstation id (wsid) and the
// signed-in employee id (emp).  Handlers read them via
// c.Get("workstation_id") and c.Get("employee_id").
//
// When secret is empty the middleware is a no-op, which is how dev and
// test deployments run without the provisioning service.
func WorkstationAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if secret == "" {
			return next
		}
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// HS256 only; any other signing method is rejected.
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			// The body's workstation id remains authoritative for lock
			// identity; these context values serve auditing and the admin
			// endpoints.
			c.Set("workstation_id", claims["wsid"])
			c.Set("employee_id", claims["emp"])
			return next(c)
		}
	}
}
