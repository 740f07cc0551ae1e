package router // package router defines how HTTP routes are registered for the API

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/pos-check-service/internal/connectivity"
	"github.com/iliyamo/pos-check-service/internal/handler"
	"github.com/iliyamo/pos-check-service/internal/middleware"
)

// RegisterRoutes registers routes that do not require a workstation token.
// The health endpoint doubles as the connectivity probe target for peer
// tiers, so it must stay cheap and unauthenticated.
func RegisterRoutes(e *echo.Echo, monitor *connectivity.Monitor) {
	e.GET("/healthz", handler.Health(monitor))
}

// RegisterCheckRoutes registers the lock and check lifecycle endpoints
// under /v1.  When jwtSecret is non-empty every route requires a valid
// workstation token.  The redis client backs a short-TTL response cache
// on the read endpoints; it may be nil, in which case reads always hit
// the store.
func RegisterCheckRoutes(e *echo.Echo, checks *handler.CheckHandler, locks *handler.LockHandler,
	syncAdmin *handler.SyncAdminHandler, jwtSecret string, rdb *redis.Client, cacheTTL time.Duration) {

	v1 := e.Group("/v1")
	v1.Use(middleware.WorkstationAuth(jwtSecret))

	readCache := middleware.ReadCache(rdb, cacheTTL)

	// Lock lease endpoints.  GET is the UI polling path and the only one
	// worth caching; the mutating routes must always see the live table.
	v1.POST("/checks/:id/lock", locks.Acquire)
	v1.POST("/checks/:id/unlock", locks.Release)
	v1.POST("/checks/:id/lock/refresh", locks.Refresh)
	v1.GET("/checks/:id/lock", locks.Get, readCache)

	// Check lifecycle endpoints, one per coordinator operation.
	v1.POST("/checks", checks.Create)
	v1.POST("/checks/:id/items", checks.AddItems)
	v1.POST("/checks/:id/items/:itemID/void", checks.VoidItem)
	v1.POST("/checks/:id/send", checks.Send)
	v1.POST("/checks/:id/payments", checks.AddPayment)
	v1.POST("/checks/:id/close", checks.Close)
	v1.POST("/checks/:id/void", checks.Void)
	v1.GET("/checks/:id", checks.Get, readCache)
	v1.GET("/checks", checks.List)

	// Operator surface for the sync queue.
	v1.GET("/sync/dead", syncAdmin.ListDead)
	v1.GET("/sync/pending", syncAdmin.ListPending)
	v1.POST("/sync/:id/requeue", syncAdmin.Requeue)
}
