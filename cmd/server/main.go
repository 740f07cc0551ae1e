package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pos-check-service/internal/config"
	"github.com/iliyamo/pos-check-service/internal/connectivity"
	"github.com/iliyamo/pos-check-service/internal/database"
	"github.com/iliyamo/pos-check-service/internal/handler"
	"github.com/iliyamo/pos-check-service/internal/queue"
	"github.com/iliyamo/pos-check-service/internal/repository"
	"github.com/iliyamo/pos-check-service/internal/router"
	"github.com/iliyamo/pos-check-service/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments use the environment
	cfg := config.Load()

	dsn := cfg.DBPath
	if cfg.DBDriver == "mysql" {
		dsn = database.MySQLDSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	}
	db, err := database.Open(cfg.DBDriver, dsn)
	if err != nil {
		log.Fatalf("open check store: %v", err)
	}
	defer db.Close()

	checkRepo := repository.NewCheckRepo(db)
	itemRepo := repository.NewCheckItemRepo(db)
	paymentRepo := repository.NewPaymentRepo(db)
	lockRepo := repository.NewCheckLockRepo(db)
	syncRepo := repository.NewSyncQueueRepo(db)
	rangeRepo := repository.NewNumberRangeRepo(db)
	menuRepo := repository.NewMenuRepo(db)

	coordinator := service.NewCoordinator(db, checkRepo, itemRepo, paymentRepo,
		syncRepo, rangeRepo, menuRepo, cfg.TaxRate)

	monitor := connectivity.NewMonitor(cfg.CloudHealthURL, cfg.RelayHealthURL, db,
		3*time.Second, cfg.ProbeInterval)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Run(ctx)

	// The drain worker runs only when a cloud endpoint is configured; a
	// relay-tier deployment behind an air gap simply accumulates the queue.
	if cfg.CloudBaseURL != "" {
		worker := service.NewSyncWorker(syncRepo, checkRepo,
			service.NewHTTPCloudClient(cfg.CloudBaseURL, 10*time.Second),
			monitor, cfg.SyncInterval, cfg.SyncBatch)
		go worker.Run(ctx)
	}

	// Optional in-process consumer that turns dead-letter events into the
	// operator alert log.
	if cfg.AlertsConsumer {
		go func() {
			if err := queue.StartDeadLetterConsumer(); err != nil {
				log.Printf("dead-letter consumer stopped: %v", err)
			}
		}()
	}

	rdb := config.NewRedisClient() // nil disables the read cache

	e := echo.New()
	router.RegisterRoutes(e, monitor)
	router.RegisterCheckRoutes(e,
		handler.NewCheckHandler(coordinator, monitor),
		handler.NewLockHandler(lockRepo, monitor, cfg.LockTTL),
		handler.NewSyncAdminHandler(syncRepo),
		cfg.JWTSecret, rdb, time.Second)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s driver=%s)", addr, cfg.Env, cfg.DBDriver)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
