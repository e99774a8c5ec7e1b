package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appinv "github.com/storefront/inventory/internal/application/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
	"github.com/storefront/inventory/internal/infrastructure/cache"
	"github.com/storefront/inventory/internal/infrastructure/config"
	"github.com/storefront/inventory/internal/infrastructure/event"
	"github.com/storefront/inventory/internal/infrastructure/logger"
	"github.com/storefront/inventory/internal/infrastructure/persistence"
	"github.com/storefront/inventory/internal/infrastructure/scheduler"
	"github.com/storefront/inventory/internal/infrastructure/telemetry"
)

// ledgerAuditInterval is how often the counter-vs-ledger audit runs.
const ledgerAuditInterval = 24 * time.Hour

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting inventory daemon",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories and the transaction scope
	recordRepo := persistence.NewGormRecordRepository(db.DB)
	movementRepo := persistence.NewGormMovementRepository(db.DB)
	reservationRepo := persistence.NewGormReservationRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Initialize the in-process event bus
	eventBus := event.NewInMemoryEventBus(log)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	if err := eventBus.Start(rootCtx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Redis-backed idempotency store, falling back to the in-process
	// store when Redis is unreachable
	redisCfg := cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	var idempotencyStore shared.IdempotencyStore
	redisStore, err := cache.NewRedisIdempotencyStore(redisCfg)
	if err != nil {
		log.Warn("Redis unavailable, using in-memory idempotency store", zap.Error(err))
		memStore := cache.NewInMemoryIdempotencyStore()
		defer memStore.Close()
		idempotencyStore = memStore
	} else {
		defer func() {
			if err := redisStore.Close(); err != nil {
				log.Error("Error closing idempotency store", zap.Error(err))
			}
		}()
		idempotencyStore = redisStore
		log.Info("Redis idempotency store connected")
	}

	// Availability read cache
	var availabilityCache appinv.AvailabilityCache
	if cfg.Cache.Enabled {
		redisCache, err := cache.NewRedisAvailabilityCache(redisCfg)
		if err != nil {
			log.Warn("Redis unavailable, availability reads stay authoritative", zap.Error(err))
		} else {
			defer func() {
				if err := redisCache.Close(); err != nil {
					log.Error("Error closing availability cache", zap.Error(err))
				}
			}()
			availabilityCache = redisCache
			log.Info("Availability cache connected", zap.Duration("ttl", cfg.Cache.TTL))
		}
	}

	// Telemetry
	meterProvider, err := telemetry.NewMeterProvider(rootCtx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	var inventoryMetrics *telemetry.InventoryMetrics
	if meterProvider.IsEnabled() {
		dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, telemetry.DefaultDBMetricsConfig(), log)
		if err != nil {
			log.Error("Failed to register database metrics", zap.Error(err))
		} else if dbMetrics != nil {
			dbMetrics.StartPoolStatsCollection(rootCtx)
			defer dbMetrics.Stop()
		}

		inventoryMetrics, err = telemetry.NewInventoryMetrics(telemetry.InventoryMetricsConfig{
			Meter:    meterProvider.Meter("inventory"),
			Logger:   log,
			Provider: telemetry.NewGormInventoryStateProvider(db.DB),
		})
		if err != nil {
			log.Error("Failed to initialize inventory metrics", zap.Error(err))
		} else {
			inventoryMetrics.StartPeriodicCollection(rootCtx, 5*time.Minute)
			defer inventoryMetrics.Stop()
			eventBus.Subscribe(telemetry.NewMetricsEventHandler(inventoryMetrics))
		}
	}

	// Application services
	inventoryService := appinv.NewInventoryService(txScope, recordRepo, movementRepo, log)
	inventoryService.SetEventPublisher(eventBus)
	inventoryService.SetIdempotencyStore(idempotencyStore)
	inventoryService.SetIdempotencyTTL(cfg.Reservation.IdempotencyTTL)

	reservationService := appinv.NewReservationService(txScope, log)
	reservationService.SetEventPublisher(eventBus)
	reservationService.SetDefaultTTL(cfg.Reservation.DefaultTTL)

	if availabilityCache != nil {
		inventoryService.SetAvailabilityCache(availabilityCache)
		reservationService.SetAvailabilityCache(availabilityCache)
	}

	sweeper := appinv.NewReservationSweeper(reservationService, reservationRepo, log)
	sweeper.SetBatchSize(cfg.Sweep.BatchSize)

	// Stock level alerts ride the event bus
	alertHandler := appinv.NewStockAlertHandler(log).
		WithNotifier(appinv.NewLoggingStockAlertNotifier(log))
	eventBus.Subscribe(alertHandler)

	// Background job scheduler
	var jobScheduler *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		executor := scheduler.NewSweepExecutor(sweeper, inventoryService, recordRepo, log)
		jobScheduler = scheduler.NewScheduler(scheduler.SchedulerConfig{
			Enabled:           cfg.Scheduler.Enabled,
			MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
			JobTimeout:        cfg.Scheduler.JobTimeout,
			RetryAttempts:     cfg.Scheduler.RetryAttempts,
			RetryDelay:        cfg.Scheduler.RetryDelay,
		}, executor, log)

		if err := jobScheduler.Start(rootCtx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		log.Info("Job scheduler started", zap.Any("job_types", scheduler.AllJobTypes()))

		if cfg.Sweep.Enabled {
			go runSweepLoop(rootCtx, jobScheduler, cfg.Sweep.Interval, log)
		}
		go runAuditLoop(rootCtx, jobScheduler, log)
	}

	log.Info("Inventory daemon started",
		zap.Bool("sweep_enabled", cfg.Sweep.Enabled),
		zap.Duration("sweep_interval", cfg.Sweep.Interval),
		zap.Int("sweep_batch_size", cfg.Sweep.BatchSize),
	)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	rootCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if jobScheduler != nil {
		if err := jobScheduler.Stop(shutdownCtx); err != nil {
			log.Error("Scheduler shutdown error", zap.Error(err))
		}
	}

	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Event bus shutdown error", zap.Error(err))
	}

	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Telemetry shutdown error", zap.Error(err))
	}

	log.Info("Inventory daemon exited gracefully")
}

// runSweepLoop submits a reservation sweep job at every tick. A full
// queue means the previous sweeps are still draining, so the tick is
// dropped rather than piled up.
func runSweepLoop(ctx context.Context, s *scheduler.Scheduler, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Schedule(scheduler.JobTypeReservationSweep); err != nil {
				log.Warn("Failed to schedule reservation sweep", zap.Error(err))
			}
		}
	}
}

// runAuditLoop submits a ledger audit once on startup and then daily.
func runAuditLoop(ctx context.Context, s *scheduler.Scheduler, log *zap.Logger) {
	if err := s.Schedule(scheduler.JobTypeLedgerAudit); err != nil {
		log.Warn("Failed to schedule ledger audit", zap.Error(err))
	}

	ticker := time.NewTicker(ledgerAuditInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Schedule(scheduler.JobTypeLedgerAudit); err != nil {
				log.Warn("Failed to schedule ledger audit", zap.Error(err))
			}
		}
	}
}
