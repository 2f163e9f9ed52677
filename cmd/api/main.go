package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/kycdesk/intake-service/internal/api/http"
	"github.com/kycdesk/intake-service/internal/api/http/handlers"
	"github.com/kycdesk/intake-service/internal/auth"
	"github.com/kycdesk/intake-service/internal/config"
	"github.com/kycdesk/intake-service/internal/events"
	"github.com/kycdesk/intake-service/internal/mail"
	"github.com/kycdesk/intake-service/internal/observability"
	"github.com/kycdesk/intake-service/internal/persistence"
	"github.com/kycdesk/intake-service/internal/repository"
	"github.com/kycdesk/intake-service/internal/service"
	"github.com/kycdesk/intake-service/internal/storage"
	"github.com/kycdesk/intake-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.IsDevelopment())
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	stores, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open stores", zap.Error(err))
	}
	defer stores.close()

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()
	var rateLimitStorage fiber.Storage
	if err := redis.Ping(ctx); err == nil {
		rateLimitStorage = persistence.NewRedisStorage(redis.Client, "intake:ratelimit:")
		stores.health["redis"] = redis
	} else {
		logger.Warn("rate limiting falls back to process memory", zap.Error(err))
	}

	files, err := storage.NewFileStore(cfg.Uploads.Dir, cfg.Uploads.PublicPrefix, cfg.Uploads.MaxFileBytes())
	if err != nil {
		logger.Fatal("failed to prepare upload dir", zap.Error(err))
	}

	sender, err := mail.NewSender(cfg.Mail, logger)
	if err != nil {
		logger.Fatal("failed to configure mail", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher()
	pool := worker.NewPool(logger)
	publisher := worker.NewPublisher(pool, dispatcher, cfg.Mail.NotifyTimeout(), logger)

	notificationService := service.NewNotificationService(*cfg, service.NotificationDependencies{
		Dispatcher: dispatcher,
		Sender:     sender,
		Files:      files,
		Metrics:    metrics,
		Logger:     logger,
	})
	worker.StartNotificationWorker(notificationService)

	applicationService := service.NewApplicationService(service.ApplicationDependencies{
		Stores:     stores.applications,
		Files:      files,
		Publisher:  publisher,
		Metrics:    metrics,
		Logger:     logger,
		EditWindow: cfg.Applications.EditWindow(),
	})
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:  stores.users,
		Publisher: publisher,
		Logger:    logger,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    cfg.Uploads.MaxBodyBytes(),
		ErrorHandler: httptransport.ErrorHandler(logger, metrics),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout(), cfg.App.CORSOrigin)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:           handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, stores.health),
		Auth:             handlers.NewAuthHandler(authService),
		Applications:     handlers.NewApplicationsHandler(applicationService),
		AuthMiddleware:   auth.NewAuthMiddleware(authService),
		Metrics:          metrics.Handler(),
		UploadsPrefix:    cfg.Uploads.PublicPrefix,
		UploadsDir:       files.Dir(),
		AuthRateLimit:    cfg.RateLimit.AuthPerMinute,
		RateLimitStorage: rateLimitStorage,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer drainCancel()
	if err := pool.Wait(drainCtx); err != nil {
		logger.Warn("pending notifications abandoned", zap.Error(err))
	}
}

// storeSet is the selected document store plus what the readiness probe
// should check.
type storeSet struct {
	applications repository.ApplicationStores
	users        repository.UserRepository
	health       map[string]handlers.Pinger
	closers      []func()
}

func (s *storeSet) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storeSet, error) {
	set := &storeSet{health: map[string]handlers.Pinger{}}

	switch cfg.Store.Driver {
	case config.StoreDriverMongo:
		m, err := persistence.NewMongo(ctx, cfg.Mongo, logger)
		if err != nil {
			return nil, err
		}
		set.closers = append(set.closers, func() { m.Close(context.Background()) })
		if err := repository.EnsureUserIndexes(ctx, m.Auth); err != nil {
			set.close()
			return nil, err
		}
		if err := repository.EnsureApplicationIndexes(ctx, m.App); err != nil {
			set.close()
			return nil, err
		}
		set.applications = repository.NewMongoApplicationStores(m.App)
		set.users = repository.NewMongoUserRepository(m.Auth)
		set.health["mongo"] = m
		return set, nil

	case config.StoreDriverPostgres:
		if cfg.Postgres.DSN != "" {
			return openPostgres(ctx, cfg, logger, set)
		}
		logger.Warn("POSTGRES_DSN not set; using in-memory stores")
	}

	set.applications = repository.NewMemoryApplicationStores()
	set.users = repository.NewMemoryUserRepository()
	return set, nil
}

func openPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger, set *storeSet) (*storeSet, error) {
	appDB, err := persistence.NewPostgres(ctx, "applications", cfg.Postgres.DSN, cfg.Postgres, logger)
	if err != nil {
		return nil, err
	}
	set.closers = append(set.closers, appDB.Close)
	set.health["postgres"] = appDB

	authDB := appDB
	if cfg.Postgres.AuthDSN != "" && cfg.Postgres.AuthDSN != cfg.Postgres.DSN {
		authDB, err = persistence.NewPostgres(ctx, "auth", cfg.Postgres.AuthDSN, cfg.Postgres, logger)
		if err != nil {
			set.close()
			return nil, err
		}
		set.closers = append(set.closers, authDB.Close)
		set.health["postgres_auth"] = authDB
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, appDB.PoolHandle(), persistence.ApplicationMigrations, logger); err != nil {
			set.close()
			return nil, err
		}
		if err := persistence.RunMigrations(ctx, authDB.PoolHandle(), persistence.AuthMigrations, logger); err != nil {
			set.close()
			return nil, err
		}
	}

	set.applications = repository.NewPostgresApplicationStores(appDB.PoolHandle())
	set.users = repository.NewUserRepository(authDB.PoolHandle())
	return set, nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
