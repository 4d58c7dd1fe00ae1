package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"taxi/internal/app"
	"taxi/internal/config"
	"taxi/internal/geo"
	"taxi/internal/handler"
	"taxi/internal/middleware"
	internalRedis "taxi/internal/redis"
	"taxi/internal/repository"
	"taxi/internal/repository/memory"
	"taxi/internal/repository/postgres"
	"taxi/internal/service"
)

// storage bundles the repositories of one backend.
type storage struct {
	users    repository.UserRepository
	bookings repository.BookingRepository
	tx       repository.Transactor
	close    func()
}

func main() {
	cfg := config.Load()
	log := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// New Relic comes first so the database and Redis clients are instrumented.
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.WithError(err).Warn("failed to initialize New Relic")
		} else {
			log.WithField("app", cfg.NewRelic.AppName).Info("New Relic enabled")
		}
	}

	store, err := openStorage(ctx, cfg, nrApp, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open storage")
	}
	defer store.close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled || cfg.Assignment.LockBackend == "redis" {
		redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to redis")
		}
		defer redisClient.Close()
		log.WithField("addr", cfg.Redis.Addr).Info("connected to Redis")
	}

	server, proximity, directory := wireServer(store, redisClient, nrApp, cfg, log)

	directory.Preload(context.Background())

	go func() {
		log.WithField("port", cfg.Server.Port).Info("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	proximity.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	log.Info("server exited")
}

func openStorage(ctx context.Context, cfg *config.Config, nrApp *newrelic.Application, log logrus.FieldLogger) (*storage, error) {
	if cfg.Storage.Backend == "memory" {
		users := memory.NewUserRepository()
		if cfg.Storage.SeedDemo {
			for _, u := range demoUsers() {
				users.Add(u)
			}
		}
		bookings := memory.NewBookingRepository()
		log.WithField("seeded", cfg.Storage.SeedDemo).Info("using in-memory storage")
		return &storage{users: users, bookings: bookings, tx: bookings, close: func() {}}, nil
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		return nil, err
	}
	log.WithField("host", cfg.Database.Host).Info("connected to PostgreSQL")
	return &storage{
		users:    postgres.NewUserRepository(db),
		bookings: postgres.NewBookingRepository(db),
		tx:       postgres.NewTransactor(db),
		close:    func() { db.Close() },
	}, nil
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	store *storage,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	cfg *config.Config,
	log *logrus.Logger,
) (*http.Server, *service.ProximityEngine, *service.DriverDirectory) {
	var locker service.Locker = service.NewLocalLocker()
	var responses middleware.ResponseStore
	if redisClient != nil {
		if cfg.Assignment.LockBackend == "redis" {
			locker = internalRedis.NewLockStore(redisClient, cfg.Assignment.LockTTL, cfg.Assignment.LockWait)
		}
		responses = internalRedis.NewResponseStore(redisClient)
	}

	var provider geo.Provider = geo.DisabledProvider{}
	var router geo.Router
	if cfg.Geo.APIKey != "" {
		maps, err := geo.NewMapsProvider(cfg.Geo.APIKey, cfg.Geo.Region, cfg.Geo.Language)
		if err != nil {
			log.WithError(err).Warn("geocoding disabled")
		} else {
			provider, router = maps, maps
		}
	} else {
		log.Warn("GEO_API_KEY not set, geocoding disabled")
	}
	resolver := geo.NewResolver(provider, router, geo.NewMemoryCache(), geo.ResolverConfig{
		Timeout: cfg.Geo.Timeout,
		Bounds: &geo.Bounds{
			MinLat:  cfg.Geo.MinLat,
			MaxLat:  cfg.Geo.MaxLat,
			MinLon:  cfg.Geo.MinLon,
			MaxLon:  cfg.Geo.MaxLon,
			Country: cfg.Geo.Country,
		},
	}, log)

	var clusterer geo.Clusterer
	if cfg.Proximity.Clustering {
		clusterer = geo.NewDBSCAN()
	}

	notifications := service.NewNotificationService(log)
	ledger := service.NewBookingLedger(store.bookings, store.users, store.tx, locker, notifications, log)
	assignment := service.NewAssignmentPolicy(store.bookings, store.users, store.tx, locker, service.FirstFreeByID{}, notifications, log)
	directory := service.NewDriverDirectory(store.users, resolver, cfg.Geo.Concurrency, log)
	proximity := service.NewProximityEngine(directory, clusterer, service.ProximityConfig{
		DefaultRadiusKm:  cfg.Proximity.DefaultRadiusKm,
		DisplayThreshold: cfg.Proximity.DisplayThreshold,
		MaxCandidates:    cfg.Proximity.MaxCandidates,
		Debounce:         cfg.Proximity.Debounce,
	}, log)

	engine := app.NewRouter(app.RouterDeps{
		BookingHandler: handler.NewBookingHandler(ledger, assignment),
		DriverHandler:  handler.NewDriverHandler(directory, proximity),
		StreamHandler:  handler.NewStreamHandler(proximity, log),
		GeoHandler:     handler.NewGeoHandler(resolver),
		ResponseStore:  responses,
		NewRelicApp:    nrApp,
		Logger:         log,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, proximity, directory
}
