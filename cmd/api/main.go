package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/atlas-naturals/api/internal/handlers"
	"github.com/atlas-naturals/api/internal/platform/auth"
	"github.com/atlas-naturals/api/internal/platform/config"
	"github.com/atlas-naturals/api/internal/platform/events"
	pfirestore "github.com/atlas-naturals/api/internal/platform/firestore"
	"github.com/atlas-naturals/api/internal/platform/idempotency"
	"github.com/atlas-naturals/api/internal/platform/observability"
	"github.com/atlas-naturals/api/internal/platform/secrets"
	"github.com/atlas-naturals/api/internal/repositories"
	firestoreRepo "github.com/atlas-naturals/api/internal/repositories/firestore"
	"github.com/atlas-naturals/api/internal/services"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := secrets.NewFetcher(ctx, secrets.WithLogger(logger.Named("secrets")))
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(fetcher))
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	provider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := provider.Client(ctx); err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	publisher, registryOpts, closePubSub, err := newOrderPublisher(ctx, cfg.Events)
	if err != nil {
		logger.Fatal("failed to initialise order event publisher", zap.Error(err))
	}
	defer closePubSub()
	if !cfg.Events.Enabled {
		logger.Info("order event publishing disabled; using nop publisher")
	}

	registry, err := firestoreRepo.NewRegistry(provider, registryOpts...)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	newID := func() string { return ulid.Make().String() }
	serviceLogger := observability.ServiceLogger(logger)

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Categories:  registry.Categories(),
		Products:    registry.Products(),
		Clock:       time.Now,
		IDGenerator: newID,
		Logger:      serviceLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Repository:      registry.Carts(),
		Catalog:         catalogService,
		Clock:           time.Now,
		DefaultCurrency: cfg.Checkout.Currency,
		Logger:          serviceLogger,
		IDGenerator:     newID,
	})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}

	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Carts:       registry.Carts(),
		Orders:      registry.Orders(),
		Tracking:    registry.Tracking(),
		Counters:    registry.Counters(),
		Publisher:   publisher,
		Clock:       time.Now,
		Logger:      serviceLogger,
		IDGenerator: newID,
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:      registry.Orders(),
		Tracking:    registry.Tracking(),
		Publisher:   publisher,
		Clock:       time.Now,
		IDGenerator: newID,
		Logger:      serviceLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	trackingService, err := services.NewTrackingService(services.TrackingServiceDeps{
		Orders:      registry.Orders(),
		Tracking:    registry.Tracking(),
		Publisher:   publisher,
		Clock:       time.Now,
		IDGenerator: newID,
		Logger:      serviceLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise tracking service", zap.Error(err))
	}

	systemService, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: registry.Health(),
		Clock:            time.Now,
		Build: services.BuildInfo{
			Version:     version,
			Environment: cfg.Security.Environment,
			StartedAt:   startedAt,
		},
	})
	if err != nil {
		logger.Fatal("failed to initialise system service", zap.Error(err))
	}

	idempotencyStore, err := idempotency.NewFirestoreStore(provider)
	if err != nil {
		logger.Fatal("failed to initialise idempotency store", zap.Error(err))
	}
	checkoutIdempotency := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithMethods(http.MethodPost),
		idempotency.WithLogger(observability.ServiceLogger(logger.Named("idempotency"))),
	)

	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	defer cancelCleanup()
	if cfg.Idempotency.CleanupInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.Idempotency.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-cleanupCtx.Done():
					return
				case <-ticker.C:
					removed, err := idempotencyStore.CleanupExpired(cleanupCtx, time.Now().UTC(), 200)
					if err != nil {
						logger.Warn("idempotency cleanup failed", zap.Error(err))
					} else if removed > 0 {
						logger.Debug("idempotency records expired", zap.Int("removed", removed))
					}
				}
			}
		}()
	}

	authenticator := auth.NewAuthenticator(cfg.Security.AdminJWTSecret)

	adminCatalog := handlers.NewAdminCatalogHandlers(catalogService)
	adminOrders := handlers.NewAdminOrderHandlers(orderService, trackingService)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(systemService)),
		handlers.WithCatalogRoutes(handlers.NewCatalogHandlers(catalogService).Routes),
		handlers.WithCartRoutes(handlers.NewCartHandlers(cartService).Routes),
		handlers.WithCartMiddlewares(auth.SessionMiddleware(), auth.RequireSession()),
		handlers.WithCheckoutRoutes(func(r chi.Router) {
			r.Use(checkoutIdempotency)
			handlers.NewCheckoutHandlers(checkoutService).Routes(r)
		}),
		handlers.WithOrderRoutes(handlers.NewOrderHandlers(orderService, trackingService).Routes),
		handlers.WithAdminRoutes(func(r chi.Router) {
			adminCatalog.Routes(r)
			adminOrders.Routes(r)
		}),
		handlers.WithAdminMiddlewares(authenticator.RequireAdmin()),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			zap.String("addr", server.Addr),
			zap.String("version", version),
			zap.String("environment", cfg.Security.Environment),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("http server error", zap.Error(err))
	case sig := <-stop:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		_ = server.Close()
	}
	logger.Info("server stopped")
}

// newOrderPublisher returns the configured event publisher plus a registry
// health probe for the Pub/Sub topic when publishing is enabled.
func newOrderPublisher(ctx context.Context, cfg config.EventsConfig) (events.Publisher, []firestoreRepo.RegistryOption, func(), error) {
	if !cfg.Enabled {
		return events.NopPublisher{}, nil, func() {}, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, nil, func() {}, fmt.Errorf("pubsub client: %w", err)
	}
	topic := client.Topic(cfg.TopicID)

	publisher, err := events.NewPubSubPublisher(topic)
	if err != nil {
		_ = client.Close()
		return nil, nil, func() {}, err
	}

	check := firestoreRepo.WithHealthCheck(repositories.DependencyCheck{
		Name:    "pubsub",
		Timeout: 3 * time.Second,
		Check: func(ctx context.Context) error {
			exists, err := topic.Exists(ctx)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("topic %q does not exist", cfg.TopicID)
			}
			return nil
		},
	})

	closeFn := func() {
		topic.Stop()
		_ = client.Close()
	}
	return publisher, []firestoreRepo.RegistryOption{check}, closeFn, nil
}
