// Package app wires configuration, storage, services and the HTTP server
// into a runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"regliq/internal/config"
	apierrors "regliq/internal/errors"
	"regliq/internal/exporter"
	"regliq/internal/infrastructure"
	customMiddleware "regliq/internal/middleware"
	"regliq/internal/services"
	"regliq/internal/storage"
	"regliq/internal/storage/memory"
	"regliq/internal/storage/postgres"
	handlers "regliq/internal/transport/http"
	ws "regliq/internal/websocket"
	"regliq/pkg/contracts"
)

// AppName is logged at startup
const AppName = "regliq - regulatory liquidity engine"

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.LiquidityMetrics
	WebSocketHub  *ws.Hub
	Stores        storage.Stores
	Services      *ServiceContainer
	ErrorHandler  *apierrors.ErrorHandler

	pool *postgres.Pool
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Liquidity *services.LiquidityService
	Health    *services.HealthService
	Exporter  *exporter.ReportExporter
}

// NewApplication loads the configuration from configPath, or from the
// default locations when empty, and builds the application.
func NewApplication(configPath string) (*Application, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath == "" {
		cfg, err = config.Load()
	} else {
		cfg, err = config.LoadFile(configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(context.Background(), cfg, logger)
}

// New builds the application from a loaded configuration
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.InfoContext(ctx, "Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("storage_driver", cfg.Storage.Driver))

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateLiquidityMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: providers,
		Metrics:       metrics,
		ErrorHandler:  apierrors.NewErrorHandler(logger, cfg.Logging.Development),
	}

	if err := app.initializeStorage(ctx); err != nil {
		app.closeStorage()
		return nil, err
	}

	if err := app.initializeServices(); err != nil {
		app.closeStorage()
		return nil, err
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeStorage opens the configured store and seeds the validation registry
func (a *Application) initializeStorage(ctx context.Context) error {
	switch a.Config.Storage.Driver {
	case config.StoragePostgres:
		pool, err := postgres.NewPool(ctx, a.Config.Storage.DSN, a.Config.Storage.MaxConns)
		if err != nil {
			return fmt.Errorf("failed to open postgres storage: %w", err)
		}
		a.pool = pool

		if a.Config.Storage.MigrateOnStart {
			if err := pool.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to migrate postgres storage: %w", err)
			}
			a.Logger.InfoContext(ctx, "Postgres migrations applied")
		}
		a.Stores = postgres.NewStores(pool)
	default:
		a.Stores = memory.NewStores()
	}

	if a.Paths.RegistryFile == "" {
		a.Logger.WarnContext(ctx, "No registry file configured, validation runs with the stored registry only")
		return nil
	}

	reg, err := config.LoadRegistry(a.Paths.RegistryFile)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := storage.SeedRegistry(ctx, a.Stores.Registry, reg.Rules, reg.Registries()); err != nil {
		return fmt.Errorf("failed to seed registry: %w", err)
	}

	a.Logger.InfoContext(ctx, "Validation registry seeded",
		slog.String("file", a.Paths.RegistryFile),
		slog.Int("rules", len(reg.Rules)),
		slog.Int("legal_entities", len(reg.LegalEntities)))
	return nil
}

// initializeServices creates the hub and the services on top of the stores
func (a *Application) initializeServices() error {
	a.WebSocketHub = ws.NewHub(a.Logger, a.Metrics)

	liquidityService, err := services.NewLiquidityService(a.Config.Parameters, a.Stores, a.Logger,
		services.WithBroadcaster(a.WebSocketHub),
		services.WithMetrics(a.Metrics),
		services.WithTracer(a.OTelProviders.Tracer),
		services.WithReconcileTolerance(a.Config.Engine.ReconcileTolerance),
		services.WithMaxConcurrency(a.Config.Engine.MaxConcurrency),
	)
	if err != nil {
		return fmt.Errorf("failed to create liquidity service: %w", err)
	}

	var pinger services.Pinger
	if a.pool != nil {
		pinger = a.pool
	}

	a.Services = &ServiceContainer{
		Liquidity: liquidityService,
		Health:    services.NewHealthService(a.Config.Storage.Driver, pinger, a.WebSocketHub, a.Paths.DataDir, infrastructure.WithComponent(a.Logger, "health")),
		Exporter:  exporter.NewReportExporter(a.Paths, infrastructure.WithComponent(a.Logger, "exporter")),
	}
	return nil
}

// setupRouter applies the middleware chain and mounts every route
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)

	// The websocket route skips the middleware that wraps the ResponseWriter
	r.Handle("/ws", ws.NewHandler(a.WebSocketHub, a.Config.WebSocket, a.Config.Security.AllowedOrigins, a.Logger))

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(a.ErrorHandler.Recoverer)
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.getCORSConfig()))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.ErrorHandler,
				a.Logger,
			).Handler)
		}

		r.Use(customMiddleware.MaxBodySize(a.Config.Server.MaxBodyBytes))
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))

		a.setupAPIRoutes(r)
	})

	// Prometheus scrapes stay outside the middleware group
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	validator := customMiddleware.NewRequestValidator()

	liquidityHandler := handlers.NewLiquidityHandler(a.Services.Liquidity, validator, a.ErrorHandler, a.Logger)
	submissionHandler := handlers.NewSubmissionHandler(a.Services.Liquidity, a.Services.Exporter, a.Paths, validator, a.ErrorHandler, a.Logger)
	healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		healthHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.ContentTypeValidator(a.ErrorHandler, "application/json"))
			liquidityHandler.RegisterRoutes(r)
		})

		r.With(customMiddleware.ContentTypeValidator(a.ErrorHandler,
			"application/json", "text/csv", "multipart/form-data",
		)).Mount("/submissions", submissionHandler.Routes())
	})
}

func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"Traceparent",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"Location",
		},
		MaxAge: 300,
	}
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start runs the websocket hub and the HTTP server. A listener failure
// cancels ctx through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	a.WebSocketHub.Start()

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop drains the HTTP server and releases every resource
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	a.WebSocketHub.Stop()
	a.closeStorage()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// Run starts the application and blocks until SIGINT, SIGTERM or a server failure
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		a.Logger.WarnContext(ctx, "Server stopped unexpectedly")
	}

	// ctx may already be cancelled; shutdown gets its own deadline
	stopCtx, stopCancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout+time.Second)
	defer stopCancel()
	return a.Stop(stopCtx)
}

func (a *Application) closeStorage() {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}
