package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"blackfong-core/app/clients"
	"blackfong-core/app/dto"
	"blackfong-core/app/executor"
	"blackfong-core/app/handlers"
	"blackfong-core/app/observability"
	"blackfong-core/app/probe"
	"blackfong-core/app/services"
	"blackfong-core/storage/sqlite"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// App represents the application
type App struct {
	Config          *Config
	Logger          *zap.Logger
	Storage         clients.StorageAdapter
	Metrics         *observability.Metrics
	Registry        *prometheus.Registry
	Publisher       clients.EventPublisher
	JWTService      *services.JWTService
	EventService    *services.EventService
	RegistryService *services.RegistryService
	CommandService  *services.CommandService
	HealthService   *services.HealthService
	BackupService   *services.BackupService
	UnitService     *services.UnitService
	Router          *gin.Engine

	shutdownTracing func(context.Context) error
}

// Options replaces host-facing collaborators, mainly for tests
type Options struct {
	Runner executor.Runner
	Source probe.MetricsSource
}

// Bootstrap initializes the application
func Bootstrap(cfg *Config, logger *zap.Logger) (*App, error) {
	return New(cfg, logger, Options{})
}

// New wires storage, services and the HTTP router from cfg
func New(cfg *Config, logger *zap.Logger, opts Options) (*App, error) {
	shutdownTracing, err := observability.InitTracing(cfg.TraceStdout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	// Initialize storage
	store, err := sqlite.NewStore(cfg.DBPath)
	if err != nil {
		shutdownTracing(context.Background())
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	var publisher clients.EventPublisher
	if cfg.NATSURL != "" {
		nats, err := clients.NewNATSPublisher(cfg.NATSURL, logger)
		if err != nil {
			// audit fan-out is best effort; run without it
			logger.Warn("event publisher disabled", zap.String("url", cfg.NATSURL), zap.Error(err))
		} else {
			publisher = nats
		}
	}

	var jwtService *services.JWTService
	if cfg.JWTSecret != "" {
		jwtService = services.NewJWTService(cfg.JWTSecret, cfg.JWTTTL)
	}

	runner := opts.Runner
	if runner == nil {
		runner = executor.NewExecutor(cfg.CommandTimeout)
	}
	source := opts.Source
	if source == nil {
		source = probe.NewSystemProbe()
	}
	pool := executor.NewPool(runner, cfg.ExecutorConcurrency)

	// Initialize services
	eventService := services.NewEventService(store, cfg.LogDir, publisher, metrics, logger)
	registryService := services.NewRegistryService(store, eventService, cfg.NodeStale, metrics, logger)
	commandService := services.NewCommandService(store, pool, eventService, cfg.AllowedCommands, metrics, logger)
	healthService := services.NewHealthService(source, registryService, eventService, cfg.NodeStale, cfg.CriticalWindow, metrics)
	backupService := services.NewBackupService(cfg.DBPath, cfg.BackupDir, cfg.BackupKeepDays, cfg.BackupInterval, eventService, metrics, logger)
	unitService := services.NewUnitService(pool, eventService, cfg.AllowedUnits, metrics, logger)

	var limiter *rate.Limiter
	if cfg.CommandRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.CommandRate), max(cfg.CommandBurst, 1))
	}

	// Setup HTTP router
	router := gin.New()
	router.Use(gin.Recovery(), handlers.RequestLogger(logger), otelgin.Middleware("blackfong-core"))

	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", handlers.TokenHeader},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	setupRoutes(router, routeSet{
		health:   handlers.NewHealthHandler(store.Ping),
		nodes:    handlers.NewNodeHandler(registryService, jwtService, cfg.JWTTTL),
		commands: handlers.NewCommandHandler(commandService),
		system:   handlers.NewSystemHandler(healthService, backupService, configView(cfg, jwtService != nil)),
		units:    handlers.NewUnitHandler(unitService),
		events:   handlers.NewEventHandler(eventService),
		auth:     handlers.AuthMiddleware(cfg.Token, jwtService),
		limiter:  limiter,
		metrics:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	})

	return &App{
		Config:          cfg,
		Logger:          logger,
		Storage:         store,
		Metrics:         metrics,
		Registry:        registry,
		Publisher:       publisher,
		JWTService:      jwtService,
		EventService:    eventService,
		RegistryService: registryService,
		CommandService:  commandService,
		HealthService:   healthService,
		BackupService:   backupService,
		UnitService:     unitService,
		Router:          router,
		shutdownTracing: shutdownTracing,
	}, nil
}

type routeSet struct {
	health   *handlers.HealthHandler
	nodes    *handlers.NodeHandler
	commands *handlers.CommandHandler
	system   *handlers.SystemHandler
	units    *handlers.UnitHandler
	events   *handlers.EventHandler
	auth     gin.HandlerFunc
	limiter  *rate.Limiter
	metrics  http.Handler
}

// setupRoutes configures HTTP routes
func setupRoutes(router *gin.Engine, r routeSet) {
	// Health endpoints
	router.GET("/health", r.health.Health)
	router.GET("/ready", r.health.Ready)
	router.GET("/metrics", gin.WrapH(r.metrics))

	api := router.Group("/api", r.auth)

	// Node endpoints accept node tokens
	nodes := api.Group("/nodes")
	{
		nodes.POST("/register", r.nodes.Register)
		nodes.POST("/:id/heartbeat", r.nodes.Heartbeat)
		nodes.GET("", handlers.RequireOperator(), r.nodes.ListNodes)
	}

	operator := api.Group("", handlers.RequireOperator())
	{
		operator.GET("/system/pulse", r.system.Pulse)
		operator.GET("/system/health", r.system.Health)
		operator.GET("/system/config", r.system.Config)
		operator.POST("/system/backup", r.system.Backup)

		operator.POST("/services/:unit/:action", r.units.Act)

		operator.GET("/commands/allowed", r.commands.Allowed)
		operator.POST("/commands/:name/run", handlers.RateLimit(r.limiter), r.commands.Run)
		operator.GET("/commands/runs", r.commands.ListRuns)
		operator.GET("/commands/runs/:id", r.commands.GetRun)

		operator.GET("/logs/events", r.events.ListEvents)
	}
}

// configView is the redacted configuration served by /api/system/config
func configView(cfg *Config, jwtEnabled bool) dto.ConfigResponse {
	units := cfg.AllowedUnits
	if units == nil {
		units = []string{}
	}
	return dto.ConfigResponse{
		API: dto.APIConfigView{Host: cfg.APIHost, Port: cfg.APIPort},
		Paths: dto.PathsConfigView{
			BaseDir:   cfg.BaseDir,
			DataDir:   cfg.DataDir,
			DBPath:    cfg.DBPath,
			LogDir:    cfg.LogDir,
			BackupDir: cfg.BackupDir,
		},
		Security: dto.SecurityConfigView{
			TokenEnabled:        cfg.Token != "",
			JWTEnabled:          jwtEnabled,
			AllowedSystemdUnits: units,
		},
		Fleet: dto.FleetConfigView{NodeStaleSeconds: int64(cfg.NodeStale / time.Second)},
		Backups: dto.BackupsConfigView{
			KeepDays:        cfg.BackupKeepDays,
			IntervalSeconds: int64(cfg.BackupInterval / time.Second),
		},
		Commands: dto.CommandsConfigView{
			Allowed:        cfg.CommandNames(),
			TimeoutSeconds: int64(cfg.CommandTimeout / time.Second),
			Concurrency:    cfg.ExecutorConcurrency,
		},
	}
}

// Close releases the publisher, the store and the tracer provider
func (a *App) Close(ctx context.Context) error {
	if a.Publisher != nil {
		a.Publisher.Close()
	}
	var errs []error
	if err := a.Storage.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close storage: %w", err))
	}
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush traces: %w", err))
		}
	}
	return errors.Join(errs...)
}
