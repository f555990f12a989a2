package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ridewire/voice-engine/pkg/config"
	"github.com/ridewire/voice-engine/pkg/crm"
	"github.com/ridewire/voice-engine/pkg/database"
	"github.com/ridewire/voice-engine/pkg/events"
	"github.com/ridewire/voice-engine/pkg/handlers"
	"github.com/ridewire/voice-engine/pkg/logging"
	"github.com/ridewire/voice-engine/pkg/mcp"
	"github.com/ridewire/voice-engine/pkg/mcp/tools"
	"github.com/ridewire/voice-engine/pkg/memory"
	"github.com/ridewire/voice-engine/pkg/middleware"
	"github.com/ridewire/voice-engine/pkg/repositories"
	"github.com/ridewire/voice-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("voice-engine stopped", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logConfig := zap.NewProductionConfig()
	if cfg.Env == "local" {
		logConfig = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logConfig.Level = level
	return logConfig.Build()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("memory_backend", cfg.Memory.Backend),
		zap.String("crm_base_url", cfg.CRM.BaseURL),
		zap.Bool("audit_enabled", cfg.Audit.Enabled),
		zap.Bool("events_enabled", cfg.Kafka.Enabled),
		zap.Bool("mcp_enabled", cfg.MCP.Enabled),
		zap.Bool("in_docker", config.IsRunningInDocker()))

	store, closeStore, err := openMemoryStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	overrides, err := config.LoadGreetingTemplates(cfg.Greeting.TemplatesPath)
	if err != nil {
		return err
	}
	selector := services.NewGreetingSelector(
		services.GreetingRulesFromConfig(&cfg.Greeting),
		services.NewTemplateTable(overrides))

	var (
		recorders []services.DecisionRecorder
		auditRepo repositories.GreetingAuditRepository
	)

	if cfg.Audit.Enabled {
		if err := database.RunMigrations(cfg.Audit.ConnectionString(), cfg.Audit.MigrationsPath, logger); err != nil {
			return fmt.Errorf("audit migrations: %w", err)
		}
		db, err := database.NewConnection(ctx, database.ConfigFromAudit(&cfg.Audit), logger)
		if err != nil {
			return fmt.Errorf("audit database: %w", err)
		}
		defer db.Close()

		auditRepo = repositories.NewGreetingAuditRepository(db.Pool)
		recorders = append(recorders, services.NewAuditRecorder(auditRepo))
	}

	if cfg.Kafka.Enabled {
		publisher := events.NewPublisher(&cfg.Kafka, logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("Failed to close event publisher", zap.Error(err))
			}
		}()
		recorders = append(recorders, services.NewEventRecorder(publisher))
	}

	lookupService := services.NewLookupService(services.LookupDeps{
		Memory:      store,
		CRM:         crm.NewClient(&cfg.CRM, logger),
		Selector:    selector,
		Situational: services.NewSituationalBuilder(&cfg.Situational),
		Recorders:   recorders,
	}, cfg.Lookup, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewCustomerContextHandler(lookupService, logger).RegisterRoutes(mux)
	if auditRepo != nil {
		handlers.NewGreetingAuditHandler(auditRepo, logger).RegisterRoutes(mux)
	}
	if cfg.MCP.Enabled {
		mcpServer := mcp.NewServer("voice-engine", cfg.Version, logger)
		tools.RegisterCustomerContextTool(mcpServer.MCP(), &tools.CustomerContextDeps{
			LookupService: lookupService,
			Logger:        logger,
		})
		tools.RegisterHealthTool(mcpServer.MCP(), cfg.Version, cfg.Memory.Backend)
		handlers.NewMCPHandler(mcpServer, logger.Named("mcp"), cfg.MCP).RegisterRoutes(mux)
	}

	srv := &http.Server{
		Addr: net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler: middleware.Chain(mux,
			middleware.RequestID(),
			middleware.RequestLogger(logger.Named("http"))),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting voice-engine", zap.String("addr", srv.Addr), zap.String("base_url", cfg.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := lookupService.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("lookup shutdown: %w", err))
	}
	return errors.Join(errs...)
}

// openMemoryStore connects the configured call-history backend.
func openMemoryStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (memory.Store, func(), error) {
	opts := memory.OptionsFromConfig(&cfg.Memory)

	switch cfg.Memory.Backend {
	case config.MemoryBackendBadger:
		db, err := memory.OpenBadger(cfg.Memory.Badger.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger memory store: %w", err)
		}
		closeFn := func() {
			if err := db.Close(); err != nil {
				logger.Warn("Failed to close badger", zap.Error(err))
			}
		}
		return memory.NewBadgerStore(db, opts, logger), closeFn, nil

	default:
		client, err := database.NewRedisClient(ctx, &cfg.Memory.Redis, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis memory store at %s: %s", cfg.Memory.Redis.Addr(), logging.SanitizeError(err))
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close redis client", zap.Error(err))
			}
		}
		return memory.NewRedisStore(client, opts, logger), closeFn, nil
	}
}
