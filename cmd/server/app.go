package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/phrazzld/scry-studio/internal/api"
	"github.com/phrazzld/scry-studio/internal/api/middleware"
	"github.com/phrazzld/scry-studio/internal/config"
	"github.com/phrazzld/scry-studio/internal/generation"
	"github.com/phrazzld/scry-studio/internal/notify"
	"github.com/phrazzld/scry-studio/internal/platform/claude"
	"github.com/phrazzld/scry-studio/internal/platform/gemini"
	"github.com/phrazzld/scry-studio/internal/platform/postgres"
	"github.com/phrazzld/scry-studio/internal/store"
	"github.com/phrazzld/scry-studio/internal/task"
	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// hubBuffer is the per-subscriber notification buffer of the event hub.
const hubBuffer = 256

// abandonedMessage is recorded on outputs whose task died with the previous process.
const abandonedMessage = "generation was interrupted by a server restart"

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// Infrastructure; nil when not configured
	db            *sql.DB
	redis         *redis.Client
	meterProvider *sdkmetric.MeterProvider

	outputs   store.OutputStore
	documents store.DocumentStore
	hub       *notify.Hub
	tokens    middleware.TokenVerifier

	orchestrator *task.Orchestrator
}

// newApplication creates a new application instance with all dependencies
// initialized. Resources opened before a failure are released.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}
	initialized := false
	defer func() {
		if !initialized {
			app.cleanup(context.WithoutCancel(ctx))
		}
	}()

	var err error
	app.db, err = postgres.Open(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	logger.Info("database connection established")

	if cfg.Database.RunMigrations {
		if err := postgres.Migrate(ctx, app.db, logger); err != nil {
			return nil, err
		}
	}

	outputStore := postgres.NewPostgresOutputStore(app.db, logger)
	abandoned, err := outputStore.FailAbandoned(ctx, abandonedMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to fail abandoned outputs: %w", err)
	}
	if abandoned > 0 {
		logger.Warn("marked abandoned outputs as failed", "count", abandoned)
	}
	app.outputs = outputStore
	app.documents = postgres.NewPostgresDocumentStore(app.db, logger)

	streamer, err := newStreamer(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM streamer: %w", err)
	}
	generator, err := generation.NewLLMGenerator(streamer, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM generator: %w", err)
	}
	logger.Info("LLM generator initialized", "provider", cfg.LLM.Provider)

	app.hub = notify.NewHub(hubBuffer, logger)
	sink := notify.MultiSink{app.hub}

	if cfg.Redis.Enabled {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		redisSink, err := notify.NewRedisSink(app.redis, cfg.Redis.ChannelPrefix, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis sink: %w", err)
		}
		sink = append(sink, redisSink)
		logger.Info("redis notification sink enabled", "addr", cfg.Redis.Addr)
	}

	app.meterProvider, err = setupTelemetry(cfg.Telemetry, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}

	app.tokens, err = middleware.NewTokenService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	deps := task.Dependencies{
		Generator: generator,
		Outputs:   app.outputs,
		Documents: app.documents,
		Sink:      sink,
	}
	if app.meterProvider != nil {
		deps.MeterProvider = app.meterProvider
	}
	app.orchestrator, err = task.NewOrchestrator(
		task.Config{MaxConcurrentPerProject: cfg.Generation.MaxConcurrentPerProject},
		deps,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	initialized = true
	logger.Info("application initialized successfully")
	return app, nil
}

// newStreamer creates the text streamer of the configured provider.
func newStreamer(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (generation.TextStreamer, error) {
	switch cfg.Provider {
	case "gemini":
		return gemini.NewStreamer(ctx, logger, cfg)
	case "anthropic":
		return claude.NewStreamer(logger, cfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", generation.ErrInvalidConfig, cfg.Provider)
	}
}

// Run serves HTTP until ctx is cancelled, then shuts everything down.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// healthChecks returns the dependency checks reported by /health.
func (app *application) healthChecks() map[string]api.HealthCheck {
	checks := make(map[string]api.HealthCheck)
	if app.db != nil {
		checks["database"] = app.db.PingContext
	}
	if app.redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return app.redis.Ping(ctx).Err()
		}
	}
	return checks
}

// cleanup stops running tasks and releases infrastructure. Tasks are
// cancelled first so that their final writes still reach the database.
func (app *application) cleanup(ctx context.Context) {
	var errs []error

	if app.orchestrator != nil {
		if err := app.orchestrator.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("orchestrator: %w", err))
		}
	}
	if app.meterProvider != nil {
		if err := app.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		app.logger.Error("errors during shutdown", "error", err)
		return
	}
	app.logger.Info("application shutdown completed")
}
