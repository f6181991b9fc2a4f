// Package bootstrap wires the process-level dependencies shared by every
// long-running binary: environment, config, logger, database and redis.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/nabd-ai/vertex-backend/pkg/config"
	"github.com/nabd-ai/vertex-backend/pkg/db"
	"github.com/nabd-ai/vertex-backend/pkg/logger"
	"github.com/nabd-ai/vertex-backend/pkg/migrate"
	"github.com/nabd-ai/vertex-backend/pkg/redis"
)

// Runtime holds the shared handles of a running binary. Close releases them in
// reverse order of acquisition.
type Runtime struct {
	Service string
	Config  *config.Config
	Logger  *logger.Logger
	DB      *db.Client
	Redis   *redis.Client

	closers []func() error
}

// Start loads .env and config, builds the service logger, connects the
// database (running dev migrations when enabled) and connects redis.
// On error everything acquired so far is released.
func Start(ctx context.Context, service string) (*Runtime, error) {
	rt := &Runtime{Service: service, Logger: logger.New(logger.Options{ServiceName: service})}

	if err := godotenv.Load(); err != nil {
		rt.Logger.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = service
	rt.Config = cfg
	rt.Logger = logger.New(logger.Options{
		ServiceName: service,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := rt.connect(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) connect(ctx context.Context) error {
	dbClient, err := db.New(ctx, rt.Config.DB, rt.Logger)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	rt.DB = dbClient
	rt.closers = append(rt.closers, dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, rt.Config, rt.Logger, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, rt.Config.Redis, rt.Logger)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	rt.Redis = redisClient
	rt.closers = append(rt.closers, redisClient.Close)
	return nil
}

// Close is safe to call more than once.
func (rt *Runtime) Close() {
	var err error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, rt.closers[i]())
	}
	rt.closers = nil
	if err != nil {
		rt.Logger.Error(context.Background(), "error releasing resources", err)
	}
}

// SignalContext is cancelled on SIGINT or SIGTERM and carries the env and
// service kind as log fields.
func (rt *Runtime) SignalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = rt.Logger.WithFields(ctx, map[string]any{
		"env":         rt.Config.App.Env,
		"serviceKind": rt.Config.Service.Kind,
	})
	return ctx, stop
}

// Must logs err under what and exits. It is a no-op for a nil err.
func (rt *Runtime) Must(what string, err error) {
	if err == nil {
		return
	}
	rt.Logger.Error(context.Background(), "failed to bootstrap "+what, err)
	rt.Close()
	os.Exit(1)
}

// Fatal is Must for failures before a Runtime exists.
func Fatal(service string, err error) {
	logger.New(logger.Options{ServiceName: service}).Error(context.Background(), "failed to start", err)
	os.Exit(1)
}
