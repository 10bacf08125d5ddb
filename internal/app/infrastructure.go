package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prperemyshlev/todo-session/internal/config"
	"github.com/prperemyshlev/todo-session/internal/repository"
	"github.com/prperemyshlev/todo-session/pkg/database"
	"github.com/prperemyshlev/todo-session/pkg/observability"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

// Infrastructure is what the todo backend runs on: the account and todo
// database, the redis instance holding revoked tokens, reset tokens and rate
// limit windows, and the telemetry pipeline behind /metrics.
type Infrastructure interface {
	Postgres() *database.Postgres
	Redis() *database.Redis
	Logger() *zap.Logger
	MetricsHandler() http.Handler
	MeterProvider() *metric.MeterProvider

	Shutdown(ctx context.Context) error
}

type backendInfrastructure struct {
	accounts       *database.Postgres
	tokens         *database.Redis
	logger         *zap.Logger
	metricsHandler http.Handler
	meterProvider  *metric.MeterProvider
}

var _ Infrastructure = (*backendInfrastructure)(nil)

// NewInfrastructure connects the stores in dependency order. When a later
// step fails, whatever was already opened is released again.
func NewInfrastructure(ctx context.Context, cfg config.Config) (Infrastructure, error) {
	logger, err := observability.InitLogger(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	b := &backendInfrastructure{logger: logger}

	var opened []func() error
	fail := func(err error) (Infrastructure, error) {
		if releaseErr := releaseAll(opened); releaseErr != nil {
			logger.Warn("Failed to release partially started backend", zap.Error(releaseErr))
		}
		return nil, err
	}

	b.accounts, err = database.NewPostgres(cfg.Postgres.DSN())
	if err != nil {
		return fail(fmt.Errorf("failed to open account database: %w", err))
	}
	opened = append(opened, b.accounts.Close)

	if cfg.Postgres.AutoMigrate {
		if err := repository.Migrate(cfg.Postgres.URL(), logger); err != nil {
			return fail(fmt.Errorf("failed to migrate account database: %w", err))
		}
	}

	b.tokens, err = database.NewRedis(cfg.Redis.Address(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fail(fmt.Errorf("failed to connect to token store: %w", err))
	}
	opened = append(opened, b.tokens.Close)

	b.meterProvider, b.metricsHandler, err = observability.InitTelemetry(serviceName)
	if err != nil {
		return fail(fmt.Errorf("failed to start auth telemetry: %w", err))
	}

	logger.Info("Backend infrastructure ready",
		zap.String("postgres", cfg.Postgres.Host),
		zap.String("redis", cfg.Redis.Address()),
		zap.Bool("auto_migrate", cfg.Postgres.AutoMigrate),
	)
	return b, nil
}

func (b *backendInfrastructure) Postgres() *database.Postgres {
	return b.accounts
}

func (b *backendInfrastructure) Redis() *database.Redis {
	return b.tokens
}

func (b *backendInfrastructure) Logger() *zap.Logger {
	return b.logger
}

func (b *backendInfrastructure) MetricsHandler() http.Handler {
	return b.metricsHandler
}

func (b *backendInfrastructure) MeterProvider() *metric.MeterProvider {
	return b.meterProvider
}

// Shutdown flushes telemetry and closes both stores concurrently. The logger
// is synced last so their errors still reach it.
func (b *backendInfrastructure) Shutdown(ctx context.Context) error {
	errs := make(chan error, 3)

	go func() { errs <- b.accounts.Close() }()
	go func() { errs <- b.tokens.Close() }()
	go func() { errs <- observability.Shutdown(ctx, b.meterProvider, b.logger) }()

	err := errors.Join(<-errs, <-errs, <-errs)
	if err != nil {
		b.logger.Error("Backend infrastructure shutdown failed", zap.Error(err))
	}
	return errors.Join(err, b.logger.Sync())
}

// releaseAll closes resources in reverse opening order and joins the errors
func releaseAll(closers []func() error) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		errs = append(errs, closers[i]())
	}
	return errors.Join(errs...)
}
