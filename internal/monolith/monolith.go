// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"errors"

	"github.com/fd1az/prediction-amm/internal/asset"
	"github.com/fd1az/prediction-amm/internal/clock"
	"github.com/fd1az/prediction-amm/internal/config"
	"github.com/fd1az/prediction-amm/internal/di"
	"github.com/fd1az/prediction-amm/internal/logger"
	pgstore "github.com/fd1az/prediction-amm/internal/storage/postgres"
	redisstore "github.com/fd1az/prediction-amm/internal/storage/redis"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	Clock() clock.Clock
	AssetRegistry() *asset.Registry
	// Postgres and Redis are nil when not configured.
	Postgres() *pgstore.Client
	Redis() *redisstore.Client
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// app implements the Monolith interface.
type app struct {
	config        *config.Config
	logger        logger.LoggerInterface
	clock         clock.Clock
	assetRegistry *asset.Registry
	postgres      *pgstore.Client
	redis         *redisstore.Client
	container     di.Container
}

// Option customizes a Monolith.
type Option func(*app)

// WithClock replaces the system clock.
func WithClock(c clock.Clock) Option {
	return func(a *app) { a.clock = c }
}

// New creates a new Monolith instance, connecting to PostgreSQL and Redis
// when they are configured.
func New(ctx context.Context, cfg *config.Config, log logger.LoggerInterface, opts ...Option) (*app, error) {
	a := &app{
		config:        cfg,
		logger:        log,
		clock:         clock.Real{},
		assetRegistry: asset.DefaultRegistry(),
		container:     di.NewContainer(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if cfg.Postgres.Enabled() {
		pg, err := pgstore.New(ctx, pgstore.ClientConfig{DSN: cfg.Postgres.DSN, MaxConns: cfg.Postgres.MaxConns})
		if err != nil {
			return nil, err
		}
		a.postgres = pg
		log.Info(ctx, "postgres connected", "max_conns", cfg.Postgres.MaxConns)
	}

	if cfg.Redis.Enabled() {
		rc, err := redisstore.New(ctx, redisstore.ClientConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.redis = rc
		log.Info(ctx, "redis connected", "addr", cfg.Redis.Addr)
	}

	// Register global services
	a.container.Register("config", cfg)
	a.container.Register("logger", log)
	a.container.Register("clock", a.clock)
	a.container.Register("assetRegistry", a.assetRegistry)
	a.container.Register("postgres", a.postgres)
	a.container.Register("redis", a.redis)

	return a, nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) Clock() clock.Clock {
	return a.clock
}

func (a *app) AssetRegistry() *asset.Registry {
	return a.assetRegistry
}

func (a *app) Postgres() *pgstore.Client {
	return a.postgres
}

func (a *app) Redis() *redisstore.Client {
	return a.redis
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules. ctx bounds any background work
// the modules launch.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all resources.
func (a *app) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	return errors.Join(errs...)
}
