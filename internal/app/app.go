// Package app wires the pieces both binaries share: the cache backend, the
// document source, the aggregator and the index manager.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"examsearch/internal/aggregate"
	"examsearch/internal/auth"
	"examsearch/internal/cache"
	"examsearch/internal/config"
	"examsearch/internal/index"
	"examsearch/internal/providers"
	"examsearch/internal/storage"
)

type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Cache    cache.Cache
	Manager  *index.Manager
	Verifier *auth.Verifier

	db    *storage.DB
	sweep func(context.Context) (int64, error)
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	a := &App{Config: cfg, Logger: logger}
	if err := a.openCache(ctx); err != nil {
		return nil, err
	}
	factory, err := providers.NewSourceFactory(cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("document source: %w", err)
	}
	agg := aggregate.New(factory, aggregate.Options{
		Range:       cfg.SheetRange,
		Concurrency: cfg.FetchConcurrency,
		DefaultYear: cfg.DefaultYear,
		Logger:      logger,
	})
	a.Manager = index.NewManager(agg, a.Cache, index.Options{
		CollectionID: cfg.DriveFolderID,
		TTL:          cfg.IndexTTL(),
		CacheTTL:     cfg.CacheTTL(),
		SingleFlight: cfg.SingleFlight,
		Logger:       logger,
	})
	a.Verifier = auth.NewVerifier(cfg.JWTSecret, !cfg.IsProduction())
	return a, nil
}

func (a *App) openCache(ctx context.Context) error {
	switch strings.ToLower(a.Config.CacheBackend) {
	case "", "memory":
		mem := cache.NewMemory()
		a.Cache = mem
		a.sweep = func(context.Context) (int64, error) { return int64(mem.Sweep()), nil }
	case "postgres":
		db, err := storage.NewDB(ctx, a.Config.PostgresURL)
		if err != nil {
			return err
		}
		repo := storage.NewKVRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return err
		}
		a.db = db
		a.Cache = repo
		a.sweep = repo.DeleteExpired
	default:
		return fmt.Errorf("unsupported cache backend: %s", a.Config.CacheBackend)
	}
	a.Logger.Info("cache ready", "backend", a.Config.CacheBackend)
	return nil
}

// StartSweeper removes expired cache entries every interval until ctx ends.
func (a *App) StartSweeper(ctx context.Context, interval time.Duration) {
	if a.sweep == nil || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := a.sweep(ctx)
				if err != nil {
					a.Logger.Warn("cache sweep failed", "error", err)
					continue
				}
				if n > 0 {
					a.Logger.Debug("cache sweep", "removed", n)
				}
			}
		}
	}()
}

// ServiceScope is the scope background rebuilds run under.
func (a *App) ServiceScope(key string) index.Scope {
	return index.Scope{Key: key, Credentials: providers.Credentials{AccessToken: a.Config.ServiceAccessToken}}
}

func (a *App) Close() {
	a.db.Close()
}
