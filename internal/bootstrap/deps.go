package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/Domenick1991/appointments/config"
	"github.com/Domenick1991/appointments/internal/cache"
	"github.com/Domenick1991/appointments/internal/logger"
	"github.com/Domenick1991/appointments/internal/repository"
)

// LoadConfig reads .env when present, then the file named by CONFIG_PATH (config.yaml by default).
func LoadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return config.LoadConfig(path)
}

func NewLogger(cfg *config.Config, service string) *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: service,
		Level:       logger.ParseLevel(cfg.Log.Level),
		Format:      cfg.Log.Format,
	})
}

// OpenStore connects to the configured database and applies migrations when auto_migrate is set.
func OpenStore(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*repository.Store, error) {
	dialect, err := repository.ParseDialect(cfg.Database.DriverName())
	if err != nil {
		return nil, err
	}
	store, err := repository.Open(ctx, dialect, cfg.Database.ConnString())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if cfg.Database.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logg.Info(logg.WithField(ctx, "dialect", string(dialect)), "database migrated")
	}
	return store, nil
}

// OpenRedis returns nil when no address is configured.
func OpenRedis(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled() {
		logg.Info(ctx, "redis disabled")
		return nil, nil
	}
	rc := cache.NewRedisCache(cfg.Redis)
	if err := rc.Ping(ctx); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
	}
	return rc, nil
}
