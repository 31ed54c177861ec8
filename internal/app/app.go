// Package app wires the services shared by the chat server and the admin tool.
package app

import (
	"anonchat/backend/internal/anonymizer"
	"anonchat/backend/internal/chathub"
	"anonchat/backend/internal/config"
	"anonchat/backend/internal/localization"
	"anonchat/backend/internal/metrics"
	"anonchat/backend/internal/moderation"
	"anonchat/backend/internal/registry"
	"anonchat/backend/internal/storage"
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type App struct {
	Config     config.Config
	Log        *zap.Logger
	Storage    storage.Storage
	Bus        chathub.Bus
	Registry   *registry.Service
	Matcher    *chathub.MatcherService
	Hub        *chathub.ManagerService
	Moderation *moderation.Service
	Metrics    *metrics.Metrics
	Localizer  *localization.Localizer

	redis *redis.Client
}

// Build connects storage and the notification bus and assembles the services.
// STORAGE_DRIVER=memory runs everything in process without Postgres or Redis.
func Build(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log, Metrics: metrics.New()}

	switch cfg.StorageDriver {
	case "memory":
		a.Storage = storage.NewMemoryStore()
		a.Bus = chathub.NewLocalBus()
		log.Warn("using in-memory storage, data is lost on restart")
	default:
		if err := a.connect(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	l, err := localization.Default(cfg.Locale)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load translations: %w", err)
	}
	a.Localizer = l

	a.Registry = registry.NewService(a.Storage, anonymizer.New(cfg.SecretSalt))
	a.Matcher = chathub.NewMatcherService(a.Storage, log, a.Metrics)
	a.Hub = chathub.NewManagerService(a.Matcher, a.Bus)
	a.Moderation = moderation.NewService(a.Registry, a.Matcher, a.Hub)
	a.Hub.Reports = a.Moderation
	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	db, err := gorm.Open(postgres.Open(a.Config.DatabaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	s := storage.NewStorageService(db, a.Log)
	if err := s.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	a.Storage = s

	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.Config.RedisAddr,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
	})
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	a.Bus = chathub.NewRedisBus(a.redis, a.Log)

	a.Log.Info("database and redis connections established, migrations complete")
	return nil
}

func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Log.Warn("failed to close redis", zap.Error(err))
		}
	}
	if s, ok := a.Storage.(*storage.Service); ok {
		if db, err := s.DB.DB(); err == nil {
			db.Close()
		}
	}
}
