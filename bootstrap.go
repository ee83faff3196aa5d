package main

import (
	"context"

	"go.uber.org/zap"

	"voicecapture/internal/config"
	"voicecapture/internal/events"
	"voicecapture/internal/redis"
	"voicecapture/internal/storage"
)

// feedbackDeps is the persistence side shared by serve, list and replay.
type feedbackDeps struct {
	service *storage.Service
	store   storage.DocumentStore
	redis   *redis.Client
	events  *events.Publisher
}

func (d *feedbackDeps) Close() {
	if d.events != nil {
		_ = d.events.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.store != nil {
		_ = d.store.Close(context.Background())
	}
}

// openFeedback connects the document store and its optional redis cache and
// nats publisher. Every one of them degrades: an unreachable store means
// fallback files, an unreachable redis or nats means no cache or events.
func openFeedback(ctx context.Context, cfg *config.Config, log *zap.Logger) *feedbackDeps {
	deps := &feedbackDeps{}

	store, err := storage.Open(ctx, cfg.Store, log)
	if err != nil {
		log.Warn("document store unavailable, records go to fallback files",
			zap.String("driver", cfg.Store.Driver),
			zap.String("fallback_dir", cfg.Store.FallbackDir),
			zap.Error(err))
	} else if store == nil {
		log.Warn("no document store configured, records go to fallback files",
			zap.String("fallback_dir", cfg.Store.FallbackDir))
	}
	deps.store = store

	rdb, err := redis.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, list cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	deps.redis = rdb

	pub, err := events.Connect(cfg.NATS, log.Named("events"))
	if err != nil {
		log.Warn("nats unavailable, record events disabled", zap.String("url", cfg.NATS.URL), zap.Error(err))
	}
	deps.events = pub

	opts := []storage.Option{
		storage.WithCache(storage.NewListCache(rdb, cfg.Redis.CacheTTL, log.Named("cache"))),
	}
	if pub != nil {
		opts = append(opts, storage.WithEvents(pub))
	}
	deps.service = storage.NewService(store, storage.NewFallbackDir(cfg.Store.FallbackDir), log.Named("storage"), opts...)
	return deps
}
