package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"voicecapture/internal/coerce"
	"voicecapture/internal/models"
)

// EventPublisher announces record changes.
type EventPublisher interface {
	Publish(ctx context.Context, kind string, payload any) error
}

const (
	EventSaved   = "saved"
	EventDeleted = "deleted"
)

// Service saves, lists and deletes feedback with a file fallback.
type Service struct {
	store    DocumentStore
	fallback *FallbackDir
	cache    *ListCache
	events   EventPublisher
	log      *zap.Logger
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithCache enables list caching.
func WithCache(cache *ListCache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithEvents publishes saved and deleted events.
func WithEvents(events EventPublisher) Option {
	return func(s *Service) { s.events = events }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds the persistence service. store may be nil, in which case
// every save goes to the fallback directory.
func NewService(store DocumentStore, fallback *FallbackDir, log *zap.Logger, opts ...Option) *Service {
	if fallback == nil {
		fallback = NewFallbackDir("")
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		store:    store,
		fallback: fallback,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasStore reports whether a document store is configured.
func (s *Service) HasStore() bool {
	return s.store != nil
}

// Save coerces data to a record, stamps created_at and inserts it. Without a
// store, or when the insert fails, the record is written to a fallback file.
// An error is returned only when that file cannot be written either.
func (s *Service) Save(ctx context.Context, data any) (models.SaveResult, error) {
	rec := models.Record(coerce.ToMap(data)).Clone()
	delete(rec, models.IDKey)
	now := s.now()
	rec.StampCreated(now)

	if s.store == nil {
		return s.saveFallback(rec, now, ErrStoreUnavailable)
	}
	id, err := s.store.Insert(ctx, rec)
	if err != nil {
		s.log.Warn("document store insert failed, writing fallback file", zap.Error(err))
		return s.saveFallback(rec, now, err)
	}

	s.cache.Invalidate(ctx)
	s.publish(ctx, EventSaved, map[string]any{
		"id":         id,
		"collection": s.store.Collection(),
		"image_url":  rec[models.ImageURLKey],
		"created_at": rec[models.CreatedAtKey],
	})
	s.log.Info("feedback saved", zap.String("id", id), zap.String("collection", s.store.Collection()))
	return models.SaveResult{
		Status:     models.SaveStatusStored,
		Collection: s.store.Collection(),
		ID:         id,
		Message:    "Feedback saved to database",
	}, nil
}

func (s *Service) saveFallback(rec models.Record, now time.Time, cause error) (models.SaveResult, error) {
	path, err := s.fallback.Write(rec, now)
	if err != nil {
		return models.SaveResult{}, fmt.Errorf("save feedback (%v): %w", cause, err)
	}
	s.log.Info("feedback written to fallback file", zap.String("file", path), zap.NamedError("cause", cause))
	return models.SaveResult{
		Status:   models.SaveStatusFallback,
		Filename: path,
		Message:  "Document store unavailable, saved to local file",
	}, nil
}

// List returns matching records newest first. Without a store, or when the
// store fails, it returns an empty list.
func (s *Service) List(ctx context.Context, filter models.ListFilter) []models.Record {
	if s.store == nil {
		return []models.Record{}
	}
	key, cached, ok := s.cache.Lookup(ctx, filter)
	if ok {
		return cached
	}
	records, err := s.store.List(ctx, filter)
	if err != nil {
		s.log.Warn("list feedback failed", zap.Error(err))
		return []models.Record{}
	}
	s.cache.Put(ctx, key, records)
	return records
}

// Delete removes a record and returns its image url so the caller can clean
// it up. Lookup and delete are separate calls, so a concurrent delete of the
// same id can make this return ErrNotFound.
func (s *Service) Delete(ctx context.Context, id string) (models.DeleteResult, error) {
	if s.store == nil {
		return models.DeleteResult{}, ErrStoreUnavailable
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return models.DeleteResult{}, err
	}
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return models.DeleteResult{}, err
	}
	if !deleted {
		return models.DeleteResult{}, ErrNotFound
	}

	var imageURL *string
	if url := rec.String(models.ImageURLKey); url != "" {
		imageURL = &url
	}
	s.cache.Invalidate(ctx)
	s.publish(ctx, EventDeleted, map[string]any{
		"id":         id,
		"collection": s.store.Collection(),
		"image_url":  imageURL,
	})
	s.log.Info("feedback deleted", zap.String("id", id))
	return models.DeleteResult{Deleted: true, ImageURL: imageURL}, nil
}

// ReplayFallback inserts pending fallback files into the store and removes
// them. It stops at the first insert failure.
func (s *Service) ReplayFallback(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, ErrStoreUnavailable
	}
	if err := s.store.Ping(ctx); err != nil {
		return 0, fmt.Errorf("ping store: %w", err)
	}
	paths, err := s.fallback.Pending()
	if err != nil {
		return 0, fmt.Errorf("list fallback files: %w", err)
	}
	replayed := 0
	defer func() {
		if replayed > 0 {
			s.cache.Invalidate(ctx)
		}
	}()
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return replayed, err
		}
		rec, err := s.fallback.Read(path)
		if err != nil {
			s.log.Warn("skip unreadable fallback file", zap.String("file", path), zap.Error(err))
			continue
		}
		if _, ok := rec[models.CreatedAtKey]; !ok {
			rec.StampCreated(s.now())
		}
		id, err := s.store.Insert(ctx, rec)
		if err != nil {
			return replayed, fmt.Errorf("replay %s: %w", path, err)
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("remove replayed fallback file failed", zap.String("file", path), zap.Error(err))
		}
		s.publish(ctx, EventSaved, map[string]any{
			"id":         id,
			"collection": s.store.Collection(),
			"image_url":  rec[models.ImageURLKey],
			"replayed":   true,
		})
		replayed++
	}
	return replayed, nil
}

func (s *Service) publish(ctx context.Context, kind string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, kind, payload); err != nil {
		s.log.Warn("publish event failed", zap.String("event", kind), zap.Error(err))
	}
}
