package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"voicecapture/internal/config"
	"voicecapture/internal/models"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("feedback not found")
	// ErrInvalidID is returned for an id the store cannot parse.
	ErrInvalidID = errors.New("invalid feedback id")
	// ErrStoreUnavailable is returned when no document store is configured.
	ErrStoreUnavailable = errors.New("document store unavailable")
)

// DocumentStore persists feedback records.
type DocumentStore interface {
	// Insert stores rec and returns its id.
	Insert(ctx context.Context, rec models.Record) (string, error)
	// List returns matching records newest first with _id rendered as a string.
	List(ctx context.Context, filter models.ListFilter) ([]models.Record, error)
	Get(ctx context.Context, id string) (models.Record, error)
	// Delete reports whether a record was removed.
	Delete(ctx context.Context, id string) (bool, error)
	Ping(ctx context.Context) error
	Collection() string
	Close(ctx context.Context) error
}

// Open connects the configured store. An empty URI returns a nil store.
func Open(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (DocumentStore, error) {
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, nil
	}
	switch driver := strings.ToLower(cfg.Driver); driver {
	case "mongo", "mongodb", "":
		store, err := NewMongoStore(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "sqlite", "sqlite3", "mysql":
		db, err := OpenSQL(driver, cfg.URI)
		if err != nil {
			return nil, err
		}
		if err := Migrate(db, driver); err != nil {
			db.Close()
			return nil, err
		}
		return NewSQLStore(db, cfg.Collection), nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}
