package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"voicecapture/internal/models"
	"voicecapture/internal/redis"
)

const (
	cacheGenerationKey = "voicecapture:feedback:gen"
	cacheListPrefix    = "voicecapture:feedback:list:"
)

// cacheBackend is the slice of the redis client the list cache needs.
type cacheBackend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
}

// ListCache caches list results in redis. Writes bump a generation counter
// so every cached page is invalidated at once.
type ListCache struct {
	client cacheBackend
	ttl    time.Duration
	log    *zap.Logger
}

// NewListCache returns nil when client is disabled.
func NewListCache(client *redis.Client, ttl time.Duration, log *zap.Logger) *ListCache {
	if !client.Enabled() {
		return nil
	}
	return newListCache(client, ttl, log)
}

func newListCache(client cacheBackend, ttl time.Duration, log *zap.Logger) *ListCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ListCache{client: client, ttl: ttl, log: log}
}

// Lookup resolves the cache key for filter under the current generation and
// returns the cached records if present. The key must be taken before the
// store is read and handed to Put afterwards, so rows read before a write
// are never cached under the generation that write created. An empty key
// means the result must not be cached.
func (c *ListCache) Lookup(ctx context.Context, filter models.ListFilter) (string, []models.Record, bool) {
	if c == nil {
		return "", nil, false
	}
	key, err := c.key(ctx, filter)
	if err != nil {
		c.log.Debug("list cache generation read failed", zap.Error(err))
		return "", nil, false
	}
	raw, err := c.client.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			c.log.Debug("list cache read failed", zap.Error(err))
		}
		return key, nil, false
	}
	var out []models.Record
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return key, nil, false
	}
	for _, rec := range out {
		if s, ok := rec[models.CreatedAtKey].(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				rec[models.CreatedAtKey] = t
			}
		}
	}
	return key, out, true
}

// Put stores records under a key returned by Lookup.
func (c *ListCache) Put(ctx context.Context, key string, records []models.Record) {
	if c == nil || key == "" {
		return
	}
	body, err := json.Marshal(records)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, body, c.ttl); err != nil {
		c.log.Debug("list cache write failed", zap.Error(err))
	}
}

// Invalidate drops every cached list.
func (c *ListCache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	if _, err := c.client.Incr(ctx, cacheGenerationKey); err != nil {
		c.log.Warn("list cache invalidation failed", zap.Error(err))
	}
}

func (c *ListCache) key(ctx context.Context, filter models.ListFilter) (string, error) {
	gen, err := c.client.Get(ctx, cacheGenerationKey)
	if errors.Is(err, redis.ErrCacheMiss) {
		gen = "0"
	} else if err != nil {
		return "", err
	}
	return cacheListPrefix + gen + ":" + filterDigest(filter), nil
}

func filterDigest(filter models.ListFilter) string {
	parts := make([]string, 0, len(filter.Fields)+1)
	parts = append(parts, "id="+filter.FeedbackID)
	for k, v := range filter.Fields {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts[1:])
	sum := sha1.Sum([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}
