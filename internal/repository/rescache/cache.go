// Package rescache caches analysis results in a key-value store by a
// content-derived key.
package rescache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/topicdex/internal/db"
	"github.com/kailas-cloud/topicdex/internal/domain/analysis"
)

// DefaultPrefix namespaces cache keys.
const DefaultPrefix = "topicdex:result:"

// store is the consumer interface for the result cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Cache stores analysis results as JSON. Store failures are logged and
// reported as misses; they never fail the caller.
type Cache struct {
	store      store
	prefix     string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a result cache.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	s store,
	prefix string,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *Cache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		store:      s,
		prefix:     prefix,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Get returns the cached result for key.
func (c *Cache) Get(ctx context.Context, key string) (analysis.Result, bool) {
	data, err := c.store.Get(ctx, c.prefix+key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached result", zap.String("key", key), zap.Error(err))
		}
		c.inc("miss")
		return analysis.Result{}, false
	}

	var res analysis.Result
	if err := json.Unmarshal(data, &res); err != nil {
		c.logger.Warn("Failed to parse cached result", zap.String("key", key), zap.Error(err))
		c.inc("miss")
		return analysis.Result{}, false
	}
	c.inc("hit")
	return res, true
}

// Put stores res under key.
func (c *Cache) Put(ctx context.Context, key string, res analysis.Result) {
	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Warn("Failed to encode result", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, c.prefix+key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache result", zap.String("key", key), zap.Error(err))
	}
}

// Purge deletes every cached result and returns how many were removed.
// Keys are deleted one per command: in cluster mode they hash to different
// slots and a multi-key DEL fails with CROSSSLOT. On error the count of keys
// removed so far is returned with it.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	keys, err := c.store.Scan(ctx, c.prefix+"*")
	if err != nil {
		return 0, fmt.Errorf("scan cache keys: %w", err)
	}
	var total int64
	for _, key := range keys {
		n, err := c.store.Del(ctx, key)
		if err != nil {
			return total, fmt.Errorf("delete cache key %s: %w", key, err)
		}
		total += n
	}
	return total, nil
}

func (c *Cache) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}
