package tablebase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmmcquay/endgame-mcp/internal/cache"
	"github.com/dmmcquay/endgame-mcp/internal/logging"
)

// CacheObserver receives hit/miss notifications; metrics.Collector
// implements it.
type CacheObserver interface {
	RecordCacheHit(source string)
	RecordCacheMiss(source string)
}

// CachedProber memoizes successful probes in a cache.Store. Misses and
// errors from the wrapped prober are not cached.
type CachedProber struct {
	next     Prober
	store    cache.Store
	ttl      time.Duration
	logger   logging.ContextLogger
	observer CacheObserver
}

var _ Prober = (*CachedProber)(nil)

// NewCachedProber wraps next. observer may be nil.
func NewCachedProber(next Prober, store cache.Store, ttl time.Duration, logger logging.ContextLogger, observer CacheObserver) *CachedProber {
	return &CachedProber{
		next:     next,
		store:    store,
		ttl:      ttl,
		logger:   logger,
		observer: observer,
	}
}

func (c *CachedProber) Probe(ctx context.Context, fen string) (*Position, error) {
	key := cache.Key("tablebase", NormalizeFEN(fen))

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		// A broken cache must not break probing.
		c.logger.WithContext(ctx).Warn("Tablebase cache read failed", "error", err)
	}
	if ok {
		var pos Position
		if err := json.Unmarshal(raw, &pos); err == nil {
			c.hit()
			return &pos, nil
		}
		c.logger.WithContext(ctx).Warn("Dropping undecodable tablebase cache entry", "key", key)
		_ = c.store.Delete(ctx, key)
	}
	c.miss()

	pos, err := c.next.Probe(ctx, fen)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(pos); err == nil {
		if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
			c.logger.WithContext(ctx).Warn("Tablebase cache write failed", "error", err)
		}
	}
	return pos, nil
}

func (c *CachedProber) hit() {
	if c.observer != nil {
		c.observer.RecordCacheHit("tablebase")
	}
}

func (c *CachedProber) miss() {
	if c.observer != nil {
		c.observer.RecordCacheMiss("tablebase")
	}
}
