package cache

import (
	"context"
	"time"

	"github.com/dmmcquay/endgame-mcp/internal/config"
	"github.com/dmmcquay/endgame-mcp/internal/logging"
)

// Manager is the in-process Store. When disabled every lookup misses and
// writes are dropped.
type Manager struct {
	cache   *LRU
	logger  logging.ContextLogger
	enabled bool
	ttl     time.Duration
}

var _ Store = (*Manager)(nil)

// NewManager creates a new cache manager.
func NewManager(cfg *config.CacheConfig, logger logging.ContextLogger) *Manager {
	if cfg == nil || !cfg.Enabled {
		return &Manager{logger: logger}
	}

	return &Manager{
		cache:   NewLRU(cfg.MaxItems, cfg.MaxSizeBytes),
		logger:  logger,
		enabled: true,
		ttl:     cfg.TTL(),
	}
}

func (m *Manager) Get(_ context.Context, key string) ([]byte, bool, error) {
	if !m.enabled {
		return nil, false, nil
	}
	val, ok := m.cache.Get(key)
	return val, ok, nil
}

// Set stores value; ttl <= 0 falls back to the configured TTL.
func (m *Manager) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if !m.enabled {
		return nil
	}
	if ttl <= 0 {
		ttl = m.ttl
	}
	m.cache.Put(key, value, ttl)
	m.logger.Debug("Cached value", "key", key, "size", len(value))
	return nil
}

func (m *Manager) Delete(_ context.Context, key string) error {
	if m.enabled {
		m.cache.Delete(key)
	}
	return nil
}

// Stats returns cache statistics.
func (m *Manager) Stats() Stats {
	if !m.enabled {
		return Stats{}
	}
	return m.cache.Stats()
}

// Clear clears the cache.
func (m *Manager) Clear() {
	if m.cache != nil {
		m.cache.Clear()
	}
}

// IsEnabled returns whether caching is enabled.
func (m *Manager) IsEnabled() bool {
	return m.enabled
}
