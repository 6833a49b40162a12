package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmmcquay/endgame-mcp/internal/config"
	"github.com/dmmcquay/endgame-mcp/internal/logging"
)

const (
	cleanupInterval = 5 * time.Minute
	staleTimeout    = 30 * time.Minute
)

// ErrRateLimited is matched by every *LimitError.
var ErrRateLimited = errors.New("rate limit exceeded")

// Scope names which limit rejected a request.
type Scope string

const (
	ScopeGlobal     Scope = "global"
	ScopeTool       Scope = "tool"
	ScopeClient     Scope = "client"
	ScopeClientTool Scope = "client_tool"
)

// LimitError describes a rejected request.
type LimitError struct {
	Scope      Scope
	Tool       string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	switch e.Scope {
	case ScopeTool, ScopeClientTool:
		return fmt.Sprintf("%s rate limit exceeded for tool %s, retry after %s", e.Scope, e.Tool, e.RetryAfter.Round(time.Millisecond))
	default:
		return fmt.Sprintf("%s rate limit exceeded, retry after %s", e.Scope, e.RetryAfter.Round(time.Millisecond))
	}
}

func (e *LimitError) Is(target error) bool { return target == ErrRateLimited }

// Limiter applies a global limit, optional per-tool limits and the same
// pair again per client. Engine-backed tools are the usual per-tool
// candidates since each call holds the single engine session.
type Limiter struct {
	logger       logging.ContextLogger
	config       *config.RateLimitConfig
	globalBucket *TokenBucket
	toolBuckets  map[string]*TokenBucket
	clientLimits map[string]*clientRateLimit
	mu           sync.RWMutex

	stop     chan struct{}
	stopOnce sync.Once
}

type clientRateLimit struct {
	globalBucket *TokenBucket
	toolBuckets  map[string]*TokenBucket
	lastSeen     time.Time
}

// NewLimiter returns nil when rate limiting is disabled; a nil *Limiter
// allows everything.
func NewLimiter(cfg *config.RateLimitConfig, logger logging.ContextLogger) *Limiter {
	if cfg == nil || !cfg.Enabled || cfg.RequestsPerMin <= 0 {
		return nil
	}

	l := &Limiter{
		logger:       logger,
		config:       cfg,
		globalBucket: NewTokenBucket(cfg.BurstSize, perSecond(cfg.RequestsPerMin)),
		toolBuckets:  make(map[string]*TokenBucket),
		clientLimits: make(map[string]*clientRateLimit),
		stop:         make(chan struct{}),
	}
	for tool, limit := range cfg.PerToolLimits {
		l.toolBuckets[tool] = l.newToolBucket(limit)
	}

	go l.cleanupLoop()
	return l
}

func perSecond(perMinute int) float64 {
	return float64(perMinute) / 60.0
}

// newToolBucket keeps the global burst-to-rate ratio.
func (l *Limiter) newToolBucket(limit int) *TokenBucket {
	burst := (l.config.BurstSize * limit) / l.config.RequestsPerMin
	if burst < 1 {
		burst = 1
	}
	return NewTokenBucket(burst, perSecond(limit))
}

// Allow returns nil when the request fits every applicable limit, or a
// *LimitError. Tokens taken from a passing limit are refunded when a later
// one rejects.
func (l *Limiter) Allow(clientID, toolName string) error {
	if l == nil {
		return nil
	}

	if !l.globalBucket.Allow(1) {
		return l.reject(ScopeGlobal, clientID, toolName, l.globalBucket)
	}

	l.mu.RLock()
	toolBucket, hasToolLimit := l.toolBuckets[toolName]
	l.mu.RUnlock()

	if hasToolLimit && !toolBucket.Allow(1) {
		l.globalBucket.Refund(1)
		return l.reject(ScopeTool, clientID, toolName, toolBucket)
	}

	if clientID != "" {
		if err := l.checkClientLimit(clientID, toolName); err != nil {
			l.globalBucket.Refund(1)
			if hasToolLimit {
				toolBucket.Refund(1)
			}
			return err
		}
	}
	return nil
}

func (l *Limiter) reject(scope Scope, clientID, toolName string, bucket *TokenBucket) error {
	err := &LimitError{Scope: scope, Tool: toolName, RetryAfter: bucket.RetryAfter(1)}
	l.logger.Warn("Rate limit exceeded",
		"scope", string(scope),
		"client", clientID,
		"tool", toolName,
		"retry_after", err.RetryAfter,
	)
	return err
}

func (l *Limiter) checkClientLimit(clientID, toolName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	client, exists := l.clientLimits[clientID]
	if !exists {
		client = &clientRateLimit{
			globalBucket: NewTokenBucket(l.config.BurstSize, perSecond(l.config.RequestsPerMin)),
			toolBuckets:  make(map[string]*TokenBucket),
		}
		l.clientLimits[clientID] = client
	}
	client.lastSeen = time.Now()

	if !client.globalBucket.Allow(1) {
		return l.reject(ScopeClient, clientID, toolName, client.globalBucket)
	}

	limit, hasLimit := l.config.PerToolLimits[toolName]
	if !hasLimit {
		return nil
	}
	toolBucket, exists := client.toolBuckets[toolName]
	if !exists {
		toolBucket = l.newToolBucket(limit)
		client.toolBuckets[toolName] = toolBucket
	}
	if !toolBucket.Allow(1) {
		client.globalBucket.Refund(1)
		return l.reject(ScopeClientTool, clientID, toolName, toolBucket)
	}
	return nil
}

// RetryAfter reports the longest wait among the limits a request from
// clientID for toolName would hit.
func (l *Limiter) RetryAfter(clientID, toolName string) time.Duration {
	if l == nil {
		return 0
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	wait := l.globalBucket.RetryAfter(1)
	longer := func(b *TokenBucket) {
		if b == nil {
			return
		}
		if d := b.RetryAfter(1); d > wait {
			wait = d
		}
	}
	longer(l.toolBuckets[toolName])
	if client, ok := l.clientLimits[clientID]; ok {
		longer(client.globalBucket)
		longer(client.toolBuckets[toolName])
	}
	return wait
}

// Reset resets all rate limit buckets to full capacity.
func (l *Limiter) Reset() {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.globalBucket.Reset()
	for _, bucket := range l.toolBuckets {
		bucket.Reset()
	}
	for _, client := range l.clientLimits {
		client.globalBucket.Reset()
		for _, bucket := range client.toolBuckets {
			bucket.Reset()
		}
	}
}

// Close stops the background cleanup.
func (l *Limiter) Close() {
	if l == nil {
		return
	}
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.pruneStale(now)
		}
	}
}

// pruneStale drops tracking for clients idle longer than staleTimeout.
func (l *Limiter) pruneStale(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for clientID, client := range l.clientLimits {
		if now.Sub(client.lastSeen) > staleTimeout {
			delete(l.clientLimits, clientID)
			removed++
			l.logger.Debug("Removed stale client rate limit tracking", "client", clientID)
		}
	}
	return removed
}

// Status is a monitoring snapshot.
type Status struct {
	Enabled        bool                  `json:"enabled"`
	RequestsPerMin int                   `json:"requestsPerMin,omitempty"`
	BurstSize      int                   `json:"burstSize,omitempty"`
	GlobalTokens   float64               `json:"globalTokens,omitempty"`
	ActiveClients  int                   `json:"activeClients"`
	Tools          map[string]ToolStatus `json:"toolLimits,omitempty"`
}

type ToolStatus struct {
	Limit  int     `json:"limit"`
	Tokens float64 `json:"tokens"`
}

// GetStatus returns the current status of rate limits for monitoring.
func (l *Limiter) GetStatus() Status {
	if l == nil {
		return Status{}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	status := Status{
		Enabled:        true,
		RequestsPerMin: l.config.RequestsPerMin,
		BurstSize:      l.config.BurstSize,
		GlobalTokens:   l.globalBucket.Tokens(),
		ActiveClients:  len(l.clientLimits),
		Tools:          make(map[string]ToolStatus, len(l.toolBuckets)),
	}
	for tool, bucket := range l.toolBuckets {
		status.Tools[tool] = ToolStatus{Limit: l.config.PerToolLimits[tool], Tokens: bucket.Tokens()}
	}
	return status
}
