package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket implements the token bucket algorithm for rate limiting.
type TokenBucket struct {
	capacity   int
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a full bucket with the given capacity and refill
// rate in tokens per second.
func NewTokenBucket(capacity int, refillRate float64) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow attempts to consume n tokens from the bucket.
func (b *TokenBucket) Allow(n int) bool {
	return b.AllowN(n, time.Now())
}

// AllowN attempts to consume n tokens at a specific time.
func (b *TokenBucket) AllowN(n int, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now)
	if b.tokens >= float64(n) {
		b.tokens -= float64(n)
		return true
	}
	return false
}

// Refund returns n tokens taken by an earlier Allow whose request was then
// rejected by another limit.
func (b *TokenBucket) Refund(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens += float64(n)
	if b.tokens > float64(b.capacity) {
		b.tokens = float64(b.capacity)
	}
}

// RetryAfter reports how long until n tokens are available, without
// consuming anything.
func (b *TokenBucket) RetryAfter(n int) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(time.Now())
	deficit := float64(n) - b.tokens
	if deficit <= 0 || b.refillRate <= 0 {
		return 0
	}
	return time.Duration(deficit / b.refillRate * float64(time.Second))
}

// Tokens returns the current number of tokens available.
func (b *TokenBucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(time.Now())
	return b.tokens
}

// refill must be called with the lock held.
func (b *TokenBucket) refill(now time.Time) {
	if now.Before(b.lastRefill) {
		return
	}
	b.tokens += now.Sub(b.lastRefill).Seconds() * b.refillRate
	if b.tokens > float64(b.capacity) {
		b.tokens = float64(b.capacity)
	}
	b.lastRefill = now
}

// Reset resets the bucket to full capacity.
func (b *TokenBucket) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens = float64(b.capacity)
	b.lastRefill = time.Now()
}
