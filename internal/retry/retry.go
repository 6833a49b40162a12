package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"time"
)

// Config defines backoff behaviour.
type Config struct {
	// MaxAttempts is the maximum number of attempts (0 = until ctx ends).
	MaxAttempts int
	// InitialDelay is the delay before the second attempt.
	InitialDelay time.Duration
	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration
	// Multiplier is the exponential backoff multiplier.
	Multiplier float64
	// Jitter adds randomness to delays (0-1).
	Jitter float64
}

// DefaultConfig is used for engine spawns.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Run returns the wrapped error
// unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Manager runs functions with exponential backoff.
type Manager struct {
	config Config

	// OnRetry, when set, is called before each wait with the attempt that
	// just failed.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// NewManager creates a new retry manager.
func NewManager(config Config) *Manager {
	if config.Multiplier < 1 {
		config.Multiplier = 1
	}
	return &Manager{config: config}
}

// Run calls fn until it succeeds, returns a Permanent error, runs out of
// attempts or ctx ends. The last error is returned.
func (m *Manager) Run(ctx context.Context, fn func(context.Context) error) error {
	attempt := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		attempt++
		if m.config.MaxAttempts > 0 && attempt >= m.config.MaxAttempts {
			return err
		}

		delay := m.calculateDelay(attempt)
		if m.OnRetry != nil {
			m.OnRetry(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (m *Manager) calculateDelay(attempt int) time.Duration {
	delay := float64(m.config.InitialDelay) * math.Pow(m.config.Multiplier, float64(attempt-1))
	if m.config.MaxDelay > 0 && delay > float64(m.config.MaxDelay) {
		delay = float64(m.config.MaxDelay)
	}

	if m.config.Jitter > 0 {
		jitter := delay * m.config.Jitter
		if maxJitter := int64(jitter * 2); maxJitter > 0 {
			n, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
			if err == nil {
				delay += float64(n.Int64()) - jitter
			}
		}
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// NextDelay returns the delay that follows the given failed attempt.
func (m *Manager) NextDelay(attempt int) time.Duration {
	return m.calculateDelay(attempt)
}
