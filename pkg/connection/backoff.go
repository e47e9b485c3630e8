package connection

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Reconnection defaults. A drone that drops off the radio link usually comes
// back within seconds, so the ceiling stays low.
const (
	InitialBackoff    = 500 * time.Millisecond
	MaxBackoff        = 15 * time.Second
	BackoffMultiplier = 2.0

	// JitterFactor spreads each delay over [d, d*(1+JitterFactor)].
	JitterFactor = 0.2
)

// BackoffConfig tunes the reconnection delays. Zero fields take the defaults.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	if c.Initial <= 0 {
		c.Initial = InitialBackoff
	}
	if c.Max < c.Initial {
		c.Max = max(MaxBackoff, c.Initial)
	}
	if c.Multiplier <= 1 {
		c.Multiplier = BackoffMultiplier
	}
	c.Jitter = max(c.Jitter, 0)
	return c
}

// base returns the delay before the given attempt, jitter excluded.
func (c BackoffConfig) base(attempt int) time.Duration {
	d := float64(c.Initial)
	for range attempt {
		d *= c.Multiplier
		if d >= float64(c.Max) {
			return c.Max
		}
	}
	return time.Duration(d)
}

// Backoff tracks the redial attempts of one device.
type Backoff struct {
	mu       sync.Mutex
	cfg      BackoffConfig
	attempts int
}

// NewBackoff returns a Backoff with the default delays.
func NewBackoff() *Backoff {
	return NewBackoffWithConfig(BackoffConfig{Jitter: JitterFactor})
}

// NewBackoffWithConfig returns a Backoff tuned by cfg.
func NewBackoffWithConfig(cfg BackoffConfig) *Backoff {
	return &Backoff{cfg: cfg.withDefaults()}
}

// Next returns the delay to wait before the next attempt and counts it.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.jittered(b.cfg.base(b.attempts))
	b.attempts++
	return d
}

// Peek returns the next delay without counting an attempt.
func (b *Backoff) Peek() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.jittered(b.cfg.base(b.attempts))
}

// Reset starts over after a successful connection.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts = 0
}

// Attempts returns the attempts since the last Reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Current returns the delay of the next attempt, jitter excluded.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.base(b.attempts)
}

func (b *Backoff) jittered(d time.Duration) time.Duration {
	if b.cfg.Jitter == 0 {
		return d
	}
	return d + time.Duration(float64(d)*b.cfg.Jitter*rand.Float64())
}
