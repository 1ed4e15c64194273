// Package reconnect decides when a dropped feed connection is re-established.
package reconnect

import (
	"fmt"
	"math/rand"
	"time"

	"FinAlert/internal/domain/models"
)

const (
	// DefaultDelay is the fixed wait before reconnecting after a fault.
	DefaultDelay = 3 * time.Second
	// DefaultMaxDelay caps the backoff policy.
	DefaultMaxDelay = 30 * time.Second
)

// Policy is consulted by the client after a connection closes.
// Implementations are driven from a single goroutine.
type Policy interface {
	// OnClosed returns the delay before the next attempt, or false to stay down.
	OnClosed(cause models.CloseCause, reason string) (time.Duration, bool)
	// Reset is called once a connection is established.
	Reset()
}

// Fixed reconnects after the same delay on every fault.
type Fixed struct {
	Delay time.Duration
}

// NewFixed returns a fixed policy; a non-positive delay means DefaultDelay.
func NewFixed(delay time.Duration) *Fixed {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Fixed{Delay: delay}
}

func (p *Fixed) OnClosed(cause models.CloseCause, _ string) (time.Duration, bool) {
	if cause == models.CloseManual {
		return 0, false
	}
	return p.Delay, true
}

func (p *Fixed) Reset() {}

// Backoff doubles the delay on consecutive faults up to Max, subtracting up to
// Jitter (a fraction) of it.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64

	attempt int
	rnd     func() float64
}

type BackoffOption func(*Backoff)

// WithJitter sets the jitter fraction in [0,1).
func WithJitter(f float64) BackoffOption {
	return func(b *Backoff) {
		if f >= 0 && f < 1 {
			b.Jitter = f
		}
	}
}

// WithRand replaces the random source, returning values in [0,1).
func WithRand(fn func() float64) BackoffOption {
	return func(b *Backoff) {
		if fn != nil {
			b.rnd = fn
		}
	}
}

// NewBackoff creates a backoff policy.
func NewBackoff(base, max time.Duration, opts ...BackoffOption) *Backoff {
	if base <= 0 {
		base = DefaultDelay
	}
	if max < base {
		max = DefaultMaxDelay
		if max < base {
			max = base
		}
	}
	b := &Backoff{Base: base, Max: max, Jitter: 0.2, rnd: rand.Float64}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backoff) OnClosed(cause models.CloseCause, _ string) (time.Duration, bool) {
	if cause == models.CloseManual {
		return 0, false
	}
	d := b.Base
	for i := 0; i < b.attempt && d < b.Max; i++ {
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}
	b.attempt++
	if b.Jitter > 0 {
		d -= time.Duration(float64(d) * b.Jitter * b.rnd())
	}
	return d, true
}

func (b *Backoff) Reset() { b.attempt = 0 }

// New builds a policy by name: "fixed" (default) or "backoff".
func New(name string, delay, maxDelay time.Duration) (Policy, error) {
	switch name {
	case "", "fixed":
		return NewFixed(delay), nil
	case "backoff":
		return NewBackoff(delay, maxDelay), nil
	default:
		return nil, &models.ConfigurationError{Field: "reconnect.policy", Value: name, Err: fmt.Errorf("unknown policy")}
	}
}
