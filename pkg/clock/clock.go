// Package clock abstracts time so polling loops can be driven deterministically in tests.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock is the time source used by every polling loop.
// Sleep must return ctx.Err() if the context ends before d elapses.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is the wall clock.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// Sleep blocks for d or until ctx is done.
func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Manual is a virtual clock. Sleep advances virtual time instantly,
// so timing-heavy loops run in microseconds under test.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
	onTick []func(time.Time)
}

// NewManual creates a virtual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current virtual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Sleep advances virtual time by d.
func (m *Manual) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.sleeps = append(m.sleeps, d)
	m.mu.Unlock()
	m.Advance(d)
	return nil
}

// Advance moves virtual time forward by d and fires tick hooks.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	if d > 0 {
		m.now = m.now.Add(d)
	}
	now := m.now
	hooks := append([]func(time.Time){}, m.onTick...)
	m.mu.Unlock()

	for _, h := range hooks {
		h(now)
	}
}

// OnTick registers a hook called after every Advance.
func (m *Manual) OnTick(fn func(time.Time)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTick = append(m.onTick, fn)
}

// Sleeps returns every duration passed to Sleep, in order.
func (m *Manual) Sleeps() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.sleeps))
	copy(out, m.sleeps)
	return out
}
