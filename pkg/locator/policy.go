package locator

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/devicelab-dev/a11y-runner/pkg/clock"
)

// RetryPolicy bounds a polling loop: exponential waits from BaseInterval,
// multiplied by GrowthFactor and capped at MaxInterval, until Timeout or
// MaxRetries attempts (0 means unlimited).
type RetryPolicy struct {
	Timeout      time.Duration
	BaseInterval time.Duration
	GrowthFactor float64
	MaxInterval  time.Duration
	MaxRetries   int
}

// Attempts starts an attempt iterator measured on c.
func (p RetryPolicy) Attempts(c clock.Clock) *Attempts {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.BaseInterval,
		RandomizationFactor: 0,
		Multiplier:          p.GrowthFactor,
		MaxInterval:         p.MaxInterval,
		MaxElapsedTime:      0,
		Clock:               c,
	}
	b.Reset()
	start := c.Now()
	return &Attempts{
		policy:   p,
		clock:    c,
		backoff:  b,
		start:    start,
		deadline: start.Add(p.Timeout),
	}
}

// Attempts is consumed by a driver loop:
//
//	for it.Next(ctx) {
//		... one attempt ...
//	}
//
// The first Next returns immediately; later calls sleep first.
type Attempts struct {
	policy   RetryPolicy
	clock    clock.Clock
	backoff  *backoff.ExponentialBackOff
	start    time.Time
	deadline time.Time
	count    int
	fixed    time.Duration
	waits    []time.Duration
	err      error
}

// Next waits for the next attempt and reports whether it should run.
func (a *Attempts) Next(ctx context.Context) bool {
	if a.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		a.err = err
		return false
	}
	if a.count == 0 {
		a.count++
		return true
	}
	if a.policy.MaxRetries > 0 && a.count >= a.policy.MaxRetries {
		return false
	}

	remaining := a.Remaining()
	if remaining <= 0 {
		return false
	}
	wait := a.fixed
	a.fixed = 0
	if wait <= 0 {
		wait = a.backoff.NextBackOff()
	}
	if wait > remaining {
		wait = remaining
	}
	a.waits = append(a.waits, wait)
	if err := a.clock.Sleep(ctx, wait); err != nil {
		a.err = err
		return false
	}
	if a.Remaining() <= 0 {
		return false
	}
	a.count++
	return true
}

// Retry makes the next wait exactly d without advancing the backoff.
func (a *Attempts) Retry(d time.Duration) {
	a.fixed = d
}

// Count returns the number of attempts started.
func (a *Attempts) Count() int { return a.count }

// Elapsed returns the time since the iterator started.
func (a *Attempts) Elapsed() time.Duration { return a.clock.Now().Sub(a.start) }

// Remaining returns the time left before the deadline.
func (a *Attempts) Remaining() time.Duration { return a.deadline.Sub(a.clock.Now()) }

// Waits returns every wait slept so far.
func (a *Attempts) Waits() []time.Duration { return append([]time.Duration(nil), a.waits...) }

// Err returns the context error that stopped iteration, if any.
func (a *Attempts) Err() error { return a.err }
