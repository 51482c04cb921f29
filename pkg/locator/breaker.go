package locator

import (
	"context"

	"go.uber.org/zap"

	"github.com/devicelab-dev/a11y-runner/pkg/core"
)

// BreakerState is the circuit breaker position.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
)

func (s BreakerState) String() string {
	if s == BreakerOpen {
		return "open"
	}
	return "closed"
}

// CircuitBreaker counts consecutive fast failures. It opens when the count
// reaches the threshold and closes only through a successful probe, a
// successful Find, or Reset. It never reaches a terminal state.
type CircuitBreaker struct {
	threshold int
	failures  int
	state     BreakerState
	log       *zap.SugaredLogger
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(threshold int, log *zap.SugaredLogger) *CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &CircuitBreaker{threshold: threshold, log: log}
}

// RecordFastFailure counts one fast failure and reports whether this call
// opened the breaker.
func (b *CircuitBreaker) RecordFastFailure() bool {
	b.failures++
	if b.state == BreakerClosed && b.failures >= b.threshold {
		b.state = BreakerOpen
		b.log.Warnw("circuit breaker opened", "failures", b.failures, "threshold", b.threshold)
		return true
	}
	return false
}

// RecordSlowFailure zeroes the counter; a genuine timeout says nothing about
// provider health.
func (b *CircuitBreaker) RecordSlowFailure() {
	b.failures = 0
	b.state = BreakerClosed
}

// RecordSuccess zeroes the counter and closes the breaker.
func (b *CircuitBreaker) RecordSuccess() {
	if b.state == BreakerOpen {
		b.log.Infow("circuit breaker closed")
	}
	b.failures = 0
	b.state = BreakerClosed
}

// Reset returns the breaker to its initial state.
func (b *CircuitBreaker) Reset() {
	b.failures = 0
	b.state = BreakerClosed
}

// State returns the current position.
func (b *CircuitBreaker) State() BreakerState { return b.state }

// Failures returns the consecutive fast-failure count.
func (b *CircuitBreaker) Failures() int { return b.failures }

// Allow gates a request. A closed breaker always allows. An open breaker runs
// probe once: success closes it, failure keeps it open and returns an error
// matching core.ErrProviderBroken.
func (b *CircuitBreaker) Allow(ctx context.Context, probe func(context.Context) error) error {
	if b.state == BreakerClosed {
		return nil
	}
	b.log.Infow("circuit breaker open, probing provider", "failures", b.failures)
	if err := probe(ctx); err != nil {
		b.log.Errorw("recovery probe failed", "error", err)
		return core.ErrProviderBroken.WithCause(err).WithDetails(map[string]interface{}{
			"consecutiveFastFailures": b.failures,
		})
	}
	b.log.Infow("recovery probe succeeded")
	b.RecordSuccess()
	return nil
}
