// Package locator implements the resilient locate-and-act engine: polling
// with backoff, a circuit breaker for broken tree providers, a stability gate,
// action debouncing, transient capture and context-switch handling.
package locator

import (
	"fmt"
	"time"

	"github.com/devicelab-dev/a11y-runner/pkg/core"
)

// Options holds every engine knob. Zero values are not defaults; start from
// DefaultOptions or a config profile.
type Options struct {
	BaseInterval time.Duration
	GrowthFactor float64
	MaxInterval  time.Duration

	// FastFailureThreshold classifies an exhausted Find as fast (evidence of
	// a broken provider) when it finished quicker than this.
	FastFailureThreshold time.Duration
	BreakerThreshold     int
	RecoverySettle       time.Duration

	DebounceWindow          time.Duration
	TransientDebounceWindow time.Duration

	StabilityRequiredMatches int
	StabilityPollInterval    time.Duration
	StabilityTimeout         time.Duration

	SettleDelay     time.Duration
	ActivationDelay time.Duration
	ReadyTimeout    time.Duration

	DefaultTimeout        time.Duration
	TransientTimeout      time.Duration
	TransientPollInterval time.Duration

	Diagnostics      bool
	SnapshotMaxNodes int
}

// DefaultOptions returns the local-profile defaults.
func DefaultOptions() Options {
	return Options{
		BaseInterval:             500 * time.Millisecond,
		GrowthFactor:             1.5,
		MaxInterval:              2 * time.Second,
		FastFailureThreshold:     2 * time.Second,
		BreakerThreshold:         4,
		RecoverySettle:           300 * time.Millisecond,
		DebounceWindow:           800 * time.Millisecond,
		TransientDebounceWindow:  1500 * time.Millisecond,
		StabilityRequiredMatches: 3,
		StabilityPollInterval:    300 * time.Millisecond,
		StabilityTimeout:         1500 * time.Millisecond,
		SettleDelay:              300 * time.Millisecond,
		ActivationDelay:          500 * time.Millisecond,
		ReadyTimeout:             2 * time.Second,
		DefaultTimeout:           10 * time.Second,
		TransientTimeout:         8 * time.Second,
		TransientPollInterval:    100 * time.Millisecond,
		Diagnostics:              true,
		SnapshotMaxNodes:         500,
	}
}

// Validate rejects values the engine cannot run with.
func (o Options) Validate() error {
	var problems []string
	if o.BaseInterval <= 0 {
		problems = append(problems, "baseInterval must be positive")
	}
	if o.GrowthFactor < 1 {
		problems = append(problems, "growthFactor must be >= 1")
	}
	if o.MaxInterval < o.BaseInterval {
		problems = append(problems, "maxInterval must be >= baseInterval")
	}
	if o.BreakerThreshold < 1 {
		problems = append(problems, "circuitBreakerThreshold must be >= 1")
	}
	if o.StabilityRequiredMatches < 0 {
		problems = append(problems, "stabilityRequiredMatches must be >= 0")
	}
	if o.StabilityRequiredMatches > 0 && o.StabilityPollInterval <= 0 {
		problems = append(problems, "stabilityPollInterval must be positive")
	}
	if o.TransientDebounceWindow < time.Second {
		problems = append(problems, "transientDebounceWindow must be at least 1s")
	}
	if o.TransientPollInterval <= 0 {
		problems = append(problems, "transientPollInterval must be positive")
	}
	if o.DefaultTimeout <= 0 || o.TransientTimeout <= 0 {
		problems = append(problems, "timeouts must be positive")
	}
	for _, d := range []time.Duration{o.FastFailureThreshold, o.DebounceWindow, o.SettleDelay,
		o.ActivationDelay, o.ReadyTimeout, o.RecoverySettle, o.StabilityTimeout} {
		if d < 0 {
			problems = append(problems, "durations must not be negative")
			break
		}
	}
	if len(problems) > 0 {
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("invalid engine options: %v", problems))
	}
	return nil
}

// RetryPolicy returns the backoff policy for a Find with the given timeout.
func (o Options) RetryPolicy(timeout time.Duration, maxRetries int) RetryPolicy {
	return RetryPolicy{
		Timeout:      timeout,
		BaseInterval: o.BaseInterval,
		GrowthFactor: o.GrowthFactor,
		MaxInterval:  o.MaxInterval,
		MaxRetries:   maxRetries,
	}
}
