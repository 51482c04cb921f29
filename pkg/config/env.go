package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/devicelab-dev/a11y-runner/pkg/core"
)

// EnvProfile selects the profile explicitly.
const EnvProfile = "A11Y_PROFILE"

type envVar struct {
	name  string
	apply func(*Settings, string) error
}

func durationVar(get func(*Settings) *time.Duration) func(*Settings, string) error {
	return func(s *Settings, v string) error {
		d, err := ParseDuration(v)
		if err != nil {
			return err
		}
		*get(s) = d
		return nil
	}
}

func intVar(get func(*Settings) *int) func(*Settings, string) error {
	return func(s *Settings, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*get(s) = n
		return nil
	}
}

// envVars lists every per-knob override.
var envVars = []envVar{
	{"A11Y_BASE_INTERVAL", durationVar(func(s *Settings) *time.Duration { return &s.BaseInterval })},
	{"A11Y_GROWTH_FACTOR", func(s *Settings, v string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return err
		}
		s.GrowthFactor = f
		return nil
	}},
	{"A11Y_MAX_INTERVAL", durationVar(func(s *Settings) *time.Duration { return &s.MaxInterval })},
	{"A11Y_FAST_FAILURE_THRESHOLD", durationVar(func(s *Settings) *time.Duration { return &s.FastFailureThreshold })},
	{"A11Y_BREAKER_THRESHOLD", intVar(func(s *Settings) *int { return &s.CircuitBreakerThreshold })},
	{"A11Y_RECOVERY_SETTLE", durationVar(func(s *Settings) *time.Duration { return &s.RecoverySettle })},
	{"A11Y_DEBOUNCE_WINDOW", durationVar(func(s *Settings) *time.Duration { return &s.DebounceWindow })},
	{"A11Y_TRANSIENT_DEBOUNCE_WINDOW", durationVar(func(s *Settings) *time.Duration { return &s.TransientDebounceWindow })},
	{"A11Y_STABILITY_MATCHES", intVar(func(s *Settings) *int { return &s.StabilityRequiredMatches })},
	{"A11Y_STABILITY_POLL_INTERVAL", durationVar(func(s *Settings) *time.Duration { return &s.StabilityPollInterval })},
	{"A11Y_STABILITY_TIMEOUT", durationVar(func(s *Settings) *time.Duration { return &s.StabilityTimeout })},
	{"A11Y_SETTLE_DELAY", durationVar(func(s *Settings) *time.Duration { return &s.SettleDelay })},
	{"A11Y_ACTIVATION_DELAY", durationVar(func(s *Settings) *time.Duration { return &s.ActivationDelay })},
	{"A11Y_READY_TIMEOUT", durationVar(func(s *Settings) *time.Duration { return &s.ReadyTimeout })},
	{"A11Y_DEFAULT_TIMEOUT", durationVar(func(s *Settings) *time.Duration { return &s.DefaultTimeout })},
	{"A11Y_TRANSIENT_TIMEOUT", durationVar(func(s *Settings) *time.Duration { return &s.TransientTimeout })},
	{"A11Y_TRANSIENT_POLL_INTERVAL", durationVar(func(s *Settings) *time.Duration { return &s.TransientPollInterval })},
	{"A11Y_SNAPSHOT_MAX_NODES", intVar(func(s *Settings) *int { return &s.SnapshotMaxNodes })},
	{"A11Y_DIAGNOSTICS", func(s *Settings, v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		s.Diagnostics = b
		return nil
	}},
}

// EnvNames returns the names of every recognised override variable.
func EnvNames() []string {
	names := make([]string, 0, len(envVars)+1)
	names = append(names, EnvProfile)
	for _, v := range envVars {
		names = append(names, v.name)
	}
	return names
}

// ApplyEnv overrides knobs from the environment. Empty values are ignored.
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, v := range envVars {
		raw, ok := lookup(v.name)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		if err := v.apply(s, raw); err != nil {
			return core.ErrInvalidConfig.WithCause(err).WithMessage(fmt.Sprintf("invalid %s=%q", v.name, raw))
		}
	}
	return nil
}

// ParseDuration accepts Go durations ("1.5s", "300ms") or bare seconds ("1.5").
func ParseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("not a duration: %q", v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
