// Package config resolves engine settings for a11y-runner.
//
// Layering, lowest first: profile defaults, a11y.yaml, A11Y_* environment
// variables, command-line flags (applied by the caller).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/a11y-runner/pkg/core"
	"github.com/devicelab-dev/a11y-runner/pkg/locator"
)

// Profile selects a set of defaults.
type Profile string

const (
	ProfileLocal Profile = "local" // Fast, deterministic desktop
	ProfileCI    Profile = "ci"    // Slower, less deterministic runners
)

// Settings holds every engine knob plus flow selection.
type Settings struct {
	Profile Profile `yaml:"profile"`

	BaseInterval            time.Duration `yaml:"baseInterval"`
	GrowthFactor            float64       `yaml:"growthFactor"`
	MaxInterval             time.Duration `yaml:"maxInterval"`
	FastFailureThreshold    time.Duration `yaml:"fastFailureThreshold"`
	CircuitBreakerThreshold int           `yaml:"circuitBreakerThreshold"`
	RecoverySettle          time.Duration `yaml:"recoverySettle"`

	DebounceWindow          time.Duration `yaml:"debounceWindow"`
	TransientDebounceWindow time.Duration `yaml:"transientDebounceWindow"`

	StabilityRequiredMatches int           `yaml:"stabilityRequiredMatches"`
	StabilityPollInterval    time.Duration `yaml:"stabilityPollInterval"`
	StabilityTimeout         time.Duration `yaml:"stabilityTimeout"`

	SettleDelay     time.Duration `yaml:"settleDelay"`
	ActivationDelay time.Duration `yaml:"activationDelay"`
	ReadyTimeout    time.Duration `yaml:"readyTimeout"`

	DefaultTimeout        time.Duration `yaml:"defaultTimeout"`
	TransientTimeout      time.Duration `yaml:"transientTimeout"`
	TransientPollInterval time.Duration `yaml:"transientPollInterval"`

	Diagnostics      bool `yaml:"diagnostics"`
	SnapshotMaxNodes int  `yaml:"snapshotMaxNodes"`

	// Flow selection
	Flows       []string `yaml:"flows,omitempty"`       // Files or directories to run
	IncludeTags []string `yaml:"includeTags,omitempty"` // Tags to include
	ExcludeTags []string `yaml:"excludeTags,omitempty"` // Tags to exclude
}

// Defaults returns the defaults of profile p. Unknown profiles fall back to local.
func Defaults(p Profile) Settings {
	s := Settings{
		Profile:                  ProfileLocal,
		BaseInterval:             500 * time.Millisecond,
		GrowthFactor:             1.5,
		MaxInterval:              2 * time.Second,
		FastFailureThreshold:     2 * time.Second,
		CircuitBreakerThreshold:  4,
		RecoverySettle:           300 * time.Millisecond,
		DebounceWindow:           800 * time.Millisecond,
		TransientDebounceWindow:  1500 * time.Millisecond,
		StabilityRequiredMatches: 2,
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
	if p == ProfileCI {
		s.Profile = ProfileCI
		s.BaseInterval = 1500 * time.Millisecond
		s.MaxInterval = 4 * time.Second
		s.CircuitBreakerThreshold = 5
		s.StabilityRequiredMatches = 3
		s.StabilityTimeout = 5 * time.Second
		s.SettleDelay = 1500 * time.Millisecond
		s.ActivationDelay = 3 * time.Second
		s.ReadyTimeout = 3 * time.Second
		s.DefaultTimeout = 15 * time.Second
		s.TransientTimeout = 10 * time.Second
	}
	return s
}

// ProfileFromEnv picks the profile from A11Y_PROFILE, else from a truthy CI.
func ProfileFromEnv(lookup func(string) (string, bool)) Profile {
	if v, ok := lookup(EnvProfile); ok && v != "" {
		return Profile(strings.ToLower(strings.TrimSpace(v)))
	}
	if v, ok := lookup("CI"); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return ProfileCI
		}
	}
	return ProfileLocal
}

// Load reads a settings file. Fields absent from the file keep the defaults
// of the profile the file names, or of fallback when it names none.
func Load(path string, fallback Profile) (*Settings, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var head struct {
		Profile Profile `yaml:"profile"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	profile := fallback
	if head.Profile != "" {
		profile = head.Profile
	}

	s := Defaults(profile)
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &s, nil
}

// LoadFromDir looks for a11y.yaml or a11y.yml in the directory.
func LoadFromDir(dir string, fallback Profile) (*Settings, error) {
	for _, name := range []string{"a11y.yaml", "a11y.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path, fallback)
		}
	}

	// No config file found, return profile defaults
	s := Defaults(fallback)
	return &s, nil
}

// Resolve builds the effective settings: file (explicit path, else dir
// lookup), then the process environment, then validation.
func Resolve(dir, file string) (*Settings, error) {
	return ResolveFor(dir, file, ProfileFromEnv(os.LookupEnv))
}

// ResolveFor is Resolve with an explicit fallback profile, used when the
// profile comes from a command-line flag. A profile named in the file wins.
func ResolveFor(dir, file string, profile Profile) (*Settings, error) {
	if profile != ProfileLocal && profile != ProfileCI {
		return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown profile %q (want local or ci)", profile))
	}

	var s *Settings
	var err error
	if file != "" {
		s, err = Load(file, profile)
	} else {
		s, err = LoadFromDir(dir, profile)
	}
	if err != nil {
		return nil, err
	}
	if err := s.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate rejects nonsensical values.
func (s *Settings) Validate() error {
	if s.Profile != ProfileLocal && s.Profile != ProfileCI {
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown profile %q (want local or ci)", s.Profile))
	}
	return s.LocatorOptions().Validate()
}

// LocatorOptions converts the settings to engine options.
func (s *Settings) LocatorOptions() locator.Options {
	return locator.Options{
		BaseInterval:             s.BaseInterval,
		GrowthFactor:             s.GrowthFactor,
		MaxInterval:              s.MaxInterval,
		FastFailureThreshold:     s.FastFailureThreshold,
		BreakerThreshold:         s.CircuitBreakerThreshold,
		RecoverySettle:           s.RecoverySettle,
		DebounceWindow:           s.DebounceWindow,
		TransientDebounceWindow:  s.TransientDebounceWindow,
		StabilityRequiredMatches: s.StabilityRequiredMatches,
		StabilityPollInterval:    s.StabilityPollInterval,
		StabilityTimeout:         s.StabilityTimeout,
		SettleDelay:              s.SettleDelay,
		ActivationDelay:          s.ActivationDelay,
		ReadyTimeout:             s.ReadyTimeout,
		DefaultTimeout:           s.DefaultTimeout,
		TransientTimeout:         s.TransientTimeout,
		TransientPollInterval:    s.TransientPollInterval,
		Diagnostics:              s.Diagnostics,
		SnapshotMaxNodes:         s.SnapshotMaxNodes,
	}
}

// YAML renders the effective settings.
func (s *Settings) YAML() ([]byte, error) {
	return yaml.Marshal(s)
}
