package locator

import (
	"context"
	"time"

	"github.com/devicelab-dev/a11y-runner/pkg/clock"
	"github.com/devicelab-dev/a11y-runner/pkg/tree"
)

// StabilityDetector confirms a node's observable state holds still across
// RequiredMatches consecutive polls before anything acts on it.
type StabilityDetector struct {
	RequiredMatches int
	PollInterval    time.Duration
	Timeout         time.Duration
	Clock           clock.Clock
}

type stabilitySample struct {
	showing bool
	enabled bool
	name    string
}

func sampleOf(a tree.Attributes) stabilitySample {
	return stabilitySample{showing: a.Showing, enabled: a.Enabled, name: a.Name}
}

// IsStable samples node until RequiredMatches consecutive samples equal their
// predecessor. It returns false on timeout, on a stale read, or when ctx ends.
// The node's cached attributes reflect the last sample.
func (d StabilityDetector) IsStable(ctx context.Context, node *tree.Node) bool {
	if d.RequiredMatches <= 0 {
		return true
	}
	attrs, err := node.Refresh(ctx)
	if err != nil {
		return false
	}
	prev := sampleOf(attrs)
	matches := 0
	deadline := d.Clock.Now().Add(d.Timeout)

	for {
		remaining := deadline.Sub(d.Clock.Now())
		if remaining <= 0 {
			return false
		}
		wait := d.PollInterval
		if wait > remaining {
			wait = remaining
		}
		if err := d.Clock.Sleep(ctx, wait); err != nil {
			return false
		}
		attrs, err := node.Refresh(ctx)
		if err != nil {
			return false
		}
		cur := sampleOf(attrs)
		if cur == prev {
			matches++
		} else {
			matches = 0
			prev = cur
		}
		if matches >= d.RequiredMatches {
			return true
		}
	}
}
