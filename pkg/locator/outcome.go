package locator

import (
	"time"

	"github.com/devicelab-dev/a11y-runner/pkg/tree"
)

// Outcome classifies how a search ended.
type Outcome int

const (
	OutcomeNotFound Outcome = iota
	OutcomeFound
	OutcomeProviderBroken
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeProviderBroken:
		return "provider_broken"
	default:
		return "not_found"
	}
}

// SearchResult is returned by Find.
type SearchResult struct {
	Outcome     Outcome
	Node        *tree.Node
	Attempts    int
	Elapsed     time.Duration
	FastFailure bool          // Exhausted quicker than the fast-failure threshold
	Snapshot    tree.Snapshot // Visible nodes by role; set on NotFound with diagnostics on
	LastErr     error         // Last provider error seen while polling, if any
}

// Found reports whether a node was resolved.
func (r SearchResult) Found() bool { return r.Outcome == OutcomeFound }

// ActResult is returned by FindAndAct.
type ActResult struct {
	SearchResult
	Invoked    bool // Invoke succeeded
	Suppressed bool // Debounced; no Invoke happened
	Refinds    int  // Re-resolutions after stale handles
}

// Capture is returned by WaitForAppearance. Node and Payload come from the
// same read.
type Capture struct {
	Outcome      Outcome
	Node         *tree.Node
	Payload      string
	Attempts     int
	Elapsed      time.Duration
	FromFallback bool // Payload found by a whole-tree search; Node is the payload node
}

// Found reports whether a node was captured.
func (c Capture) Found() bool { return c.Outcome == OutcomeFound }

// EngineState is a read-only view of the mutable engine state.
type EngineState struct {
	ConsecutiveFastFailures int
	Breaker                 BreakerState
	LastActions             map[tree.ElementKey]time.Time
	JustSwitchedContext     bool
}
