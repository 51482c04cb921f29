package locator

import (
	"context"
	"time"

	"github.com/devicelab-dev/a11y-runner/pkg/tree"
)

// StateResult is returned by WaitForState. Node is the last read of the
// target, whether or not the condition held for it.
type StateResult struct {
	SearchResult
	Matched bool
	Refinds int // Re-resolutions after stale handles
}

// WaitForState resolves loc, then re-reads the node every stability poll
// interval until cond holds or timeout runs out. A node that goes stale is
// re-resolved within the same timeout. Running out of time is an outcome
// (Matched false), not an error.
func (e *Engine) WaitForState(ctx context.Context, loc tree.Locator, cond func(tree.Attributes) bool, timeout time.Duration, opts ...CallOption) (StateResult, error) {
	start := e.clock.Now()
	if timeout <= 0 {
		timeout = e.opts.DefaultTimeout
	}
	deadline := start.Add(timeout)

	res, err := e.Find(ctx, loc, timeout, opts...)
	st := StateResult{SearchResult: res}
	if err != nil || !res.Found() {
		return st, err
	}

	poll := e.opts.StabilityPollInterval
	if poll <= 0 {
		poll = e.opts.BaseInterval
	}
	node := res.Node
	for {
		st.Node = node
		st.Elapsed = e.clock.Now().Sub(start)
		if cond(node.Attributes()) {
			st.Matched = true
			return st, nil
		}

		remaining := deadline.Sub(e.clock.Now())
		if remaining <= 0 {
			e.log.Debugw("state not reached", "target", loc.String(), "reads", st.Attempts)
			return st, nil
		}
		wait := poll
		if wait <= 0 || wait > remaining {
			wait = remaining
		}
		if err := e.clock.Sleep(ctx, wait); err != nil {
			return st, err
		}
		st.Attempts++

		_, err := node.Refresh(ctx)
		if err == nil {
			continue
		}
		if !tree.IsStale(err) {
			e.log.Debugw("state read failed", "target", loc.String(), "error", err)
			st.LastErr = err
			continue
		}

		remaining = deadline.Sub(e.clock.Now())
		if remaining <= 0 {
			st.Elapsed = e.clock.Now().Sub(start)
			return st, nil
		}
		st.Refinds++
		again, err := e.Find(ctx, loc, remaining, opts...)
		st.Attempts += again.Attempts
		if err != nil || !again.Found() {
			st.Outcome = again.Outcome
			st.Node = nil
			st.Snapshot = again.Snapshot
			st.LastErr = again.LastErr
			st.Elapsed = e.clock.Now().Sub(start)
			return st, err
		}
		node = again.Node
	}
}
