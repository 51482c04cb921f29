package locator

import (
	"context"
	"time"

	"github.com/devicelab-dev/a11y-runner/pkg/clock"
	"github.com/devicelab-dev/a11y-runner/pkg/tree"
)

// Clock returns the clock the engine sleeps on.
func (e *Engine) Clock() clock.Clock { return e.clock }

// WaitForAbsence polls until no showing node matches loc. The target being
// gone is reported as OutcomeNotFound; a node still showing when time runs
// out is returned with OutcomeFound. Absence polls never count as fast
// failures.
func (e *Engine) WaitForAbsence(ctx context.Context, loc tree.Locator, timeout time.Duration, opts ...CallOption) (SearchResult, error) {
	if err := loc.Validate(); err != nil {
		return SearchResult{Outcome: OutcomeNotFound}, err
	}
	if timeout <= 0 {
		timeout = e.opts.DefaultTimeout
	}
	cfg := newCallConfig(opts)

	if err := e.breaker.Allow(ctx, e.probe); err != nil {
		return SearchResult{Outcome: OutcomeProviderBroken}, err
	}
	if _, err := e.switcher.Settle(ctx); err != nil {
		return SearchResult{Outcome: OutcomeFound}, err
	}

	it := e.opts.RetryPolicy(timeout, cfg.maxRetries).Attempts(e.clock)
	var (
		lastErr error
		seen    *tree.Node
	)
	for it.Next(ctx) {
		handles, err := e.provider.Query(ctx, loc)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			lastErr = err
			continue
		}
		node := firstShowing(ctx, handles)
		if node == nil {
			e.breaker.RecordSuccess()
			return SearchResult{
				Outcome:  OutcomeNotFound,
				Attempts: it.Count(),
				Elapsed:  it.Elapsed(),
				LastErr:  lastErr,
			}, nil
		}
		seen = node
		e.log.Debugw("target still showing", "target", loc.String(), "attempt", it.Count())
	}

	res := SearchResult{
		Outcome:  OutcomeFound,
		Node:     seen,
		Attempts: it.Count(),
		Elapsed:  it.Elapsed(),
		LastErr:  lastErr,
	}
	if err := it.Err(); err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if seen == nil && lastErr != nil {
		// Every query failed; absence cannot be asserted.
		return res, lastErr
	}
	return res, nil
}

// firstShowing returns any showing candidate. Stale handles count as gone.
func firstShowing(ctx context.Context, handles []tree.Handle) *tree.Node {
	for i := len(handles) - 1; i >= 0; i-- {
		node, err := tree.NewNode(ctx, handles[i], i)
		if err != nil {
			continue
		}
		if node.Attributes().Showing {
			return node
		}
	}
	return nil
}
