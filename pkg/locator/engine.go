package locator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/devicelab-dev/a11y-runner/pkg/clock"
	"github.com/devicelab-dev/a11y-runner/pkg/core"
	"github.com/devicelab-dev/a11y-runner/pkg/logger"
	"github.com/devicelab-dev/a11y-runner/pkg/tree"
)

// Engine resolves locators against one provider. It is not safe for
// concurrent use; run one Engine per provider instance.
type Engine struct {
	provider  tree.Provider
	opts      Options
	clock     clock.Clock
	log       *zap.SugaredLogger
	breaker   *CircuitBreaker
	debouncer *Debouncer
	switcher  *ContextSwitchHandler
	stability StabilityDetector
}

// EngineOption configures an Engine at construction.
type EngineOption func(*Engine)

// WithClock replaces the wall clock, typically with clock.Manual in tests.
func WithClock(c clock.Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithLogger replaces the component logger.
func WithLogger(l *zap.SugaredLogger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// New creates an engine over p.
func New(p tree.Provider, opts Options, eopts ...EngineOption) *Engine {
	e := &Engine{
		provider: p,
		opts:     opts,
		clock:    clock.Real{},
	}
	for _, o := range eopts {
		o(e)
	}
	if e.log == nil {
		e.log = logger.Named("locator")
	}
	e.breaker = NewCircuitBreaker(opts.BreakerThreshold, e.log)
	e.debouncer = NewDebouncer(e.log)
	e.switcher = NewContextSwitchHandler(opts.SettleDelay, e.clock)
	e.stability = StabilityDetector{
		RequiredMatches: opts.StabilityRequiredMatches,
		PollInterval:    opts.StabilityPollInterval,
		Timeout:         opts.StabilityTimeout,
		Clock:           e.clock,
	}
	return e
}

// Options returns the engine configuration.
func (e *Engine) Options() Options { return e.opts }

// Provider returns the provider the engine queries.
func (e *Engine) Provider() tree.Provider { return e.provider }

// Reset clears breaker, debounce and context-switch state. Call it between
// logically independent tests that reuse the engine.
func (e *Engine) Reset() {
	e.breaker.Reset()
	e.debouncer.Reset()
	e.switcher.Clear()
}

// State returns a copy of the mutable engine state.
func (e *Engine) State() EngineState {
	return EngineState{
		ConsecutiveFastFailures: e.breaker.Failures(),
		Breaker:                 e.breaker.State(),
		LastActions:             e.debouncer.Snapshot(),
		JustSwitchedContext:     e.switcher.Pending(),
	}
}

// OnContextSwitch tells the engine the active window changed.
func (e *Engine) OnContextSwitch() {
	e.switcher.OnContextSwitch()
}

// Find resolves loc to a ready, stable node. NotFound is an outcome, not an
// error. Errors are returned for invalid locators, context cancellation and a
// broken provider (matching core.ErrProviderBroken).
func (e *Engine) Find(ctx context.Context, loc tree.Locator, timeout time.Duration, opts ...CallOption) (SearchResult, error) {
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
	firstAfterSwitch, err := e.switcher.Settle(ctx)
	if err != nil {
		return SearchResult{Outcome: OutcomeNotFound}, err
	}

	res, err := e.search(ctx, loc, timeout, cfg.maxRetries)
	if err != nil {
		return res, err
	}
	if res.Found() {
		e.breaker.RecordSuccess()
		return res, nil
	}

	res.FastFailure = res.Elapsed < e.opts.FastFailureThreshold
	switch {
	case res.FastFailure && firstAfterSwitch:
		e.log.Debugw("fast failure right after context switch, not counted", "target", loc.String())
	case res.FastFailure:
		e.breaker.RecordFastFailure()
	default:
		e.breaker.RecordSlowFailure()
	}
	e.log.Warnw("element not found",
		"target", loc.String(),
		"attempts", res.Attempts,
		"elapsed", res.Elapsed,
		"fast", res.FastFailure,
		"failures", e.breaker.Failures(),
	)
	if e.opts.Diagnostics {
		res.Snapshot = e.snapshot(ctx, loc)
	}
	return res, nil
}

// search runs the polling loop without breaker bookkeeping.
func (e *Engine) search(ctx context.Context, loc tree.Locator, timeout time.Duration, maxRetries int) (SearchResult, error) {
	it := e.opts.RetryPolicy(timeout, maxRetries).Attempts(e.clock)
	var lastErr error

	for it.Next(ctx) {
		handles, err := e.provider.Query(ctx, loc)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			lastErr = err
			e.log.Debugw("query failed, retrying", "target", loc.String(), "attempt", it.Count(), "error", err)
			continue
		}

		node, err := e.pickReady(ctx, handles)
		if err != nil {
			lastErr = err
			continue
		}
		if node == nil {
			e.log.Debugw("no ready candidate", "target", loc.String(), "attempt", it.Count(), "candidates", len(handles))
			continue
		}

		detector := e.stability
		if rem := it.Remaining(); detector.Timeout > rem {
			detector.Timeout = rem
		}
		if !detector.IsStable(ctx, node) || !node.Attributes().Ready() {
			e.log.Debugw("candidate not stable", "target", loc.String(), "attempt", it.Count())
			it.Retry(e.opts.StabilityPollInterval)
			continue
		}

		return SearchResult{
			Outcome:  OutcomeFound,
			Node:     node,
			Attempts: it.Count(),
			Elapsed:  it.Elapsed(),
			LastErr:  lastErr,
		}, nil
	}

	res := SearchResult{
		Outcome:  OutcomeNotFound,
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
	return res, nil
}

// pickReady returns the most recently created showing and enabled candidate.
// Handles that went stale since the query are skipped.
func (e *Engine) pickReady(ctx context.Context, handles []tree.Handle) (*tree.Node, error) {
	var lastErr error
	for i := len(handles) - 1; i >= 0; i-- {
		node, err := tree.NewNode(ctx, handles[i], i)
		if err != nil {
			if !tree.IsStale(err) {
				lastErr = err
			}
			continue
		}
		if node.Attributes().Ready() {
			return node, nil
		}
	}
	return nil, lastErr
}

// FindAndAct resolves loc and performs action once. A repeat on the same
// target inside the debounce window is suppressed without invoking. A stale
// handle is re-resolved and re-invoked while time remains.
func (e *Engine) FindAndAct(ctx context.Context, loc tree.Locator, action tree.Action, timeout time.Duration, opts ...CallOption) (ActResult, error) {
	requested := e.clock.Now()
	if timeout <= 0 {
		timeout = e.opts.DefaultTimeout
	}
	deadline := requested.Add(timeout)
	cfg := newCallConfig(opts)

	res, err := e.Find(ctx, loc, timeout, opts...)
	act := ActResult{SearchResult: res}
	if err != nil || !res.Found() {
		return act, err
	}

	key := loc.Key()
	window := e.opts.DebounceWindow
	if cfg.transient {
		window = e.opts.TransientDebounceWindow
	}
	if e.debouncer.ShouldSuppress(key, requested, window) {
		act.Suppressed = true
		return act, nil
	}

	node := res.Node
	for {
		err := node.Invoke(ctx, action)
		if err == nil {
			e.debouncer.Record(key, e.clock.Now())
			act.Invoked = true
			act.Node = node
			e.log.Debugw("action performed", "target", loc.String(), "action", action.String())
			return act, nil
		}
		if !tree.IsStale(err) {
			e.debouncer.Forget(key)
			return act, core.ErrActionFailed.WithCause(err).WithMessage(
				fmt.Sprintf("%s on %s failed", action, loc))
		}

		remaining := deadline.Sub(e.clock.Now())
		if remaining <= 0 {
			e.debouncer.Forget(key)
			return act, core.ErrStaleHandle.WithCause(err).WithMessage(
				fmt.Sprintf("%s went stale and the timeout elapsed", loc))
		}
		e.log.Debugw("handle went stale, re-resolving", "target", loc.String(), "remaining", remaining)
		act.Refinds++
		again, err := e.Find(ctx, loc, remaining, opts...)
		act.Attempts += again.Attempts
		act.Elapsed = e.clock.Now().Sub(requested)
		if err != nil || !again.Found() {
			e.debouncer.Forget(key)
			act.Outcome = again.Outcome
			act.Node = nil
			act.Snapshot = again.Snapshot
			return act, err
		}
		node = again.Node
	}
}

// FocusContext activates target through the provider, waits for the window
// to populate and marks the next Find as post-switch.
func (e *Engine) FocusContext(ctx context.Context, target string) error {
	activator, ok := e.provider.(tree.Activator)
	if !ok {
		return core.ErrActionUnsupported.WithMessage("provider cannot activate windows")
	}
	if err := activator.Activate(ctx, target); err != nil {
		return core.ErrActionFailed.WithCause(err).WithMessage(fmt.Sprintf("activate %q failed", target))
	}
	defer e.OnContextSwitch()

	if err := e.clock.Sleep(ctx, e.opts.ActivationDelay); err != nil {
		return err
	}
	if err := e.waitReady(ctx); err != nil {
		return core.ErrTimeout.WithCause(err).WithMessage(
			fmt.Sprintf("window %q not ready after %v", target, e.opts.ReadyTimeout))
	}
	e.log.Infow("context switched", "target", target)
	return nil
}

// waitReady polls until the provider root has children.
func (e *Engine) waitReady(ctx context.Context) error {
	poll := e.opts.StabilityPollInterval
	if poll <= 0 {
		poll = e.opts.TransientPollInterval
	}
	deadline := e.clock.Now().Add(e.opts.ReadyTimeout)
	var lastErr error = errors.New("root has no children")
	for {
		if n, err := e.rootChildren(ctx); err == nil && n > 0 {
			return nil
		} else if err != nil {
			lastErr = err
		}
		remaining := deadline.Sub(e.clock.Now())
		if remaining <= 0 {
			return lastErr
		}
		if poll > remaining {
			poll = remaining
		}
		if err := e.clock.Sleep(ctx, poll); err != nil {
			return err
		}
	}
}

func (e *Engine) rootChildren(ctx context.Context) (int, error) {
	root, err := e.provider.Root(ctx)
	if err != nil {
		return 0, err
	}
	children, err := root.Children(ctx)
	if err != nil {
		return 0, err
	}
	return len(children), nil
}

// probe is the breaker's recovery check: a cheap read of the root.
func (e *Engine) probe(ctx context.Context) error {
	if _, err := e.rootChildren(ctx); err != nil {
		return err
	}
	return e.clock.Sleep(ctx, e.opts.RecoverySettle)
}
