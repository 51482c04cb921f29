package locator

import (
	"context"
	"strings"
	"time"

	"github.com/devicelab-dev/a11y-runner/pkg/tree"
)

// payloadSearchDepth bounds the descendant search for the payload child.
const payloadSearchDepth = 4

// WaitForAppearance polls for a short-lived node at a fixed interval and reads
// its payload in the same pass that detects it. Without WithPayloadChild the
// node's own name (or text) is the payload. When the named child is missing,
// the whole tree is searched with the payload locator and the most recently
// added match wins; the returned Node is then that payload node.
func (e *Engine) WaitForAppearance(ctx context.Context, loc tree.Locator, timeout, pollInterval time.Duration, opts ...CallOption) (Capture, error) {
	if err := loc.Validate(); err != nil {
		return Capture{Outcome: OutcomeNotFound}, err
	}
	if timeout <= 0 {
		timeout = e.opts.TransientTimeout
	}
	if pollInterval <= 0 {
		pollInterval = e.opts.TransientPollInterval
	}
	cfg := newCallConfig(opts)

	if err := e.breaker.Allow(ctx, e.probe); err != nil {
		return Capture{Outcome: OutcomeProviderBroken}, err
	}

	// Fixed interval: growth of 1 keeps every wait at pollInterval.
	it := RetryPolicy{
		Timeout:      timeout,
		BaseInterval: pollInterval,
		GrowthFactor: 1,
		MaxInterval:  pollInterval,
		MaxRetries:   cfg.maxRetries,
	}.Attempts(e.clock)

	for it.Next(ctx) {
		handles, err := e.provider.Query(ctx, loc)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			e.log.Debugw("transient query failed", "target", loc.String(), "error", err)
			continue
		}
		if c, ok := e.captureFrom(ctx, handles, cfg); ok {
			c.Attempts = it.Count()
			c.Elapsed = it.Elapsed()
			e.breaker.RecordSuccess()
			e.log.Infow("transient captured", "target", loc.String(), "payload", c.Payload, "fallback", c.FromFallback)
			return c, nil
		}
	}

	c := Capture{Outcome: OutcomeNotFound, Attempts: it.Count(), Elapsed: it.Elapsed()}
	if err := it.Err(); err != nil {
		return c, err
	}
	if err := ctx.Err(); err != nil {
		return c, err
	}
	e.log.Warnw("transient not captured", "target", loc.String(), "attempts", c.Attempts, "elapsed", c.Elapsed)
	return c, nil
}

// captureFrom checks candidates newest first and returns the first showing
// one with an acceptable payload.
func (e *Engine) captureFrom(ctx context.Context, handles []tree.Handle, cfg callConfig) (Capture, bool) {
	for i := len(handles) - 1; i >= 0; i-- {
		node, err := tree.NewNode(ctx, handles[i], i)
		if err != nil || !node.Attributes().Showing {
			continue
		}

		if cfg.payloadChild == nil {
			payload := node.Label()
			if strings.Contains(payload, cfg.payloadFilter) {
				return Capture{Outcome: OutcomeFound, Node: node, Payload: payload}, true
			}
			continue
		}

		if payload, ok := e.childPayload(ctx, node, *cfg.payloadChild); ok {
			if strings.Contains(payload, cfg.payloadFilter) {
				return Capture{Outcome: OutcomeFound, Node: node, Payload: payload}, true
			}
			continue
		}

		if pnode, ok := e.fallbackPayload(ctx, *cfg.payloadChild, cfg.payloadFilter); ok {
			return Capture{Outcome: OutcomeFound, Node: pnode, Payload: pnode.Label(), FromFallback: true}, true
		}
	}
	return Capture{}, false
}

// childPayload searches node's descendants breadth first for the payload child.
func (e *Engine) childPayload(ctx context.Context, node *tree.Node, loc tree.Locator) (string, bool) {
	level := []*tree.Node{node}
	for depth := 0; depth < payloadSearchDepth && len(level) > 0; depth++ {
		var next []*tree.Node
		for _, n := range level {
			children, err := n.Children(ctx)
			if err != nil {
				continue
			}
			for _, c := range children {
				if loc.Matches(c.Attributes()) && c.Label() != "" {
					return c.Label(), true
				}
			}
			next = append(next, children...)
		}
		level = next
	}
	return "", false
}

// fallbackPayload takes the most recently added payload-shaped node anywhere.
func (e *Engine) fallbackPayload(ctx context.Context, loc tree.Locator, filter string) (*tree.Node, bool) {
	handles, err := e.provider.Query(ctx, loc)
	if err != nil {
		return nil, false
	}
	for i := len(handles) - 1; i >= 0; i-- {
		n, err := tree.NewNode(ctx, handles[i], i)
		if err != nil || n.Label() == "" {
			continue
		}
		if strings.Contains(n.Label(), filter) {
			return n, true
		}
	}
	return nil, false
}
