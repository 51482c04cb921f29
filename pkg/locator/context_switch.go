package locator

import (
	"context"
	"time"

	"github.com/devicelab-dev/a11y-runner/pkg/clock"
)

// ContextSwitchHandler delays the first query after the active window changes
// and marks it so its NotFound does not count against the breaker.
type ContextSwitchHandler struct {
	settle       time.Duration
	clock        clock.Clock
	justSwitched bool
}

// NewContextSwitchHandler creates a handler applying settle once per switch.
func NewContextSwitchHandler(settle time.Duration, c clock.Clock) *ContextSwitchHandler {
	return &ContextSwitchHandler{settle: settle, clock: c}
}

// OnContextSwitch marks the next Find as the first after a switch.
func (h *ContextSwitchHandler) OnContextSwitch() {
	h.justSwitched = true
}

// Pending reports whether a switch has not been settled yet.
func (h *ContextSwitchHandler) Pending() bool {
	return h.justSwitched
}

// Settle applies the settle delay if a switch is pending and clears the flag.
// It reports whether this call was the first after a switch.
func (h *ContextSwitchHandler) Settle(ctx context.Context) (bool, error) {
	if !h.justSwitched {
		return false, nil
	}
	h.justSwitched = false
	if err := h.clock.Sleep(ctx, h.settle); err != nil {
		return true, err
	}
	return true, nil
}

// Clear drops a pending switch without sleeping.
func (h *ContextSwitchHandler) Clear() {
	h.justSwitched = false
}
