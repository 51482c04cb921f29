package locator

import (
	"time"

	"go.uber.org/zap"

	"github.com/devicelab-dev/a11y-runner/pkg/tree"
)

// Debouncer suppresses repeated actions on the same logical target.
type Debouncer struct {
	last map[tree.ElementKey]time.Time
	log  *zap.SugaredLogger
}

// NewDebouncer creates an empty debouncer.
func NewDebouncer(log *zap.SugaredLogger) *Debouncer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Debouncer{last: make(map[tree.ElementKey]time.Time), log: log}
}

// ShouldSuppress returns true if key was acted on less than window before
// now. Otherwise it records now for key and returns false.
func (d *Debouncer) ShouldSuppress(key tree.ElementKey, now time.Time, window time.Duration) bool {
	if ts, ok := d.last[key]; ok {
		if since := now.Sub(ts); since < window {
			d.log.Infow("action suppressed", "target", key.String(), "since", since, "window", window)
			return true
		}
	}
	d.last[key] = now
	return false
}

// Record sets the last action time for key.
func (d *Debouncer) Record(key tree.ElementKey, at time.Time) {
	d.last[key] = at
}

// Forget drops key so a failed action does not block the next attempt.
func (d *Debouncer) Forget(key tree.ElementKey) {
	delete(d.last, key)
}

// Reset drops every recorded timestamp.
func (d *Debouncer) Reset() {
	d.last = make(map[tree.ElementKey]time.Time)
}

// Snapshot returns a copy of the recorded timestamps.
func (d *Debouncer) Snapshot() map[tree.ElementKey]time.Time {
	out := make(map[tree.ElementKey]time.Time, len(d.last))
	for k, v := range d.last {
		out[k] = v
	}
	return out
}
