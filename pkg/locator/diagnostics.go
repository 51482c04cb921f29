package locator

import (
	"context"

	"github.com/devicelab-dev/a11y-runner/pkg/tree"
)

// snapshot captures visible nodes by role for a NotFound report. Failures
// are logged and yield nil.
func (e *Engine) snapshot(ctx context.Context, loc tree.Locator) tree.Snapshot {
	snap, err := tree.TakeSnapshot(ctx, e.provider, e.opts.SnapshotMaxNodes)
	if err != nil {
		e.log.Debugw("diagnostic snapshot failed", "target", loc.String(), "error", err)
		return nil
	}
	e.log.Infow("visible nodes at failure", "target", loc.String(), "nodes", snap.Count(), "byRole", map[string][]string(snap))
	return snap
}

// Snapshot returns the current visible tree grouped by role.
func (e *Engine) Snapshot(ctx context.Context) (tree.Snapshot, error) {
	return tree.TakeSnapshot(ctx, e.provider, e.opts.SnapshotMaxNodes)
}
