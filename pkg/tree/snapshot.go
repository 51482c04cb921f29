package tree

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
)

// DefaultMaxNodes bounds tree walks so a runaway tree cannot stall diagnostics.
const DefaultMaxNodes = 2000

// Snapshot groups the labels of showing nodes by role.
type Snapshot map[string][]string

// Roles returns the roles in the snapshot, sorted.
func (s Snapshot) Roles() []string {
	roles := make([]string, 0, len(s))
	for r := range s {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}

// Count returns the number of labelled nodes in the snapshot.
func (s Snapshot) Count() int {
	n := 0
	for _, labels := range s {
		n += len(labels)
	}
	return n
}

func (s Snapshot) String() string {
	var b strings.Builder
	for _, role := range s.Roles() {
		fmt.Fprintf(&b, "%s: %s\n", role, strings.Join(s[role], ", "))
	}
	return b.String()
}

// VisitFunc is called for each node in depth-first order. Returning false
// skips the node's subtree.
type VisitFunc func(depth int, attrs Attributes) bool

// Walk visits the subtree under root depth-first, at most maxNodes nodes.
// Stale nodes encountered mid-walk are skipped.
func Walk(ctx context.Context, root Handle, maxNodes int, fn VisitFunc) error {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	visited := 0
	var visit func(h Handle, depth int) error
	visit = func(h Handle, depth int) error {
		if visited >= maxNodes {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		attrs, err := h.Attributes(ctx)
		if err != nil {
			if IsStale(err) {
				return nil
			}
			return err
		}
		visited++
		if !fn(depth, attrs) {
			return nil
		}
		children, err := h.Children(ctx)
		if err != nil {
			if IsStale(err) {
				return nil
			}
			return err
		}
		for _, c := range children {
			if err := visit(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(root, 0)
}

// TakeSnapshot walks the provider tree and groups showing, labelled nodes by role.
func TakeSnapshot(ctx context.Context, p Provider, maxNodes int) (Snapshot, error) {
	root, err := p.Root(ctx)
	if err != nil {
		return nil, err
	}
	snap := Snapshot{}
	err = Walk(ctx, root, maxNodes, func(_ int, a Attributes) bool {
		if !a.Showing {
			return false
		}
		label := a.Name
		if label == "" {
			label = a.Description
		}
		if label != "" {
			snap[a.Role] = append(snap[a.Role], label)
		}
		return true
	})
	return snap, err
}

// Dump writes an indented outline of the tree, one node per line.
func Dump(ctx context.Context, p Provider, w io.Writer, maxNodes int) error {
	root, err := p.Root(ctx)
	if err != nil {
		return err
	}
	var werr error
	err = Walk(ctx, root, maxNodes, func(depth int, a Attributes) bool {
		if werr != nil {
			return false
		}
		flags := ""
		if !a.Showing {
			flags += " hidden"
		}
		if !a.Enabled {
			flags += " disabled"
		}
		line := a.Role
		if a.Name != "" {
			line += fmt.Sprintf(" %q", a.Name)
		}
		if a.Description != "" {
			line += fmt.Sprintf(" [%s]", a.Description)
		}
		_, werr = fmt.Fprintf(w, "%s%s%s\n", strings.Repeat("  ", depth), line, flags)
		return true
	})
	if err != nil {
		return err
	}
	return werr
}
