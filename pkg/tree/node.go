package tree

import (
	"context"
	"errors"

	"github.com/devicelab-dev/a11y-runner/pkg/core"
)

// Node wraps a Handle with the attributes seen at the last successful read.
// The cache may be stale; Refresh or IsValid consult the provider.
type Node struct {
	handle Handle
	attrs  Attributes
	index  int
}

// NewNode reads h once and returns a Node positioned at index in the
// provider's creation order.
func NewNode(ctx context.Context, h Handle, index int) (*Node, error) {
	attrs, err := h.Attributes(ctx)
	if err != nil {
		return nil, err
	}
	return &Node{handle: h, attrs: attrs, index: index}, nil
}

// Attributes returns the cached attributes.
func (n *Node) Attributes() Attributes { return n.attrs }

// Index returns the provider ordering index; higher means created later.
func (n *Node) Index() int { return n.index }

// Handle returns the underlying provider handle.
func (n *Node) Handle() Handle { return n.handle }

// Refresh re-reads the node and updates the cache on success.
func (n *Node) Refresh(ctx context.Context) (Attributes, error) {
	attrs, err := n.handle.Attributes(ctx)
	if err != nil {
		return Attributes{}, err
	}
	n.attrs = attrs
	return attrs, nil
}

// IsValid probes liveness without surfacing the error.
func (n *Node) IsValid(ctx context.Context) bool {
	_, err := n.Refresh(ctx)
	return err == nil
}

// Invoke performs action on the live node.
func (n *Node) Invoke(ctx context.Context, action Action) error {
	return n.handle.Invoke(ctx, action)
}

// Children returns the node's children in order.
func (n *Node) Children(ctx context.Context) ([]*Node, error) {
	handles, err := n.handle.Children(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Node, 0, len(handles))
	for i, h := range handles {
		c, err := NewNode(ctx, h, i)
		if err != nil {
			if IsStale(err) {
				continue
			}
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Info returns a detached reporting copy of the cached state.
func (n *Node) Info() *core.ElementInfo {
	if n == nil {
		return nil
	}
	return &core.ElementInfo{
		Role:        n.attrs.Role,
		Name:        n.attrs.Name,
		Description: n.attrs.Description,
		Text:        n.attrs.Text,
		Showing:     n.attrs.Showing,
		Enabled:     n.attrs.Enabled,
		Checked:     n.attrs.Checked,
		Index:       n.index,
	}
}

// Label returns the node's name, falling back to its text.
func (n *Node) Label() string {
	if n.attrs.Name != "" {
		return n.attrs.Name
	}
	return n.attrs.Text
}

// IsStale reports whether err means the provider invalidated a handle.
func IsStale(err error) bool {
	return errors.Is(err, core.ErrStaleHandle)
}
