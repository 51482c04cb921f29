package bridge

import (
	"context"

	"github.com/devicelab-dev/a11y-runner/pkg/core"
	"github.com/devicelab-dev/a11y-runner/pkg/tree"
)

// Provider implements tree.Provider and tree.Activator on top of a Client.
type Provider struct {
	client *Client
}

// New wraps a client.
func New(client *Client) *Provider {
	return &Provider{client: client}
}

// Ready reports whether the bridge has an application attached.
func (p *Provider) Ready(ctx context.Context) (bool, error) {
	st, err := p.client.Status(ctx)
	if err != nil {
		return false, err
	}
	return st.Ready, nil
}

// Query returns handles for nodes matching loc.
func (p *Provider) Query(ctx context.Context, loc tree.Locator) ([]tree.Handle, error) {
	nodes, err := p.client.Query(ctx, QueryRequest{
		Role:        loc.Role,
		Name:        loc.Name,
		Description: loc.Description,
	})
	if err != nil {
		return nil, err
	}
	return p.handles(nodes), nil
}

// Root returns the application root.
func (p *Provider) Root(ctx context.Context) (tree.Handle, error) {
	n, err := p.client.Root(ctx)
	if err != nil {
		return nil, err
	}
	return &handle{p: p, id: n.ID}, nil
}

// Activate brings a window to the front.
func (p *Provider) Activate(ctx context.Context, target string) error {
	return p.client.Activate(ctx, target)
}

func (p *Provider) handles(nodes []NodeValue) []tree.Handle {
	out := make([]tree.Handle, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &handle{p: p, id: n.ID})
	}
	return out
}

// handle re-reads the node on every call; the bridge answers 404 once the
// id is gone.
type handle struct {
	p  *Provider
	id string
}

func (h *handle) Attributes(ctx context.Context) (tree.Attributes, error) {
	n, err := h.p.client.Node(ctx, h.id)
	if err != nil {
		return tree.Attributes{}, err
	}
	return n.Attributes(), nil
}

func (h *handle) Children(ctx context.Context) ([]tree.Handle, error) {
	nodes, err := h.p.client.Children(ctx, h.id)
	if err != nil {
		return nil, err
	}
	return h.p.handles(nodes), nil
}

func (h *handle) Invoke(ctx context.Context, action tree.Action) error {
	req := ActionRequest{Action: action.Kind.String()}
	switch action.Kind {
	case tree.ActionClick, tree.ActionFocus:
	case tree.ActionSetText:
		req.Text = action.Text
	default:
		return core.ErrActionUnsupported.WithMessage("unsupported action " + action.String())
	}
	return h.p.client.Act(ctx, h.id, req)
}
