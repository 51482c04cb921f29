package tree

import "context"

// Attributes is the observable state of a node at one read.
type Attributes struct {
	Role        string `json:"role"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Text        string `json:"text,omitempty"`
	Showing     bool   `json:"showing"`
	Enabled     bool   `json:"enabled"`
	Checked     bool   `json:"checked,omitempty"`
}

// Ready reports whether a node in this state can be acted on.
func (a Attributes) Ready() bool {
	return a.Showing && a.Enabled
}

// Content returns the node's text, falling back to its name.
func (a Attributes) Content() string {
	if a.Text != "" {
		return a.Text
	}
	return a.Name
}

// Handle is a provider-owned reference to a live node.
// Every method may fail with an error matching core.ErrStaleHandle once the
// provider has invalidated the node.
type Handle interface {
	Attributes(ctx context.Context) (Attributes, error)
	Invoke(ctx context.Context, action Action) error
	Children(ctx context.Context) ([]Handle, error)
}

// Provider exposes the accessibility tree of the application under test.
type Provider interface {
	// Query returns nodes matching loc in provider creation order.
	Query(ctx context.Context, loc Locator) ([]Handle, error)
	// Root returns the application root; used for health probes and diagnostics.
	Root(ctx context.Context) (Handle, error)
}

// Activator is implemented by providers that can bring a window to the front.
type Activator interface {
	Activate(ctx context.Context, target string) error
}
