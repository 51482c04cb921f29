package bridge

import (
	"encoding/json"
	"net/url"

	"github.com/devicelab-dev/a11y-runner/pkg/tree"
)

// ErrStaleElement is the error string the bridge uses for invalidated nodes.
const ErrStaleElement = "stale element reference"

// Response is the envelope of every bridge reply.
type Response struct {
	Value json.RawMessage `json:"value"`
}

// ErrorValue is the "value" of an error reply.
type ErrorValue struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StatusValue is the reply of GET /status.
type StatusValue struct {
	Ready       bool   `json:"ready"`
	Message     string `json:"message,omitempty"`
	Application string `json:"application,omitempty"`
}

// NodeValue is one node as serialized by the bridge.
type NodeValue struct {
	ID          string `json:"id"`
	Role        string `json:"role"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Text        string `json:"text,omitempty"`
	Showing     bool   `json:"showing"`
	Enabled     bool   `json:"enabled"`
	Checked     bool   `json:"checked,omitempty"`
}

// Attributes converts the wire node.
func (n NodeValue) Attributes() tree.Attributes {
	return tree.Attributes{
		Role:        n.Role,
		Name:        n.Name,
		Description: n.Description,
		Text:        n.Text,
		Showing:     n.Showing,
		Enabled:     n.Enabled,
		Checked:     n.Checked,
	}
}

// QueryRequest is the body of POST /tree/query.
type QueryRequest struct {
	Role        string `json:"role,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// ActionRequest is the body of POST /tree/nodes/{id}/actions.
type ActionRequest struct {
	Action string `json:"action"` // click, setText, focus
	Text   string `json:"text,omitempty"`
}

// ActivateRequest is the body of POST /windows/activate.
type ActivateRequest struct {
	Window string `json:"window"`
}

func nodePath(id, suffix string) string {
	return "/tree/nodes/" + url.PathEscape(id) + suffix
}
