package core

import "fmt"

// ElementInfo is a reporting snapshot of an accessibility node.
// It is detached from the provider: reading it never touches the live tree.
type ElementInfo struct {
	Role        string `json:"role"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Text        string `json:"text,omitempty"`
	Showing     bool   `json:"showing"`
	Enabled     bool   `json:"enabled"`
	Checked     bool   `json:"checked,omitempty"`
	Index       int    `json:"index"` // Position in the provider's creation order
}

// Label returns the most specific human-readable identifier of the element.
func (e *ElementInfo) Label() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Name != "":
		return fmt.Sprintf("%s %q", e.Role, e.Name)
	case e.Description != "":
		return fmt.Sprintf("%s [%s]", e.Role, e.Description)
	default:
		return e.Role
	}
}

// Ready reports whether the element can be acted on.
func (e *ElementInfo) Ready() bool {
	return e != nil && e.Showing && e.Enabled
}
