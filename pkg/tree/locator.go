// Package tree defines the accessibility-tree model the locator engine consumes:
// locators, node attributes, actions, and the provider interfaces.
package tree

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/a11y-runner/pkg/core"
)

// Locator describes a target node. Empty fields are unset and match anything.
// Name is the primary key when set, otherwise Description.
type Locator struct {
	Role        string `yaml:"role,omitempty" json:"role,omitempty"`
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Validate rejects locators the engine cannot key on.
func (l Locator) Validate() error {
	if l.Name == "" && l.Description == "" {
		return core.ErrInvalidLocator.WithDetails(map[string]interface{}{"locator": l.String()})
	}
	return nil
}

// IsEmpty returns true if no field is set.
func (l Locator) IsEmpty() bool {
	return l.Role == "" && l.Name == "" && l.Description == ""
}

// Matches reports whether attrs satisfy every set field exactly.
func (l Locator) Matches(attrs Attributes) bool {
	if l.Role != "" && l.Role != attrs.Role {
		return false
	}
	if l.Name != "" && l.Name != attrs.Name {
		return false
	}
	if l.Description != "" && l.Description != attrs.Description {
		return false
	}
	return true
}

// Key returns the debounce identity of the locator.
func (l Locator) Key() ElementKey {
	name := l.Name
	if name == "" {
		name = l.Description
	}
	return ElementKey{Role: l.Role, Name: name}
}

// String returns a human-readable description for logs and step results.
func (l Locator) String() string {
	var parts []string
	if l.Role != "" {
		parts = append(parts, l.Role)
	}
	if l.Name != "" {
		parts = append(parts, fmt.Sprintf("%q", l.Name))
	}
	if l.Description != "" {
		parts = append(parts, fmt.Sprintf("[%s]", l.Description))
	}
	if len(parts) == 0 {
		return "<any>"
	}
	return strings.Join(parts, " ")
}

// ElementKey is the logical identity of a target across re-renders.
type ElementKey struct {
	Role string
	Name string
}

func (k ElementKey) String() string {
	if k.Role == "" {
		return k.Name
	}
	return k.Role + "/" + k.Name
}
