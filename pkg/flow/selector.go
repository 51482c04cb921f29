package flow

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/a11y-runner/pkg/tree"
)

// Selector identifies a target node plus per-call engine options.
// A scalar selector ("tapOn: Save") sets Name.
type Selector struct {
	Role        string        `yaml:"role"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Timeout     time.Duration `yaml:"timeout"`    // 0 uses the flow or engine default
	MaxRetries  int           `yaml:"maxRetries"` // 0 means unbounded within Timeout
	Transient   bool          `yaml:"transient"`  // Use the transient debounce window
}

// selectorRaw accepts "text" as an alias for name.
type selectorRaw struct {
	Role        string        `yaml:"role"`
	Name        string        `yaml:"name"`
	Text        string        `yaml:"text"`
	Description string        `yaml:"description"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"maxRetries"`
	Transient   bool          `yaml:"transient"`
}

// UnmarshalYAML allows Selector to be unmarshaled from string or struct.
func (s *Selector) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.Name = node.Value
		return nil
	}

	var raw selectorRaw
	if err := node.Decode(&raw); err != nil {
		return err
	}

	s.Role = raw.Role
	s.Name = raw.Name
	s.Description = raw.Description
	s.Timeout = raw.Timeout
	s.MaxRetries = raw.MaxRetries
	s.Transient = raw.Transient

	if raw.Text != "" && s.Name == "" {
		s.Name = raw.Text
	}
	return nil
}

// Locator returns the tree locator part of the selector.
func (s *Selector) Locator() tree.Locator {
	return tree.Locator{Role: s.Role, Name: s.Name, Description: s.Description}
}

// IsEmpty returns true if no locator field is set.
func (s *Selector) IsEmpty() bool {
	return s.Locator().IsEmpty()
}

// Describe returns a human-readable description.
func (s *Selector) Describe() string {
	return s.Locator().String()
}
