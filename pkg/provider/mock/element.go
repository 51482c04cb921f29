package mock

import (
	"time"

	"github.com/devicelab-dev/a11y-runner/pkg/tree"
)

// Element scripts one node. Offsets are relative to the moment the element
// was added: provider creation for initial elements, the click for spawns.
type Element struct {
	ID          string `yaml:"id"`
	Parent      string `yaml:"parent,omitempty"` // Parent ID; empty means top level
	Role        string `yaml:"role"`
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
	Text        string `yaml:"text,omitempty"`
	Hidden      bool   `yaml:"hidden,omitempty"`
	Disabled    bool   `yaml:"disabled,omitempty"`
	Checked     bool   `yaml:"checked,omitempty"`
	Toggle      bool   `yaml:"toggle,omitempty"` // A click flips Checked

	AppearAt time.Duration   `yaml:"appearAt,omitempty"` // Absent from the tree before this
	ShowAt   time.Duration   `yaml:"showAt,omitempty"`   // Not showing before this
	EnableAt time.Duration   `yaml:"enableAt,omitempty"` // Not enabled before this
	HideAt   time.Duration   `yaml:"hideAt,omitempty"`   // Not showing from this on (0 = never)
	RemoveAt time.Duration   `yaml:"removeAt,omitempty"` // Handles go stale from this on (0 = never)
	Flicker  []time.Duration `yaml:"flicker,omitempty"`  // Showing toggles at each offset

	Spawns   []Element `yaml:"spawns,omitempty"`   // Added on every click
	Children []Element `yaml:"children,omitempty"` // Nested elements; Parent is implied
}

// instance is one materialisation of an Element. Re-render replaces it.
type instance struct {
	spec    Element
	base    time.Time
	serial  int
	removed bool
	patches []func(*tree.Attributes)
}

func (in *instance) appearsAt() time.Time {
	return in.base.Add(in.spec.AppearAt)
}

func (in *instance) alive(now time.Time) bool {
	if in.removed {
		return false
	}
	if now.Before(in.appearsAt()) {
		return false
	}
	if in.spec.RemoveAt > 0 && !now.Before(in.base.Add(in.spec.RemoveAt)) {
		return false
	}
	return true
}

func (in *instance) attributes(now time.Time) tree.Attributes {
	t := now.Sub(in.base)
	s := in.spec

	showing := !s.Hidden && t >= s.ShowAt && (s.HideAt == 0 || t < s.HideAt)
	for _, f := range s.Flicker {
		if t >= f {
			showing = !showing
		}
	}

	attrs := tree.Attributes{
		Role:        s.Role,
		Name:        s.Name,
		Description: s.Description,
		Text:        s.Text,
		Showing:     showing,
		Enabled:     !s.Disabled && t >= s.EnableAt,
		Checked:     s.Checked,
	}
	for _, p := range in.patches {
		p(&attrs)
	}
	return attrs
}

// clone returns a spec frozen at the instance's current state, for re-render.
func (in *instance) clone(now time.Time) Element {
	attrs := in.attributes(now)
	t := now.Sub(in.base)
	c := in.spec
	c.Name, c.Description, c.Text = attrs.Name, attrs.Description, attrs.Text
	c.Hidden = !attrs.Showing
	c.Disabled = !attrs.Enabled
	c.Checked = attrs.Checked
	c.AppearAt, c.ShowAt, c.EnableAt, c.Flicker = 0, 0, 0, nil
	c.HideAt = remaining(c.HideAt, t)
	c.RemoveAt = remaining(c.RemoveAt, t)
	c.Children = nil
	return c
}

func remaining(offset, elapsed time.Duration) time.Duration {
	if offset == 0 {
		return 0
	}
	if r := offset - elapsed; r > 0 {
		return r
	}
	return time.Nanosecond
}
