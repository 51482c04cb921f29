package flow

import (
	"fmt"
	"strings"
	"time"
)

// StepType represents the type of step.
type StepType string

// Step type constants.
const (
	// Interaction
	StepTapOn     StepType = "tapOn"
	StepFocusOn   StepType = "focusOn"
	StepInputText StepType = "inputText"
	StepClearText StepType = "clearText"
	StepSetToggle StepType = "setToggle"

	// Assertions
	StepAssertVisible    StepType = "assertVisible"
	StepAssertNotVisible StepType = "assertNotVisible"
	StepWaitForToast     StepType = "waitForToast"
	StepAssertText       StepType = "assertText"
	StepWaitForToggle    StepType = "waitForToggle"

	// Session
	StepSwitchContext StepType = "switchContext"
	StepResetState    StepType = "resetState"
)

// Step is the interface for all flow steps.
type Step interface {
	Type() StepType
	IsOptional() bool
	Label() string
	Describe() string
}

// Targeted is implemented by steps that locate a node.
type Targeted interface {
	Step
	Target() *Selector
}

// BaseStep contains common fields for all steps.
type BaseStep struct {
	StepType  StepType `yaml:"-"`
	Optional  bool     `yaml:"optional"`
	StepLabel string   `yaml:"label"`
}

// Type returns the step type.
func (b *BaseStep) Type() StepType { return b.StepType }

// IsOptional returns whether the step is optional.
func (b *BaseStep) IsOptional() bool { return b.Optional }

// Label returns the step label.
func (b *BaseStep) Label() string { return b.StepLabel }

// Describe returns a human-readable description.
func (b *BaseStep) Describe() string { return string(b.StepType) }

// TapOnStep clicks a node.
type TapOnStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
}

// Target returns the node selector.
func (s *TapOnStep) Target() *Selector { return &s.Selector }

// Describe returns a human-readable description.
func (s *TapOnStep) Describe() string { return "tapOn " + s.Selector.Describe() }

// FocusOnStep moves keyboard focus to a node.
type FocusOnStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
}

// Target returns the node selector.
func (s *FocusOnStep) Target() *Selector { return &s.Selector }

// Describe returns a human-readable description.
func (s *FocusOnStep) Describe() string { return "focusOn " + s.Selector.Describe() }

// InputTextStep replaces the text of a node.
type InputTextStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
	Text     string   `yaml:"text"`
}

// Target returns the node selector.
func (s *InputTextStep) Target() *Selector { return &s.Selector }

// Describe returns a human-readable description.
func (s *InputTextStep) Describe() string {
	return fmt.Sprintf("inputText %q into %s", s.Text, s.Selector.Describe())
}

// ClearTextStep empties the text of a node.
type ClearTextStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
}

// Target returns the node selector.
func (s *ClearTextStep) Target() *Selector { return &s.Selector }

// Describe returns a human-readable description.
func (s *ClearTextStep) Describe() string { return "clearText " + s.Selector.Describe() }

// AssertVisibleStep passes once the node is found ready and stable.
type AssertVisibleStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
}

// Target returns the node selector.
func (s *AssertVisibleStep) Target() *Selector { return &s.Selector }

// Describe returns a human-readable description.
func (s *AssertVisibleStep) Describe() string { return "assertVisible " + s.Selector.Describe() }

// AssertNotVisibleStep passes once no ready node matches.
type AssertNotVisibleStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
}

// Target returns the node selector.
func (s *AssertNotVisibleStep) Target() *Selector { return &s.Selector }

// Describe returns a human-readable description.
func (s *AssertNotVisibleStep) Describe() string { return "assertNotVisible " + s.Selector.Describe() }

// WaitForToastStep captures a short-lived notification. Selector.Timeout
// bounds the wait; Payload names the child carrying the text.
type WaitForToastStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector      `yaml:",inline"`
	Payload  *Selector     `yaml:"payload"`
	Contains string        `yaml:"contains"`
	Poll     time.Duration `yaml:"poll"`
}

// Target returns the node selector.
func (s *WaitForToastStep) Target() *Selector { return &s.Selector }

// Describe returns a human-readable description.
func (s *WaitForToastStep) Describe() string {
	if s.Contains != "" {
		return fmt.Sprintf("waitForToast %s containing %q", s.Selector.Describe(), s.Contains)
	}
	return "waitForToast " + s.Selector.Describe()
}

// AssertTextStep passes once the node's text (its name when it has no
// text) equals Equals or contains Contains. Both may be set.
type AssertTextStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
	Equals   *string  `yaml:"equals"`
	Contains string   `yaml:"contains"`
}

// Target returns the node selector.
func (s *AssertTextStep) Target() *Selector { return &s.Selector }

// Matches reports whether text satisfies the step.
func (s *AssertTextStep) Matches(text string) bool {
	if s.Equals != nil && text != *s.Equals {
		return false
	}
	return strings.Contains(text, s.Contains)
}

// Expectation describes what the step waits for.
func (s *AssertTextStep) Expectation() string {
	switch {
	case s.Equals != nil && s.Contains != "":
		return fmt.Sprintf("%q containing %q", *s.Equals, s.Contains)
	case s.Equals != nil:
		return fmt.Sprintf("%q", *s.Equals)
	default:
		return fmt.Sprintf("containing %q", s.Contains)
	}
}

// Describe returns a human-readable description.
func (s *AssertTextStep) Describe() string {
	return fmt.Sprintf("assertText %s %s", s.Selector.Describe(), s.Expectation())
}

// WaitForToggleStep waits for a toggle to reach a checked state. Checked
// defaults to true.
type WaitForToggleStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
	Checked  *bool    `yaml:"checked"`
}

// Target returns the node selector.
func (s *WaitForToggleStep) Target() *Selector { return &s.Selector }

// Want returns the state waited for.
func (s *WaitForToggleStep) Want() bool { return s.Checked == nil || *s.Checked }

// Describe returns a human-readable description.
func (s *WaitForToggleStep) Describe() string {
	state := "checked"
	if !s.Want() {
		state = "unchecked"
	}
	return fmt.Sprintf("waitForToggle %s %s", s.Selector.Describe(), state)
}

// SetToggleStep clicks a toggle that is not in the wanted state, then waits
// for the state.
type SetToggleStep struct {
	WaitForToggleStep `yaml:",inline"`
}

// Describe returns a human-readable description.
func (s *SetToggleStep) Describe() string {
	state := "checked"
	if !s.Want() {
		state = "unchecked"
	}
	return fmt.Sprintf("setToggle %s %s", s.Selector.Describe(), state)
}

// SwitchContextStep brings a window to the front.
type SwitchContextStep struct {
	BaseStep `yaml:",inline"`
	Window   string `yaml:"window"`
}

// Describe returns a human-readable description.
func (s *SwitchContextStep) Describe() string { return fmt.Sprintf("switchContext %q", s.Window) }

// ResetStateStep clears engine state mid-flow.
type ResetStateStep struct {
	BaseStep `yaml:",inline"`
}
