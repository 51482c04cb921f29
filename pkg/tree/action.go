package tree

import "fmt"

// ActionKind enumerates what Invoke can do to a node.
type ActionKind int

const (
	ActionClick ActionKind = iota
	ActionSetText
	ActionFocus
)

func (k ActionKind) String() string {
	switch k {
	case ActionClick:
		return "click"
	case ActionSetText:
		return "setText"
	case ActionFocus:
		return "focus"
	default:
		return fmt.Sprintf("action(%d)", int(k))
	}
}

// Action is a closed variant; Text is only meaningful for ActionSetText.
type Action struct {
	Kind ActionKind
	Text string
}

// Click returns a click action.
func Click() Action { return Action{Kind: ActionClick} }

// SetText returns an action that replaces the node's text content.
func SetText(text string) Action { return Action{Kind: ActionSetText, Text: text} }

// Focus returns an action that moves keyboard focus to the node.
func Focus() Action { return Action{Kind: ActionFocus} }

func (a Action) String() string {
	if a.Kind == ActionSetText {
		return fmt.Sprintf("setText(%q)", a.Text)
	}
	return a.Kind.String()
}
