package webax

import (
	"encoding/json"
	"strings"

	"github.com/chromedp/cdproto/accessibility"

	"github.com/devicelab-dev/a11y-runner/pkg/core"
	"github.com/devicelab-dev/a11y-runner/pkg/tree"
)

// roleNames maps Chrome accessibility roles onto the desktop role names
// locators are written against. Unlisted roles pass through unchanged.
var roleNames = map[string]string{
	"button":          "push button",
	"StaticText":      "label",
	"LabelText":       "label",
	"textbox":         "text",
	"searchbox":       "text",
	"checkbox":        "check box",
	"radio":           "radio button",
	"combobox":        "combo box",
	"listbox":         "list box",
	"listitem":        "list item",
	"menuitem":        "menu item",
	"menubar":         "menu bar",
	"tab":             "page tab",
	"tablist":         "page tab list",
	"img":             "image",
	"image":           "image",
	"progressbar":     "progress bar",
	"spinbutton":      "spin button",
	"row":             "table row",
	"cell":            "table cell",
	"gridcell":        "table cell",
	"columnheader":    "column header",
	"rowheader":       "row header",
	"toolbar":         "tool bar",
	"tooltip":         "tool tip",
	"status":          "notification",
	"alert":           "notification",
	"switch":          "toggle button",
	"generic":         "panel",
	"group":           "panel",
	"RootWebArea":     "document web",
	"WebArea":         "document web",
	"alertdialog":     "dialog",
	"scrollbar":       "scroll bar",
	"separator":       "separator",
	"treeitem":        "tree item",
	"paragraph":       "paragraph",
	"heading":         "heading",
	"link":            "link",
	"dialog":          "dialog",
	"InlineTextBox":   "text",
	"LineBreak":       "separator",
	"none":            "",
	"presentation":    "",
	"Ignored":         "",
	"ListMarker":      "label",
	"DescriptionList": "list",
}

// MapRole returns the desktop role name for a Chrome role.
func MapRole(webRole string) string {
	if mapped, ok := roleNames[webRole]; ok {
		return mapped
	}
	return webRole
}

// valueString decodes the JSON payload of an AX value as a string.
// Non-string payloads (numbers, booleans) are rendered as their JSON text.
func valueString(v *accessibility.Value) string {
	if v == nil || len(v.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(v.Value, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(v.Value))
}

// valueBool decodes a boolean AX value; anything else is false.
func valueBool(v *accessibility.Value) bool {
	if v == nil || len(v.Value) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(v.Value, &b); err == nil {
		return b
	}
	return valueString(v) == "true"
}

// property returns the named property value, or nil.
func property(n *accessibility.Node, name accessibility.PropertyName) *accessibility.Value {
	for _, p := range n.Properties {
		if p != nil && p.Name == name {
			return p.Value
		}
	}
	return nil
}

// attributesOf converts an AX node. Hidden nodes are not showing and
// disabled nodes are not enabled; everything else is both. Pressed toggle
// buttons count as checked; "mixed" does not.
func attributesOf(n *accessibility.Node) tree.Attributes {
	attrs := tree.Attributes{
		Role:        MapRole(valueString(n.Role)),
		Name:        valueString(n.Name),
		Description: valueString(n.Description),
		Text:        valueString(n.Value),
		Showing:     !valueBool(property(n, accessibility.PropertyNameHidden)),
		Enabled:     !valueBool(property(n, accessibility.PropertyNameDisabled)),
		Checked:     valueBool(property(n, accessibility.PropertyNameChecked)) ||
			valueBool(property(n, accessibility.PropertyNamePressed)),
	}
	if attrs.Text == "" && attrs.Role == "label" {
		attrs.Text = attrs.Name
	}
	return attrs
}

// isStaleError recognises CDP errors for nodes that no longer exist.
func isStaleError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"no node with given id", "no node found", "could not find node", "node is detached", "cannot find context with specified id"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// mapError converts a CDP error into the core error space.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if isStaleError(err) {
		return core.ErrStaleHandle.WithCause(err)
	}
	return err
}

// selectNode picks the node describing backendID out of a partial tree.
func selectNode(nodes []*accessibility.Node, backendID int64) *accessibility.Node {
	for _, n := range nodes {
		if n != nil && int64(n.BackendDOMNodeID) == backendID {
			return n
		}
	}
	return nil
}
