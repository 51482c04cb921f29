package webax

import (
	"errors"
	"strings"
	"testing"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/google/go-cmp/cmp"

	"github.com/devicelab-dev/a11y-runner/pkg/core"
	"github.com/devicelab-dev/a11y-runner/pkg/tree"
)

func strValue(s string) *accessibility.Value {
	return &accessibility.Value{Type: accessibility.ValueTypeString, Value: []byte(`"` + s + `"`)}
}

func boolValue(b bool) *accessibility.Value {
	raw := "false"
	if b {
		raw = "true"
	}
	return &accessibility.Value{Type: accessibility.ValueTypeBoolean, Value: []byte(raw)}
}

func TestMapRole(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"button", "push button"},
		{"StaticText", "label"},
		{"textbox", "text"},
		{"checkbox", "check box"},
		{"RootWebArea", "document web"},
		{"status", "notification"},
		{"none", ""},
		{"slider", "slider"},
	}
	for _, tt := range tests {
		if got := MapRole(tt.in); got != tt.want {
			t.Errorf("MapRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAttributesOf(t *testing.T) {
	tests := []struct {
		name string
		node *accessibility.Node
		want tree.Attributes
	}{
		{
			name: "enabled button",
			node: &accessibility.Node{Role: strValue("button"), Name: strValue("Save")},
			want: tree.Attributes{Role: "push button", Name: "Save", Showing: true, Enabled: true},
		},
		{
			name: "hidden and disabled",
			node: &accessibility.Node{
				Role: strValue("button"),
				Name: strValue("Delete"),
				Properties: []*accessibility.Property{
					{Name: accessibility.PropertyNameHidden, Value: boolValue(true)},
					{Name: accessibility.PropertyNameDisabled, Value: boolValue(true)},
				},
			},
			want: tree.Attributes{Role: "push button", Name: "Delete"},
		},
		{
			name: "explicitly not hidden",
			node: &accessibility.Node{
				Role:       strValue("textbox"),
				Name:       strValue("Title"),
				Value:      strValue("draft"),
				Properties: []*accessibility.Property{{Name: accessibility.PropertyNameHidden, Value: boolValue(false)}},
			},
			want: tree.Attributes{Role: "text", Name: "Title", Text: "draft", Showing: true, Enabled: true},
		},
		{
			name: "static text carries its name as text",
			node: &accessibility.Node{Role: strValue("StaticText"), Name: strValue("Saved!"), Description: strValue("toast")},
			want: tree.Attributes{Role: "label", Name: "Saved!", Description: "toast", Text: "Saved!", Showing: true, Enabled: true},
		},
		{
			name: "checked box",
			node: &accessibility.Node{
				Role:       strValue("checkbox"),
				Name:       strValue("Remember me"),
				Properties: []*accessibility.Property{{Name: accessibility.PropertyNameChecked, Value: strValue("true")}},
			},
			want: tree.Attributes{Role: "check box", Name: "Remember me", Showing: true, Enabled: true, Checked: true},
		},
		{
			name: "mixed is not checked",
			node: &accessibility.Node{
				Role:       strValue("checkbox"),
				Name:       strValue("All"),
				Properties: []*accessibility.Property{{Name: accessibility.PropertyNameChecked, Value: strValue("mixed")}},
			},
			want: tree.Attributes{Role: "check box", Name: "All", Showing: true, Enabled: true},
		},
		{
			name: "pressed toggle button",
			node: &accessibility.Node{
				Role:       strValue("button"),
				Name:       strValue("Bold"),
				Properties: []*accessibility.Property{{Name: accessibility.PropertyNamePressed, Value: strValue("true")}},
			},
			want: tree.Attributes{Role: "push button", Name: "Bold", Showing: true, Enabled: true, Checked: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, attributesOf(tt.node)); diff != "" {
				t.Errorf("attributes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValueString_NonString(t *testing.T) {
	v := &accessibility.Value{Type: accessibility.ValueTypeNumber, Value: []byte("42")}
	if got := valueString(v); got != "42" {
		t.Errorf("valueString() = %q, want 42", got)
	}
	if got := valueString(nil); got != "" {
		t.Errorf("valueString(nil) = %q", got)
	}
}

func TestMapError(t *testing.T) {
	stale := errors.New("No node with given id found (-32000)")
	if err := mapError(stale); !errors.Is(err, core.ErrStaleHandle) {
		t.Errorf("mapError(%v) = %v, want ErrStaleHandle", stale, err)
	}
	other := errors.New("websocket closed")
	if err := mapError(other); err != other {
		t.Errorf("mapError(%v) = %v, want unchanged", other, err)
	}
	if mapError(nil) != nil {
		t.Error("mapError(nil) should be nil")
	}
}

func TestSelectNode(t *testing.T) {
	nodes := []*accessibility.Node{
		{NodeID: "1", BackendDOMNodeID: 10},
		nil,
		{NodeID: "2", BackendDOMNodeID: 20},
	}
	if n := selectNode(nodes, 20); n == nil || n.NodeID != "2" {
		t.Errorf("selectNode(20) = %v", n)
	}
	if n := selectNode(nodes, 30); n != nil {
		t.Errorf("selectNode(30) = %v, want nil", n)
	}
}

func TestActionScript(t *testing.T) {
	click, err := actionScript(tree.Click())
	if err != nil || !strings.Contains(click, "el.click()") {
		t.Errorf("click script = %q, %v", click, err)
	}

	set, err := actionScript(tree.SetText(`say "hi"`))
	if err != nil {
		t.Fatalf("setText script error = %v", err)
	}
	if !strings.Contains(set, `el.value = "say \"hi\""`) {
		t.Errorf("setText should embed a quoted literal, got %q", set)
	}

	if _, err := actionScript(tree.Action{Kind: tree.ActionKind(9)}); !errors.Is(err, core.ErrActionUnsupported) {
		t.Errorf("unknown action error = %v, want ErrActionUnsupported", err)
	}
}
