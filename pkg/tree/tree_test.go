package tree

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/devicelab-dev/a11y-runner/pkg/core"
	"github.com/google/go-cmp/cmp"
)

type fakeHandle struct {
	attrs    Attributes
	children []*fakeHandle
	stale    bool
	invoked  []Action
}

func (f *fakeHandle) Attributes(context.Context) (Attributes, error) {
	if f.stale {
		return Attributes{}, core.ErrStaleHandle
	}
	return f.attrs, nil
}

func (f *fakeHandle) Invoke(_ context.Context, a Action) error {
	if f.stale {
		return core.ErrStaleHandle
	}
	f.invoked = append(f.invoked, a)
	return nil
}

func (f *fakeHandle) Children(context.Context) ([]Handle, error) {
	if f.stale {
		return nil, core.ErrStaleHandle
	}
	out := make([]Handle, len(f.children))
	for i, c := range f.children {
		out[i] = c
	}
	return out, nil
}

type fakeProvider struct{ root *fakeHandle }

func (p fakeProvider) Query(context.Context, Locator) ([]Handle, error) { return nil, nil }
func (p fakeProvider) Root(context.Context) (Handle, error)            { return p.root, nil }

func node(role, name string, showing bool, children ...*fakeHandle) *fakeHandle {
	return &fakeHandle{
		attrs:    Attributes{Role: role, Name: name, Showing: showing, Enabled: true},
		children: children,
	}
}

func TestLocator_Validate(t *testing.T) {
	tests := []struct {
		name    string
		loc     Locator
		wantErr bool
	}{
		{"name", Locator{Role: "push button", Name: "Save"}, false},
		{"description", Locator{Description: "toaster_description"}, false},
		{"role only", Locator{Role: "push button"}, true},
		{"empty", Locator{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.loc.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, core.ErrInvalidLocator) {
				t.Errorf("error should match ErrInvalidLocator, got %v", err)
			}
		})
	}
}

func TestLocator_Matches(t *testing.T) {
	attrs := Attributes{Role: "push button", Name: "Save", Description: "save-btn"}
	tests := []struct {
		loc  Locator
		want bool
	}{
		{Locator{Name: "Save"}, true},
		{Locator{Role: "push button", Name: "Save"}, true},
		{Locator{Role: "label", Name: "Save"}, false},
		{Locator{Name: "Cancel"}, false},
		{Locator{Description: "save-btn"}, true},
		{Locator{Name: "Save", Description: "other"}, false},
		{Locator{}, true},
	}

	for _, tt := range tests {
		if got := tt.loc.Matches(attrs); got != tt.want {
			t.Errorf("%s.Matches() = %v, want %v", tt.loc, got, tt.want)
		}
	}
}

func TestLocator_Key(t *testing.T) {
	tests := []struct {
		loc  Locator
		want ElementKey
	}{
		{Locator{Role: "push button", Name: "Save"}, ElementKey{"push button", "Save"}},
		{Locator{Role: "label", Description: "toaster_description"}, ElementKey{"label", "toaster_description"}},
		{Locator{Name: "Save", Description: "ignored"}, ElementKey{"", "Save"}},
	}

	for _, tt := range tests {
		if got := tt.loc.Key(); got != tt.want {
			t.Errorf("Key() = %v, want %v", got, tt.want)
		}
	}
}

func TestLocator_String(t *testing.T) {
	if got := (Locator{Role: "push button", Name: "Save"}).String(); got != `push button "Save"` {
		t.Errorf("String() = %s", got)
	}
	if got := (Locator{}).String(); got != "<any>" {
		t.Errorf("String() = %s", got)
	}
}

func TestAction_String(t *testing.T) {
	tests := []struct {
		action Action
		want   string
	}{
		{Click(), "click"},
		{Focus(), "focus"},
		{SetText("hello"), `setText("hello")`},
		{Action{Kind: ActionKind(9)}, "action(9)"},
	}
	for _, tt := range tests {
		if got := tt.action.String(); got != tt.want {
			t.Errorf("String() = %s, want %s", got, tt.want)
		}
	}
}

func TestNode_RefreshAndStale(t *testing.T) {
	ctx := context.Background()
	h := node("push button", "Save", true)

	n, err := NewNode(ctx, h, 3)
	if err != nil {
		t.Fatalf("NewNode() error = %v", err)
	}
	if n.Index() != 3 || n.Label() != "Save" {
		t.Errorf("unexpected node: index=%d label=%s", n.Index(), n.Label())
	}

	h.attrs.Enabled = false
	attrs, err := n.Refresh(ctx)
	if err != nil || attrs.Enabled {
		t.Errorf("Refresh() = %+v, %v", attrs, err)
	}
	if n.Attributes().Enabled {
		t.Error("cache not updated by Refresh")
	}

	h.stale = true
	if n.IsValid(ctx) {
		t.Error("IsValid() = true for stale node")
	}
	if err := n.Invoke(ctx, Click()); !IsStale(err) {
		t.Errorf("Invoke() error = %v, want stale", err)
	}
	if n.Attributes().Name != "Save" {
		t.Error("stale read should keep the last cached attributes")
	}
}

func TestNode_Info(t *testing.T) {
	n, _ := NewNode(context.Background(), node("label", "Done", true), 1)
	want := &core.ElementInfo{Role: "label", Name: "Done", Showing: true, Enabled: true, Index: 1}
	if diff := cmp.Diff(want, n.Info()); diff != "" {
		t.Errorf("Info() mismatch (-want +got):\n%s", diff)
	}
	var nilNode *Node
	if nilNode.Info() != nil {
		t.Error("nil node should give nil info")
	}
}

func TestNode_ChildrenSkipsStale(t *testing.T) {
	gone := node("label", "Gone", true)
	gone.stale = true
	parent := node("panel", "", true, node("label", "A", true), gone, node("label", "B", true))

	n, _ := NewNode(context.Background(), parent, 0)
	children, err := n.Children(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, c := range children {
		names = append(names, c.Label())
	}
	if diff := cmp.Diff([]string{"A", "B"}, names); diff != "" {
		t.Errorf("children mismatch (-want +got):\n%s", diff)
	}
}

func sampleTree() fakeProvider {
	return fakeProvider{root: node("application", "wallet", true,
		node("frame", "Main", true,
			node("push button", "Save", true),
			node("push button", "Cancel", true),
			node("panel", "Hidden", false, node("push button", "Secret", true)),
		),
		node("label", "", true),
	)}
}

func TestTakeSnapshot(t *testing.T) {
	snap, err := TakeSnapshot(context.Background(), sampleTree(), 0)
	if err != nil {
		t.Fatalf("TakeSnapshot() error = %v", err)
	}
	want := Snapshot{
		"application": {"wallet"},
		"frame":       {"Main"},
		"push button": {"Save", "Cancel"},
	}
	if diff := cmp.Diff(want, snap); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
	if snap.Count() != 4 {
		t.Errorf("Count() = %d, want 4", snap.Count())
	}
	if !strings.HasPrefix(snap.String(), "application: wallet\n") {
		t.Errorf("String() should list roles sorted, got %q", snap.String())
	}
}

func TestWalk_MaxNodes(t *testing.T) {
	var seen int
	err := Walk(context.Background(), sampleTree().root, 3, func(int, Attributes) bool {
		seen++
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	if seen != 3 {
		t.Errorf("visited %d nodes, want 3", seen)
	}
}

func TestDump(t *testing.T) {
	var b strings.Builder
	if err := Dump(context.Background(), sampleTree(), &b, 0); err != nil {
		t.Fatal(err)
	}
	out := b.String()
	for _, want := range []string{
		"application \"wallet\"\n",
		"  frame \"Main\"\n",
		"    push button \"Save\"\n",
		"    panel \"Hidden\" hidden\n",
		"      push button \"Secret\"\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Dump() missing %q in:\n%s", want, out)
		}
	}
}
