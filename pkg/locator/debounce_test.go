package locator

import (
	"testing"
	"time"

	"github.com/devicelab-dev/a11y-runner/pkg/tree"
)

func TestDebouncer_ShouldSuppress(t *testing.T) {
	d := NewDebouncer(nil)
	save := tree.ElementKey{Role: "push button", Name: "Save"}
	window := 800 * time.Millisecond

	if d.ShouldSuppress(save, t0, window) {
		t.Fatal("first action must not be suppressed")
	}
	if !d.ShouldSuppress(save, t0.Add(200*time.Millisecond), window) {
		t.Error("action 200ms later should be suppressed")
	}
	if !d.ShouldSuppress(save, t0.Add(799*time.Millisecond), window) {
		t.Error("suppressed calls must not move the window")
	}
	if d.ShouldSuppress(save, t0.Add(800*time.Millisecond), window) {
		t.Error("action at the window edge should proceed")
	}
}

func TestDebouncer_KeysAreIndependent(t *testing.T) {
	d := NewDebouncer(nil)
	window := time.Second
	d.ShouldSuppress(tree.ElementKey{Role: "push button", Name: "Save"}, t0, window)

	if d.ShouldSuppress(tree.ElementKey{Role: "push button", Name: "Cancel"}, t0, window) {
		t.Error("different name must not be suppressed")
	}
	if d.ShouldSuppress(tree.ElementKey{Role: "label", Name: "Save"}, t0, window) {
		t.Error("different role must not be suppressed")
	}
}

func TestDebouncer_ForgetRecordReset(t *testing.T) {
	d := NewDebouncer(nil)
	key := tree.ElementKey{Role: "push button", Name: "Save"}
	window := time.Second

	d.ShouldSuppress(key, t0, window)
	d.Forget(key)
	if d.ShouldSuppress(key, t0.Add(time.Millisecond), window) {
		t.Error("forgotten key should not suppress")
	}

	d.Record(key, t0.Add(5*time.Second))
	if !d.ShouldSuppress(key, t0.Add(5500*time.Millisecond), window) {
		t.Error("Record should move the window")
	}

	d.Reset()
	if len(d.Snapshot()) != 0 {
		t.Error("Reset should clear all keys")
	}
}
