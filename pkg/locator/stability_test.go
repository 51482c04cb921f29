package locator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/devicelab-dev/a11y-runner/pkg/clock"
	"github.com/devicelab-dev/a11y-runner/pkg/provider/mock"
	"github.com/devicelab-dev/a11y-runner/pkg/tree"
)

func queryNode(t *testing.T, p *mock.Provider, loc tree.Locator) *tree.Node {
	t.Helper()
	handles, err := p.Query(context.Background(), loc)
	if err != nil || len(handles) == 0 {
		t.Fatalf("query %s: %d handles, err %v", loc, len(handles), err)
	}
	n, err := tree.NewNode(context.Background(), handles[len(handles)-1], len(handles)-1)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func detector(clk clock.Clock) StabilityDetector {
	return StabilityDetector{RequiredMatches: 3, PollInterval: 300 * time.Millisecond, Timeout: 1500 * time.Millisecond, Clock: clk}
}

func TestStabilityDetector_StableNode(t *testing.T) {
	clk := clock.NewManual(t0)
	p := mock.New(clk, mock.Config{}, mock.Element{ID: "ok", Role: "push button", Name: "OK"})
	n := queryNode(t, p, tree.Locator{Name: "OK"})

	if !detector(clk).IsStable(context.Background(), n) {
		t.Fatal("static node should be stable")
	}
	if got := clk.Now().Sub(t0); got != 900*time.Millisecond {
		t.Errorf("took %v, want 3 polls (900ms)", got)
	}
}

func TestStabilityDetector_ChangingNameNeverStable(t *testing.T) {
	clk := clock.NewManual(t0)
	p := mock.New(clk, mock.Config{}, mock.Element{ID: "lbl", Role: "label", Name: "Syncing 0"})
	n := queryNode(t, p, tree.Locator{Name: "Syncing 0"})

	tick := 0
	clk.OnTick(func(time.Time) {
		tick++
		name := fmt.Sprintf("Syncing %d", tick)
		p.Set("lbl", func(a *tree.Attributes) { a.Name = name })
	})

	if detector(clk).IsStable(context.Background(), n) {
		t.Error("node whose name changes every poll must not be stable")
	}
	if got := clk.Now().Sub(t0); got != 1500*time.Millisecond {
		t.Errorf("gave up after %v, want the 1.5s timeout", got)
	}
}

func TestStabilityDetector_ChangeResetsCount(t *testing.T) {
	clk := clock.NewManual(t0)
	p := mock.New(clk, mock.Config{}, mock.Element{
		ID: "btn", Role: "push button", Name: "Send",
		Flicker: []time.Duration{600 * time.Millisecond, 900 * time.Millisecond},
	})
	n := queryNode(t, p, tree.Locator{Name: "Send"})

	d := detector(clk)
	d.Timeout = 3 * time.Second
	if !d.IsStable(context.Background(), n) {
		t.Fatal("node should settle after flickering")
	}
	// matches: 300ms +1, 600ms reset, 900ms reset, then 1200, 1500, 1800.
	if got := clk.Now().Sub(t0); got != 1800*time.Millisecond {
		t.Errorf("stable at %v, want 1.8s", got)
	}
}

func TestStabilityDetector_StaleIsFalse(t *testing.T) {
	clk := clock.NewManual(t0)
	p := mock.New(clk, mock.Config{}, mock.Element{ID: "x", Role: "push button", Name: "X", RemoveAt: 400 * time.Millisecond})
	n := queryNode(t, p, tree.Locator{Name: "X"})

	if detector(clk).IsStable(context.Background(), n) {
		t.Error("node removed mid-check must not be stable")
	}
}

func TestStabilityDetector_ZeroMatchesIsImmediate(t *testing.T) {
	clk := clock.NewManual(t0)
	p := mock.New(clk, mock.Config{}, mock.Element{ID: "x", Role: "push button", Name: "X"})
	n := queryNode(t, p, tree.Locator{Name: "X"})

	d := detector(clk)
	d.RequiredMatches = 0
	if !d.IsStable(context.Background(), n) {
		t.Error("zero required matches should pass")
	}
	if !clk.Now().Equal(t0) {
		t.Error("zero required matches should not sleep")
	}
}
