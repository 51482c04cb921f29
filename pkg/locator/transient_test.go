package locator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/devicelab-dev/a11y-runner/pkg/core"
	"github.com/devicelab-dev/a11y-runner/pkg/provider/mock"
	"github.com/devicelab-dev/a11y-runner/pkg/tree"
)

var (
	toaster     = tree.Locator{Role: "notification", Description: "toaster"}
	toastText   = tree.Locator{Role: "label", Description: "toaster_description"}
	issueButton = tree.Locator{Role: "push button", Name: "Issue"}
)

func toast(id, text string, appear, remove time.Duration) mock.Element {
	return mock.Element{
		ID: id, Role: "notification", Description: "toaster",
		AppearAt: appear, RemoveAt: remove,
		Children: []mock.Element{{ID: id + "-text", Role: "label", Description: "toaster_description", Name: text}},
	}
}

func TestWaitForAppearance_CapturesPayloadWithNode(t *testing.T) {
	e, _, clk := newEngine(DefaultOptions(), toast("t1", "Asset issued", 350*time.Millisecond, 1300*time.Millisecond))

	c, err := e.WaitForAppearance(context.Background(), toaster, 8*time.Second, 100*time.Millisecond, WithPayloadChild(toastText))
	if err != nil {
		t.Fatalf("WaitForAppearance() error = %v", err)
	}
	if !c.Found() || c.Payload != "Asset issued" || c.FromFallback {
		t.Fatalf("capture = %+v", c)
	}
	if got := c.Node.Attributes().Description; got != "toaster" {
		t.Errorf("node description = %q, want toaster", got)
	}
	if got := clk.Now().Sub(t0); got != 400*time.Millisecond {
		t.Errorf("captured at %v, want first poll after appearance (400ms)", got)
	}
	if c.Attempts != 5 {
		t.Errorf("attempts = %d, want 5", c.Attempts)
	}

	// The node is gone afterwards; the payload was read with it.
	clk.Advance(time.Second)
	if c.Node.IsValid(context.Background()) {
		t.Error("toast should have dismissed itself")
	}
	if c.Payload != "Asset issued" {
		t.Error("payload must not depend on a later read")
	}
}

func TestWaitForAppearance_FixedPolling(t *testing.T) {
	e, p, clk := newEngine(DefaultOptions())

	c, err := e.WaitForAppearance(context.Background(), toaster, time.Second, 200*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if c.Found() {
		t.Fatal("nothing should be captured")
	}
	if got := clk.Now().Sub(t0); got != time.Second {
		t.Errorf("elapsed = %v, want 1s", got)
	}
	for i, w := range clk.Sleeps() {
		if w != 200*time.Millisecond {
			t.Errorf("wait %d = %v, want a fixed 200ms", i, w)
		}
	}
	if p.QueryCount() != 5 {
		t.Errorf("queries = %d, want 5", p.QueryCount())
	}
	if e.State().ConsecutiveFastFailures != 0 {
		t.Error("transient waits are not breaker evidence")
	}
}

func TestWaitForAppearance_FallbackPairsPayloadNode(t *testing.T) {
	e, _, _ := newEngine(DefaultOptions(),
		mock.Element{ID: "bare", Role: "notification", Description: "toaster"},
		mock.Element{ID: "old-text", Role: "label", Description: "toaster_description", Name: "Old message"},
		mock.Element{ID: "new-text", Role: "label", Description: "toaster_description", Name: "Backup completed"},
	)

	c, err := e.WaitForAppearance(context.Background(), toaster, time.Second, 100*time.Millisecond, WithPayloadChild(toastText))
	if err != nil {
		t.Fatal(err)
	}
	if !c.Found() || !c.FromFallback {
		t.Fatalf("capture = %+v, want fallback capture", c)
	}
	if c.Payload != "Backup completed" {
		t.Errorf("payload = %q, want the most recently added", c.Payload)
	}
	if c.Node.Label() != c.Payload {
		t.Errorf("node %q does not carry payload %q", c.Node.Label(), c.Payload)
	}
}

func TestWaitForAppearance_Filter(t *testing.T) {
	e, _, _ := newEngine(DefaultOptions(),
		toast("a", "Connection lost", 0, 0),
		toast("b", "Asset issued", 500*time.Millisecond, 0),
	)

	c, err := e.WaitForAppearance(context.Background(), toaster, 2*time.Second, 100*time.Millisecond,
		WithPayloadChild(toastText), WithPayloadFilter("issued"))
	if err != nil {
		t.Fatal(err)
	}
	if c.Payload != "Asset issued" {
		t.Errorf("payload = %q, want the filtered toast", c.Payload)
	}
}

func TestWaitForAppearance_OwnNameAsPayload(t *testing.T) {
	e, _, _ := newEngine(DefaultOptions(), mock.Element{ID: "n", Role: "notification", Name: "Saved", Description: "toaster"})

	c, err := e.WaitForAppearance(context.Background(), toaster, time.Second, 100*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if c.Payload != "Saved" {
		t.Errorf("payload = %q, want Saved", c.Payload)
	}
}

func TestWaitForAppearance_AfterClick(t *testing.T) {
	opts := DefaultOptions()
	e, _, _ := newEngine(opts, mock.Element{
		ID: "issue", Role: "push button", Name: "Issue",
		Spawns: []mock.Element{toast("toast", "Asset issued", 300*time.Millisecond, 2*time.Second)},
	})
	ctx := context.Background()

	if _, err := e.FindAndAct(ctx, issueButton, tree.Click(), 10*time.Second); err != nil {
		t.Fatal(err)
	}
	c, err := e.WaitForAppearance(ctx, toaster, 0, 0, WithPayloadChild(toastText))
	if err != nil || c.Payload != "Asset issued" {
		t.Errorf("capture = %+v, err = %v", c, err)
	}
}

func TestWaitForAppearance_BreakerGate(t *testing.T) {
	opts := DefaultOptions()
	opts.BreakerThreshold = 1
	e, p, _ := newEngine(opts)
	ctx := context.Background()

	_, _ = e.Find(ctx, absent, time.Second)
	p.SetRootError(errors.New("bus gone"))

	c, err := e.WaitForAppearance(ctx, toaster, time.Second, 100*time.Millisecond)
	if !errors.Is(err, core.ErrProviderBroken) || c.Outcome != OutcomeProviderBroken {
		t.Errorf("outcome = %s err = %v, want provider broken", c.Outcome, err)
	}
}

func TestWaitForAppearance_InvalidLocator(t *testing.T) {
	e, _, _ := newEngine(DefaultOptions())
	if _, err := e.WaitForAppearance(context.Background(), tree.Locator{Role: "notification"}, time.Second, 0); !errors.Is(err, core.ErrInvalidLocator) {
		t.Errorf("error = %v, want ErrInvalidLocator", err)
	}
}
