package locator

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/devicelab-dev/a11y-runner/pkg/clock"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func localPolicy(timeout time.Duration, maxRetries int) RetryPolicy {
	return DefaultOptions().RetryPolicy(timeout, maxRetries)
}

func TestAttempts_BackoffGrowsToCapAndClampsToDeadline(t *testing.T) {
	clk := clock.NewManual(t0)
	it := localPolicy(6*time.Second, 0).Attempts(clk)

	attempts := 0
	for it.Next(context.Background()) {
		attempts++
	}

	want := []time.Duration{
		500 * time.Millisecond,
		750 * time.Millisecond,
		1125 * time.Millisecond,
		1687500 * time.Microsecond,
		1937500 * time.Microsecond, // clamped: only this much was left
	}
	if diff := cmp.Diff(want, it.Waits()); diff != "" {
		t.Errorf("waits mismatch (-want +got):\n%s", diff)
	}
	if attempts != 5 || it.Count() != 5 {
		t.Errorf("attempts = %d (Count %d), want 5", attempts, it.Count())
	}
	if got := clk.Now().Sub(t0); got != 6*time.Second {
		t.Errorf("elapsed = %v, want exactly 6s", got)
	}
}

func TestAttempts_WaitsNeverExceedCap(t *testing.T) {
	clk := clock.NewManual(t0)
	it := localPolicy(30*time.Second, 0).Attempts(clk)
	for it.Next(context.Background()) {
	}

	waits := it.Waits()
	for i, w := range waits {
		if w > 2*time.Second {
			t.Errorf("wait %d = %v exceeds cap", i, w)
		}
		if i > 0 && i < len(waits)-1 && w < waits[i-1] {
			t.Errorf("wait %d = %v shrank from %v", i, w, waits[i-1])
		}
	}
}

func TestAttempts_MaxRetries(t *testing.T) {
	clk := clock.NewManual(t0)
	it := localPolicy(10*time.Second, 3).Attempts(clk)

	n := 0
	for it.Next(context.Background()) {
		n++
	}
	if n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
	if got := clk.Now().Sub(t0); got != 1250*time.Millisecond {
		t.Errorf("elapsed = %v, want 1.25s", got)
	}
}

func TestAttempts_RetryUsesFixedWait(t *testing.T) {
	clk := clock.NewManual(t0)
	it := localPolicy(10*time.Second, 0).Attempts(clk)
	ctx := context.Background()

	it.Next(ctx)
	it.Retry(300 * time.Millisecond)
	it.Next(ctx)
	it.Next(ctx)

	want := []time.Duration{300 * time.Millisecond, 500 * time.Millisecond}
	if diff := cmp.Diff(want, it.Waits()); diff != "" {
		t.Errorf("waits mismatch (-want +got):\n%s", diff)
	}
}

func TestAttempts_ContextCancelled(t *testing.T) {
	clk := clock.NewManual(t0)
	ctx, cancel := context.WithCancel(context.Background())
	it := localPolicy(10*time.Second, 0).Attempts(clk)

	if !it.Next(ctx) {
		t.Fatal("first attempt should run")
	}
	cancel()
	if it.Next(ctx) {
		t.Error("Next() should stop after cancellation")
	}
	if it.Err() == nil {
		t.Error("Err() should report the cancellation")
	}
}

func TestAttempts_FirstAttemptWithZeroTimeout(t *testing.T) {
	clk := clock.NewManual(t0)
	it := localPolicy(0, 0).Attempts(clk)
	n := 0
	for it.Next(context.Background()) {
		n++
	}
	if n != 1 {
		t.Errorf("attempts = %d, want exactly one", n)
	}
}
