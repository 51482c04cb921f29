package clock

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestManual_SleepAdvances(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManual(start)

	if err := m.Sleep(context.Background(), 1500*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.Now().Sub(start); got != 1500*time.Millisecond {
		t.Errorf("elapsed = %v, want 1.5s", got)
	}

	_ = m.Sleep(context.Background(), 200*time.Millisecond)
	want := []time.Duration{1500 * time.Millisecond, 200 * time.Millisecond}
	if diff := cmp.Diff(want, m.Sleeps()); diff != "" {
		t.Errorf("Sleeps() mismatch (-want +got):\n%s", diff)
	}
}

func TestManual_SleepCancelled(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Sleep(ctx, time.Second); err == nil {
		t.Error("expected error for cancelled context")
	}
	if !m.Now().Equal(time.Unix(0, 0)) {
		t.Error("cancelled sleep should not advance time")
	}
}

func TestManual_OnTick(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	var seen []time.Time
	m.OnTick(func(now time.Time) { seen = append(seen, now) })

	m.Advance(time.Second)
	m.Advance(time.Second)

	if len(seen) != 2 {
		t.Fatalf("expected 2 ticks, got %d", len(seen))
	}
	if !seen[1].Equal(time.Unix(2, 0)) {
		t.Errorf("second tick = %v, want %v", seen[1], time.Unix(2, 0))
	}
}

func TestReal_SleepZero(t *testing.T) {
	if err := (Real{}).Sleep(context.Background(), 0); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestReal_SleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (Real{}).Sleep(ctx, time.Hour); err == nil {
		t.Error("expected context error")
	}
}
