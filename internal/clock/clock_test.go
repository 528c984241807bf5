package clock

import (
	"testing"
	"time"
)

func TestManualFiresDueTimersInOrder(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewManual(start)

	var fired []string
	c.AfterFunc(2*time.Minute, func() { fired = append(fired, "second") })
	c.AfterFunc(time.Minute, func() { fired = append(fired, "first") })
	c.AfterFunc(10*time.Minute, func() { fired = append(fired, "late") })

	c.Advance(5 * time.Minute)

	if len(fired) != 2 || fired[0] != "first" || fired[1] != "second" {
		t.Fatalf("unexpected firing order: %v", fired)
	}
	if c.Pending() != 1 {
		t.Fatalf("expected one pending timer, got %d", c.Pending())
	}
	if got := c.Now(); !got.Equal(start.Add(5 * time.Minute)) {
		t.Fatalf("clock at %v, want %v", got, start.Add(5*time.Minute))
	}
}

func TestManualStopPreventsFiring(t *testing.T) {
	c := NewManual(time.Unix(0, 0))
	called := false
	timer := c.AfterFunc(time.Second, func() { called = true })

	if !timer.Stop() {
		t.Fatal("expected Stop to report the timer as cancelled")
	}
	if timer.Stop() {
		t.Fatal("second Stop should report false")
	}

	c.Advance(time.Minute)
	if called {
		t.Fatal("stopped timer fired")
	}
}

func TestManualTimerArmedFromCallbackFires(t *testing.T) {
	c := NewManual(time.Unix(0, 0))
	count := 0
	var arm func()
	arm = func() {
		count++
		if count < 3 {
			c.AfterFunc(time.Second, arm)
		}
	}
	c.AfterFunc(time.Second, arm)

	c.Advance(10 * time.Second)
	if count != 3 {
		t.Fatalf("expected 3 chained firings, got %d", count)
	}
	if _, ok := c.NextDeadline(); ok {
		t.Fatal("expected no pending deadline")
	}
}
