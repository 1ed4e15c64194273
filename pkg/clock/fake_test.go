package clock

import (
	"testing"
	"time"
)

func TestFakeFiresInDeadlineOrder(t *testing.T) {
	start := time.Unix(0, 0)
	f := NewFake(start)
	var got []string
	f.AfterFunc(200*time.Millisecond, func() { got = append(got, "b") })
	f.AfterFunc(100*time.Millisecond, func() { got = append(got, "a") })
	stopped := f.AfterFunc(150*time.Millisecond, func() { got = append(got, "x") })
	if !stopped.Stop() {
		t.Fatalf("expected stop to succeed")
	}
	if stopped.Stop() {
		t.Fatalf("second stop should report false")
	}

	f.Advance(150 * time.Millisecond)
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("after 150ms got %v", got)
	}
	f.Advance(100 * time.Millisecond)
	if len(got) != 2 || got[1] != "b" {
		t.Fatalf("after 250ms got %v", got)
	}
	if f.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", f.Pending())
	}
	if !f.Now().Equal(start.Add(250 * time.Millisecond)) {
		t.Fatalf("unexpected now %v", f.Now())
	}
}

func TestFakeCallbackCanSchedule(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	var at []time.Duration
	var tick func()
	tick = func() {
		at = append(at, f.Now().Sub(time.Unix(0, 0)))
		if len(at) < 3 {
			f.AfterFunc(time.Second, tick)
		}
	}
	f.AfterFunc(time.Second, tick)
	f.Advance(10 * time.Second)
	if len(at) != 3 || at[2] != 3*time.Second {
		t.Fatalf("unexpected fire times %v", at)
	}
	if _, ok := f.NextDeadline(); ok {
		t.Fatalf("expected no deadline")
	}
}
