package middleware

import (
	"fmt"
	"testing"
	"time"

	"FinAlert/internal/domain/models"
	"FinAlert/pkg/clock"
)

type recorder struct {
	batches [][]string
	at      []time.Time
	clock   *clock.Fake
}

func (r *recorder) emit(batch []models.Alert) {
	ids := make([]string, len(batch))
	for i, a := range batch {
		ids[i] = a.ID
	}
	r.batches = append(r.batches, ids)
	r.at = append(r.at, r.clock.Now())
}

func alerts(ids ...string) []models.Alert {
	out := make([]models.Alert, len(ids))
	for i, id := range ids {
		out[i] = models.Alert{ID: id}
	}
	return out
}

func newThrottle(window time.Duration) (*AlertThrottle, *recorder, *clock.Fake) {
	fc := clock.NewFake(time.Unix(0, 0))
	rec := &recorder{clock: fc}
	return NewAlertThrottle(rec.emit, WithWindow(window), WithClock(fc)), rec, fc
}

func TestCoalescesWithinWindow(t *testing.T) {
	th, rec, fc := newThrottle(1000 * time.Millisecond)

	th.Submit(alerts("X"))
	fc.Advance(200 * time.Millisecond)
	th.Submit(alerts("Y"))
	fc.Advance(799 * time.Millisecond)
	if len(rec.batches) != 0 {
		t.Fatalf("emitted before window elapsed: %v", rec.batches)
	}
	fc.Advance(time.Millisecond)

	if len(rec.batches) != 1 || fmt.Sprint(rec.batches[0]) != "[X Y]" {
		t.Fatalf("batches=%v want [[X Y]]", rec.batches)
	}
	fc.Advance(5 * time.Second)
	if len(rec.batches) != 1 {
		t.Fatalf("empty window must not emit, got %v", rec.batches)
	}
}

func TestAtMostOneEmissionPerWindowAndNoLoss(t *testing.T) {
	th, rec, fc := newThrottle(time.Second)
	var submitted []string
	for i := 0; i < 40; i++ {
		id := fmt.Sprint(i)
		submitted = append(submitted, id)
		th.Submit(alerts(id))
		fc.Advance(130 * time.Millisecond)
	}
	fc.Advance(2 * time.Second)

	var got []string
	for _, b := range rec.batches {
		if len(b) == 0 {
			t.Fatalf("empty emission")
		}
		got = append(got, b...)
	}
	if fmt.Sprint(got) != fmt.Sprint(submitted) {
		t.Fatalf("concatenated emissions %v != submitted %v", got, submitted)
	}
	for i := 1; i < len(rec.at); i++ {
		if gap := rec.at[i].Sub(rec.at[i-1]); gap < time.Second {
			t.Fatalf("emissions %d and %d only %v apart", i-1, i, gap)
		}
	}
}

func TestPauseKeepsQueueAndResumeFlushes(t *testing.T) {
	th, rec, fc := newThrottle(time.Second)
	th.Submit(alerts("A", "B"))
	th.Pause()
	fc.Advance(10 * time.Second)
	if len(rec.batches) != 0 {
		t.Fatalf("emitted while paused: %v", rec.batches)
	}
	th.Submit(alerts("C"))
	if th.Pending() != 3 {
		t.Fatalf("pending=%d want 3", th.Pending())
	}
	fc.Advance(10 * time.Second)
	if len(rec.batches) != 0 {
		t.Fatalf("emitted while paused: %v", rec.batches)
	}

	th.Resume()
	fc.Advance(time.Second)
	if len(rec.batches) != 1 || fmt.Sprint(rec.batches[0]) != "[A B C]" {
		t.Fatalf("batches=%v", rec.batches)
	}
	if th.Pending() != 0 {
		t.Fatalf("queue not cleared")
	}
}

func TestStaleTimerIsIgnored(t *testing.T) {
	th, rec, fc := newThrottle(time.Second)
	th.Submit(alerts("A"))
	th.Pause()
	th.Resume()
	fc.Advance(time.Second)
	if len(rec.batches) != 1 {
		t.Fatalf("expected exactly one emission, got %v", rec.batches)
	}
	if fc.Pending() != 0 {
		t.Fatalf("dangling timers: %d", fc.Pending())
	}
}

func TestSubmitEmptyIsNoop(t *testing.T) {
	th, rec, fc := newThrottle(time.Second)
	th.Submit(nil)
	fc.Advance(time.Minute)
	if len(rec.batches) != 0 || fc.Pending() != 0 {
		t.Fatalf("empty submit must not arm the window")
	}
	if th.Window() != time.Second {
		t.Fatalf("window=%v", th.Window())
	}
}
