package reconnect

import (
	"errors"
	"testing"
	"time"

	"FinAlert/internal/domain/models"
)

func TestFixedPolicy(t *testing.T) {
	p := NewFixed(0)
	d, ok := p.OnClosed(models.CloseFault, "network error")
	if !ok || d != 3*time.Second {
		t.Fatalf("fault: got %v,%v want 3s,true", d, ok)
	}
	if _, ok := p.OnClosed(models.CloseManual, "disabled"); ok {
		t.Fatalf("manual close must not schedule a reconnect")
	}
	// unconditional: repeated faults keep the same delay
	for i := 0; i < 5; i++ {
		if d, _ := p.OnClosed(models.CloseFault, ""); d != 3*time.Second {
			t.Fatalf("attempt %d delay=%v", i, d)
		}
	}
}

func TestBackoffPolicy(t *testing.T) {
	b := NewBackoff(time.Second, 5*time.Second, WithJitter(0))
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		d, ok := b.OnClosed(models.CloseFault, "")
		if !ok || d != w {
			t.Fatalf("attempt %d: got %v want %v", i, d, w)
		}
	}
	b.Reset()
	if d, _ := b.OnClosed(models.CloseFault, ""); d != time.Second {
		t.Fatalf("after reset got %v", d)
	}
	if _, ok := b.OnClosed(models.CloseManual, ""); ok {
		t.Fatalf("manual close must not schedule a reconnect")
	}
}

func TestBackoffJitter(t *testing.T) {
	b := NewBackoff(time.Second, 10*time.Second, WithJitter(0.5), WithRand(func() float64 { return 0.5 }))
	if d, _ := b.OnClosed(models.CloseFault, ""); d != 750*time.Millisecond {
		t.Fatalf("got %v want 750ms", d)
	}
}

func TestNewByName(t *testing.T) {
	if p, err := New("", 0, 0); err != nil {
		t.Fatalf("default: %v", err)
	} else if _, ok := p.(*Fixed); !ok {
		t.Fatalf("default policy should be fixed, got %T", p)
	}
	if p, err := New("backoff", time.Second, time.Minute); err != nil {
		t.Fatalf("backoff: %v", err)
	} else if _, ok := p.(*Backoff); !ok {
		t.Fatalf("expected backoff, got %T", p)
	}
	_, err := New("linear", 0, 0)
	var ce *models.ConfigurationError
	if !errors.As(err, &ce) || ce.Field != "reconnect.policy" {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
