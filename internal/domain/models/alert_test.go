package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDirectionOf(t *testing.T) {
	cases := []struct {
		in   string
		want Direction
	}{
		{"2.5", DirectionIncrease},
		{"0.0001", DirectionIncrease},
		{"0", DirectionDecrease},
		{"-3.1", DirectionDecrease},
	}
	for _, c := range cases {
		if got := DirectionOf(decimal.RequireFromString(c.in)); got != c.want {
			t.Fatalf("DirectionOf(%s)=%s want %s", c.in, got, c.want)
		}
	}
}

func TestNewAlert(t *testing.T) {
	p := decimal.RequireFromString("190.5")
	ch := decimal.RequireFromString("-2.3")
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	a := NewAlert("id-1", AlertMessage{Ticker: "AAPL", Price: &p, ChangePercent: &ch}, at)
	if a.ID != "id-1" || a.Ticker != "AAPL" || !a.ObservedAt.Equal(at) {
		t.Fatalf("unexpected alert %+v", a)
	}
	if !a.Price.Equal(p) || a.Direction != DirectionDecrease {
		t.Fatalf("unexpected price/direction %+v", a)
	}
}

func TestConnectionStatusJSON(t *testing.T) {
	b, err := json.Marshal(map[string]ConnectionStatus{"s": StatusConnected})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"s":"connected"}` {
		t.Fatalf("got %s", b)
	}
	if StatusDisconnected.String() != "disconnected" || StatusConnecting.String() != "connecting" {
		t.Fatalf("unexpected status names")
	}
}

func TestErrorsUnwrap(t *testing.T) {
	base := errors.New("boom")
	var te *TransportError
	if !errors.As(error(&TransportError{Op: "dial", Err: base}), &te) || !errors.Is(te, base) {
		t.Fatalf("transport error should unwrap")
	}
	ce := &ConfigurationError{Field: "feed.url", Value: "http://x", Err: ErrInvalidEndpoint}
	if !errors.Is(ce, ErrInvalidEndpoint) {
		t.Fatalf("configuration error should unwrap to ErrInvalidEndpoint")
	}
	if (&DecodeError{Index: -1, Reason: "malformed json"}).Error() != "decode frame: malformed json" {
		t.Fatalf("unexpected decode error text")
	}
}
