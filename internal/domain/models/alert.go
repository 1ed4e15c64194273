package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Direction of an alert's price move.
type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
)

// DirectionOf classifies a change percentage. Zero counts as a decrease.
func DirectionOf(change decimal.Decimal) Direction {
	if change.IsPositive() {
		return DirectionIncrease
	}
	return DirectionDecrease
}

// AlertMessage is a single entry of an inbound batch frame.
// Unknown fields (the upstream sends a timestamp) are ignored.
type AlertMessage struct {
	Ticker        string           `json:"ticker" validate:"required,max=32"`
	Price         *decimal.Decimal `json:"price" validate:"required"`
	ChangePercent *decimal.Decimal `json:"change_percent" validate:"required"`
}

// Alert is an accepted, immutable alert as presented to subscribers.
type Alert struct {
	ID            string          `json:"id"`
	Ticker        string          `json:"ticker"`
	Price         decimal.Decimal `json:"price"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	ObservedAt    time.Time       `json:"observed_at"`
	Direction     Direction       `json:"direction"`
}

// NewAlert builds an Alert from a validated message.
func NewAlert(id string, m AlertMessage, observedAt time.Time) Alert {
	a := Alert{
		ID:         id,
		Ticker:     m.Ticker,
		ObservedAt: observedAt,
	}
	if m.Price != nil {
		a.Price = *m.Price
	}
	if m.ChangePercent != nil {
		a.ChangePercent = *m.ChangePercent
	}
	a.Direction = DirectionOf(a.ChangePercent)
	return a
}

// ConnectionStatus is the user-visible state of the feed.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

func (s ConnectionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ConnectionStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "disconnected":
		*s = StatusDisconnected
	case "connecting":
		*s = StatusConnecting
	case "connected":
		*s = StatusConnected
	default:
		return fmt.Errorf("unknown connection status %q", b)
	}
	return nil
}
