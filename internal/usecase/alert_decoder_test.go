package usecase

import (
	"errors"
	"testing"

	"FinAlert/internal/domain/models"

	"github.com/go-playground/validator/v10"
)

func TestDecodeBatch(t *testing.T) {
	v := validator.New()
	cases := []struct {
		name     string
		raw      string
		frameErr bool
		ignored  bool
		tickers  []string
		skipped  int
	}{
		{name: "valid", raw: `{"type":"batch","alerts":[{"ticker":"AAPL","price":190.5,"change_percent":2.3,"timestamp":"2024-01-01T00:00:00"}]}`, tickers: []string{"AAPL"}},
		{name: "mixed", raw: `{"type":"batch","alerts":[{"ticker":"AAPL","price":190.5,"change_percent":2.3},{"ticker":"BAD"}]}`, tickers: []string{"AAPL"}, skipped: 1},
		{name: "string decimals", raw: `{"type":"batch","alerts":[{"ticker":"MSFT","price":"410.10","change_percent":"-2.5"}]}`, tickers: []string{"MSFT"}},
		{name: "negative price", raw: `{"type":"batch","alerts":[{"ticker":"X","price":-1,"change_percent":3}]}`, skipped: 1},
		{name: "entry not object", raw: `{"type":"batch","alerts":[42,{"ticker":"TSLA","price":1,"change_percent":-4}]}`, tickers: []string{"TSLA"}, skipped: 1},
		{name: "null price", raw: `{"type":"batch","alerts":[{"ticker":"X","price":null,"change_percent":3}]}`, skipped: 1},
		{name: "empty batch", raw: `{"type":"batch","alerts":[]}`},
		{name: "other type", raw: `{"type":"heartbeat"}`, ignored: true},
		{name: "malformed", raw: `{"type":`, frameErr: true},
		{name: "alerts missing", raw: `{"type":"batch"}`, frameErr: true},
		{name: "alerts not array", raw: `{"type":"batch","alerts":{"ticker":"A"}}`, frameErr: true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := decodeBatch(v, []byte(c.raw))
			if c.frameErr {
				var de *models.DecodeError
				if !errors.As(err, &de) || de.Index != -1 {
					t.Fatalf("expected frame decode error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Ignored != c.ignored {
				t.Fatalf("ignored=%v want %v", got.Ignored, c.ignored)
			}
			if len(got.Alerts) != len(c.tickers) {
				t.Fatalf("alerts=%d want %d", len(got.Alerts), len(c.tickers))
			}
			for i, tk := range c.tickers {
				if got.Alerts[i].Ticker != tk {
					t.Fatalf("alert[%d]=%s want %s", i, got.Alerts[i].Ticker, tk)
				}
			}
			if len(got.Skipped) != c.skipped {
				t.Fatalf("skipped=%d want %d (%v)", len(got.Skipped), c.skipped, got.Skipped)
			}
		})
	}
}
