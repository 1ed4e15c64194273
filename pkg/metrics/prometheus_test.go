package metrics

import (
	"testing"

	"FinAlert/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRecorderRegistersAndRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordAlertsReceived(3)
	r.RecordAlertsEmitted(2)
	r.RecordError("decode")
	r.RecordStatus(models.StatusConnected)
	r.RecordReconnect()
	r.RecordLastPrice("AAPL", 190.5)
	r.RecordLatency("ingest", 0.01)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	got := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				got[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				got[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	if got["finalert_alerts_received_total"] != 3 {
		t.Fatalf("received=%v", got["finalert_alerts_received_total"])
	}
	if got["finalert_alerts_emitted_total"] != 2 {
		t.Fatalf("emitted=%v", got["finalert_alerts_emitted_total"])
	}
	if got["finalert_connection_status"] != 2 {
		t.Fatalf("status=%v", got["finalert_connection_status"])
	}
	if got["finalert_last_price"] != 190.5 {
		t.Fatalf("last price=%v", got["finalert_last_price"])
	}
}
