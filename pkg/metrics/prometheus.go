package metrics

import (
	"FinAlert/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	alertsReceived prometheus.Counter
	alertsEmitted  prometheus.Counter
	emissionSize   prometheus.Histogram
	errorsTotal    *prometheus.CounterVec
	status         prometheus.Gauge
	reconnects     prometheus.Counter
	lastPrice      *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		alertsReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "finalert_alerts_received_total",
			Help: "Total number of alerts accepted from the feed",
		}),
		alertsEmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "finalert_alerts_emitted_total",
			Help: "Total number of alerts delivered to subscribers",
		}),
		emissionSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "finalert_emission_size",
			Help:    "Number of alerts per throttled emission",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finalert_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		status: f.NewGauge(prometheus.GaugeOpts{
			Name: "finalert_connection_status",
			Help: "Feed connection status (0=disconnected, 1=connecting, 2=connected)",
		}),
		reconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "finalert_reconnects_total",
			Help: "Total number of reconnect attempts",
		}),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finalert_last_price",
				Help: "Last alerted price for a ticker",
			},
			[]string{"ticker"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finalert_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordAlertsReceived(n int) { r.alertsReceived.Add(float64(n)) }

// RecordAlertsEmitted records one emission of n alerts.
func (r *Recorder) RecordAlertsEmitted(n int) {
	r.alertsEmitted.Add(float64(n))
	r.emissionSize.Observe(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordStatus(s models.ConnectionStatus) { r.status.Set(float64(s)) }

func (r *Recorder) RecordReconnect() { r.reconnects.Inc() }

// RecordLastPrice records the last price for a ticker.
func (r *Recorder) RecordLastPrice(ticker string, price float64) {
	r.lastPrice.WithLabelValues(ticker).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) RecordAlertsReceived(int) {}
func (Nop) RecordAlertsEmitted(int) {}
func (Nop) RecordError(string) {}
func (Nop) RecordStatus(models.ConnectionStatus) {}
func (Nop) RecordReconnect() {}
func (Nop) RecordLastPrice(string, float64) {}
func (Nop) RecordLatency(string, float64) {}
