package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts collector activity.
type Metrics struct {
	Sessions    prometheus.Counter
	Disconnects prometheus.Counter
	Records     prometheus.Counter
	Malformed   prometheus.Counter
	Connected   prometheus.Gauge
}

// NewMetrics registers the collector metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Sessions: f.NewCounter(prometheus.CounterOpts{
			Namespace: "telerelay",
			Subsystem: "collector",
			Name:      "sessions_total",
			Help:      "Probe connections accepted.",
		}),
		Disconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: "telerelay",
			Subsystem: "collector",
			Name:      "disconnects_total",
			Help:      "Probe connections that ended with a zero-length payload.",
		}),
		Records: f.NewCounter(prometheus.CounterOpts{
			Namespace: "telerelay",
			Subsystem: "collector",
			Name:      "records_total",
			Help:      "Telemetry records decoded and published.",
		}),
		Malformed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "telerelay",
			Subsystem: "collector",
			Name:      "malformed_records_total",
			Help:      "Payloads with fewer than six numeric values.",
		}),
		Connected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "telerelay",
			Subsystem: "collector",
			Name:      "probe_connected",
			Help:      "1 while a probe session is open.",
		}),
	}
}
