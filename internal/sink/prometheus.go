package sink

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/HerbHall/telerelay/internal/telemetry"
)

// Prometheus exposes the latest record as gauges.
type Prometheus struct {
	cpu         prometheus.Gauge
	uptime      prometheus.Gauge
	temperature prometheus.Gauge
	clock       prometheus.Gauge
	recv        prometheus.Gauge
	send        prometheus.Gauge
	updated     prometheus.Gauge

	now func() time.Time
}

// NewPrometheus registers the probe gauges with reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	f := promauto.With(reg)
	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{
			Namespace: "telerelay",
			Subsystem: "probe",
			Name:      name,
			Help:      help,
		})
	}
	return &Prometheus{
		cpu:         gauge("cpu_usage_percent", "CPU usage reported by the probe."),
		uptime:      gauge("uptime_seconds", "Probe host uptime."),
		temperature: gauge("temperature_celsius", "Probe host temperature."),
		clock:       gauge("clock_arm_hertz", "Probe ARM clock frequency."),
		recv:        gauge("bitrate_recv_mbits", "Receiver bitrate of the last bandwidth test, Mbit/s."),
		send:        gauge("bitrate_send_mbits", "Sender bitrate of the last bandwidth test, Mbit/s."),
		updated:     gauge("last_record_timestamp_seconds", "Unix time of the last published record."),
		now:         time.Now,
	}
}

// Publish sets every gauge from r.
func (p *Prometheus) Publish(_ context.Context, r telemetry.Record) error {
	p.cpu.Set(r.CPUUsage)
	p.uptime.Set(r.UptimeSeconds)
	p.temperature.Set(r.TemperatureCelsius)
	p.clock.Set(r.ClockArmHz)
	p.recv.Set(r.BitrateRecv)
	p.send.Set(r.BitrateSend)
	p.updated.Set(float64(p.now().UnixNano()) / 1e9)
	return nil
}
