package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/HerbHall/telerelay/internal/telemetry"
)

// StaticSource returns the same readings every cycle and logs the order in
// which they were requested.
type StaticSource struct {
	Record telemetry.Record

	// Err, when set for a reading name ("cpu", "uptime", "temperature",
	// "clock", "bitrates"), is returned instead of the value.
	Err map[string]error

	mu    sync.Mutex
	calls []string
}

// NewStaticSource returns a StaticSource reporting r.
func NewStaticSource(r telemetry.Record) *StaticSource {
	return &StaticSource{Record: r}
}

func (s *StaticSource) CPUUsage(_ context.Context) (float64, error) {
	return s.Record.CPUUsage, s.called("cpu")
}

func (s *StaticSource) Uptime(_ context.Context) (float64, error) {
	return s.Record.UptimeSeconds, s.called("uptime")
}

func (s *StaticSource) Temperature(_ context.Context) (float64, error) {
	return s.Record.TemperatureCelsius, s.called("temperature")
}

func (s *StaticSource) ClockFrequency(_ context.Context) (float64, error) {
	return s.Record.ClockArmHz, s.called("clock")
}

func (s *StaticSource) MeasureBitrates(_ context.Context, _ time.Duration) (recv, send float64, err error) {
	return s.Record.BitrateRecv, s.Record.BitrateSend, s.called("bitrates")
}

// Calls returns the reading names in request order.
func (s *StaticSource) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *StaticSource) called(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
	return s.Err[name]
}
