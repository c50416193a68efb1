// Package source implements the probe's metric collaborators: host readings
// from shell commands or the Linux proc/sys filesystems, and throughput from
// an iperf3 run.
package source

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/HerbHall/telerelay/internal/telemetry"
)

// ErrNoMeasurement is returned when a tool produced no usable number.
var ErrNoMeasurement = errors.New("no measurement")

// Device reads the four scalar host metrics.
type Device interface {
	CPUUsage(ctx context.Context) (float64, error)
	Uptime(ctx context.Context) (float64, error)
	Temperature(ctx context.Context) (float64, error)
	ClockFrequency(ctx context.Context) (float64, error)
}

// Bandwidth measures network throughput over d.
type Bandwidth interface {
	MeasureBitrates(ctx context.Context, d time.Duration) (recv, send float64, err error)
}

// Source pairs a Device with a Bandwidth meter.
type Source struct {
	Device
	Bandwidth
}

// New returns a Source backed by device and bandwidth.
func New(device Device, bandwidth Bandwidth) *Source {
	return &Source{Device: device, Bandwidth: bandwidth}
}

// firstValue parses the first decimal token of a tool's output.
func firstValue(reading, output string) (float64, error) {
	tok, ok := telemetry.FirstDecimalToken(output)
	if !ok {
		return 0, fmt.Errorf("%s: %w in output %q", reading, ErrNoMeasurement, truncate(output, 80))
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: parse %q: %w", reading, tok, err)
	}
	return v, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
