//go:build linux

package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/procfs"
	"github.com/prometheus/procfs/sysfs"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Native reads host metrics from /proc and /sys without spawning tools.
type Native struct {
	proc   procfs.FS
	sys    sysfs.FS
	logger *zap.Logger

	mu      sync.Mutex
	prevCPU cpuSample
}

// Compile-time guard.
var _ Device = (*Native)(nil)

// NewNative opens the default proc and sys mounts and takes the first CPU
// sample, so the first CPUUsage covers the time since construction.
func NewNative(logger *zap.Logger) (*Native, error) {
	proc, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}
	sys, err := sysfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("open sysfs: %w", err)
	}

	n := &Native{proc: proc, sys: sys, logger: logger}
	stat, err := proc.Stat()
	if err != nil {
		return nil, fmt.Errorf("read /proc/stat: %w", err)
	}
	n.prevCPU = sampleOf(stat.CPUTotal)
	return n, nil
}

// CPUUsage returns the busy percentage since the previous call.
func (n *Native) CPUUsage(_ context.Context) (float64, error) {
	stat, err := n.proc.Stat()
	if err != nil {
		return 0, fmt.Errorf("cpu usage: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	cur := sampleOf(stat.CPUTotal)
	usage := cpuPercent(n.prevCPU, cur)
	n.prevCPU = cur
	return usage, nil
}

// Uptime returns seconds since boot.
func (n *Native) Uptime(_ context.Context) (float64, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, fmt.Errorf("uptime: sysinfo: %w", err)
	}
	return float64(info.Uptime), nil
}

// Temperature returns the first thermal zone in degrees Celsius.
func (n *Native) Temperature(_ context.Context) (float64, error) {
	zones, err := n.sys.ClassThermalZoneStats()
	if err != nil {
		return 0, fmt.Errorf("temperature: %w: %v", ErrNoMeasurement, err)
	}
	temps := make([]int64, 0, len(zones))
	for _, z := range zones {
		temps = append(temps, z.Temp)
	}
	return firstTemperature(temps)
}

// ClockFrequency returns cpu0's current frequency in Hz.
func (n *Native) ClockFrequency(_ context.Context) (float64, error) {
	stats, err := n.sys.SystemCpufreq()
	if err != nil {
		return 0, fmt.Errorf("clock frequency: %w: %v", ErrNoMeasurement, err)
	}
	for _, s := range stats {
		if khz := currentKHz(s.ScalingCurrentFrequency, s.CpuinfoCurrentFrequency); khz > 0 {
			n.logger.Debug("cpu frequency", zap.String("cpu", s.Name), zap.Uint64("khz", khz))
			return float64(khz) * 1000, nil
		}
	}
	return 0, fmt.Errorf("clock frequency: %w: no cpufreq data", ErrNoMeasurement)
}

func sampleOf(c procfs.CPUStat) cpuSample {
	busy := c.User + c.Nice + c.System + c.IRQ + c.SoftIRQ + c.Steal
	return cpuSample{busy: busy, total: busy + c.Idle + c.Iowait}
}
