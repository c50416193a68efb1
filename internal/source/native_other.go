//go:build !linux

package source

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Native is only implemented on Linux.
type Native struct{}

// NewNative reports that native readings are unavailable on this platform.
func NewNative(logger *zap.Logger) (*Native, error) {
	logger.Warn("native metric source is only supported on Linux; use the command source")
	return nil, errors.New("native metric source is only supported on linux")
}

func (*Native) CPUUsage(context.Context) (float64, error)       { return 0, ErrNoMeasurement }
func (*Native) Uptime(context.Context) (float64, error)         { return 0, ErrNoMeasurement }
func (*Native) Temperature(context.Context) (float64, error)    { return 0, ErrNoMeasurement }
func (*Native) ClockFrequency(context.Context) (float64, error) { return 0, ErrNoMeasurement }
