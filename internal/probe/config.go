package probe

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the probe configuration.
type Config struct {
	ServerAddr      string        `mapstructure:"server_addr"`
	BufferSize      int           `mapstructure:"buffer_size"`
	MeasureDuration time.Duration `mapstructure:"measure_duration"`
	Interval        time.Duration `mapstructure:"interval"`
	Handshake       string        `mapstructure:"handshake"`
	IOTimeout       time.Duration `mapstructure:"io_timeout"`
}

// DefaultConfig returns the default probe configuration.
func DefaultConfig() *Config {
	return &Config{
		ServerAddr:      "localhost:5005",
		BufferSize:      1024,
		MeasureDuration: 10 * time.Second,
		Interval:        2 * time.Second,
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.ServerAddr == "" {
		errs = append(errs, errors.New("server address is required"))
	}
	if c.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("buffer size must be positive, got %d", c.BufferSize))
	}
	if c.MeasureDuration <= 0 {
		errs = append(errs, fmt.Errorf("measure duration must be positive, got %s", c.MeasureDuration))
	}
	if c.Interval < 0 {
		errs = append(errs, fmt.Errorf("interval must not be negative, got %s", c.Interval))
	}
	if c.IOTimeout < 0 {
		errs = append(errs, fmt.Errorf("io timeout must not be negative, got %s", c.IOTimeout))
	}
	return errors.Join(errs...)
}
