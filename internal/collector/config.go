package collector

import (
	"errors"
	"fmt"
	"time"
)

// MalformedPolicy decides what a record that fails to decode does to the run.
type MalformedPolicy string

const (
	// MalformedFatal ends the run with the decode error.
	MalformedFatal MalformedPolicy = "fatal"
	// MalformedDropRecord logs the payload and keeps receiving on the same
	// connection.
	MalformedDropRecord MalformedPolicy = "drop-record"
	// MalformedDropConnection closes the session and waits for the next
	// probe.
	MalformedDropConnection MalformedPolicy = "drop-connection"
)

// ParseMalformedPolicy validates a policy name. The empty string selects
// MalformedFatal.
func ParseMalformedPolicy(s string) (MalformedPolicy, error) {
	switch p := MalformedPolicy(s); p {
	case "":
		return MalformedFatal, nil
	case MalformedFatal, MalformedDropRecord, MalformedDropConnection:
		return p, nil
	default:
		return "", fmt.Errorf("unknown malformed-record policy %q (want %s, %s or %s)",
			s, MalformedFatal, MalformedDropRecord, MalformedDropConnection)
	}
}

// Config holds the collector configuration.
type Config struct {
	BindAddr    string          `mapstructure:"bind_addr"`
	BufferSize  int             `mapstructure:"buffer_size"`
	OnMalformed MalformedPolicy `mapstructure:"on_malformed"`
	IOTimeout   time.Duration   `mapstructure:"io_timeout"`
}

// DefaultConfig returns the default collector configuration.
func DefaultConfig() *Config {
	return &Config{
		BindAddr:    "0.0.0.0:5005",
		BufferSize:  1024,
		OnMalformed: MalformedFatal,
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.BindAddr == "" {
		errs = append(errs, errors.New("bind address is required"))
	}
	if c.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("buffer size must be positive, got %d", c.BufferSize))
	}
	if _, err := ParseMalformedPolicy(string(c.OnMalformed)); err != nil {
		errs = append(errs, err)
	}
	if c.IOTimeout < 0 {
		errs = append(errs, fmt.Errorf("io timeout must not be negative, got %s", c.IOTimeout))
	}
	return errors.Join(errs...)
}
