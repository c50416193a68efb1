// Package sink implements the collector's record consumers: a log line, a
// Prometheus gauge set, an in-memory live view with subscribers, and an MQTT
// publisher.
package sink

import (
	"context"
	"errors"
	"time"

	"github.com/HerbHall/telerelay/internal/telemetry"
)

// Sink consumes decoded records.
type Sink interface {
	Publish(ctx context.Context, r telemetry.Record) error
}

// Sample is a record stamped with the time the collector published it.
type Sample struct {
	Time time.Time `json:"time"`
	telemetry.Record
}

// Point is one value of one series.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Multi publishes to every sink in order and joins their errors.
type Multi []Sink

// Publish calls every sink even when an earlier one fails.
func (m Multi) Publish(ctx context.Context, r telemetry.Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Func adapts a function to Sink.
type Func func(ctx context.Context, r telemetry.Record) error

// Publish calls f.
func (f Func) Publish(ctx context.Context, r telemetry.Record) error {
	return f(ctx, r)
}
