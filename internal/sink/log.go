package sink

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/HerbHall/telerelay/internal/telemetry"
)

// Log writes one info line per record.
type Log struct {
	logger *zap.Logger
}

// NewLog returns a Log sink.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger.Named("telemetry")}
}

// Publish logs the record as "cpu - uptime - temperature - clock - recv - send"
// plus one structured field per series.
func (l *Log) Publish(_ context.Context, r telemetry.Record) error {
	values := r.Values()
	parts := make([]string, len(values))
	fields := make([]zap.Field, 0, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
		fields = append(fields, zap.Float64(telemetry.Fields[i].Series, v))
	}
	l.logger.Info(strings.Join(parts, " - "), fields...)
	return nil
}
