package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/HerbHall/telerelay/internal/telemetry"
)

var sampleRecord = telemetry.Record{
	CPUUsage:           23.5,
	UptimeSeconds:      10234.1,
	TemperatureCelsius: 48.3,
	ClockArmHz:         1500000000,
	BitrateRecv:        94.1,
	BitrateSend:        96.3,
}

func TestMulti_PublishesToAll(t *testing.T) {
	var got []string
	record := func(name string, err error) Sink {
		return Func(func(_ context.Context, _ telemetry.Record) error {
			got = append(got, name)
			return err
		})
	}
	errFirst := errors.New("first failed")

	m := Multi{record("a", errFirst), record("b", nil), record("c", nil)}
	err := m.Publish(context.Background(), sampleRecord)

	require.ErrorIs(t, err, errFirst)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestMulti_Empty(t *testing.T) {
	assert.NoError(t, Multi(nil).Publish(context.Background(), sampleRecord))
}

func TestLog_Publish(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := NewLog(zap.New(core))

	require.NoError(t, l.Publish(context.Background(), sampleRecord))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "23.5 - 10234.1 - 48.3 - 1500000000 - 94.1 - 96.3", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, 48.3, fields["temperature"])
	assert.Equal(t, 96.3, fields["bitrate_send"])
}
