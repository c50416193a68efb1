package telemetry

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		record Record
	}{
		{
			name:   "typical raspberry pi reading",
			record: Record{23.5, 10234.1, 45.0, 700000000, 12.3, 9.8},
		},
		{
			name:   "zeros",
			record: Record{},
		},
		{
			name:   "negative and fractional",
			record: Record{-0.25, 0.001, -12.75, -3, -1e-7, 123456.789},
		},
		{
			name:   "large integers",
			record: Record{100, 1e15, 85, 1.8e9, 9.4e8, 3e10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := Encode(tt.record)
			require.NoError(t, err)
			assert.NotContains(t, payload, "\n")

			got, err := Decode(payload)
			require.NoError(t, err)
			assert.Equal(t, tt.record, got)
		})
	}
}

func TestEncode_Layout(t *testing.T) {
	payload, err := Encode(Record{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t,
		"CPU_Usage: 1 Uptime: 2 Temperature: 3 ClockArm: 4 RecvBitrate: 5 SendBitrate: 6",
		payload)
}

func TestEncode_NonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := Encode(Record{TemperatureCelsius: v})
		if !errors.Is(err, ErrNonFinite) {
			t.Errorf("Encode(temperature=%v) error = %v, want ErrNonFinite", v, err)
		}
	}
}

func TestEncodeFields_Reading(t *testing.T) {
	payload := EncodeFields("23.5", "10234.1", "45.0", "700000000", [2]string{"12.3", "9.8"})

	got, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, Record{
		CPUUsage:           23.5,
		UptimeSeconds:      10234.1,
		TemperatureCelsius: 45.0,
		ClockArmHz:         700000000.0,
		BitrateRecv:        12.3,
		BitrateSend:        9.8,
	}, got)
}

func TestDecode_IgnoresLabels(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"no labels", "1.5 2 3 4 5 6"},
		{"foreign labels", "load=1.5; up=2s; t=3C; f=4Hz; rx=5 tx=6"},
		{"noise around", "  >> 1.5 | 2 | 3 | 4 | 5 | 6 <<  "},
		{"extra tokens ignored", "a 1.5 b 2 c 3 d 4 e 5 f 6 g 7 h 8"},
	}

	want := Record{1.5, 2, 3, 4, 5, 6}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestDecode_Positional(t *testing.T) {
	// Reordered labels do not move values: position wins.
	got, err := Decode("SendBitrate: 1 RecvBitrate: 2 ClockArm: 3 Temperature: 4 Uptime: 5 CPU_Usage: 6")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.CPUUsage)
	assert.Equal(t, 6.0, got.BitrateSend)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []string{
		"garbage no numbers here",
		"",
		"CPU_Usage: 1 Uptime: 2 Temperature: 3 ClockArm: 4 RecvBitrate: 5",
		"hello",
	}

	for _, payload := range tests {
		t.Run(payload, func(t *testing.T) {
			got, err := Decode(payload)
			require.ErrorIs(t, err, ErrMalformedRecord)
			assert.Equal(t, Record{}, got, "no partial record on failure")
		})
	}
}

func TestDecode_Fresh(t *testing.T) {
	a, err := Decode("1 2 3 4 5 6")
	require.NoError(t, err)
	b, err := Decode("7 8 9 10 11 12")
	require.NoError(t, err)

	assert.Equal(t, 1.0, a.CPUUsage)
	assert.Equal(t, 7.0, b.CPUUsage)
}

func TestDecimalTokens(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"12", []string{"12"}},
		{"12.5", []string{"12.5"}},
		{"-3.2", []string{"-3.2"}},
		{"temp=+48.3'C", []string{"+48.3"}},
		{".5 and 7", []string{".5", "7"}},
		{"frequency(48)=700000000", []string{"48", "700000000"}},
		{"none", nil},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, DecimalTokens(tt.in))
		})
	}
}

func TestFirstDecimalToken(t *testing.T) {
	tok, ok := FirstDecimalToken("10234.12 40512.30\n")
	assert.True(t, ok)
	assert.Equal(t, "10234.12", tok)

	_, ok = FirstDecimalToken("command not found")
	assert.False(t, ok)
}

func TestFields_LabelsHaveNoDigits(t *testing.T) {
	for _, f := range Fields {
		if strings.ContainsAny(f.Label, "0123456789") {
			t.Errorf("label %q contains a digit and would shift decoding", f.Label)
		}
	}
}
