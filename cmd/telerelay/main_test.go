package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HerbHall/telerelay/internal/collector"
	"github.com/HerbHall/telerelay/internal/config"
)

func load(t *testing.T, fs *pflag.FlagSet, args ...string) {
	t.Helper()
	require.NoError(t, fs.Parse(args))
}

func TestProbeConfig_Defaults(t *testing.T) {
	fs := probeFlags()
	load(t, fs)
	cfg, err := config.Load(fs)
	require.NoError(t, err)

	pcfg, err := loadProbe(cfg)
	require.NoError(t, err)
	assert.Equal(t, "localhost:5005", pcfg.ServerAddr)
	assert.Equal(t, 1024, pcfg.BufferSize)
	assert.Equal(t, 10*time.Second, pcfg.MeasureDuration)
	assert.Empty(t, pcfg.Handshake)
}

func TestProbeConfig_Flags(t *testing.T) {
	fs := probeFlags()
	load(t, fs, "-i", "10.0.0.7", "-p", "6000", "-b", "2048", "-t", "3s", "--handshake", "hello")
	cfg, err := config.Load(fs)
	require.NoError(t, err)

	pcfg, err := loadProbe(cfg)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7:6000", pcfg.ServerAddr)
	assert.Equal(t, 2048, pcfg.BufferSize)
	assert.Equal(t, 3*time.Second, pcfg.MeasureDuration)
	assert.Equal(t, "hello", pcfg.Handshake)
}

func TestProbeConfig_IPv6(t *testing.T) {
	fs := probeFlags()
	load(t, fs, "-i", "::1")
	cfg, err := config.Load(fs)
	require.NoError(t, err)

	pcfg, err := loadProbe(cfg)
	require.NoError(t, err)
	assert.Equal(t, "[::1]:5005", pcfg.ServerAddr)
}

func TestProbeConfig_Invalid(t *testing.T) {
	fs := probeFlags()
	load(t, fs, "-b", "0", "-t", "0s")
	cfg, err := config.Load(fs)
	require.NoError(t, err)

	_, err = loadProbe(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "buffer size")
	assert.Contains(t, err.Error(), "measure duration")
}

func TestMetricSource_UnknownKind(t *testing.T) {
	fs := probeFlags()
	load(t, fs, "--source", "carrier-pigeon")
	cfg, err := config.Load(fs)
	require.NoError(t, err)

	settings, err := loadProbe(cfg)
	require.NoError(t, err)
	_, err = metricSource(settings, nil)
	assert.ErrorContains(t, err, "carrier-pigeon")
}

func TestCollectorConfig(t *testing.T) {
	t.Setenv("TELERELAY_ON_MALFORMED", "drop-record")

	fs := collectorFlags()
	load(t, fs, "-p", "6001")
	cfg, err := config.Load(fs)
	require.NoError(t, err)

	ccfg, err := loadCollector(cfg)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:6001", ccfg.BindAddr)
	assert.Equal(t, collector.MalformedDropRecord, ccfg.OnMalformed)
}

func TestCollectorConfig_BadPolicy(t *testing.T) {
	fs := collectorFlags()
	load(t, fs, "--on-malformed", "ignore")
	cfg, err := config.Load(fs)
	require.NoError(t, err)

	_, err = loadCollector(cfg)
	assert.Error(t, err)
}

func TestReadHandshake(t *testing.T) {
	var out bytes.Buffer
	text, err := readHandshake(strings.NewReader("\n  \nhello\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, strings.Repeat(handshakePrompt, 3), out.String())
}

func TestReadHandshake_EOF(t *testing.T) {
	_, err := readHandshake(strings.NewReader(""), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := newLogger(level)
		require.NoError(t, err, level)
		assert.NotNil(t, logger)
	}
	_, err := newLogger("chatty")
	assert.Error(t, err)
}

func TestRun_Commands(t *testing.T) {
	assert.Equal(t, 0, run([]string{"version"}))
	assert.Equal(t, 2, run(nil))
	assert.Equal(t, 2, run([]string{"teleport"}))
	assert.Equal(t, 0, run([]string{"probe", "--help"}))
}

func TestProbeFlags_TransmitTimeSeconds(t *testing.T) {
	tests := []struct {
		arg  string
		want time.Duration
	}{
		{"10", 10 * time.Second},
		{"2.5", 2500 * time.Millisecond},
		{"1m", time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			fs := probeFlags()
			load(t, fs, "-t", tt.arg)
			cfg, err := config.Load(fs)
			require.NoError(t, err)

			settings, err := loadProbe(cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, settings.MeasureDuration)
		})
	}
}

func TestProbeFlags_TransmitTimeInvalid(t *testing.T) {
	for _, arg := range []string{"-3", "soon"} {
		fs := probeFlags()
		assert.Error(t, fs.Parse([]string{"-t", arg}), "-t %s", arg)
	}
}

func TestLoadProbe_ConfigFileSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.yaml")
	file := `
server_addr: collector.lan:6000
measure_duration: 4s
iperf:
  host: iperf.lan
  reverse: false
commands:
  temperature: cat /sys/class/thermal/thermal_zone0/temp
`
	require.NoError(t, os.WriteFile(path, []byte(file), 0o600))

	fs := probeFlags()
	load(t, fs, "--config", path, "--iperf-port", "5300")
	cfg, err := config.Load(fs)
	require.NoError(t, err)

	s, err := loadProbe(cfg)
	require.NoError(t, err)
	assert.Equal(t, "collector.lan:6000", s.ServerAddr)
	assert.Equal(t, 4*time.Second, s.MeasureDuration)
	assert.Equal(t, "iperf.lan", s.Iperf.Host)
	assert.Equal(t, 5300, s.Iperf.Port, "flag beats default")
	assert.False(t, s.Iperf.Reverse)
	assert.Equal(t, "iperf3", s.Iperf.Binary, "default survives")
	assert.Equal(t, "cat /sys/class/thermal/thermal_zone0/temp", s.Commands.Temperature)
	assert.Equal(t, "cat /proc/uptime", s.Commands.Uptime, "default survives")
}

func TestLoadCollector_MQTTSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collector.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mqtt:\n  client_id: bench\n  qos: 1\n"), 0o600))

	fs := collectorFlags()
	load(t, fs, "--config", path, "--mqtt-broker", "tcp://broker:1883")
	cfg, err := config.Load(fs)
	require.NoError(t, err)

	s, err := loadCollector(cfg)
	require.NoError(t, err)
	assert.Equal(t, "tcp://broker:1883", s.MQTT.Broker)
	assert.Equal(t, "bench", s.MQTT.ClientID)
	assert.Equal(t, 1, s.MQTT.QoS)
	assert.Equal(t, "telerelay/telemetry", s.MQTT.Topic)
	assert.Equal(t, 10*time.Second, s.MQTT.ConnectTimeout, "default survives")
}

func TestLoadCollector_RejectsBadQoS(t *testing.T) {
	fs := collectorFlags()
	load(t, fs, "--mqtt-broker", "tcp://broker:1883", "--mqtt-qos", "300")
	cfg, err := config.Load(fs)
	require.NoError(t, err)

	_, err = loadCollector(cfg)
	assert.ErrorContains(t, err, "qos")
}

func TestLoadCollector_QoSIgnoredWithoutBroker(t *testing.T) {
	fs := collectorFlags()
	load(t, fs, "--mqtt-qos", "300")
	cfg, err := config.Load(fs)
	require.NoError(t, err)

	_, err = loadCollector(cfg)
	assert.NoError(t, err)
}
