package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/HerbHall/telerelay/internal/collector"
	"github.com/HerbHall/telerelay/internal/config"
	"github.com/HerbHall/telerelay/internal/server"
	"github.com/HerbHall/telerelay/internal/sink"
)

// collectorSettings is the decoded collector configuration. A config file may
// also set bind_addr, which wins over ip and port, and the mqtt section in
// full.
type collectorSettings struct {
	collector.Config `mapstructure:",squash"`

	IP       string          `mapstructure:"ip"`
	Port     int             `mapstructure:"port"`
	HTTPAddr string          `mapstructure:"http_addr"`
	History  int             `mapstructure:"history"`
	MQTT     sink.MQTTConfig `mapstructure:"mqtt"`
}

func collectorFlags() *pflag.FlagSet {
	def := collector.DefaultConfig()
	mqtt := sink.DefaultMQTTConfig()

	fs := pflag.NewFlagSet("collector", pflag.ContinueOnError)
	commonFlags(fs)
	fs.StringP("ip", "i", "0.0.0.0", "bind address")
	fs.IntP("port", "p", 5005, "bind port")
	fs.IntP("buffer", "b", def.BufferSize, "socket buffer size in bytes")
	fs.Duration("io-timeout", 0, "per-operation socket timeout (0 waits forever)")
	fs.String("on-malformed", string(def.OnMalformed), "malformed record policy: fatal, drop-record or drop-connection")
	fs.String("http-addr", "", "serve health, metrics and live telemetry on this address")
	fs.Int("history", sink.DefaultHistory, "records kept for the HTTP series view")
	fs.String("mqtt-broker", "", "publish records to this MQTT broker, e.g. tcp://localhost:1883")
	fs.String("mqtt-topic", mqtt.Topic, "MQTT topic")
	fs.Int("mqtt-qos", mqtt.QoS, "MQTT QoS (0, 1 or 2)")
	fs.Bool("mqtt-retained", mqtt.Retained, "publish MQTT messages as retained")

	bindKeys(fs, map[string]string{
		"buffer":        "buffer_size",
		"mqtt-broker":   "mqtt.broker",
		"mqtt-topic":    "mqtt.topic",
		"mqtt-qos":      "mqtt.qos",
		"mqtt-retained": "mqtt.retained",
	})
	return fs
}

func runCollector(args []string) int {
	fs := collectorFlags()
	cfg, code := parse(fs, args)
	if cfg == nil {
		return code
	}

	logger, err := newLogger(cfg.GetString("log_level"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer logger.Sync() //nolint:errcheck

	settings, err := loadCollector(cfg)
	if err != nil {
		logger.Error("invalid collector configuration", zap.Error(err))
		return 1
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sinks := sink.Multi{sink.NewLog(logger), sink.NewPrometheus(reg)}

	var live *sink.Live
	if settings.HTTPAddr != "" {
		live = sink.NewLive(settings.History)
		sinks = append(sinks, live)
	}

	if settings.MQTT.Broker != "" {
		m, err := sink.NewMQTT(settings.MQTT, logger)
		if err != nil {
			logger.Error("mqtt sink unavailable", zap.Error(err))
			return 1
		}
		defer m.Close()
		sinks = append(sinks, m)
	}

	c := collector.New(&settings.Config, sinks, logger, collector.WithMetrics(collector.NewMetrics(reg)))
	if err := c.Listen(); err != nil {
		logger.Error("listen failed", zap.Error(err))
		return 1
	}

	ctx, stop := signalContext()
	defer stop()

	httpErr := make(chan error, 1)
	var srv *server.Server
	if live != nil {
		srv = server.New(settings.HTTPAddr, live, reg, logger)
		go func() { httpErr <- srv.Start() }()
	}

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	select {
	case err = <-runErr:
	case err = <-httpErr:
		// The HTTP surface failed; stop the collector with it.
		stop()
		err = errors.Join(err, <-runErr)
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", zap.Error(err))
		}
		cancel()
	}

	if err != nil {
		logger.Error("collector stopped", zap.Error(err))
		return 1
	}
	return 0
}

// loadCollector decodes cfg over the defaults and validates the result. The
// mqtt section is checked only when a broker is configured.
func loadCollector(cfg *config.Config) (*collectorSettings, error) {
	s := &collectorSettings{
		Config:  *collector.DefaultConfig(),
		History: sink.DefaultHistory,
		MQTT:    sink.DefaultMQTTConfig(),
	}
	if err := cfg.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("decode collector configuration: %w", err)
	}

	if cfg.IsSet("bind_addr") {
		s.BindAddr = cfg.GetString("bind_addr")
	} else {
		s.BindAddr = net.JoinHostPort(s.IP, strconv.Itoa(s.Port))
	}

	errs := []error{s.Config.Validate()}
	if s.MQTT.Broker != "" {
		errs = append(errs, s.MQTT.Validate())
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}
