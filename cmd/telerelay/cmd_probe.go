package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/HerbHall/telerelay/internal/config"
	"github.com/HerbHall/telerelay/internal/probe"
	"github.com/HerbHall/telerelay/internal/source"
)

const handshakePrompt = "Input some data: "

// probeSettings is the decoded probe configuration. A config file may also
// set server_addr, which wins over ip and port, and the iperf and commands
// sections in full.
type probeSettings struct {
	probe.Config `mapstructure:",squash"`

	IP       string             `mapstructure:"ip"`
	Port     int                `mapstructure:"port"`
	Source   string             `mapstructure:"source"`
	Iperf    source.IperfConfig `mapstructure:"iperf"`
	Commands source.Commands    `mapstructure:"commands"`
}

func probeFlags() *pflag.FlagSet {
	def := probe.DefaultConfig()
	iperf := source.DefaultIperfConfig()

	fs := pflag.NewFlagSet("probe", pflag.ContinueOnError)
	commonFlags(fs)
	fs.StringP("ip", "i", "localhost", "collector address")
	fs.IntP("port", "p", 5005, "collector port")
	fs.IntP("buffer", "b", def.BufferSize, "socket buffer size in bytes")
	secondsVarP(fs, "transmit-time", "t", def.MeasureDuration, "bandwidth test duration per record, in seconds or as a duration")
	fs.String("handshake", "", "handshake text (prompted on stdin when empty)")
	fs.Duration("interval", def.Interval, "pause between records")
	fs.Duration("io-timeout", 0, "per-operation socket timeout (0 waits forever)")
	fs.String("source", "native", "host metric source: native or command")
	fs.String("iperf-host", iperf.Host, "iperf3 server")
	fs.Int("iperf-port", iperf.Port, "iperf3 server port")
	fs.Duration("iperf-settle", iperf.Settle, "pause after each iperf3 run")

	bindKeys(fs, map[string]string{
		"buffer":        "buffer_size",
		"transmit-time": "measure_duration",
		"iperf-host":    "iperf.host",
		"iperf-port":    "iperf.port",
		"iperf-settle":  "iperf.settle",
	})
	return fs
}

func runProbe(args []string) int {
	fs := probeFlags()
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

	settings, err := loadProbe(cfg)
	if err != nil {
		logger.Error("invalid probe configuration", zap.Error(err))
		return 1
	}
	if settings.Handshake == "" {
		settings.Handshake, err = readHandshake(os.Stdin, os.Stdout)
		if err != nil {
			logger.Error("read handshake", zap.Error(err))
			return 1
		}
	}

	src, err := metricSource(settings, logger)
	if err != nil {
		logger.Error("metric source unavailable", zap.Error(err))
		return 1
	}

	ctx, stop := signalContext()
	defer stop()

	if err := probe.New(&settings.Config, src, logger).Run(ctx); err != nil {
		logger.Error("probe stopped", zap.Error(err))
		return 1
	}
	return 0
}

// loadProbe decodes cfg over the defaults and validates the result.
func loadProbe(cfg *config.Config) (*probeSettings, error) {
	s := &probeSettings{
		Config:   *probe.DefaultConfig(),
		Iperf:    source.DefaultIperfConfig(),
		Commands: source.DefaultCommands(),
	}
	if err := cfg.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("decode probe configuration: %w", err)
	}

	if cfg.IsSet("server_addr") {
		s.ServerAddr = cfg.GetString("server_addr")
	} else {
		s.ServerAddr = net.JoinHostPort(s.IP, strconv.Itoa(s.Port))
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// metricSource assembles the device and bandwidth readers and checks their
// tools are installed.
func metricSource(s *probeSettings, logger *zap.Logger) (*source.Source, error) {
	tools := []string{s.Iperf.Binary}

	var device source.Device
	switch s.Source {
	case "native":
		n, err := source.NewNative(logger)
		if err != nil {
			return nil, err
		}
		device = n
	case "command":
		tools = append(tools, s.Commands.Tools()...)
		device = source.NewCommand(s.Commands, source.ExecRunner{}, logger)
	default:
		return nil, fmt.Errorf("unknown source %q, want native or command", s.Source)
	}

	if err := source.RequireTools(tools...); err != nil {
		return nil, err
	}
	return source.New(device, source.NewIperf(s.Iperf, source.ExecRunner{}, logger)), nil
}

// readHandshake prompts on w and returns the first non-empty line read from r.
func readHandshake(r io.Reader, w io.Writer) (string, error) {
	scanner := bufio.NewScanner(r)
	for {
		fmt.Fprint(w, handshakePrompt)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", errors.New("no handshake text on stdin")
		}
		if text := strings.TrimSpace(scanner.Text()); text != "" {
			return text, nil
		}
	}
}
