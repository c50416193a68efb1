package source

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// IperfConfig configures the iperf3 client run once per probe cycle.
type IperfConfig struct {
	Binary   string        `mapstructure:"binary"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Interval time.Duration `mapstructure:"interval"`
	Reverse  bool          `mapstructure:"reverse"`
	// Settle is an extra pause after iperf3 exits, for servers that need
	// time before accepting the next test.
	Settle time.Duration `mapstructure:"settle"`
}

// DefaultIperfConfig targets a public iperf3 server in reverse mode, so the
// probe measures its download path.
func DefaultIperfConfig() IperfConfig {
	return IperfConfig{
		Binary:   "iperf3",
		Host:     "bouygues.testdebit.info",
		Port:     5209,
		Interval: 2 * time.Second,
		Reverse:  true,
	}
}

// Iperf measures throughput with the iperf3 client. Bitrates are reported
// in Mbit/s.
type Iperf struct {
	cfg    IperfConfig
	runner Runner
	logger *zap.Logger
}

// Compile-time guard.
var _ Bandwidth = (*Iperf)(nil)

// NewIperf returns an iperf3 meter. A nil runner uses ExecRunner.
func NewIperf(cfg IperfConfig, runner Runner, logger *zap.Logger) *Iperf {
	if runner == nil {
		runner = ExecRunner{}
	}
	if cfg.Binary == "" {
		cfg.Binary = "iperf3"
	}
	return &Iperf{cfg: cfg, runner: runner, logger: logger}
}

// Args returns the iperf3 command line for a run of length d.
func (m *Iperf) Args(d time.Duration) []string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	args := []string{
		"-c", m.cfg.Host,
		"-p", strconv.Itoa(m.cfg.Port),
		"-t", strconv.Itoa(secs),
		"-f", "m",
	}
	if m.cfg.Interval > 0 {
		args = append(args, "-i", strconv.FormatFloat(m.cfg.Interval.Seconds(), 'f', -1, 64))
	}
	if m.cfg.Reverse {
		args = append(args, "-R")
	}
	return args
}

// MeasureBitrates runs iperf3 for d and returns the receiver and sender
// summary bitrates.
func (m *Iperf) MeasureBitrates(ctx context.Context, d time.Duration) (recv, send float64, err error) {
	args := m.Args(d)
	m.logger.Info("running bandwidth test",
		zap.String("host", m.cfg.Host),
		zap.Int("port", m.cfg.Port),
		zap.Duration("duration", d),
	)

	out, err := m.runner.Run(ctx, m.cfg.Binary, args...)
	if err != nil {
		return 0, 0, fmt.Errorf("bandwidth test: %w", err)
	}

	recv, send, err = ParseIperfSummary(out)
	if err != nil {
		return 0, 0, err
	}

	if m.cfg.Settle > 0 {
		m.logger.Debug("waiting after bandwidth test", zap.Duration("settle", m.cfg.Settle))
		t := time.NewTimer(m.cfg.Settle)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		case <-t.C:
		}
	}
	return recv, send, nil
}

var bitrateRe = regexp.MustCompile(`([-+]?(?:\d*\.\d+|\d+))\s+([KMGT]?)bits/sec`)

// ParseIperfSummary extracts the receiver and sender bitrates, in Mbit/s,
// from iperf3's human-readable output. The last summary line of each kind
// wins.
func ParseIperfSummary(out string) (recv, send float64, err error) {
	var haveRecv, haveSend bool

	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		var role string
		switch {
		case strings.HasSuffix(line, "receiver"):
			role = "receiver"
		case strings.HasSuffix(line, "sender"):
			role = "sender"
		default:
			continue
		}

		m := bitrateRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		v, perr := strconv.ParseFloat(m[1], 64)
		if perr != nil {
			continue
		}
		v = toMbits(v, m[2])

		if role == "receiver" {
			recv, haveRecv = v, true
		} else {
			send, haveSend = v, true
		}
	}

	switch {
	case !haveRecv && !haveSend:
		return 0, 0, fmt.Errorf("bandwidth test: %w: no summary lines", ErrNoMeasurement)
	case !haveRecv:
		return 0, 0, fmt.Errorf("bandwidth test: %w: no receiver summary", ErrNoMeasurement)
	case !haveSend:
		return 0, 0, fmt.Errorf("bandwidth test: %w: no sender summary", ErrNoMeasurement)
	}
	return recv, send, nil
}

func toMbits(v float64, prefix string) float64 {
	switch prefix {
	case "":
		return v / 1e6
	case "K":
		return v / 1e3
	case "G":
		return v * 1e3
	case "T":
		return v * 1e6
	default:
		return v
	}
}
