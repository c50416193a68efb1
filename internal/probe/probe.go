// Package probe drives the initiating side of a telemetry session: one
// handshake, then a measure, encode, send and sleep cycle until interrupted
// or a fatal error.
package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/telerelay/internal/session"
	"github.com/HerbHall/telerelay/internal/telemetry"
	"go.uber.org/zap"
)

// MetricSource supplies the readings for one cycle.
type MetricSource interface {
	CPUUsage(ctx context.Context) (float64, error)
	Uptime(ctx context.Context) (float64, error)
	Temperature(ctx context.Context) (float64, error)
	ClockFrequency(ctx context.Context) (float64, error)
	MeasureBitrates(ctx context.Context, d time.Duration) (recv, send float64, err error)
}

// Probe is the telemetry sender.
type Probe struct {
	config *Config
	source MetricSource
	logger *zap.Logger

	state  State
	cycles uint64

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a probe. The handshake payload must be set in config.
func New(config *Config, source MetricSource, logger *zap.Logger) *Probe {
	return &Probe{
		config: config,
		source: source,
		logger: logger.Named("probe"),
		state:  StateConnecting,
		sleep:  sleepContext,
	}
}

// State returns the current loop state.
func (p *Probe) State() State {
	return p.state
}

// Cycles returns the number of records sent.
func (p *Probe) Cycles() uint64 {
	return p.cycles
}

// Run connects, handshakes and streams records until ctx is cancelled or a
// fatal error occurs. It returns nil when interrupted.
func (p *Probe) Run(ctx context.Context) error {
	p.logger.Info("probe starting",
		zap.String("server", p.config.ServerAddr),
		zap.Int("buffer_size", p.config.BufferSize),
		zap.Duration("measure_duration", p.config.MeasureDuration),
		zap.Duration("interval", p.config.Interval),
	)

	var (
		sess   *session.Session
		record telemetry.Record
	)
	defer func() {
		if sess != nil {
			sess.Close()
		}
	}()

	p.state = StateConnecting
	for {
		var (
			next State
			err  error
		)

		switch p.state {
		case StateConnecting:
			sess, err = session.Dial(ctx, p.config.ServerAddr, p.config.BufferSize,
				session.WithIOTimeout(p.config.IOTimeout))
			if err == nil {
				p.logger.Info("connected", zap.String("server", sess.PeerAddr().String()))
			}
			next = StateHandshaking

		case StateHandshaking:
			var reply string
			reply, err = session.Greet(ctx, sess, p.config.Handshake)
			if err == nil {
				p.logger.Info("handshake reply received", zap.String("reply", reply))
			}
			next = StateMeasuring

		case StateMeasuring:
			record, err = p.measure(ctx)
			next = StateSending

		case StateSending:
			err = p.send(ctx, sess, record)
			next = StateSleeping

		case StateSleeping:
			err = p.sleep(ctx, p.config.Interval)
			next = StateMeasuring

		default:
			return fmt.Errorf("probe in unexpected state %s", p.state)
		}

		if err != nil {
			return p.terminate(ctx, err)
		}
		p.transition(next)
	}
}

// measure runs the bandwidth test first, then reads the host metrics in
// wire order.
func (p *Probe) measure(ctx context.Context) (telemetry.Record, error) {
	var r telemetry.Record
	var err error

	if r.BitrateRecv, r.BitrateSend, err = p.source.MeasureBitrates(ctx, p.config.MeasureDuration); err != nil {
		return r, err
	}
	if r.CPUUsage, err = p.source.CPUUsage(ctx); err != nil {
		return r, err
	}
	if r.UptimeSeconds, err = p.source.Uptime(ctx); err != nil {
		return r, err
	}
	if r.TemperatureCelsius, err = p.source.Temperature(ctx); err != nil {
		return r, err
	}
	if r.ClockArmHz, err = p.source.ClockFrequency(ctx); err != nil {
		return r, err
	}
	return r, nil
}

func (p *Probe) send(ctx context.Context, sess *session.Session, r telemetry.Record) error {
	payload, err := telemetry.Encode(r)
	if err != nil {
		return err
	}
	if len(payload) > sess.BufferSize() {
		p.logger.Warn("payload exceeds buffer size and may be truncated by the collector",
			zap.Int("payload_bytes", len(payload)),
			zap.Int("buffer_size", sess.BufferSize()),
		)
	}
	if err := sess.Send(ctx, payload); err != nil {
		return err
	}

	p.cycles++
	p.logger.Info("record sent", zap.Uint64("cycle", p.cycles), zap.String("payload", payload))
	return nil
}

func (p *Probe) transition(next State) {
	if !p.state.CanTransition(next) {
		// The switch in Run only produces table transitions.
		panic(fmt.Sprintf("probe: illegal transition %s -> %s", p.state, next))
	}
	p.logger.Debug("state transition", zap.Stringer("from", p.state), zap.Stringer("to", next))
	p.state = next
}

func (p *Probe) terminate(ctx context.Context, err error) error {
	from := p.state
	p.transition(StateTerminated)

	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		p.logger.Info("probe interrupted, closing connection",
			zap.Stringer("state", from),
			zap.Uint64("cycles", p.cycles),
		)
		return nil
	}

	p.logger.Error("probe terminated",
		zap.Stringer("state", from),
		zap.Uint64("cycles", p.cycles),
		zap.Error(err),
	)
	return fmt.Errorf("probe %s: %w", from, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
