// Package collector drives the accepting side of a telemetry session: it
// waits for a probe, echoes its handshake, then decodes every payload and
// hands the record to a Sink until the probe disconnects.
package collector

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/HerbHall/telerelay/internal/session"
	"github.com/HerbHall/telerelay/internal/telemetry"
)

// Sink consumes decoded records, one call per received payload.
type Sink interface {
	Publish(ctx context.Context, r telemetry.Record) error
}

// Option configures a Collector.
type Option func(*Collector)

// WithMetrics records activity in m.
func WithMetrics(m *Metrics) Option {
	return func(c *Collector) { c.metrics = m }
}

// WithObserver calls fn on every state change, before the new state runs.
func WithObserver(fn func(from, to State)) Option {
	return func(c *Collector) { c.observe = fn }
}

// Collector is the telemetry receiver. It serves one probe at a time.
type Collector struct {
	config  *Config
	sink    Sink
	logger  *zap.Logger
	metrics *Metrics
	observe func(from, to State)

	listener *session.Listener
	state    State
}

// New creates a collector that publishes to sink.
func New(config *Config, sink Sink, logger *zap.Logger, opts ...Option) *Collector {
	c := &Collector{
		config: config,
		sink:   sink,
		logger: logger.Named("collector"),
		state:  StateAwaitingConnection,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(prometheus.NewRegistry())
	}
	return c
}

// Listen binds the configured address. Run calls it when needed; calling it
// first lets a caller learn the bound address or fail fast on ErrBind.
func (c *Collector) Listen() error {
	if c.listener != nil {
		return nil
	}
	l, err := session.Listen(c.config.BindAddr, c.config.BufferSize,
		session.WithIOTimeout(c.config.IOTimeout))
	if err != nil {
		return err
	}
	c.listener = l
	c.logger.Info("listening",
		zap.String("addr", l.Addr().String()),
		zap.Int("buffer_size", c.config.BufferSize),
		zap.String("on_malformed", string(c.policy())),
	)
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (c *Collector) Addr() net.Addr {
	if c.listener == nil {
		return nil
	}
	return c.listener.Addr()
}

// State returns the current loop state.
func (c *Collector) State() State {
	return c.state
}

// Run serves probes until ctx is cancelled or a fatal error occurs. It
// returns nil when interrupted.
func (c *Collector) Run(ctx context.Context) error {
	if err := c.Listen(); err != nil {
		c.logger.Error("cannot bind", zap.String("addr", c.config.BindAddr), zap.Error(err))
		return err
	}
	defer c.listener.Close()

	var (
		sess    *session.Session
		log     = c.logger
		payload string
		record  telemetry.Record
	)
	closeSession := func() {
		if sess != nil {
			sess.Close()
			sess = nil
			c.metrics.Connected.Set(0)
		}
	}
	defer closeSession()

	for {
		var (
			next State
			err  error
		)

		switch c.state {
		case StateAwaitingConnection:
			log = c.logger
			log.Info("waiting for probe")
			sess, err = c.listener.Accept(ctx)
			if err == nil {
				log = c.logger.With(
					zap.String("session_id", uuid.NewString()),
					zap.String("peer", sess.PeerAddr().String()),
				)
				c.metrics.Sessions.Inc()
				c.metrics.Connected.Set(1)
				log.Info("probe connected")
			}
			next = StateHandshaking

		case StateHandshaking:
			var greeting string
			greeting, err = session.Echo(ctx, sess)
			switch {
			case errors.Is(err, session.ErrPeerClosed):
				log.Info("probe disconnected before handshake")
				c.metrics.Disconnects.Inc()
				closeSession()
				err, next = nil, StateAwaitingConnection
			case err == nil:
				log.Info("handshake echoed", zap.String("payload", greeting))
				next = StateReceiving
			}

		case StateReceiving:
			payload, err = sess.Receive(ctx)
			if err == nil && payload == "" {
				log.Info("probe disconnected, closing connection and waiting")
				c.metrics.Disconnects.Inc()
				closeSession()
				next = StateAwaitingConnection
			} else {
				next = StateDecoding
			}

		case StateDecoding:
			record, err = telemetry.Decode(payload)
			next = StatePublishing
			if errors.Is(err, telemetry.ErrMalformedRecord) {
				c.metrics.Malformed.Inc()
				next, err = c.onMalformed(log, payload, err)
				if next == StateAwaitingConnection {
					closeSession()
				}
			}

		case StatePublishing:
			log.Debug("record decoded",
				zap.Float64("cpu_usage", record.CPUUsage),
				zap.Float64("uptime_seconds", record.UptimeSeconds),
				zap.Float64("temperature_celsius", record.TemperatureCelsius),
				zap.Float64("clock_arm_hz", record.ClockArmHz),
				zap.Float64("bitrate_recv", record.BitrateRecv),
				zap.Float64("bitrate_send", record.BitrateSend),
			)
			if err = c.sink.Publish(ctx, record); err != nil {
				err = fmt.Errorf("publish record: %w", err)
			} else {
				c.metrics.Records.Inc()
			}
			next = StateReceiving

		default:
			return fmt.Errorf("collector in unexpected state %s", c.state)
		}

		if err != nil {
			return c.terminate(ctx, log, err)
		}
		c.transition(next)
	}
}

// onMalformed applies the configured policy and returns the next state, or
// the error when the policy is fatal.
func (c *Collector) onMalformed(log *zap.Logger, payload string, err error) (State, error) {
	fields := []zap.Field{
		zap.String("payload", payload),
		zap.String("policy", string(c.policy())),
		zap.Error(err),
	}
	switch c.policy() {
	case MalformedDropRecord:
		log.Warn("dropping malformed record", fields...)
		return StateReceiving, nil
	case MalformedDropConnection:
		log.Warn("malformed record, dropping connection", fields...)
		return StateAwaitingConnection, nil
	default:
		return StateTerminated, err
	}
}

func (c *Collector) policy() MalformedPolicy {
	p, err := ParseMalformedPolicy(string(c.config.OnMalformed))
	if err != nil {
		return MalformedFatal
	}
	return p
}

func (c *Collector) transition(next State) {
	if !c.state.CanTransition(next) {
		// The switch in Run only produces table transitions.
		panic(fmt.Sprintf("collector: illegal transition %s -> %s", c.state, next))
	}
	c.logger.Debug("state transition", zap.Stringer("from", c.state), zap.Stringer("to", next))
	if c.observe != nil {
		c.observe(c.state, next)
	}
	c.state = next
}

func (c *Collector) terminate(ctx context.Context, log *zap.Logger, err error) error {
	from := c.state
	c.transition(StateTerminated)

	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		log.Info("collector interrupted, closing connection", zap.Stringer("state", from))
		return nil
	}

	log.Error("collector terminated", zap.Stringer("state", from), zap.Error(err))
	return fmt.Errorf("collector %s: %w", from, err)
}
