package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/telerelay/internal/telemetry"
)

// MQTTConfig configures the MQTT sink.
type MQTTConfig struct {
	Broker         string        `mapstructure:"broker"`
	Topic          string        `mapstructure:"topic"`
	ClientID       string        `mapstructure:"client_id"`
	QoS            int           `mapstructure:"qos"`
	Retained       bool          `mapstructure:"retained"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// DefaultMQTTConfig returns defaults; Broker is empty, which disables the
// sink.
func DefaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Topic:          "telerelay/telemetry",
		ConnectTimeout: 10 * time.Second,
	}
}

// Validate reports every invalid field at once.
func (c MQTTConfig) Validate() error {
	var errs []error
	if c.Broker == "" {
		errs = append(errs, errors.New("mqtt broker is required"))
	}
	if c.Topic == "" {
		errs = append(errs, errors.New("mqtt topic is required"))
	}
	if c.QoS < 0 || c.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", c.QoS))
	}
	if c.ConnectTimeout <= 0 {
		errs = append(errs, fmt.Errorf("mqtt connect timeout must be positive, got %s", c.ConnectTimeout))
	}
	return errors.Join(errs...)
}

// mqttClient is the part of mqtt.Client the sink uses.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes every record as a JSON sample.
type MQTT struct {
	client mqttClient
	cfg    MQTTConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewMQTT connects to the configured broker.
func NewMQTT(cfg MQTTConfig, logger *zap.Logger) (*MQTT, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "telerelay-" + uuid.NewString()[:8]
	}
	logger = logger.Named("mqtt")

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", zap.Error(err))
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("connect mqtt %s: timed out after %s", cfg.Broker, cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect mqtt %s: %w", cfg.Broker, err)
	}

	logger.Info("mqtt sink connected",
		zap.String("broker", cfg.Broker),
		zap.String("topic", cfg.Topic),
		zap.String("client_id", cfg.ClientID),
	)
	return newMQTT(client, cfg, logger), nil
}

func newMQTT(client mqttClient, cfg MQTTConfig, logger *zap.Logger) *MQTT {
	return &MQTT{client: client, cfg: cfg, logger: logger, now: time.Now}
}

// Publish sends r to the topic and waits for the broker's acknowledgement
// or ctx.
func (m *MQTT) Publish(ctx context.Context, r telemetry.Record) error {
	payload, err := json.Marshal(Sample{Time: m.now().UTC(), Record: r})
	if err != nil {
		return fmt.Errorf("marshal sample: %w", err)
	}

	token := m.client.Publish(m.cfg.Topic, byte(m.cfg.QoS), m.cfg.Retained, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt publish %s: %w", m.cfg.Topic, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects from the broker, allowing in-flight messages 250ms.
func (m *MQTT) Close() {
	m.client.Disconnect(250)
}
