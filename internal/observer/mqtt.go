package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"posturewatch/internal/config"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
	mqttQuiesceMillis  = 250
)

// Publisher is the part of mqtt.Client the observer uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTObserver publishes every Update as JSON to a broker topic. Publishing
// is fire-and-forget: Apply returns once the message is handed to the client
// and delivery failures are only logged.
type MQTTObserver struct {
	client Publisher
	topic  string
	qos    byte
	logger *slog.Logger
	close  func()
}

// NewMQTTObserver wraps an already connected publisher.
func NewMQTTObserver(client Publisher, topic string, qos byte, logger *slog.Logger) *MQTTObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTObserver{
		client: client,
		topic:  topic,
		qos:    qos,
		logger: logger,
		close:  func() {},
	}
}

// DialMQTT connects to cfg.Broker and returns an observer publishing to
// cfg.Topic. A random suffix keeps the client id unique across restarts.
func DialMQTT(cfg config.MQTTConfig, logger *slog.Logger) (*MQTTObserver, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID + "-" + uuid.NewString()[:8])
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password.Unmask())
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("mqtt connected", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "broker", cfg.Broker, "error", err)
	})

	client := mqtt.NewClient(opts)
	if err := connect(client, cfg.Broker, mqttConnectTimeout); err != nil {
		return nil, err
	}

	o := NewMQTTObserver(client, cfg.Topic, cfg.QoS, logger)
	o.close = func() { client.Disconnect(mqttQuiesceMillis) }
	return o, nil
}

// connector is the part of mqtt.Client used while dialing.
type connector interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
}

// connect waits up to timeout for the broker. On failure the client is
// disconnected so connect-retry stops in the background.
func connect(client connector, broker string, timeout time.Duration) error {
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(mqttQuiesceMillis)
		return fmt.Errorf("mqtt: connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(mqttQuiesceMillis)
		return fmt.Errorf("mqtt: connect to %s: %w", broker, err)
	}
	return nil
}

// Apply publishes u. Only marshalling errors are returned.
func (o *MQTTObserver) Apply(_ context.Context, u Update) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("mqtt: marshal update: %w", err)
	}

	token := o.client.Publish(o.topic, o.qos, false, payload)
	go func() {
		if !token.WaitTimeout(mqttPublishTimeout) {
			o.logger.Warn("mqtt publish timed out", "topic", o.topic, "kind", u.Kind)
			return
		}
		if err := token.Error(); err != nil {
			o.logger.Warn("mqtt publish failed", "topic", o.topic, "kind", u.Kind, "error", err)
		}
	}()
	return nil
}

// Close disconnects from the broker if DialMQTT opened the connection.
func (o *MQTTObserver) Close() {
	o.close()
}

var _ Observer = (*MQTTObserver)(nil)
