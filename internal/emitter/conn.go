package emitter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// MessageHandler receives messages delivered on a subscribed topic
type MessageHandler func(topic string, payload []byte)

// Conn is the broker connection shared by the emitter and the control plane
type Conn interface {
	Publish(topic string, qos byte, payload []byte) error
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
	Close()
}

// DialConfig contains the broker connection settings
type DialConfig struct {
	// Broker is host:port or a full URL (tcp://, ssl://, ws://)
	Broker   string
	ClientID string
}

type pahoConn struct {
	client    mqtt.Client
	broker    string
	connected atomic.Bool
}

// Dial connects to the MQTT broker. The client reconnects automatically
// after the first successful connection.
func Dial(ctx context.Context, cfg DialConfig) (Conn, error) {
	broker := cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = fmt.Sprintf("tcp://%s", broker)
	}

	c := &pahoConn{broker: broker}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	// handlers publish responses and wait on the token
	opts.SetOrderMatters(false)

	opts.OnConnect = func(mqtt.Client) {
		c.connected.Store(true)
		slog.Info("mqtt connection established",
			"broker", broker,
			"client_id", cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		c.connected.Store(false)
		slog.Warn("mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", broker)
	}

	c.client = mqtt.NewClient(opts)

	slog.Info("connecting to mqtt broker", "broker", broker)

	token := c.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(connectTimeout):
		c.client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connection timeout")
	case <-ctx.Done():
		c.client.Disconnect(0)
		return nil, ctx.Err()
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	c.connected.Store(true)
	return c, nil
}

func (c *pahoConn) Publish(topic string, qos byte, payload []byte) error {
	token := c.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

func (c *pahoConn) Subscribe(topic string, qos byte, handler MessageHandler) error {
	token := c.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscription failed: %w", err)
	}
	return nil
}

func (c *pahoConn) Unsubscribe(topic string) error {
	if !c.client.IsConnected() {
		return nil
	}
	token := c.client.Unsubscribe(topic)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("unsubscribe timeout")
	}
	return token.Error()
}

func (c *pahoConn) IsConnected() bool {
	return c.connected.Load()
}

// Close disconnects with a 250ms grace period
func (c *pahoConn) Close() {
	if c.client.IsConnected() {
		c.client.Disconnect(250)
		slog.Info("mqtt disconnected", "broker", c.broker)
	}
	c.connected.Store(false)
}
