package cartbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// ErrNotConnected is returned by Publish after Close.
var ErrNotConnected = errors.New("cartbus: not connected")

// Config configures the MQTT publisher.
type Config struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string

	// ConnectTimeout bounds the initial connection. Default 10s.
	ConnectTimeout time.Duration
}

// client is the part of [paho.Client] the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
	IsConnectionOpen() bool
}

// MQTT publishes deltas as JSON with QoS 1 to
// <prefix>/<session>/order.
type MQTT struct {
	prefix string

	mu     sync.Mutex
	client client
}

// NewMQTT connects to the broker. The client reconnects on its own after a
// lost connection.
func NewMQTT(cfg Config) (*MQTT, error) {
	if cfg.BrokerURL == "" {
		return nil, fmt.Errorf("cartbus: broker url is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "barkeep-" + uuid.NewString()[:8]
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(cfg.ConnectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		slog.Warn("cartbus: connection lost", "broker", cfg.BrokerURL, "err", err)
	})
	opts.SetOnConnectHandler(func(paho.Client) {
		slog.Info("cartbus: connected", "broker", cfg.BrokerURL, "client_id", cfg.ClientID)
	})

	c := paho.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		c.Disconnect(0)
		return nil, fmt.Errorf("cartbus: connect %s: timed out after %s", cfg.BrokerURL, cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("cartbus: connect %s: %w", cfg.BrokerURL, err)
	}
	return newMQTT(c, cfg.TopicPrefix), nil
}

func newMQTT(c client, prefix string) *MQTT {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "barkeep"
	}
	return &MQTT{client: c, prefix: prefix}
}

// Topic returns the topic deltas of sessionID are published to.
func (m *MQTT) Topic(sessionID string) string {
	return m.prefix + "/" + sessionID + "/order"
}

// Publish sends d and waits for the broker acknowledgement or ctx.
func (m *MQTT) Publish(ctx context.Context, d Delta) error {
	m.mu.Lock()
	c := m.client
	m.mu.Unlock()
	if c == nil {
		return ErrNotConnected
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("cartbus: marshal delta: %w", err)
	}
	token := c.Publish(m.Topic(d.SessionID), 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("cartbus: publish %s: %w", d.SessionID, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("cartbus: publish %s: %w", d.SessionID, err)
	}
	return nil
}

// Close disconnects after letting in-flight messages drain for 250ms.
func (m *MQTT) Close() {
	m.mu.Lock()
	c := m.client
	m.client = nil
	m.mu.Unlock()
	if c != nil {
		c.Disconnect(250)
	}
}

// Ready reports [ErrNotConnected] while the broker connection is down. It
// serves as a readiness check.
func (m *MQTT) Ready(_ context.Context) error {
	m.mu.Lock()
	c := m.client
	m.mu.Unlock()
	if c == nil || !c.IsConnectionOpen() {
		return ErrNotConnected
	}
	return nil
}

var _ Publisher = (*MQTT)(nil)
