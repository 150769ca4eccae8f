package bridge

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// MQTTConfig holds broker connection settings.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
	Retain   bool
	Timeout  time.Duration
}

// MQTTPublisher publishes through a paho MQTT client.
type MQTTPublisher struct {
	client  mqtt.Client
	qos     byte
	retain  bool
	timeout time.Duration
}

// DialMQTT connects to the broker. An empty ClientID gets a random one.
func DialMQTT(cfg MQTTConfig) (*MQTTPublisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker address required")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("mqtt qos %d out of range 0-2", cfg.QoS)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID(cfg.ClientID)).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout).
		SetOrderMatters(true)
	if cfg.Username != "" {
		opts = opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("connect to %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, err)
	}

	return &MQTTPublisher{
		client:  client,
		qos:     cfg.QoS,
		retain:  cfg.Retain,
		timeout: cfg.Timeout,
	}, nil
}

func clientID(configured string) string {
	if configured != "" {
		return configured
	}
	return "nobo-" + uuid.NewString()
}

// Publish sends payload and waits for the broker to acknowledge it.
func (p *MQTTPublisher) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish %s: timed out", topic)
	}
	return token.Error()
}

// Close disconnects, allowing a short grace period for in-flight messages.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
