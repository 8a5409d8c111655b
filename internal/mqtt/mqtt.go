// Package mqtt publishes clip and capture events to an MQTT broker.
package mqtt

import (
	"context"
	"time"
)

// Client is the broker connection used by Publisher.
type Client interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, topic string, payload string) error // waits for the broker ack
	IsConnected() bool
	Disconnect()
}

// Config holds the broker and publishing settings.
type Config struct {
	Broker   string // tcp://host:1883
	ClientID string
	Username string
	Password string
	Topic    string // prefix, the event kind is appended
	Retain   bool
	QoS      byte

	ReconnectCooldown time.Duration // minimum spacing of Connect calls
	ReconnectDelay    time.Duration // wait after a lost session before reconnecting
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// DefaultConfig returns the publisher defaults without a broker.
func DefaultConfig() Config {
	return Config{
		ClientID:          "replayclip",
		Topic:             "replayclip",
		ReconnectCooldown: 5 * time.Second,
		ReconnectDelay:    time.Second,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}
