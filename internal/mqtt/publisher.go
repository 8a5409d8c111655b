package mqtt

import (
	"context"
	"path"
	"slices"

	"github.com/tphakala/replayclip/internal/events"
	"github.com/tphakala/replayclip/internal/logger"
)

// DefaultKinds are the event kinds published when none are configured.
var DefaultKinds = []events.Kind{
	events.KindClipCompleted,
	events.KindClipFailed,
	events.KindDeviceFailure,
	events.KindRecordingFinished,
}

// Publisher forwards bus events to MQTT. It implements events.EventConsumer.
type Publisher struct {
	client Client
	prefix string
	kinds  []events.Kind
	cfg    Config
	log    logger.Logger
}

// NewPublisher wraps client. kinds filters which events are published.
func NewPublisher(client Client, cfg Config, kinds []events.Kind) *Publisher {
	if len(kinds) == 0 {
		kinds = DefaultKinds
	}
	prefix := cfg.Topic
	if prefix == "" {
		prefix = DefaultConfig().Topic
	}
	return &Publisher{
		client: client,
		prefix: prefix,
		kinds:  kinds,
		cfg:    cfg,
		log:    logger.Global().Module("mqtt"),
	}
}

// Name implements events.EventConsumer.
func (p *Publisher) Name() string { return "mqtt" }

// Topic returns the topic an event kind is published to.
func (p *Publisher) Topic(kind events.Kind) string {
	return path.Join(p.prefix, string(kind))
}

// ProcessEvent implements events.EventConsumer.
func (p *Publisher) ProcessEvent(e events.Event) error {
	if !slices.Contains(p.kinds, e.Kind) {
		return nil
	}
	if !p.client.IsConnected() {
		if err := p.reconnect(); err != nil {
			p.log.Debug("skipping publish, broker not connected",
				logger.String("kind", string(e.Kind)),
				logger.Error(err))
			return nil
		}
	}

	payload, err := NewEventDTO(e).Marshal()
	if err != nil {
		return err
	}

	timeout := p.cfg.PublishTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().PublishTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return p.client.Publish(ctx, p.Topic(e.Kind), payload)
}

// reconnect tries one connection. The client rate limits attempts.
func (p *Publisher) reconnect() error {
	timeout := p.cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return p.client.Connect(ctx)
}
