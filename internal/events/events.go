package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/resourcehub/apiserver/config"
	"go.uber.org/zap"
)

// Channels carrying change events.
const (
	ChannelResources = "resource-events"
	ChannelUsers     = "user-events"
)

// Actions recorded on change events.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Event describes a change to a stored entity.
type Event struct {
	Entity string `json:"entity"`
	Action string `json:"action"`
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
}

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Broker defines the broker-agnostic operations used by the app.
type Broker interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// NewBroker constructs a broker from config. A "none" driver yields a
// nil broker, which the Publisher treats as a no-op.
func NewBroker(ctx context.Context, cfg config.EventsConfig) (Broker, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none":
		return nil, nil
	case "rabbitmq":
		return NewRabbitMQBroker(cfg.RabbitMQ)
	case "pubsub":
		return NewPubSubBroker(ctx, cfg.PubSub)
	default:
		return nil, errors.New("unknown events driver: " + cfg.Driver)
	}
}

// Publisher emits change events to a broker. Publish failures are
// logged and never fail the request that triggered them.
type Publisher struct {
	broker Broker
	logger *zap.Logger
}

// NewPublisher wraps a broker. A nil broker disables publishing.
func NewPublisher(broker Broker, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{broker: broker, logger: logger}
}

// Emit publishes an event to the given channel.
func (p *Publisher) Emit(ctx context.Context, channel string, event Event) {
	if p == nil || p.broker == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal event failed", zap.Error(err))
		return
	}

	attrs := map[string]string{
		"entity": event.Entity,
		"action": event.Action,
	}
	if _, err := p.broker.Publish(ctx, channel, data, attrs); err != nil {
		p.logger.Error("publish event failed",
			zap.String("channel", channel),
			zap.String("entity", event.Entity),
			zap.String("action", event.Action),
			zap.Error(err))
	}
}

// Close closes the underlying broker, if any.
func (p *Publisher) Close() error {
	if p == nil || p.broker == nil {
		return nil
	}
	return p.broker.Close()
}
