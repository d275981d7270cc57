package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
)

// Event type names published on the order events topic.
const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status.changed"
	TypeOrderCanceled      = "order.canceled"
	TypeTrackingAppended   = "order.tracking.appended"
)

// OrderEvent is the envelope published for every order lifecycle change.
type OrderEvent struct {
	Type        string    `json:"type"`
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number,omitempty"`
	Status      string    `json:"status,omitempty"`
	FromStatus  string    `json:"from_status,omitempty"`
	Tracking    string    `json:"tracking_status,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher publishes order lifecycle events.
type Publisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) (string, error)
}

// PubSubPublisher publishes order events to a Pub/Sub topic.
type PubSubPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubPublisher constructs a Pub/Sub backed order event publisher.
func NewPubSubPublisher(topic *pubsub.Topic) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub order publisher: topic is required")
	}
	return &PubSubPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishOrderEvent enqueues the event on the configured topic and returns the message ID.
func (p *PubSubPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub order publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal order event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "type", event.Type)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "orderNumber", event.OrderNumber)
	setAttr(attrs, "status", event.Status)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish order event: %w", err)
	}
	return id, nil
}

// NopPublisher drops all events. Used when event publishing is disabled.
type NopPublisher struct{}

// PublishOrderEvent implements Publisher without side effects.
func (NopPublisher) PublishOrderEvent(_ context.Context, _ OrderEvent) (string, error) {
	return "", nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
