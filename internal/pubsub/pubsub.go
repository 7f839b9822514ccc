package pubsub

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/bookingpay/internal/types"
)

// Message metadata keys set on every billing event
const (
	MetadataTenantID  = "tenant_id"
	MetadataEventName = "event_name"
)

type Publisher interface {
	Publish(ctx context.Context, topic string, msg *message.Message) error
	Close() error
}

type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
	Close() error
}

// PubSub is what the event publisher and the tests see of a transport
type PubSub interface {
	Publisher
	Subscriber
}

// NewEventMessage wraps a domain event so consumers can route on metadata
// without decoding the body. The message uuid is the event id.
func NewEventMessage(event *types.DomainEvent) (*message.Message, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	msg := message.NewMessage(event.ID, body)
	msg.Metadata.Set(MetadataTenantID, event.TenantID)
	msg.Metadata.Set(MetadataEventName, event.EventName)
	return msg, nil
}

// DecodeEventMessage is the inverse of NewEventMessage
func DecodeEventMessage(msg *message.Message) (*types.DomainEvent, error) {
	var event types.DomainEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
