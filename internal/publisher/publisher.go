package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flexprice/bookingpay/internal/config"
	ierr "github.com/flexprice/bookingpay/internal/errors"
	"github.com/flexprice/bookingpay/internal/logger"
	"github.com/flexprice/bookingpay/internal/pubsub"
	"github.com/flexprice/bookingpay/internal/pubsub/kafka"
	"github.com/flexprice/bookingpay/internal/pubsub/memory"
	"github.com/flexprice/bookingpay/internal/types"
)

// EventPublisher emits billing domain events once a unit of work has committed
type EventPublisher interface {
	Publish(ctx context.Context, eventName string, payload any) error
	Close() error
}

type eventPublisher struct {
	pubSub pubsub.PubSub
	topic  string
	logger *logger.Logger
}

// NewPubSub picks the transport named in config
func NewPubSub(cfg *config.Configuration, logger *logger.Logger) (pubsub.PubSub, error) {
	switch cfg.Events.PubSub {
	case types.KafkaPubSub:
		return kafka.NewPubSub(cfg, logger)
	case types.MemoryPubSub:
		return memory.NewPubSub(logger), nil
	default:
		return nil, ierr.NewError("unknown pubsub type").
			WithHintf("Unsupported events.pubsub %q", cfg.Events.PubSub).
			Mark(ierr.ErrValidation)
	}
}

// NewEventPublisher creates a publisher writing to the configured topic
func NewEventPublisher(pubSub pubsub.PubSub, cfg *config.Configuration, logger *logger.Logger) EventPublisher {
	return &eventPublisher{
		pubSub: pubSub,
		topic:  cfg.Events.Topic,
		logger: logger,
	}
}

func (p *eventPublisher) Publish(ctx context.Context, eventName string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode event payload").
			Mark(ierr.ErrSystem)
	}

	event := &types.DomainEvent{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EVENT),
		EventName: eventName,
		TenantID:  types.GetTenantID(ctx),
		UserID:    types.GetUserID(ctx),
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}

	msg, err := pubsub.NewEventMessage(event)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode event").
			Mark(ierr.ErrSystem)
	}

	if err := p.pubSub.Publish(ctx, p.topic, msg); err != nil {
		p.logger.Errorw("failed to publish event",
			"error", err,
			"event_id", event.ID,
			"event_name", event.EventName,
			"topic", p.topic,
		)
		return err
	}

	p.logger.Debugw("published event",
		"event_id", event.ID,
		"event_name", event.EventName,
		"topic", p.topic,
	)
	return nil
}

// Close closes the underlying transport
func (p *eventPublisher) Close() error {
	return p.pubSub.Close()
}
