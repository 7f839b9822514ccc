package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/flexprice/bookingpay/internal/publisher"
	"github.com/flexprice/bookingpay/internal/types"
)

// PublishedEvent is one event captured by InMemoryEventPublisher
type PublishedEvent struct {
	Name     string
	TenantID string
	Payload  json.RawMessage
}

// InMemoryEventPublisher records events instead of sending them
type InMemoryEventPublisher struct {
	mu     sync.RWMutex
	events []PublishedEvent
	// Err, when set, is returned from every Publish call
	Err error
}

var _ publisher.EventPublisher = (*InMemoryEventPublisher)(nil)

// NewInMemoryEventPublisher creates a new recording publisher
func NewInMemoryEventPublisher() *InMemoryEventPublisher {
	return &InMemoryEventPublisher{
		events: make([]PublishedEvent, 0),
	}
}

func (p *InMemoryEventPublisher) Publish(ctx context.Context, eventName string, payload any) error {
	if p.Err != nil {
		return p.Err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, PublishedEvent{
		Name:     eventName,
		TenantID: types.GetTenantID(ctx),
		Payload:  raw,
	})
	return nil
}

func (p *InMemoryEventPublisher) Close() error {
	return nil
}

// GetEvents returns all published events
func (p *InMemoryEventPublisher) GetEvents() []PublishedEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	events := make([]PublishedEvent, len(p.events))
	copy(events, p.events)
	return events
}

// CountByName returns how many events named name were published
func (p *InMemoryEventPublisher) CountByName(name string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, e := range p.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

// Clear removes all published events
func (p *InMemoryEventPublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = make([]PublishedEvent, 0)
}
