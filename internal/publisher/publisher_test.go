package publisher

import (
	"context"
	"testing"
	"time"

	"github.com/flexprice/bookingpay/internal/config"
	"github.com/flexprice/bookingpay/internal/logger"
	"github.com/flexprice/bookingpay/internal/pubsub"
	"github.com/flexprice/bookingpay/internal/pubsub/memory"
	"github.com/flexprice/bookingpay/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventPublisher_PublishesEnvelope(t *testing.T) {
	cfg := config.GetDefaultConfig()
	log := logger.NewNopLogger()
	ps := memory.NewPubSub(log)
	pub := NewEventPublisher(ps, cfg, log)
	defer pub.Close()

	ctx := types.SetTenantID(context.Background(), types.DefaultTenantID)
	msgs, err := ps.Subscribe(ctx, cfg.Events.Topic)
	require.NoError(t, err)

	require.NoError(t, pub.Publish(ctx, types.EventInvoicePaid, map[string]string{"invoice_id": "inv_1"}))

	select {
	case msg := <-msgs:
		msg.Ack()
		assert.Equal(t, types.EventInvoicePaid, msg.Metadata.Get(pubsub.MetadataEventName))
		assert.Equal(t, types.DefaultTenantID, msg.Metadata.Get(pubsub.MetadataTenantID))

		event, err := pubsub.DecodeEventMessage(msg)
		require.NoError(t, err)
		assert.Equal(t, msg.UUID, event.ID)
		assert.Equal(t, types.EventInvoicePaid, event.EventName)
		assert.Equal(t, types.DefaultTenantID, event.TenantID)
		assert.JSONEq(t, `{"invoice_id":"inv_1"}`, string(event.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestNewPubSub_UnknownType(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Events.PubSub = "nats"
	_, err := NewPubSub(cfg, logger.NewNopLogger())
	assert.Error(t, err)
}
