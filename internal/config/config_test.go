package config

import (
	"reflect"
	"testing"
	"time"

	"github.com/flexprice/bookingpay/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, types.MemoryPubSub, cfg.Events.PubSub)
	assert.False(t, cfg.Billing.PromotionReleaseRestoresCapacity)
}

func TestValidate_CommissionRateBounds(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Billing.CommissionRate = decimal.NewFromFloat(1.5)
	assert.Error(t, cfg.Validate())

	cfg.Billing.CommissionRate = decimal.NewFromInt(-1)
	assert.Error(t, cfg.Validate())

	cfg.Billing.CommissionRate = decimal.Zero
	assert.NoError(t, cfg.Validate())
}

func TestValidate_KafkaNeedsBrokers(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Events.PubSub = types.KafkaPubSub
	assert.Error(t, cfg.Validate())

	cfg.Kafka.Brokers = []string{"localhost:29092"}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_SweeperConcurrency(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Sweeper.Concurrency = 0
	assert.Error(t, cfg.Validate())
}

func TestStringToDecimalHook(t *testing.T) {
	target := decimal.Decimal{}
	out, err := stringToDecimalHook(nil, reflect.TypeOf(target), "0.15")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.15").Equal(out.(decimal.Decimal)))

	out, err = stringToDecimalHook(nil, reflect.TypeOf(time.Second), "5s")
	require.NoError(t, err)
	assert.Equal(t, "5s", out)
}
