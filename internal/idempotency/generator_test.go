package idempotency

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateKey_Deterministic(t *testing.T) {
	g := NewGenerator()

	a := g.GenerateKey(ScopePaymentIntent, map[string]interface{}{"invoice_id": "inv_1", "attempt": 2})
	b := g.GenerateKey(ScopePaymentIntent, map[string]interface{}{"attempt": 2, "invoice_id": "inv_1"})
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "payment_intent-"))

	c := g.GenerateKey(ScopePaymentIntent, map[string]interface{}{"invoice_id": "inv_1", "attempt": 3})
	assert.NotEqual(t, a, c)

	d := g.GenerateKey(ScopeRefund, map[string]interface{}{"invoice_id": "inv_1", "attempt": 2})
	assert.NotEqual(t, a, d)

	assert.True(t, g.ValidateKey(ScopePaymentIntent, map[string]interface{}{"invoice_id": "inv_1", "attempt": 2}, a))
}
