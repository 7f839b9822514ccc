package postgres

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations(t *testing.T) {
	migrations, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, "0001_billing.sql", migrations[0].Version)

	for _, table := range []string{"invoices", "payments", "promotions", "promotion_usages", "refund_requests", "revenues"} {
		assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
	assert.Contains(t, migrations[0].SQL, "ON revenues (tenant_id, provider_id, month)")
}

func TestWriteMigrations(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMigrations(&buf))
	assert.Contains(t, buf.String(), "-- 0001_billing.sql")
}
