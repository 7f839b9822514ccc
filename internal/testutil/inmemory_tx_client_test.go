package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/flexprice/bookingpay/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryTxClientRollsBack(t *testing.T) {
	client := NewInMemoryTxClient(logger.NewNopLogger())
	ctx := SetupContext()

	var values []string
	write := func(ctx context.Context, v string) {
		values = append(values, v)
		RecordUndo(ctx, func() { values = values[:len(values)-1] })
	}

	err := client.WithTx(ctx, func(ctx context.Context) error {
		write(ctx, "a")
		write(ctx, "b")
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Empty(t, values)

	require.NoError(t, client.WithTx(ctx, func(ctx context.Context) error {
		write(ctx, "c")
		return nil
	}))
	assert.Equal(t, []string{"c"}, values)

	// outside a unit of work writes are final
	write(ctx, "d")
	assert.Equal(t, []string{"c", "d"}, values)
}

func TestInMemoryTxClientNestedUnits(t *testing.T) {
	client := NewInMemoryTxClient(logger.NewNopLogger())
	ctx := SetupContext()

	var values []string
	write := func(ctx context.Context, v string) {
		values = append(values, v)
		RecordUndo(ctx, func() { values = values[:len(values)-1] })
	}

	err := client.WithTx(ctx, func(ctx context.Context) error {
		write(ctx, "outer")

		innerErr := client.WithTx(ctx, func(ctx context.Context) error {
			write(ctx, "inner")
			return errors.New("inner failed")
		})
		assert.Error(t, innerErr)
		assert.Equal(t, []string{"outer"}, values)

		return client.WithTx(ctx, func(ctx context.Context) error {
			write(ctx, "committed inner")
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "committed inner"}, values)

	// a failing outer unit undoes the inner units it already absorbed
	err = client.WithTx(ctx, func(ctx context.Context) error {
		require.NoError(t, client.WithTx(ctx, func(ctx context.Context) error {
			write(ctx, "lost")
			return nil
		}))
		return errors.New("outer failed")
	})
	require.Error(t, err)
	assert.Equal(t, []string{"outer", "committed inner"}, values)
}

func TestHoldUntilTxEnd(t *testing.T) {
	client := NewInMemoryTxClient(logger.NewNopLogger())
	ctx := SetupContext()

	var mu sync.Mutex
	acquired := make(chan struct{})
	released := make(chan struct{})

	go func() {
		_ = client.WithTx(ctx, func(ctx context.Context) error {
			mu.Lock()
			HoldUntilTxEnd(ctx, mu.Unlock)
			close(acquired)
			<-released
			return nil
		})
	}()

	<-acquired
	assert.False(t, mu.TryLock())
	close(released)

	assert.Eventually(t, func() bool {
		if mu.TryLock() {
			mu.Unlock()
			return true
		}
		return false
	}, time.Second, 5*time.Millisecond)

	// without a unit of work the release runs at once
	mu.Lock()
	HoldUntilTxEnd(context.Background(), mu.Unlock)
	assert.True(t, mu.TryLock())
	mu.Unlock()
}
