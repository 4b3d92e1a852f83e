package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRedialer() *redialer {
	return newRedialer(ReconnectConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     8 * time.Millisecond,
		Factor:       2.0,
	}, zap.NewNop())
}

func TestRedialer_SucceedsAfterFailures(t *testing.T) {
	r := testRedialer()

	attempts := 0
	err := r.run(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return assert.AnError
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRedialer_DelayGrowsAndCapsAtMax(t *testing.T) {
	r := testRedialer()

	// 1ms, 2ms, 4ms, then pinned to the 8ms ceiling; every wait is
	// shortened by at most the jitter fraction.
	expected := []time.Duration{
		time.Millisecond,
		2 * time.Millisecond,
		4 * time.Millisecond,
		8 * time.Millisecond,
		8 * time.Millisecond,
		8 * time.Millisecond,
	}
	for i, want := range expected {
		got := r.delay()
		assert.LessOrEqual(t, got, want, "attempt %d", i)
		assert.GreaterOrEqual(t, got, time.Duration(float64(want)*(1-redialJitter)), "attempt %d", i)
	}
}

func TestRedialer_ResetRestartsSchedule(t *testing.T) {
	r := testRedialer()

	r.delay()
	r.delay()
	r.delay()
	r.reset()

	assert.LessOrEqual(t, r.delay(), time.Millisecond)
}

func TestRedialer_ContextCancelled(t *testing.T) {
	r := testRedialer()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dialed := false
	err := r.run(ctx, func(ctx context.Context) error {
		dialed = true
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, dialed, "a cancelled session must not dial")
}
