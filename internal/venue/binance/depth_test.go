package binance

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fundrate/funding-arb/internal/orderbook"
)

func snapshotStub(fetches *int) func(ctx context.Context) (depthSnapshot, error) {
	return func(ctx context.Context) (depthSnapshot, error) {
		*fetches++
		return depthSnapshot{
			LastUpdateID: 100,
			Bids:         []orderbook.Level{{Price: decimal.RequireFromString("20000"), Qty: decimal.RequireFromString("1")}},
			Asks:         []orderbook.Level{{Price: decimal.RequireFromString("20010"), Qty: decimal.RequireFromString("1")}},
		}, nil
	}
}

func TestDepthSync_BootstrapAndContinuity(t *testing.T) {
	fetches := 0
	book := orderbook.New("BTCUSDT")
	sync := newDepthSync(book, snapshotStub(&fetches), zap.NewNop())
	ctx := context.Background()

	// First event straddles the snapshot sequence and bootstraps.
	err := sync.apply(ctx, depthEvent{
		FirstUpdateID: 95,
		FinalUpdateID: 110,
		Bids:          [][]string{{"19990", "2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fetches)
	assert.Equal(t, int64(110), book.LastUpdateID())

	// Contiguous event: pu matches the last applied u.
	err = sync.apply(ctx, depthEvent{
		FirstUpdateID: 111,
		FinalUpdateID: 120,
		PrevFinalID:   110,
		Asks:          [][]string{{"20020", "3"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fetches)
	assert.Equal(t, int64(120), book.LastUpdateID())

	bids, asks := book.Depth()
	assert.Equal(t, 2, bids)
	assert.Equal(t, 2, asks)
}

func TestDepthSync_GapResetsAndResnapshots(t *testing.T) {
	fetches := 0
	book := orderbook.New("BTCUSDT")
	sync := newDepthSync(book, snapshotStub(&fetches), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, sync.apply(ctx, depthEvent{FirstUpdateID: 95, FinalUpdateID: 110}))
	require.NoError(t, sync.apply(ctx, depthEvent{FirstUpdateID: 111, FinalUpdateID: 120, PrevFinalID: 110}))

	// pu does not match: updates were missed, replica must rebuild.
	err := sync.apply(ctx, depthEvent{FirstUpdateID: 125, FinalUpdateID: 130, PrevFinalID: 115})
	require.NoError(t, err)
	assert.Equal(t, 2, fetches)
	assert.Equal(t, int64(100), book.LastUpdateID(), "book must carry the fresh snapshot sequence")

	// The next straddling event bootstraps the rebuilt replica.
	err = sync.apply(ctx, depthEvent{FirstUpdateID: 98, FinalUpdateID: 131})
	require.NoError(t, err)
	assert.Equal(t, 2, fetches)
	assert.Equal(t, int64(131), book.LastUpdateID())
}

func TestDepthSync_DropsEventsOlderThanSnapshot(t *testing.T) {
	fetches := 0
	book := orderbook.New("BTCUSDT")
	sync := newDepthSync(book, snapshotStub(&fetches), zap.NewNop())
	ctx := context.Background()

	err := sync.apply(ctx, depthEvent{
		FirstUpdateID: 80,
		FinalUpdateID: 90,
		Bids:          [][]string{{"19000", "5"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fetches)
	assert.Equal(t, int64(100), book.LastUpdateID())

	bids, _ := book.Depth()
	assert.Equal(t, 1, bids, "stale event must not touch the ladder")
}
