package opportunity

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fundrate/funding-arb/internal/orderbook"
	"github.com/fundrate/funding-arb/internal/screener"
	"github.com/fundrate/funding-arb/internal/venue"
	"github.com/fundrate/funding-arb/pkg/types"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// stubAdapter seeds a fixed ladder on stream start and records the
// margin setup calls it receives.
type stubAdapter struct {
	name       string
	symbol     string
	multiplier decimal.Decimal
	maxLev     decimal.Decimal
	levStep    decimal.Decimal
	bids       []orderbook.Level
	asks       []orderbook.Level

	marginCalls   int
	marginLev     decimal.Decimal
	streamsClosed bool
}

func (s *stubAdapter) Name() string   { return s.name }
func (s *stubAdapter) Symbol() string { return s.symbol }

func (s *stubAdapter) Multiplier(context.Context) (decimal.Decimal, error) {
	return s.multiplier, nil
}

func (s *stubAdapter) Balances(context.Context) (map[string]types.Balance, error) {
	return nil, nil
}

func (s *stubAdapter) PlaceOrder(context.Context, types.OrderRequest) (types.Order, error) {
	return types.Order{}, nil
}

func (s *stubAdapter) OrderStatus(_ context.Context, o types.Order) (types.Order, error) {
	return o, nil
}

func (s *stubAdapter) OrderInfo(_ context.Context, o types.Order) (types.OrderInfo, error) {
	return types.OrderInfo{Order: o}, nil
}

func (s *stubAdapter) Trades(context.Context, int64, int64) ([]types.Fill, error) {
	return nil, nil
}

func (s *stubAdapter) Positions(context.Context) ([]types.Position, error) { return nil, nil }

func (s *stubAdapter) IncomeHistory(context.Context, int64, int64) ([]types.Income, error) {
	return nil, nil
}

func (s *stubAdapter) FundingFeeIncome(context.Context, int64, int64) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (s *stubAdapter) MaxLeverage(context.Context, decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	return s.maxLev, s.levStep, nil
}

func (s *stubAdapter) CancelOrder(context.Context, types.Order) error { return nil }

func (s *stubAdapter) FundingRate(context.Context) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (s *stubAdapter) SetMarginTypeAndLeverage(_ context.Context, _ types.MarginMode, lev decimal.Decimal) error {
	s.marginCalls++
	s.marginLev = lev
	return nil
}

func (s *stubAdapter) ClosestTimeBeforeFunding(int) bool { return false }
func (s *stubAdapter) FundingTimeout(int) bool           { return false }

func (s *stubAdapter) StartStreams(_ context.Context, book *orderbook.Book, _ *orderbook.Reports, _ *orderbook.Balances) error {
	book.ApplySnapshot(s.bids, s.asks, 1)
	return nil
}

func (s *stubAdapter) CloseStreams() error {
	s.streamsClosed = true
	return nil
}

type fakeCache struct{ m map[string]interface{} }

func newFakeCache() *fakeCache { return &fakeCache{m: make(map[string]interface{})} }

func (c *fakeCache) Get(key string) (interface{}, bool) {
	v, ok := c.m[key]
	return v, ok
}
func (c *fakeCache) Set(key string, v interface{}, _ time.Duration) bool {
	c.m[key] = v
	return true
}
func (c *fakeCache) Delete(key string) { delete(c.m, key) }
func (c *fakeCache) Clear()            { c.m = make(map[string]interface{}) }
func (c *fakeCache) Close()            {}

func ladder(prices ...string) []orderbook.Level {
	levels := make([]orderbook.Level, 0, len(prices))
	for _, p := range prices {
		levels = append(levels, orderbook.Level{Price: d(p), Qty: d("1")})
	}
	return levels
}

func testOpportunity() screener.Opportunity {
	return screener.Opportunity{
		Ticker:   "BTCUSDT",
		Venue1:   "A",
		Venue2:   "B",
		Funding1: d("0.20"),
		Funding2: d("-0.05"),
		Fee1:     d("0.04"),
		Fee2:     d("0.04"),
		NetDelta: d("0.09"),
	}
}

func newTestEnricher(adapters map[string]*stubAdapter, threshold string) *Enricher {
	return New(Config{
		Factory: func(venueName, ticker string) (venue.Adapter, error) {
			return adapters[venueName], nil
		},
		Cache:        newFakeCache(),
		USDTAmount:   d("1000"),
		Leverage:     d("5"),
		PnLThreshold: d(threshold),
		Warmup:       time.Millisecond,
		Logger:       zap.NewNop(),
	})
}

func TestEnricher_BuildsPlan(t *testing.T) {
	adapters := map[string]*stubAdapter{
		// A takes the short leg: price read from bids[1].
		"A": {
			name: "A", symbol: "BTCUSDT",
			multiplier: d("0.0001"), maxLev: d("100"), levStep: d("1"),
			bids: ladder("20015", "20010", "20005"),
			asks: ladder("20020", "20025", "20030"),
		},
		// B takes the long leg: price read from asks[1].
		"B": {
			name: "B", symbol: "BTCUSDT",
			multiplier: d("0.001"), maxLev: d("50"), levStep: d("0.01"),
			bids: ladder("19985", "19980", "19975"),
			asks: ladder("19990", "20000", "20010"),
		},
	}

	enricher := newTestEnricher(adapters, "0.1")

	plans, err := enricher.Enrich(context.Background(), []screener.Opportunity{testOpportunity()})
	require.NoError(t, err)
	require.Len(t, plans, 1)

	plan := plans[0]
	assert.Equal(t, "BTCUSDT", plan.Ticker)
	assert.True(t, plan.Qty.Equal(d("0.049")), "got qty %s", plan.Qty)
	assert.True(t, plan.Leverage.Equal(d("5")))
	assert.True(t, plan.EstimatedPnLPercent.GreaterThan(d("0.1")))

	assert.Equal(t, types.Short, plan.Legs[0].Side)
	assert.Equal(t, types.Long, plan.Legs[1].Side)
	assert.True(t, plan.Legs[0].Price.Equal(d("20010")), "short leg must price off bids[1], got %s", plan.Legs[0].Price)
	assert.True(t, plan.Legs[1].Price.Equal(d("20000")), "long leg must price off asks[1], got %s", plan.Legs[1].Price)

	assert.Equal(t, 1, adapters["A"].marginCalls, "margin setup must run exactly once per venue")
	assert.Equal(t, 1, adapters["B"].marginCalls)
	assert.True(t, adapters["A"].marginLev.Equal(d("5")))
}

func TestEnricher_DropsBelowMinLot(t *testing.T) {
	adapters := map[string]*stubAdapter{
		"A": {
			name: "A", symbol: "BTCUSDT",
			multiplier: d("1"), maxLev: d("100"), levStep: d("1"),
			bids: ladder("20015", "20010"), asks: ladder("20020", "20025"),
		},
		"B": {
			name: "B", symbol: "BTCUSDT",
			multiplier: d("0.001"), maxLev: d("50"), levStep: d("0.01"),
			bids: ladder("19985", "19980"), asks: ladder("19990", "20000"),
		},
	}

	enricher := newTestEnricher(adapters, "0.1")

	plans, err := enricher.Enrich(context.Background(), []screener.Opportunity{testOpportunity()})
	require.NoError(t, err)
	assert.Empty(t, plans, "1000 USDT at 20010 cannot clear a lot step of 1")

	assert.True(t, adapters["A"].streamsClosed, "dropped plan must tear down its streams")
	assert.True(t, adapters["B"].streamsClosed)
}

func TestEnricher_DropsBelowPnLThreshold(t *testing.T) {
	adapters := map[string]*stubAdapter{
		"A": {
			name: "A", symbol: "BTCUSDT",
			multiplier: d("0.0001"), maxLev: d("100"), levStep: d("1"),
			bids: ladder("20015", "20010", "20005"),
			asks: ladder("20020", "20025", "20030"),
		},
		"B": {
			name: "B", symbol: "BTCUSDT",
			multiplier: d("0.001"), maxLev: d("50"), levStep: d("0.01"),
			bids: ladder("19985", "19980", "19975"),
			asks: ladder("19990", "20000", "20010"),
		},
	}

	enricher := newTestEnricher(adapters, "99")

	plans, err := enricher.Enrich(context.Background(), []screener.Opportunity{testOpportunity()})
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestEnricher_CapsLeverageToCommonBracket(t *testing.T) {
	adapters := map[string]*stubAdapter{
		"A": {
			name: "A", symbol: "BTCUSDT",
			multiplier: d("0.0001"), maxLev: d("4.5"), levStep: d("1"),
			bids: ladder("20015", "20010", "20005"),
			asks: ladder("20020", "20025", "20030"),
		},
		"B": {
			name: "B", symbol: "BTCUSDT",
			multiplier: d("0.001"), maxLev: d("50"), levStep: d("0.01"),
			bids: ladder("19985", "19980", "19975"),
			asks: ladder("19990", "20000", "20010"),
		},
	}

	enricher := newTestEnricher(adapters, "0.1")

	plans, err := enricher.Enrich(context.Background(), []screener.Opportunity{testOpportunity()})
	require.NoError(t, err)
	require.Len(t, plans, 1)

	// min(4.5, 50) floored to max(1, 0.01) = 4.
	assert.True(t, plans[0].Leverage.Equal(d("4")), "got %s", plans[0].Leverage)
}
