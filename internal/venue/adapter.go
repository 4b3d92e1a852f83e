package venue

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fundrate/funding-arb/internal/orderbook"
	"github.com/fundrate/funding-arb/pkg/types"
)

// Adapter hides venue-specific REST signing, payload shapes and streaming
// dialects behind one contract. The screener uses the read-only REST
// surface; one trade coordinator owns the streaming state.
type Adapter interface {
	// Name is the venue label ("Binance", "ByBit").
	Name() string

	// Symbol is the venue-local contract symbol this adapter trades.
	Symbol() string

	// Multiplier returns the symbol's lot step size.
	Multiplier(ctx context.Context) (decimal.Decimal, error)

	// Balances returns wallet balances by asset.
	Balances(ctx context.Context) (map[string]types.Balance, error)

	// PlaceOrder submits one order and re-queries its terminal status on
	// success. A venue-reported insufficient-margin rejection is returned
	// as an Order with status REJECTED, not as an error.
	PlaceOrder(ctx context.Context, req types.OrderRequest) (types.Order, error)

	// OrderStatus refreshes an order, falling back from the open-orders
	// endpoint to the historical-orders endpoint when the order already
	// left the open set.
	OrderStatus(ctx context.Context, order types.Order) (types.Order, error)

	// OrderInfo aggregates per-fill commission, quote and base quantity;
	// average price is total quote over total base.
	OrderInfo(ctx context.Context, order types.Order) (types.OrderInfo, error)

	// Trades lists fills in [startMs, endMs].
	Trades(ctx context.Context, startMs, endMs int64) ([]types.Fill, error)

	// Positions lists the symbol's open positions.
	Positions(ctx context.Context) ([]types.Position, error)

	// IncomeHistory lists income records in [startMs, endMs].
	IncomeHistory(ctx context.Context, startMs, endMs int64) ([]types.Income, error)

	// FundingFeeIncome sums funding-fee income in [startMs, endMs].
	FundingFeeIncome(ctx context.Context, startMs, endMs int64) (decimal.Decimal, error)

	// MaxLeverage scans the venue's leverage brackets and returns the
	// highest usable leverage for the notional plus the bracket step.
	MaxLeverage(ctx context.Context, notional decimal.Decimal) (max, step decimal.Decimal, err error)

	// CancelOrder cancels one order.
	CancelOrder(ctx context.Context, order types.Order) error

	// FundingRate returns the symbol's last funding rate, in percent.
	FundingRate(ctx context.Context) (decimal.Decimal, error)

	// SetMarginTypeAndLeverage sets leverage first, then margin mode.
	// The venue's "no need to change margin type" answer is success.
	SetMarginTypeAndLeverage(ctx context.Context, mode types.MarginMode, leverage decimal.Decimal) error

	// ClosestTimeBeforeFunding reports whether a funding tick occurs
	// within the next window (+60 s grace).
	ClosestTimeBeforeFunding(windowSecs int) bool

	// FundingTimeout reports whether a funding tick occurred within the
	// past window (+60 s grace).
	FundingTimeout(windowSecs int) bool

	// StartStreams launches the depth, mark-price and user-data streams
	// feeding the given surfaces. The streams own their writes; the
	// caller only reads under the surfaces' own locks.
	StartStreams(ctx context.Context, book *orderbook.Book, reports *orderbook.Reports, balances *orderbook.Balances) error

	// CloseStreams tears down the streaming session.
	CloseStreams() error
}
