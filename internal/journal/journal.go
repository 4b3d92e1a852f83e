package journal

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundrate/funding-arb/pkg/types"
)

// LegRecord is one venue's half of a settled trade: the opening and
// closing orders plus the funding observed in between.
type LegRecord struct {
	Venue       string
	Side        types.PositionSide
	FundingRate decimal.Decimal
	FundingFee  decimal.Decimal
	Open        types.OrderInfo
	Close       types.OrderInfo
}

// TradeRecord is a complete two-leg trade ready for durable storage:
// four orders, two positions, one trade row.
type TradeRecord struct {
	Ticker    string
	Legs      [2]LegRecord
	Leverage  decimal.Decimal
	PnL       decimal.Decimal
	EntryTime time.Time
	CloseTime time.Time
}

// Sink persists complete trade records. Implementations must write the
// whole record atomically or not at all.
type Sink interface {
	InsertTrade(ctx context.Context, rec TradeRecord) error
}
