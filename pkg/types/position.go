package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is a venue-reported open position snapshot.
type Position struct {
	EntryPrice       decimal.Decimal
	PositionValue    decimal.Decimal // signed notional
	CumPnL           decimal.Decimal
	MarkPrice        decimal.Decimal
	LiquidationPrice decimal.Decimal
	Leverage         decimal.Decimal
	MarginMode       MarginMode
}

// Fill is a single venue-reported trade execution.
type Fill struct {
	Symbol          string
	TradeID         string
	OrderID         string
	Side            Side
	Price           decimal.Decimal
	Qty             decimal.Decimal
	QuoteQty        decimal.Decimal
	RealizedPnL     decimal.Decimal
	Commission      decimal.Decimal
	CommissionAsset string
	MarginAsset     string
	PositionSide    PositionSide
	Maker           bool
	Time            time.Time
}

// IncomeKind classifies an income-history record.
type IncomeKind string

const (
	IncomePnL        IncomeKind = "PNL"
	IncomeFundingFee IncomeKind = "FUNDING_FEE"
	IncomeCommission IncomeKind = "COMMISSION"
)

// Income is one row of a venue's income history.
type Income struct {
	Symbol string
	Kind   IncomeKind
	Amount decimal.Decimal
	Asset  string
	Time   time.Time
	TranID string
}

// Balance holds a single asset's wallet figures.
type Balance struct {
	Total     decimal.Decimal
	Available decimal.Decimal
}
