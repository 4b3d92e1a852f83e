package types

import "github.com/shopspring/decimal"

// FundingSnapshot is one venue-symbol's funding state as seen by the screener.
// Rate is in percent, signed.
type FundingSnapshot struct {
	Symbol   string
	Rate     decimal.Decimal
	MakerFee decimal.Decimal
	TakerFee decimal.Decimal
}

// Routes maps venue name to the position side it takes in a two-leg trade.
// Exactly one venue is LONG and one is SHORT.
type Routes map[string]PositionSide

// SideFor returns the position side assigned to the venue.
func (r Routes) SideFor(venue string) PositionSide {
	return r[venue]
}

// OpenSide returns the order direction that opens the given position side.
func OpenSide(p PositionSide) Side {
	if p == Long {
		return Buy
	}
	return Sell
}

// CloseSide returns the order direction that flattens the given position side.
func CloseSide(p PositionSide) Side {
	return OpenSide(p).Opposite()
}
