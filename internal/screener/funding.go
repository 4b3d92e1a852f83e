package screener

import (
	"github.com/shopspring/decimal"

	"github.com/fundrate/funding-arb/pkg/types"
)

var two = decimal.NewFromInt(2)

// CalculateDelta scores a funding-rate differential net of round-trip
// fees. All inputs are in percent. When both rates are negative the
// spread is the gap between their magnitudes; in every other case it is
// the plain absolute difference. Both legs pay taker twice (open and
// close), hence the 2x fee term.
func CalculateDelta(funding1, funding2, fee1, fee2 decimal.Decimal) decimal.Decimal {
	var raw decimal.Decimal
	if funding1.Sign() < 0 && funding2.Sign() < 0 {
		raw = funding1.Abs().Sub(funding2.Abs()).Abs()
	} else {
		raw = funding1.Sub(funding2).Abs()
	}
	return raw.Sub(fee1.Add(fee2).Mul(two))
}

// RouteLongShort assigns sides: the venue with the higher funding rate
// takes the short leg (it receives the funding payment), the other goes
// long.
func RouteLongShort(venue1 string, funding1 decimal.Decimal, venue2 string, funding2 decimal.Decimal) types.Routes {
	if funding1.GreaterThan(funding2) {
		return types.Routes{venue1: types.Short, venue2: types.Long}
	}
	return types.Routes{venue1: types.Long, venue2: types.Short}
}

// SizeForQuote converts a USDT budget into the single base quantity both
// venues will trade. Each venue's raw quantity must clear its own lot
// step; both are then floored to the coarser step and the smaller one is
// taken, so the identical quantity is executable on both venues.
func SizeForQuote(usdt, price1, price2, mult1, mult2 decimal.Decimal) (decimal.Decimal, error) {
	qty1 := usdt.Div(price1)
	qty2 := usdt.Div(price2)
	if qty1.LessThan(mult1) || qty2.LessThan(mult2) {
		return decimal.Zero, types.ErrBelowMinLot
	}

	coarser := decimal.Max(mult1, mult2)
	qty1 = qty1.Div(coarser).Floor().Mul(coarser)
	qty2 = qty2.Div(coarser).Floor().Mul(coarser)
	return decimal.Min(qty1, qty2), nil
}

// EstimatePnLPercent projects a trade's return on margin. Funding rates
// and fees are fractional (percent already divided by 100); notionals
// include leverage. Same-sign funding fees partially cancel, opposite
// signs compound. Returns false when either funding fee is exactly zero:
// the projection is undefined there.
func EstimatePnLPercent(funding1, funding2, notional1, notional2, fee1, fee2,
	qty, priceLong, priceShort, leverage decimal.Decimal) (decimal.Decimal, bool) {

	fundingFee1 := funding1.Mul(notional1)
	fundingFee2 := funding2.Mul(notional2)

	var fundComponent decimal.Decimal
	switch {
	case fundingFee1.Sign() < 0 && fundingFee2.Sign() < 0,
		fundingFee1.Sign() > 0 && fundingFee2.Sign() > 0:
		fundComponent = fundingFee1.Abs().Sub(fundingFee2.Abs()).Abs()
	case fundingFee1.Sign() < 0 && fundingFee2.Sign() > 0,
		fundingFee1.Sign() > 0 && fundingFee2.Sign() < 0:
		fundComponent = fundingFee1.Abs().Add(fundingFee2.Abs())
	default:
		return decimal.Zero, false
	}

	feesComponent := fee1.Mul(notional1).Add(fee2.Mul(notional2)).Mul(two)
	priceComponent := qty.Mul(priceShort.Sub(priceLong))

	pnlUSDT := fundComponent.Sub(feesComponent).Add(priceComponent)
	margin := notional1.Add(notional2).Div(leverage)
	return pnlUSDT.Div(margin).Mul(decimal.NewFromInt(100)), true
}

// LeverageFor picks the leverage both venues can hold: the configured
// value when both brackets allow it, otherwise the smaller bracket cap
// floored to the coarser bracket step.
func LeverageFor(configured, max1, step1, max2, step2 decimal.Decimal) decimal.Decimal {
	if configured.LessThan(max1) && configured.LessThan(max2) {
		return configured
	}
	maxStep := decimal.Max(step1, step2)
	common := decimal.Min(max1, max2)
	return common.Div(maxStep).Floor().Mul(maxStep)
}
