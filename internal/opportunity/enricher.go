package opportunity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fundrate/funding-arb/internal/orderbook"
	"github.com/fundrate/funding-arb/internal/screener"
	"github.com/fundrate/funding-arb/internal/venue"
	"github.com/fundrate/funding-arb/pkg/cache"
	"github.com/fundrate/funding-arb/pkg/types"
)

// bookWarmup is how long the streams run before prices are read; the
// first few seconds of a fresh depth session are too thin to trust.
const bookWarmup = 10 * time.Second

// priceLevel is the ladder index used for the opening price estimate.
// The second level absorbs top-of-book flicker.
const priceLevel = 1

// multiplierTTL bounds how long a cached lot step is trusted.
const multiplierTTL = time.Hour

// AdapterFactory builds a trading adapter for one venue and ticker.
type AdapterFactory func(venueName, ticker string) (venue.Adapter, error)

// Leg is one venue's half of an executable plan.
type Leg struct {
	Adapter  venue.Adapter
	Book     *orderbook.Book
	Reports  *orderbook.Reports
	Balances *orderbook.Balances

	Side       types.PositionSide
	Price      decimal.Decimal
	Multiplier decimal.Decimal
	Funding    decimal.Decimal // percent
	Fee        decimal.Decimal // percent
}

// Plan is a fully-sized, margin-configured opportunity ready for a
// trade coordinator.
type Plan struct {
	Ticker              string
	Legs                [2]Leg
	Qty                 decimal.Decimal
	Leverage            decimal.Decimal
	EstimatedPnLPercent decimal.Decimal
}

// Enricher turns screener selections into executable plans: it spins up
// the streaming sessions, resolves lot steps and leverage, prepares
// isolated margin, prices both legs off the warm books and filters by
// projected return.
type Enricher struct {
	factory      AdapterFactory
	cache        cache.Cache
	usdtAmount   decimal.Decimal
	leverage     decimal.Decimal
	pnlThreshold decimal.Decimal
	warmup       time.Duration
	logger       *zap.Logger
}

// Config holds enricher configuration.
type Config struct {
	Factory      AdapterFactory
	Cache        cache.Cache
	USDTAmount   decimal.Decimal
	Leverage     decimal.Decimal
	PnLThreshold decimal.Decimal
	// Warmup overrides the book warm-up delay, for tests.
	Warmup time.Duration
	Logger *zap.Logger
}

// New creates an enricher.
func New(cfg Config) *Enricher {
	warmup := cfg.Warmup
	if warmup == 0 {
		warmup = bookWarmup
	}
	return &Enricher{
		factory:      cfg.Factory,
		cache:        cfg.Cache,
		usdtAmount:   cfg.USDTAmount,
		leverage:     cfg.Leverage,
		pnlThreshold: cfg.PnLThreshold,
		warmup:       warmup,
		logger:       cfg.Logger,
	}
}

// legSetup carries one leg's parallel-query results.
type legSetup struct {
	leg      Leg
	maxLev   decimal.Decimal
	levStep  decimal.Decimal
	err      error
}

// Enrich prepares every opportunity in parallel, lets the books warm,
// then sizes and filters. Opportunities that fail feasibility are
// dropped with their streams torn down; a hard setup error drops only
// the affected opportunity.
func (e *Enricher) Enrich(ctx context.Context, opps []screener.Opportunity) ([]*Plan, error) {
	type prepared struct {
		opp      screener.Opportunity
		setups   [2]legSetup
		leverage decimal.Decimal
	}

	var candidates []prepared
	for _, opp := range opps {
		routes := opp.Routes()

		var setups [2]legSetup
		var wg sync.WaitGroup
		for i, venueName := range []string{opp.Venue1, opp.Venue2} {
			wg.Add(1)
			go func(i int, venueName string) {
				defer wg.Done()
				setups[i] = e.setupLeg(ctx, venueName, opp.Ticker, routes.SideFor(venueName))
			}(i, venueName)
		}
		wg.Wait()

		failed := false
		for i := range setups {
			if setups[i].err != nil {
				e.logger.Error("leg-setup-failed",
					zap.String("ticker", opp.Ticker),
					zap.Error(setups[i].err),
				)
				failed = true
			}
		}
		if failed {
			for i := range setups {
				if setups[i].err == nil && setups[i].leg.Adapter != nil {
					_ = setups[i].leg.Adapter.CloseStreams()
				}
			}
			continue
		}

		setups[0].leg.Funding = opp.Funding1
		setups[0].leg.Fee = opp.Fee1
		setups[1].leg.Funding = opp.Funding2
		setups[1].leg.Fee = opp.Fee2

		usedLeverage := screener.LeverageFor(
			e.leverage,
			setups[0].maxLev, setups[0].levStep,
			setups[1].maxLev, setups[1].levStep,
		)

		err := e.prepareMargin(ctx, &setups, usedLeverage)
		if err != nil {
			e.logger.Error("margin-setup-failed", zap.String("ticker", opp.Ticker), zap.Error(err))
			for i := range setups {
				_ = setups[i].leg.Adapter.CloseStreams()
			}
			continue
		}

		candidates = append(candidates, prepared{opp: opp, setups: setups, leverage: usedLeverage})
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	e.logger.Info("warming-order-books", zap.Duration("warmup", e.warmup))
	select {
	case <-ctx.Done():
		for _, cand := range candidates {
			for i := range cand.setups {
				_ = cand.setups[i].leg.Adapter.CloseStreams()
			}
		}
		return nil, ctx.Err()
	case <-time.After(e.warmup):
	}

	var plans []*Plan
	for _, cand := range candidates {
		plan, err := e.buildPlan(cand.opp, cand.setups, cand.leverage)
		if err != nil {
			e.logger.Warn("opportunity-dropped",
				zap.String("ticker", cand.opp.Ticker),
				zap.Error(err),
			)
			for i := range cand.setups {
				_ = cand.setups[i].leg.Adapter.CloseStreams()
			}
			continue
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// setupLeg builds the adapter, starts its streams and resolves lot step
// and leverage bracket for one venue-ticker.
func (e *Enricher) setupLeg(ctx context.Context, venueName, ticker string, side types.PositionSide) legSetup {
	adapter, err := e.factory(venueName, ticker)
	if err != nil {
		return legSetup{err: fmt.Errorf("build adapter for %s: %w", venueName, err)}
	}

	book := orderbook.New(ticker)
	reports := orderbook.NewReports()
	balances := orderbook.NewBalances()

	err = adapter.StartStreams(ctx, book, reports, balances)
	if err != nil {
		return legSetup{err: fmt.Errorf("start streams on %s: %w", venueName, err)}
	}

	mult, err := e.multiplier(ctx, adapter, venueName, ticker)
	if err != nil {
		_ = adapter.CloseStreams()
		return legSetup{err: fmt.Errorf("multiplier on %s: %w", venueName, err)}
	}

	maxLev, levStep, err := adapter.MaxLeverage(ctx, e.usdtAmount)
	if err != nil {
		_ = adapter.CloseStreams()
		return legSetup{err: fmt.Errorf("leverage bracket on %s: %w", venueName, err)}
	}

	return legSetup{
		leg: Leg{
			Adapter:    adapter,
			Book:       book,
			Reports:    reports,
			Balances:   balances,
			Side:       side,
			Multiplier: mult,
		},
		maxLev:  maxLev,
		levStep: levStep,
	}
}

// multiplier resolves the lot step through the metadata cache.
func (e *Enricher) multiplier(ctx context.Context, adapter venue.Adapter, venueName, ticker string) (decimal.Decimal, error) {
	key := venueName + ":" + ticker + ":multiplier"
	if cached, ok := e.cache.Get(key); ok {
		if mult, ok := cached.(decimal.Decimal); ok {
			return mult, nil
		}
	}

	mult, err := adapter.Multiplier(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	e.cache.Set(key, mult, multiplierTTL)
	return mult, nil
}

// prepareMargin applies isolated margin and the shared leverage to both
// venues in parallel, once each.
func (e *Enricher) prepareMargin(ctx context.Context, setups *[2]legSetup, leverage decimal.Decimal) error {
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range setups {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = setups[i].leg.Adapter.SetMarginTypeAndLeverage(ctx, types.Isolated, leverage)
		}(i)
	}
	wg.Wait()
	return errors.Join(errs[0], errs[1])
}

// buildPlan prices both legs off the warmed books, sizes the shared
// quantity and filters by the projected return on margin.
func (e *Enricher) buildPlan(opp screener.Opportunity, setups [2]legSetup, leverage decimal.Decimal) (*Plan, error) {
	for i := range setups {
		price, err := openingPrice(setups[i].leg.Book, setups[i].leg.Side)
		if err != nil {
			return nil, fmt.Errorf("price leg %s: %w", setups[i].leg.Adapter.Name(), err)
		}
		setups[i].leg.Price = price
	}

	leg1, leg2 := setups[0].leg, setups[1].leg

	qty, err := screener.SizeForQuote(e.usdtAmount, leg1.Price, leg2.Price, leg1.Multiplier, leg2.Multiplier)
	if err != nil {
		return nil, err
	}

	priceLong, priceShort := leg1.Price, leg2.Price
	if leg1.Side == types.Short {
		priceLong, priceShort = leg2.Price, leg1.Price
	}

	hundred := decimal.NewFromInt(100)
	pnl, ok := screener.EstimatePnLPercent(
		leg1.Funding.Div(hundred), leg2.Funding.Div(hundred),
		qty.Mul(leg1.Price).Mul(leverage), qty.Mul(leg2.Price).Mul(leverage),
		leg1.Fee.Div(hundred), leg2.Fee.Div(hundred),
		qty, priceLong, priceShort, leverage,
	)
	if !ok {
		return nil, fmt.Errorf("pnl projection undefined for %s", opp.Ticker)
	}
	if pnl.LessThanOrEqual(e.pnlThreshold) {
		return nil, fmt.Errorf("estimated pnl %s%% below threshold %s%%", pnl, e.pnlThreshold)
	}

	setups[0].leg, setups[1].leg = leg1, leg2

	e.logger.Info("plan-ready",
		zap.String("ticker", opp.Ticker),
		zap.String("qty", qty.String()),
		zap.String("leverage", leverage.String()),
		zap.String("estimated-pnl-percent", pnl.String()),
	)
	PlansBuiltTotal.Inc()

	return &Plan{
		Ticker:              opp.Ticker,
		Legs:                [2]Leg{setups[0].leg, setups[1].leg},
		Qty:                 qty,
		Leverage:            leverage,
		EstimatedPnLPercent: pnl,
	}, nil
}

// openingPrice reads the second book level in the opening direction:
// a long opens with a BUY against the asks, a short sells into the bids.
func openingPrice(book *orderbook.Book, side types.PositionSide) (decimal.Decimal, error) {
	if !book.Ready() {
		return decimal.Zero, types.ErrBookNotReady
	}

	var lvl orderbook.Level
	var ok bool
	if side == types.Long {
		lvl, ok = book.AskAt(priceLevel)
	} else {
		lvl, ok = book.BidAt(priceLevel)
	}
	if !ok {
		return decimal.Zero, types.ErrBookNotReady
	}
	return lvl.Price, nil
}
