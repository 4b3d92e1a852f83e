package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fundrate/funding-arb/internal/journal"
	"github.com/fundrate/funding-arb/internal/opportunity"
	"github.com/fundrate/funding-arb/pkg/types"
)

// State is the coordinator's lifecycle phase.
type State string

const (
	StateSetup           State = "SETUP"
	StateOpening         State = "OPENING"
	StateOpenWaitFunding State = "OPEN_WAIT_FUNDING"
	StateCloseWaiting    State = "CLOSE_WAITING"
	StateClosing         State = "CLOSING"
	StateSettling        State = "SETTLING"
	StateJournaled       State = "JOURNALED"
	StateAborted         State = "ABORTED"
)

const (
	// closePollInterval is the cadence of the favorable-recombination scan.
	closePollInterval = 100 * time.Millisecond

	// settleDelay lets fills and income records propagate before settling.
	settleDelay = 15 * time.Second

	// closeDeadline bounds CLOSE_WAITING: just short of the next funding
	// tick, measured from the moment funding was collected.
	closeDeadline = 7*time.Hour + 54*time.Minute

	// settleSlack widens the income query window on both ends.
	settleSlack = 60 * time.Second
)

// Alerter posts best-effort operator notifications.
type Alerter interface {
	Send(ctx context.Context, text string)
}

// Coordinator drives one opportunity from paired open to journaled
// close. One coordinator owns its plan's two streaming sessions; no two
// coordinators share a venue.
type Coordinator struct {
	plan    *opportunity.Plan
	sink    journal.Sink
	alerter Alerter
	logger  *zap.Logger

	fundingWindowSecs int

	now          func() time.Time
	pollInterval time.Duration
	settleDelay  time.Duration
	deadline     time.Duration

	state State
}

// Config holds coordinator configuration. The timing fields override the
// production cadences, for tests.
type Config struct {
	Plan              *opportunity.Plan
	Sink              journal.Sink
	Alerter           Alerter
	FundingWindowSecs int
	Logger            *zap.Logger

	Now          func() time.Time
	PollInterval time.Duration
	SettleDelay  time.Duration
	Deadline     time.Duration
}

// New creates a coordinator in SETUP.
func New(cfg Config) *Coordinator {
	c := &Coordinator{
		plan:              cfg.Plan,
		sink:              cfg.Sink,
		alerter:           cfg.Alerter,
		logger:            cfg.Logger,
		fundingWindowSecs: cfg.FundingWindowSecs,
		now:               cfg.Now,
		pollInterval:      cfg.PollInterval,
		settleDelay:       cfg.SettleDelay,
		deadline:          cfg.Deadline,
		state:             StateSetup,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.pollInterval == 0 {
		c.pollInterval = closePollInterval
	}
	if c.settleDelay == 0 {
		c.settleDelay = settleDelay
	}
	if c.deadline == 0 {
		c.deadline = closeDeadline
	}
	return c
}

// State returns the current lifecycle phase.
func (c *Coordinator) State() State {
	return c.state
}

// legOutcome carries one leg's order placement result.
type legOutcome struct {
	order types.Order
	err   error
}

// Run executes the trade to completion. The plan's streams are torn
// down on every exit path.
func (c *Coordinator) Run(ctx context.Context) error {
	defer func() {
		for i := range c.plan.Legs {
			_ = c.plan.Legs[i].Adapter.CloseStreams()
		}
	}()

	startTime := c.now()

	c.alerter.Send(ctx, fmt.Sprintf(
		"I'm starting to trade %s: qty=%s leverage=%s estimated_pnl=%s%%",
		c.plan.Ticker, c.plan.Qty, c.plan.Leverage, c.plan.EstimatedPnLPercent,
	))

	c.transition(StateOpening)
	openInfos, err := c.open(ctx, startTime)
	if err != nil {
		return err
	}

	c.transition(StateOpenWaitFunding)
	fundingTime, err := c.waitFunding(ctx)
	if err != nil {
		return c.fail(ctx, err)
	}

	c.transition(StateCloseWaiting)
	err = c.waitFavorableClose(ctx, openInfos, fundingTime)
	if err != nil {
		return c.fail(ctx, err)
	}

	c.transition(StateClosing)
	closeOrders, err := c.closePositions(ctx)
	if err != nil {
		return c.fail(ctx, err)
	}

	c.transition(StateSettling)
	rec, err := c.settle(ctx, startTime, openInfos, closeOrders)
	if err != nil {
		return c.fail(ctx, err)
	}

	err = c.sink.InsertTrade(ctx, rec)
	if err != nil {
		return c.fail(ctx, fmt.Errorf("journal trade: %w", err))
	}
	c.transition(StateJournaled)
	TradesTotal.WithLabelValues("completed").Inc()

	c.alerter.Send(ctx, fmt.Sprintf(
		"I got out of position. %s total PnL=%s USDT", c.plan.Ticker, rec.PnL,
	))
	return nil
}

// open fires the paired market orders and resolves placement asymmetry.
// Both rejected aborts with nothing to clean up; one rejected rolls the
// survivor back and journals the failed attempt.
func (c *Coordinator) open(ctx context.Context, startTime time.Time) ([2]types.OrderInfo, error) {
	var infos [2]types.OrderInfo

	outcomes := c.placePaired(ctx, func(leg *opportunity.Leg) types.OrderRequest {
		return types.OrderRequest{
			Side: types.OpenSide(leg.Side),
			Qty:  c.plan.Qty,
			Type: types.Market,
		}
	})

	rejected := [2]bool{}
	for i := range outcomes {
		rejected[i] = outcomes[i].err != nil || outcomes[i].order.Rejected()
		if outcomes[i].err != nil {
			c.logger.Error("open-order-failed",
				zap.String("venue", c.plan.Legs[i].Adapter.Name()),
				zap.Error(outcomes[i].err),
			)
		}
	}

	switch {
	case rejected[0] && rejected[1]:
		c.transition(StateAborted)
		TradesTotal.WithLabelValues("aborted").Inc()
		c.alerter.Send(ctx, fmt.Sprintf("trade %s aborted: both venues rejected the open", c.plan.Ticker))
		return infos, types.ErrAllLegsRejected

	case rejected[0] || rejected[1]:
		survivor := 0
		if rejected[0] {
			survivor = 1
		}
		err := c.rollback(ctx, startTime, survivor, outcomes)
		if err != nil {
			c.logger.Error("rollback-failed", zap.Error(err))
		}
		c.transition(StateAborted)
		TradesTotal.WithLabelValues("rolled_back").Inc()
		c.alerter.Send(ctx, fmt.Sprintf(
			"trade %s aborted: %s rejected the open, rolled back %s",
			c.plan.Ticker,
			c.plan.Legs[1-survivor].Adapter.Name(),
			c.plan.Legs[survivor].Adapter.Name(),
		))
		return infos, types.ErrLegRejected
	}

	for i := range outcomes {
		info, err := c.plan.Legs[i].Adapter.OrderInfo(ctx, outcomes[i].order)
		if err != nil {
			return infos, c.fail(ctx, fmt.Errorf("open order info on %s: %w",
				c.plan.Legs[i].Adapter.Name(), err))
		}
		infos[i] = info
		c.logger.Info("leg-opened",
			zap.String("venue", c.plan.Legs[i].Adapter.Name()),
			zap.String("side", string(info.Side)),
			zap.String("avg-price", info.AvgPrice.String()),
			zap.String("qty", info.Qty.String()),
		)
	}
	return infos, nil
}

// rollback flattens the surviving leg with an opposite-direction market
// order and journals the failed attempt: real open and rollback rows for
// the survivor, rejected placeholders for the failed venue.
func (c *Coordinator) rollback(ctx context.Context, startTime time.Time, survivor int, outcomes [2]legOutcome) error {
	leg := &c.plan.Legs[survivor]

	rollbackOrder, err := leg.Adapter.PlaceOrder(ctx, types.OrderRequest{
		Side:       types.OpenSide(leg.Side).Opposite(),
		Qty:        c.plan.Qty,
		Type:       types.Market,
		ReduceOnly: true,
	})
	if err != nil {
		return fmt.Errorf("rollback order on %s: %w", leg.Adapter.Name(), err)
	}

	openInfo, err := leg.Adapter.OrderInfo(ctx, outcomes[survivor].order)
	if err != nil {
		return fmt.Errorf("survivor open info: %w", err)
	}
	closeInfo, err := leg.Adapter.OrderInfo(ctx, rollbackOrder)
	if err != nil {
		return fmt.Errorf("rollback info: %w", err)
	}

	failed := 1 - survivor
	rejectedInfo := types.OrderInfo{
		Order: types.Order{
			OrderID: outcomes[failed].order.OrderID,
			Symbol:  c.plan.Legs[failed].Adapter.Symbol(),
			Status:  types.StatusRejected,
		},
		Side:      types.OpenSide(c.plan.Legs[failed].Side),
		OrderTime: c.now(),
	}

	var rec journal.TradeRecord
	rec.Ticker = c.plan.Ticker
	rec.Leverage = c.plan.Leverage
	rec.EntryTime = startTime
	rec.CloseTime = c.now()
	rec.Legs[survivor] = journal.LegRecord{
		Venue:       leg.Adapter.Name(),
		Side:        leg.Side,
		FundingRate: leg.Funding,
		Open:        openInfo,
		Close:       closeInfo,
	}
	rec.Legs[failed] = journal.LegRecord{
		Venue: c.plan.Legs[failed].Adapter.Name(),
		Side:  c.plan.Legs[failed].Side,
		Open:  rejectedInfo,
		Close: rejectedInfo,
	}
	rec.PnL = legPnL(rec.Legs[survivor])

	err = c.sink.InsertTrade(ctx, rec)
	if err != nil {
		return fmt.Errorf("journal rolled-back trade: %w", err)
	}
	return nil
}

// waitFunding polls until each venue independently signals funding,
// either via the wall-clock window predicate or the user-data stream.
func (c *Coordinator) waitFunding(ctx context.Context) (time.Time, error) {
	collected := [2]bool{}
	for {
		for i := range c.plan.Legs {
			if collected[i] {
				continue
			}
			leg := &c.plan.Legs[i]
			if leg.Adapter.FundingTimeout(c.fundingWindowSecs) || leg.Reports.FundingCollected() {
				collected[i] = true
				c.logger.Info("funding-collected", zap.String("venue", leg.Adapter.Name()))
			}
		}
		if collected[0] && collected[1] {
			return c.now(), nil
		}

		select {
		case <-ctx.Done():
			return time.Time{}, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

// waitFavorableClose scans both books on a fixed cadence until the
// combined mark-to-book delta of the two legs turns non-negative, or the
// deadline since funding passes and a market close is forced.
func (c *Coordinator) waitFavorableClose(ctx context.Context, open [2]types.OrderInfo, fundingTime time.Time) error {
	deadline := fundingTime.Add(c.deadline)
	for {
		if !c.now().Before(deadline) {
			c.logger.Warn("close-deadline-reached", zap.String("ticker", c.plan.Ticker))
			return nil
		}

		total, ok := c.recombinationDelta(open)
		if ok && total.Sign() >= 0 {
			c.logger.Info("favorable-recombination",
				zap.String("ticker", c.plan.Ticker),
				zap.String("delta-usdt", total.String()),
			)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

// recombinationDelta walks each venue's own book in its closing
// direction and sums the per-leg deltas. Not ok while either replica is
// still syncing or too shallow for the quantity.
func (c *Coordinator) recombinationDelta(open [2]types.OrderInfo) (decimal.Decimal, bool) {
	total := decimal.Zero
	for i := range c.plan.Legs {
		leg := &c.plan.Legs[i]
		if !leg.Book.Ready() {
			return decimal.Zero, false
		}

		quote, err := leg.Book.Calculate(types.CloseSide(leg.Side), c.plan.Qty)
		if err != nil {
			return decimal.Zero, false
		}

		var delta decimal.Decimal
		if leg.Side == types.Long {
			delta = c.plan.Qty.Mul(quote.AvgPrice.Sub(open[i].AvgPrice))
		} else {
			delta = c.plan.Qty.Mul(open[i].AvgPrice.Sub(quote.AvgPrice))
		}
		total = total.Add(delta)
	}
	return total, true
}

// closePositions flattens both legs with paired market orders. A
// rejection gets one same-direction retry. Ends with the settle pause.
func (c *Coordinator) closePositions(ctx context.Context) ([2]types.Order, error) {
	var orders [2]types.Order

	outcomes := c.placePaired(ctx, func(leg *opportunity.Leg) types.OrderRequest {
		return types.OrderRequest{
			Side:       types.CloseSide(leg.Side),
			Qty:        c.plan.Qty,
			Type:       types.Market,
			ReduceOnly: true,
		}
	})

	for i := range outcomes {
		leg := &c.plan.Legs[i]
		if outcomes[i].err != nil {
			return orders, fmt.Errorf("close order on %s: %w", leg.Adapter.Name(), outcomes[i].err)
		}
		order := outcomes[i].order
		if order.Rejected() {
			c.logger.Warn("close-order-rejected-retrying", zap.String("venue", leg.Adapter.Name()))
			retried, err := leg.Adapter.PlaceOrder(ctx, types.OrderRequest{
				Side:       types.CloseSide(leg.Side),
				Qty:        c.plan.Qty,
				Type:       types.Market,
				ReduceOnly: true,
			})
			if err != nil {
				return orders, fmt.Errorf("close retry on %s: %w", leg.Adapter.Name(), err)
			}
			if retried.Rejected() {
				return orders, fmt.Errorf("close retry rejected on %s", leg.Adapter.Name())
			}
			order = retried
		}
		orders[i] = order
	}

	select {
	case <-ctx.Done():
		return orders, ctx.Err()
	case <-time.After(c.settleDelay):
	}
	return orders, nil
}

// settle queries funding income and refreshed fill aggregates for both
// legs over the padded trade interval and assembles the journal record.
func (c *Coordinator) settle(ctx context.Context, startTime time.Time, open [2]types.OrderInfo, closeOrders [2]types.Order) (journal.TradeRecord, error) {
	var rec journal.TradeRecord
	rec.Ticker = c.plan.Ticker
	rec.Leverage = c.plan.Leverage
	rec.EntryTime = startTime
	rec.CloseTime = c.now()

	startMs := startTime.Add(-settleSlack).UnixMilli()
	endMs := c.now().Add(settleSlack).UnixMilli()

	pnl := decimal.Zero
	for i := range c.plan.Legs {
		leg := &c.plan.Legs[i]

		fundingFee, err := leg.Adapter.FundingFeeIncome(ctx, startMs, endMs)
		if err != nil {
			return rec, fmt.Errorf("funding income on %s: %w", leg.Adapter.Name(), err)
		}

		incomes, err := leg.Adapter.IncomeHistory(ctx, startMs, endMs)
		if err != nil {
			return rec, fmt.Errorf("income history on %s: %w", leg.Adapter.Name(), err)
		}
		for _, income := range incomes {
			if income.Kind == types.IncomePnL {
				pnl = pnl.Add(income.Amount)
			}
		}
		pnl = pnl.Add(fundingFee)

		openInfo, err := leg.Adapter.OrderInfo(ctx, open[i].Order)
		if err != nil {
			return rec, fmt.Errorf("open order info on %s: %w", leg.Adapter.Name(), err)
		}
		closeInfo, err := leg.Adapter.OrderInfo(ctx, closeOrders[i])
		if err != nil {
			return rec, fmt.Errorf("close order info on %s: %w", leg.Adapter.Name(), err)
		}

		rec.Legs[i] = journal.LegRecord{
			Venue:       leg.Adapter.Name(),
			Side:        leg.Side,
			FundingRate: leg.Funding,
			FundingFee:  fundingFee,
			Open:        openInfo,
			Close:       closeInfo,
		}
	}
	pnl = pnl.Sub(totalCommission(rec))
	rec.PnL = pnl
	return rec, nil
}

// placePaired submits one request per leg in parallel and joins both.
func (c *Coordinator) placePaired(ctx context.Context, build func(leg *opportunity.Leg) types.OrderRequest) [2]legOutcome {
	var outcomes [2]legOutcome
	var wg sync.WaitGroup
	for i := range c.plan.Legs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			leg := &c.plan.Legs[i]
			order, err := leg.Adapter.PlaceOrder(ctx, build(leg))
			outcomes[i] = legOutcome{order: order, err: err}
			OrdersPlacedTotal.WithLabelValues(leg.Adapter.Name()).Inc()
		}(i)
	}
	wg.Wait()
	return outcomes
}

// fail posts the failure alert and records the outcome. No partial
// journaling happens on this path.
func (c *Coordinator) fail(ctx context.Context, err error) error {
	c.transition(StateAborted)
	TradesTotal.WithLabelValues("failed").Inc()
	c.logger.Error("coordinator-failed",
		zap.String("ticker", c.plan.Ticker),
		zap.String("state", string(c.state)),
		zap.Error(err),
	)
	c.alerter.Send(ctx, fmt.Sprintf("trade %s failed: %v", c.plan.Ticker, err))
	return err
}

func (c *Coordinator) transition(next State) {
	c.logger.Info("coordinator-state",
		zap.String("ticker", c.plan.Ticker),
		zap.String("from", string(c.state)),
		zap.String("to", string(next)),
	)
	c.state = next
}

// legPnL is the realized result of one completed leg from its fill
// aggregates: received minus spent quote, net of both commissions.
func legPnL(leg journal.LegRecord) decimal.Decimal {
	gross := leg.Close.QuoteQty.Sub(leg.Open.QuoteQty)
	if leg.Side == types.Short {
		gross = leg.Open.QuoteQty.Sub(leg.Close.QuoteQty)
	}
	return gross.Sub(leg.Open.Fee).Sub(leg.Close.Fee)
}

func totalCommission(rec journal.TradeRecord) decimal.Decimal {
	total := decimal.Zero
	for _, leg := range rec.Legs {
		total = total.Add(leg.Open.Fee).Add(leg.Close.Fee)
	}
	return total
}
