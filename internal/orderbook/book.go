package orderbook

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundrate/funding-arb/pkg/types"
)

// Level is one (price, size) rung of a ladder.
type Level struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// Book is a per-venue-symbol order book replica. The streaming goroutine
// writes, the trade coordinator reads; all access goes through the book's
// own mutex. Bids are sorted descending, asks ascending, and zero-size
// levels are never persisted.
type Book struct {
	mu           sync.RWMutex
	symbol       string
	bids         []Level
	asks         []Level
	lastUpdateID int64
	timestamp    int64
	fundingRate  decimal.Decimal
	hasFunding   bool
}

// New creates an empty replica for one symbol.
func New(symbol string) *Book {
	return &Book{symbol: symbol}
}

// Symbol returns the symbol this replica tracks.
func (b *Book) Symbol() string {
	return b.symbol
}

// ApplySnapshot replaces both ladders and resets the sequence number.
// Deltas older than the snapshot must be discarded by the caller.
func (b *Book) ApplySnapshot(bids, asks []Level, lastUpdateID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids = append([]Level(nil), bids...)
	b.asks = append([]Level(nil), asks...)
	b.lastUpdateID = lastUpdateID
	b.timestamp = time.Now().UnixMilli()
	UpdatesAppliedTotal.WithLabelValues("snapshot").Inc()
}

// ApplyDelta applies one incremental update to both sides and stamps the book.
func (b *Book) ApplyDelta(bids, asks []Level) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, lvl := range bids {
		b.bids = manageSide(b.bids, lvl, true)
	}
	for _, lvl := range asks {
		b.asks = manageSide(b.asks, lvl, false)
	}
	b.timestamp = time.Now().UnixMilli()
	UpdatesAppliedTotal.WithLabelValues("delta").Inc()
}

// ApplyLevel applies a single level change to one side.
func (b *Book) ApplyLevel(side types.Side, lvl Level) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if side == types.Buy {
		b.bids = manageSide(b.bids, lvl, true)
	} else {
		b.asks = manageSide(b.asks, lvl, false)
	}
	b.timestamp = time.Now().UnixMilli()
}

// manageSide inserts, overwrites or removes one level while preserving
// price ordering. Scan runs from best toward worst: an exact price match
// overwrites (or removes on zero size); the first dominated level is the
// insertion point; a zero-size price that is absent is a no-op.
func manageSide(ladder []Level, lvl Level, isBid bool) []Level {
	if len(ladder) == 0 {
		if lvl.Qty.IsZero() {
			return ladder
		}
		return append(ladder, lvl)
	}

	for i := range ladder {
		cmp := lvl.Price.Cmp(ladder[i].Price)
		if cmp == 0 {
			if lvl.Qty.IsZero() {
				return append(ladder[:i], ladder[i+1:]...)
			}
			ladder[i] = lvl
			return ladder
		}

		dominates := (isBid && cmp > 0) || (!isBid && cmp < 0)
		if dominates {
			if lvl.Qty.IsZero() {
				return ladder
			}
			ladder = append(ladder, Level{})
			copy(ladder[i+1:], ladder[i:])
			ladder[i] = lvl
			return ladder
		}
	}

	if lvl.Qty.IsZero() {
		return ladder
	}
	return append(ladder, lvl)
}

// SetLastUpdateID records the latest applied sequence number.
func (b *Book) SetLastUpdateID(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastUpdateID = id
}

// LastUpdateID returns the latest applied sequence number.
func (b *Book) LastUpdateID() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastUpdateID
}

// SetFundingRate stores the mark-price stream's funding rate, in percent.
func (b *Book) SetFundingRate(rate decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fundingRate = rate
	b.hasFunding = true
}

// FundingRate returns the latest streamed funding rate, if any arrived.
func (b *Book) FundingRate() (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fundingRate, b.hasFunding
}

// Ready reports whether the replica carries a usable snapshot: both
// ladders populated and a timestamp set.
func (b *Book) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.bids) > 0 && len(b.asks) > 0 && b.timestamp > 0
}

// Timestamp returns the last mutation time in epoch milliseconds.
func (b *Book) Timestamp() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.timestamp
}

// Clear drops both ladders, the sequence number and the funding cell.
// Called on any stream error or close before resynchronization.
func (b *Book) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bids = nil
	b.asks = nil
	b.lastUpdateID = 0
	b.timestamp = 0
	b.hasFunding = false
	ResetsTotal.Inc()
}

// TopOfBook returns the best bid and ask.
func (b *Book) TopOfBook() (bid, ask Level, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 || len(b.asks) == 0 {
		return Level{}, Level{}, false
	}
	return b.bids[0], b.asks[0], true
}

// BidAt returns the i-th best bid.
func (b *Book) BidAt(i int) (Level, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if i < 0 || i >= len(b.bids) {
		return Level{}, false
	}
	return b.bids[i], true
}

// AskAt returns the i-th best ask.
func (b *Book) AskAt(i int) (Level, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if i < 0 || i >= len(b.asks) {
		return Level{}, false
	}
	return b.asks[i], true
}

// Depth returns the number of levels on each side.
func (b *Book) Depth() (bids, asks int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.bids), len(b.asks)
}

// Quote is the result of a depth walk.
type Quote struct {
	TouchedPrice decimal.Decimal // worst price consumed
	AvgPrice     decimal.Decimal
	QuoteAmount  decimal.Decimal // quote spent or received
	BaseAmount   decimal.Decimal // base filled
}

// Calculate walks the opposite ladder for a base-denominated amount:
// BUY consumes asks, SELL consumes bids. Returns ErrInsufficientDepth
// when the ladder runs out before the amount is filled.
func (b *Book) Calculate(side types.Side, amount decimal.Decimal) (Quote, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ladder := b.asks
	if side == types.Sell {
		ladder = b.bids
	}
	if amount.Sign() <= 0 || len(ladder) == 0 {
		return Quote{}, types.ErrInsufficientDepth
	}

	remaining := amount
	quote := decimal.Zero
	for _, lvl := range ladder {
		if lvl.Qty.Cmp(remaining) >= 0 {
			quote = quote.Add(remaining.Mul(lvl.Price))
			return Quote{
				TouchedPrice: lvl.Price,
				AvgPrice:     quote.Div(amount),
				QuoteAmount:  quote,
				BaseAmount:   amount,
			}, nil
		}
		quote = quote.Add(lvl.Qty.Mul(lvl.Price))
		remaining = remaining.Sub(lvl.Qty)
	}
	return Quote{}, types.ErrInsufficientDepth
}

// CalculateQuote is the dual of Calculate: the amount is denominated in
// the quote asset and the walk fills base until the quote is spent.
func (b *Book) CalculateQuote(side types.Side, amount decimal.Decimal) (Quote, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ladder := b.asks
	if side == types.Sell {
		ladder = b.bids
	}
	if amount.Sign() <= 0 || len(ladder) == 0 {
		return Quote{}, types.ErrInsufficientDepth
	}

	remaining := amount
	base := decimal.Zero
	for _, lvl := range ladder {
		levelQuote := lvl.Qty.Mul(lvl.Price)
		if levelQuote.Cmp(remaining) >= 0 {
			base = base.Add(remaining.Div(lvl.Price))
			return Quote{
				TouchedPrice: lvl.Price,
				AvgPrice:     amount.Div(base),
				QuoteAmount:  amount,
				BaseAmount:   base,
			}, nil
		}
		base = base.Add(lvl.Qty)
		remaining = remaining.Sub(levelQuote)
	}
	return Quote{}, types.ErrInsufficientDepth
}
