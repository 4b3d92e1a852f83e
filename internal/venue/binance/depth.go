package binance

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fundrate/funding-arb/internal/orderbook"
)

// depthEvent is one incremental depth frame. U/u bound the event's
// update range; pu is the previous event's final id.
type depthEvent struct {
	FirstUpdateID int64      `json:"U"`
	FinalUpdateID int64      `json:"u"`
	PrevFinalID   int64      `json:"pu"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

// depthSnapshot is the REST snapshot payload.
type depthSnapshot struct {
	LastUpdateID int64
	Bids         []orderbook.Level
	Asks         []orderbook.Level
}

// depthSync keeps a book replica consistent with Binance's incremental
// depth stream. It bootstraps from a REST snapshot, applies the first
// event straddling the snapshot sequence, then requires every later
// event's pu to equal the last applied u. Any break resets the book and
// re-snapshots.
type depthSync struct {
	book   *orderbook.Book
	fetch  func(ctx context.Context) (depthSnapshot, error)
	synced bool
	logger *zap.Logger
}

func newDepthSync(book *orderbook.Book, fetch func(ctx context.Context) (depthSnapshot, error), logger *zap.Logger) *depthSync {
	return &depthSync{book: book, fetch: fetch, logger: logger}
}

func (d *depthSync) reset(ctx context.Context) error {
	d.synced = false

	snap, err := d.fetch(ctx)
	if err != nil {
		return fmt.Errorf("depth snapshot: %w", err)
	}
	d.book.ApplySnapshot(snap.Bids, snap.Asks, snap.LastUpdateID)
	d.logger.Info("depth-snapshot-applied", zap.Int64("last-update-id", snap.LastUpdateID))
	return nil
}

// invalidate forgets the sync state, forcing a snapshot on the next event.
func (d *depthSync) invalidate() {
	d.synced = false
}

func (d *depthSync) apply(ctx context.Context, ev depthEvent) error {
	if d.book.LastUpdateID() == 0 {
		err := d.reset(ctx)
		if err != nil {
			return err
		}
	}
	last := d.book.LastUpdateID()

	if !d.synced {
		if ev.FinalUpdateID < last {
			// Event predates the snapshot.
			return nil
		}
		if ev.FirstUpdateID <= last && last <= ev.FinalUpdateID {
			d.applyEvent(ev)
			d.synced = true
			return nil
		}
		// Event starts beyond the snapshot: the stream skipped updates.
		return d.gap(ctx, ev, last)
	}

	if ev.PrevFinalID != last {
		return d.gap(ctx, ev, last)
	}
	d.applyEvent(ev)
	return nil
}

func (d *depthSync) gap(ctx context.Context, ev depthEvent, last int64) error {
	orderbook.SequenceGapsTotal.Inc()
	d.logger.Warn("depth-sequence-gap",
		zap.Int64("last-update-id", last),
		zap.Int64("event-first-id", ev.FirstUpdateID),
		zap.Int64("event-prev-final-id", ev.PrevFinalID),
	)
	d.book.Clear()
	return d.reset(ctx)
}

func (d *depthSync) applyEvent(ev depthEvent) {
	bids, err := parseLevels(ev.Bids)
	if err != nil {
		d.logger.Warn("depth-event-parse-error", zap.Error(err))
		return
	}
	asks, err := parseLevels(ev.Asks)
	if err != nil {
		d.logger.Warn("depth-event-parse-error", zap.Error(err))
		return
	}
	d.book.ApplyDelta(bids, asks)
	d.book.SetLastUpdateID(ev.FinalUpdateID)
}

func parseLevels(rows [][]string) ([]orderbook.Level, error) {
	levels := make([]orderbook.Level, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("level row has %d fields", len(row))
		}
		price, err := decimal.NewFromString(row[0])
		if err != nil {
			return nil, fmt.Errorf("parse level price: %w", err)
		}
		qty, err := decimal.NewFromString(row[1])
		if err != nil {
			return nil, fmt.Errorf("parse level qty: %w", err)
		}
		levels = append(levels, orderbook.Level{Price: price, Qty: qty})
	}
	return levels, nil
}
