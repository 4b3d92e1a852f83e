package journal

import (
	"context"

	"go.uber.org/zap"
)

// Console is a journal sink that only logs, for dry runs and for
// environments without a database.
type Console struct {
	logger *zap.Logger
}

// NewConsole creates a log-only journal sink.
func NewConsole(logger *zap.Logger) *Console {
	return &Console{logger: logger}
}

// InsertTrade logs the record and discards it.
func (c *Console) InsertTrade(_ context.Context, rec TradeRecord) error {
	for _, leg := range rec.Legs {
		c.logger.Info("trade-leg",
			zap.String("ticker", rec.Ticker),
			zap.String("venue", leg.Venue),
			zap.String("side", string(leg.Side)),
			zap.String("funding-rate", leg.FundingRate.String()),
			zap.String("funding-fee", leg.FundingFee.String()),
			zap.String("open-avg-price", leg.Open.AvgPrice.String()),
			zap.String("close-avg-price", leg.Close.AvgPrice.String()),
		)
	}
	c.logger.Info("trade-journaled",
		zap.String("ticker", rec.Ticker),
		zap.String("pnl", rec.PnL.String()),
		zap.Time("entry-time", rec.EntryTime),
		zap.Time("close-time", rec.CloseTime),
	)
	TradesJournaledTotal.Inc()
	return nil
}
