package screener

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fundrate/funding-arb/pkg/types"
)

// selectionThreshold is the minimum net funding delta, in percent, an
// opportunity must clear before it is worth a trade coordinator.
var selectionThreshold = decimal.RequireFromString("0.1")

// Source is one venue's market-wide funding feed.
type Source interface {
	Name() string
	FundingRates(ctx context.Context) (map[string]types.FundingSnapshot, error)
	TakerFee() decimal.Decimal
}

// Opportunity is one scored venue pair for one ticker.
type Opportunity struct {
	Ticker   string
	Venue1   string
	Venue2   string
	Funding1 decimal.Decimal
	Funding2 decimal.Decimal
	Fee1     decimal.Decimal
	Fee2     decimal.Decimal
	RawDelta decimal.Decimal
	NetDelta decimal.Decimal
}

// Routes assigns sides by funding comparison.
func (o Opportunity) Routes() types.Routes {
	return RouteLongShort(o.Venue1, o.Funding1, o.Venue2, o.Funding2)
}

// Screener scores funding differentials across venues and allocates
// each venue to at most one opportunity.
type Screener struct {
	sources []Source
	logger  *zap.Logger
}

// Config holds screener configuration.
type Config struct {
	Sources []Source
	Logger  *zap.Logger
}

// New creates a screener over the given venue sources.
func New(cfg Config) *Screener {
	return &Screener{sources: cfg.Sources, logger: cfg.Logger}
}

type venueRates struct {
	venue string
	fee   decimal.Decimal
	rates map[string]types.FundingSnapshot
}

// Screen fetches all venues in parallel, intersects tickers, scores
// every venue pair and returns the venue-exclusive winners above the
// threshold, best first.
func (s *Screener) Screen(ctx context.Context) ([]Opportunity, error) {
	collected, err := s.collect(ctx)
	if err != nil {
		return nil, err
	}

	// Tickers quoted on fewer than two venues cannot form a pair.
	byTicker := make(map[string][]venueRates)
	for _, vr := range collected {
		for ticker := range vr.rates {
			byTicker[ticker] = append(byTicker[ticker], vr)
		}
	}

	var scored []Opportunity
	for ticker, venues := range byTicker {
		if len(venues) < 2 {
			continue
		}
		for i := 0; i < len(venues); i++ {
			for j := i + 1; j < len(venues); j++ {
				v1, v2 := venues[i], venues[j]
				f1 := v1.rates[ticker].Rate
				f2 := v2.rates[ticker].Rate
				scored = append(scored, Opportunity{
					Ticker:   ticker,
					Venue1:   v1.venue,
					Venue2:   v2.venue,
					Funding1: f1,
					Funding2: f2,
					Fee1:     v1.fee,
					Fee2:     v2.fee,
					RawDelta: CalculateDelta(f1, f2, decimal.Zero, decimal.Zero),
					NetDelta: CalculateDelta(f1, f2, v1.fee, v2.fee),
				})
			}
		}
	}
	OpportunitiesTotal.WithLabelValues("scored").Add(float64(len(scored)))

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].NetDelta.GreaterThan(scored[j].NetDelta)
	})

	// Greedy venue-exclusive selection: a venue's margin backs at most
	// one concurrent trade.
	committed := make(map[string]bool)
	var selected []Opportunity
	for _, opp := range scored {
		if !opp.NetDelta.GreaterThan(selectionThreshold) {
			continue
		}
		if committed[opp.Venue1] || committed[opp.Venue2] {
			continue
		}
		committed[opp.Venue1] = true
		committed[opp.Venue2] = true
		selected = append(selected, opp)

		s.logger.Info("opportunity-selected",
			zap.String("ticker", opp.Ticker),
			zap.String("venue-1", opp.Venue1),
			zap.String("venue-2", opp.Venue2),
			zap.String("net-delta", opp.NetDelta.String()),
		)
	}
	OpportunitiesTotal.WithLabelValues("selected").Add(float64(len(selected)))

	return selected, nil
}

// collect fans out one fetch per venue and fails on the first error.
func (s *Screener) collect(ctx context.Context) ([]venueRates, error) {
	results := make([]venueRates, len(s.sources))
	errs := make([]error, len(s.sources))

	var wg sync.WaitGroup
	for i, src := range s.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			rates, err := src.FundingRates(ctx)
			if err != nil {
				errs[i] = fmt.Errorf("fetch funding rates from %s: %w", src.Name(), err)
				return
			}
			results[i] = venueRates{venue: src.Name(), fee: src.TakerFee(), rates: rates}
			s.logger.Info("funding-rates-collected",
				zap.String("venue", src.Name()),
				zap.Int("tickers", len(rates)),
			)
		}(i, src)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
