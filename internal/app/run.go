package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fundrate/funding-arb/internal/executor"
	"github.com/fundrate/funding-arb/internal/screener"
	"github.com/fundrate/funding-arb/pkg/types"
)

// shutdownTimeout bounds the HTTP server drain on exit.
const shutdownTimeout = 10 * time.Second

// Run executes one full cycle: screen, enrich, trade every selected
// opportunity to completion, then exit. A screener failure before any
// coordinator starts is fatal.
func (a *App) Run(ctx context.Context) error {
	go func() {
		err := a.httpServer.Start()
		if err != nil {
			a.logger.Error("http-server-failed", zap.Error(err))
		}
	}()
	defer a.shutdown()

	opps, err := a.screener.Screen(ctx)
	if err != nil {
		return fmt.Errorf("screen venues: %w", err)
	}
	if len(opps) == 0 {
		a.logger.Info("no-opportunities-selected")
		return nil
	}

	plans, err := a.enricher.Enrich(ctx, opps)
	if err != nil {
		return fmt.Errorf("enrich opportunities: %w", err)
	}
	if len(plans) == 0 {
		a.logger.Info("no-plans-survived-enrichment")
		return nil
	}

	a.health.SetReady(true)

	var wg sync.WaitGroup
	for _, plan := range plans {
		coord := executor.New(executor.Config{
			Plan:              plan,
			Sink:              a.sink,
			Alerter:           a.alerter,
			FundingWindowSecs: a.cfg.FundingTimeoutSecs,
			Logger:            a.logger,
		})

		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			err := coord.Run(ctx)
			if err != nil {
				a.logger.Error("coordinator-exited-with-error",
					zap.String("ticker", ticker),
					zap.Error(err),
				)
			}
		}(plan.Ticker)
	}
	wg.Wait()

	a.logger.Info("all-coordinators-finished", zap.Int("count", len(plans)))
	return nil
}

// Rates prints every venue's funding snapshot, a screener dry run.
func (a *App) Rates(ctx context.Context) error {
	opps, err := a.screener.Screen(ctx)
	if err != nil {
		return fmt.Errorf("screen venues: %w", err)
	}

	sort.Slice(opps, func(i, j int) bool {
		return opps[i].NetDelta.GreaterThan(opps[j].NetDelta)
	})
	for _, opp := range opps {
		a.printOpportunity(opp)
	}
	if len(opps) == 0 {
		fmt.Println("no opportunities above threshold")
	}
	return nil
}

func (a *App) printOpportunity(opp screener.Opportunity) {
	routes := opp.Routes()
	fmt.Printf("%-14s %s(%s)=%s%%  %s(%s)=%s%%  net=%s%%\n",
		opp.Ticker,
		opp.Venue1, routes.SideFor(opp.Venue1), opp.Funding1,
		opp.Venue2, routes.SideFor(opp.Venue2), opp.Funding2,
		opp.NetDelta,
	)
}

// Balances prints each venue's wallet balances.
func (a *App) Balances(ctx context.Context) error {
	factory := a.adapterFactory()
	for name, cred := range a.creds {
		adapter, err := factory(name, cred.Symbol)
		if err != nil {
			return err
		}

		balances, err := adapter.Balances(ctx)
		if err != nil {
			return fmt.Errorf("balances on %s: %w", name, err)
		}
		printBalances(name, balances)
	}
	return nil
}

func printBalances(venueName string, balances map[string]types.Balance) {
	assets := make([]string, 0, len(balances))
	for asset := range balances {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	fmt.Printf("%s:\n", venueName)
	for _, asset := range assets {
		b := balances[asset]
		if b.Total.IsZero() {
			continue
		}
		fmt.Printf("  %-8s total=%s available=%s\n", asset, b.Total, b.Available)
	}
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := a.httpServer.Shutdown(ctx)
	if err != nil {
		a.logger.Error("http-shutdown-failed", zap.Error(err))
	}
	a.cache.Close()

	if closer, ok := a.sink.(interface{ Close() error }); ok {
		err = closer.Close()
		if err != nil {
			a.logger.Error("journal-close-failed", zap.Error(err))
		}
	}

	_ = a.logger.Sync()
}
