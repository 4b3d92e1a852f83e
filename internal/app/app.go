package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fundrate/funding-arb/internal/journal"
	"github.com/fundrate/funding-arb/internal/opportunity"
	"github.com/fundrate/funding-arb/internal/screener"
	"github.com/fundrate/funding-arb/internal/venue"
	"github.com/fundrate/funding-arb/internal/venue/binance"
	"github.com/fundrate/funding-arb/internal/venue/bybit"
	"github.com/fundrate/funding-arb/pkg/alert"
	"github.com/fundrate/funding-arb/pkg/cache"
	"github.com/fundrate/funding-arb/pkg/config"
	"github.com/fundrate/funding-arb/pkg/healthprobe"
	"github.com/fundrate/funding-arb/pkg/httpserver"
)

// App wires configuration, venues, the screening pipeline and the
// journal into one runnable process.
type App struct {
	cfg    *config.Config
	creds  config.Credentials
	logger *zap.Logger

	health     *healthprobe.HealthChecker
	httpServer *httpserver.Server
	cache      cache.Cache
	alerter    *alert.Telegram
	sink       journal.Sink

	screener *screener.Screener
	enricher *opportunity.Enricher
}

// New loads configuration and builds every component. Nothing is
// started yet; Run owns the lifecycle.
func New(ctx context.Context, configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	creds, err := config.LoadCredentials(cfg.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	a := &App{
		cfg:    cfg,
		creds:  creds,
		logger: logger,
	}

	err = a.setup(ctx)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) setup(ctx context.Context) error {
	a.health = healthprobe.New()
	a.httpServer = httpserver.New(&httpserver.Config{
		Port:          a.cfg.HTTPPort,
		Logger:        a.logger,
		HealthChecker: a.health,
	})

	metadataCache, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
		Logger:      a.logger,
	})
	if err != nil {
		return fmt.Errorf("build metadata cache: %w", err)
	}
	a.cache = metadataCache

	a.alerter = alert.New(alert.Config{
		ChatID: a.cfg.ChatID,
		Token:  a.cfg.BotToken,
		Logger: a.logger,
	})

	a.sink, err = a.buildSink(ctx)
	if err != nil {
		return err
	}

	sources, err := a.buildSources()
	if err != nil {
		return err
	}
	a.screener = screener.New(screener.Config{
		Sources: sources,
		Logger:  a.logger,
	})

	a.enricher = opportunity.New(opportunity.Config{
		Factory:      a.adapterFactory(),
		Cache:        a.cache,
		USDTAmount:   a.cfg.USDTAmount,
		Leverage:     a.cfg.Leverage,
		PnLThreshold: a.cfg.EstimatedPnL,
		Logger:       a.logger,
	})
	return nil
}

// buildSink selects the journal backend: Postgres when a connection
// string is configured, the console sink otherwise.
func (a *App) buildSink(ctx context.Context) (journal.Sink, error) {
	if a.cfg.DBConnectionString == "" {
		a.logger.Warn("no-database-configured-journaling-to-console")
		return journal.NewConsole(a.logger), nil
	}

	pg, err := journal.NewPostgres(ctx, journal.PostgresConfig{
		ConnectionString: a.cfg.DBConnectionString,
		Logger:           a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build journal: %w", err)
	}
	return pg, nil
}

// buildSources creates one market-wide rates client per configured venue.
func (a *App) buildSources() ([]screener.Source, error) {
	var sources []screener.Source
	for name, cred := range a.creds {
		switch name {
		case "Binance":
			sources = append(sources, binance.NewRatesClient(binance.RatesConfig{
				BaseURL: cred.BaseURL,
				Logger:  a.logger,
			}))
		case "ByBit":
			sources = append(sources, bybit.NewRatesClient(bybit.RatesConfig{
				BaseURL: cred.BaseURL,
				Logger:  a.logger,
			}))
		default:
			return nil, fmt.Errorf("unknown venue in credentials: %s", name)
		}
	}
	if len(sources) < 2 {
		return nil, fmt.Errorf("need credentials for at least two venues, got %d", len(sources))
	}
	return sources, nil
}

// adapterFactory builds per-ticker trading adapters from the venue
// credentials.
func (a *App) adapterFactory() opportunity.AdapterFactory {
	return func(venueName, ticker string) (venue.Adapter, error) {
		cred, ok := a.creds[venueName]
		if !ok {
			return nil, fmt.Errorf("no credentials for venue %s", venueName)
		}

		switch venueName {
		case "Binance":
			return binance.New(binance.Config{
				Symbol:     ticker,
				APIKey:     cred.APIKey,
				APISecret:  cred.APISecret,
				RecvWindow: cred.RecvWindow,
				BaseURL:    cred.BaseURL,
				WSBaseURL:  cred.WebsocketsBaseURL,
				Logger:     a.logger,
			}), nil
		case "ByBit":
			return bybit.New(bybit.Config{
				Symbol:     ticker,
				APIKey:     cred.APIKey,
				APISecret:  cred.APISecret,
				RecvWindow: cred.RecvWindow,
				BaseURL:    cred.BaseURL,
				WSBaseURL:  cred.WebsocketsBaseURL,
				Logger:     a.logger,
			}), nil
		}
		return nil, fmt.Errorf("no adapter for venue %s", venueName)
	}
}

// Logger exposes the process logger for the CLI layer.
func (a *App) Logger() *zap.Logger {
	return a.logger
}
