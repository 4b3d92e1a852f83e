package binance

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fundrate/funding-arb/internal/venue"
	"github.com/fundrate/funding-arb/pkg/types"
)

var (
	takerFee = decimal.RequireFromString("0.04")
	makerFee = decimal.RequireFromString("0.02")

	// blacklist holds symbols with venue-specific settlement quirks that
	// make their funding deltas untradeable.
	blacklist = map[string]struct{}{
		"HNTUSDT": {},
	}
)

// RatesClient is the unauthenticated market-wide funding-rate feed used
// by the screener.
type RatesClient struct {
	baseURL string
	rest    *venue.RESTClient
	logger  *zap.Logger
}

// RatesConfig holds rates-client configuration.
type RatesConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewRatesClient creates a market-wide funding-rate client.
func NewRatesClient(cfg RatesConfig) *RatesClient {
	return &RatesClient{
		baseURL: withScheme(cfg.BaseURL, "https"),
		rest: venue.NewRESTClient(venue.RESTConfig{
			Venue:  "Binance",
			Client: cfg.HTTPClient,
			Logger: cfg.Logger,
		}),
		logger: cfg.Logger.With(zap.String("venue", "Binance")),
	}
}

// Name returns the venue label.
func (c *RatesClient) Name() string { return "Binance" }

// TakerFee returns the venue taker fee, in percent of notional.
func (c *RatesClient) TakerFee() decimal.Decimal { return takerFee }

// MakerFee returns the venue maker fee, in percent of notional.
func (c *RatesClient) MakerFee() decimal.Decimal { return makerFee }

// FundingRates returns funding snapshots for every USDT-quoted perpetual,
// keyed by symbol, rates in percent. Blacklisted symbols are skipped.
func (c *RatesClient) FundingRates(ctx context.Context) (map[string]types.FundingSnapshot, error) {
	resp, err := c.rest.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/fapi/v1/premiumIndex", nil)
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("premium index: %s", resp.Body)
	}

	var rows []struct {
		Symbol          string `json:"symbol"`
		LastFundingRate string `json:"lastFundingRate"`
	}
	err = json.Unmarshal(resp.Body, &rows)
	if err != nil {
		return nil, fmt.Errorf("parse premium index: %w", err)
	}

	rates := make(map[string]types.FundingSnapshot, len(rows))
	for _, row := range rows {
		if !strings.HasSuffix(row.Symbol, "USDT") {
			continue
		}
		if _, banned := blacklist[row.Symbol]; banned {
			continue
		}
		rate, err := decimal.NewFromString(row.LastFundingRate)
		if err != nil {
			c.logger.Warn("funding-rate-parse-error", zap.String("symbol", row.Symbol), zap.Error(err))
			continue
		}
		rates[row.Symbol] = types.FundingSnapshot{
			Symbol:   row.Symbol,
			Rate:     rate.Mul(decimal.NewFromInt(100)),
			MakerFee: makerFee,
			TakerFee: takerFee,
		}
	}
	return rates, nil
}
