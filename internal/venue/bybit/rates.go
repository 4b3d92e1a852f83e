package bybit

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
	takerFee = decimal.RequireFromString("0.06")
	makerFee = decimal.RequireFromString("0.01")
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
			Venue:  "ByBit",
			Client: cfg.HTTPClient,
			Logger: cfg.Logger,
		}),
		logger: cfg.Logger.With(zap.String("venue", "ByBit")),
	}
}

// Name returns the venue label.
func (c *RatesClient) Name() string { return "ByBit" }

// TakerFee returns the venue taker fee, in percent of notional.
func (c *RatesClient) TakerFee() decimal.Decimal { return takerFee }

// MakerFee returns the venue maker fee, in percent of notional.
func (c *RatesClient) MakerFee() decimal.Decimal { return makerFee }

// FundingRates returns funding snapshots for every USDT-quoted linear
// perpetual, keyed by symbol, rates in percent.
func (c *RatesClient) FundingRates(ctx context.Context) (map[string]types.FundingSnapshot, error) {
	resp, err := c.rest.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/derivatives/v3/public/tickers?category=linear", nil)
	})
	if err != nil {
		return nil, err
	}
	env, err := parseEnvelope(resp, "tickers")
	if err != nil {
		return nil, err
	}

	var result struct {
		List []struct {
			Symbol      string `json:"symbol"`
			FundingRate string `json:"fundingRate"`
		} `json:"list"`
	}
	err = json.Unmarshal(env.Result, &result)
	if err != nil {
		return nil, fmt.Errorf("parse tickers: %w", err)
	}

	rates := make(map[string]types.FundingSnapshot, len(result.List))
	for _, row := range result.List {
		if !strings.HasSuffix(row.Symbol, "USDT") {
			continue
		}
		if row.FundingRate == "" {
			continue
		}
		rate, err := decimal.NewFromString(row.FundingRate)
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
