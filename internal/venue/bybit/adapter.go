package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fundrate/funding-arb/internal/orderbook"
	"github.com/fundrate/funding-arb/internal/venue"
	"github.com/fundrate/funding-arb/pkg/types"
)

const (
	// insufficientBalanceCode maps to a REJECTED order so the trade
	// coordinator can roll back the other leg.
	insufficientBalanceCode = 140007

	marginTypeNoop = "No need to change margin type"
)

// Adapter implements the venue contract for ByBit USDT perpetuals over
// the contract v3 API.
type Adapter struct {
	symbol     string
	apiKey     string
	apiSecret  string
	recvWindow int
	baseURL    string
	wsBaseURL  string

	rest   *venue.RESTClient
	clock  *venue.FundingClock
	logger *zap.Logger

	stream *streamHandler
}

// Config holds ByBit adapter configuration.
type Config struct {
	Symbol     string
	APIKey     string
	APISecret  string
	RecvWindow int
	// BaseURL is the REST host, with or without scheme.
	BaseURL string
	// WSBaseURL is the streaming host, with or without scheme.
	WSBaseURL string
	// HTTPClient overrides the transport, for tests.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// New creates a ByBit adapter for one symbol.
func New(cfg Config) *Adapter {
	return &Adapter{
		symbol:     cfg.Symbol,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		recvWindow: cfg.RecvWindow,
		baseURL:    withScheme(cfg.BaseURL, "https"),
		wsBaseURL:  withScheme(cfg.WSBaseURL, "wss"),
		rest: venue.NewRESTClient(venue.RESTConfig{
			Venue:  "ByBit",
			Client: cfg.HTTPClient,
			Logger: cfg.Logger,
		}),
		clock:  venue.NewFundingClock(nil),
		logger: cfg.Logger.With(zap.String("venue", "ByBit"), zap.String("symbol", cfg.Symbol)),
	}
}

func withScheme(host, scheme string) string {
	if host == "" || strings.Contains(host, "://") {
		return host
	}
	return scheme + "://" + host
}

// Name returns the venue label.
func (a *Adapter) Name() string { return "ByBit" }

// Symbol returns the contract symbol.
func (a *Adapter) Symbol() string { return a.symbol }

// sign computes the contract v3 signature: HMAC-SHA256 over the
// concatenation of timestamp, API key, recv window and the encoded
// parameters, carried in the X-BAPI headers.
func (a *Adapter) sign(req *http.Request, encoded string) {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	payload := ts + a.apiKey + strconv.Itoa(a.recvWindow) + encoded

	mac := hmac.New(sha256.New, []byte(a.apiSecret))
	mac.Write([]byte(payload))

	req.Header.Set("X-BAPI-API-KEY", a.apiKey)
	req.Header.Set("X-BAPI-TIMESTAMP", ts)
	req.Header.Set("X-BAPI-RECV-WINDOW", strconv.Itoa(a.recvWindow))
	req.Header.Set("X-BAPI-SIGN", hex.EncodeToString(mac.Sum(nil)))
}

func (a *Adapter) signedGet(ctx context.Context, path string, params url.Values) (venue.Response, error) {
	return a.rest.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		encoded := params.Encode()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path+"?"+encoded, nil)
		if err != nil {
			return nil, err
		}
		a.sign(req, encoded)
		return req, nil
	})
}

func (a *Adapter) signedPost(ctx context.Context, path string, params url.Values) (venue.Response, error) {
	return a.rest.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		encoded := params.Encode()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		a.sign(req, encoded)
		return req, nil
	})
}

func (a *Adapter) get(ctx context.Context, path string) (venue.Response, error) {
	return a.rest.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	})
}

// envelope is the contract v3 response wrapper.
type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

func parseEnvelope(resp venue.Response, op string) (envelope, error) {
	if !resp.OK() {
		return envelope{}, fmt.Errorf("%s: %s", op, resp.Body)
	}
	var env envelope
	err := json.Unmarshal(resp.Body, &env)
	if err != nil {
		return envelope{}, fmt.Errorf("parse %s response: %w", op, err)
	}
	return env, nil
}

// Multiplier returns the symbol's qty step.
func (a *Adapter) Multiplier(ctx context.Context) (decimal.Decimal, error) {
	instrument, err := a.instrumentInfo(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(instrument.LotSizeFilter.QtyStep)
}

type instrumentRow struct {
	Symbol        string `json:"symbol"`
	LotSizeFilter struct {
		QtyStep string `json:"qtyStep"`
	} `json:"lotSizeFilter"`
	LeverageFilter struct {
		MaxLeverage  string `json:"maxLeverage"`
		LeverageStep string `json:"leverageStep"`
	} `json:"leverageFilter"`
}

func (a *Adapter) instrumentInfo(ctx context.Context) (instrumentRow, error) {
	resp, err := a.get(ctx, "/derivatives/v3/public/instruments-info?category=linear&symbol="+a.symbol)
	if err != nil {
		return instrumentRow{}, err
	}
	env, err := parseEnvelope(resp, "instruments info")
	if err != nil {
		return instrumentRow{}, err
	}

	var result struct {
		List []instrumentRow `json:"list"`
	}
	err = json.Unmarshal(env.Result, &result)
	if err != nil {
		return instrumentRow{}, fmt.Errorf("parse instruments info: %w", err)
	}
	if len(result.List) == 0 {
		return instrumentRow{}, fmt.Errorf("no instrument info for %s", a.symbol)
	}
	return result.List[0], nil
}

// Balances returns contract-account wallet balances by coin.
func (a *Adapter) Balances(ctx context.Context) (map[string]types.Balance, error) {
	resp, err := a.signedGet(ctx, "/contract/v3/private/account/wallet/balance", url.Values{})
	if err != nil {
		return nil, err
	}
	env, err := parseEnvelope(resp, "balances")
	if err != nil {
		return nil, err
	}

	var result struct {
		List []struct {
			Coin             string `json:"coin"`
			WalletBalance    string `json:"walletBalance"`
			AvailableBalance string `json:"availableBalance"`
		} `json:"list"`
	}
	err = json.Unmarshal(env.Result, &result)
	if err != nil {
		return nil, fmt.Errorf("parse balances: %w", err)
	}

	balances := make(map[string]types.Balance, len(result.List))
	for _, row := range result.List {
		total, err := decimal.NewFromString(row.WalletBalance)
		if err != nil {
			return nil, fmt.Errorf("parse balance for %s: %w", row.Coin, err)
		}
		available, err := decimal.NewFromString(row.AvailableBalance)
		if err != nil {
			return nil, fmt.Errorf("parse available for %s: %w", row.Coin, err)
		}
		balances[row.Coin] = types.Balance{Total: total, Available: available}
	}
	return balances, nil
}

// sideParam maps the canonical side to ByBit's capitalized form.
func sideParam(side types.Side) string {
	if side == types.Buy {
		return "Buy"
	}
	return "Sell"
}

func orderTypeParam(t types.OrderType) string {
	if t == types.Market {
		return "Market"
	}
	return "Limit"
}

func tifParam(tif types.TimeInForce) string {
	switch tif {
	case types.ImmediateOrCancel:
		return "ImmediateOrCancel"
	case types.FillOrKill:
		return "FillOrKill"
	default:
		return "GoodTillCancel"
	}
}

// PlaceOrder submits one order. An insufficient-balance rejection comes
// back as a REJECTED order; on acceptance the terminal status is
// re-queried.
func (a *Adapter) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.Order, error) {
	params := url.Values{}
	params.Set("symbol", a.symbol)
	params.Set("side", sideParam(req.Side))
	params.Set("orderType", orderTypeParam(req.Type))
	params.Set("qty", req.Qty.String())
	params.Set("timeInForce", tifParam(req.TimeInForce))
	if req.Type != types.Market {
		params.Set("price", req.Price.String())
	}
	if !req.StopPrice.IsZero() {
		params.Set("stopPrice", req.StopPrice.String())
	}
	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}

	resp, err := a.signedPost(ctx, "/contract/v3/private/order/create", params)
	if err != nil {
		return types.Order{}, err
	}
	env, err := parseEnvelope(resp, "place order")
	if err != nil {
		return types.Order{}, err
	}

	if env.RetCode != 0 {
		if env.RetCode == insufficientBalanceCode {
			venue.OrdersPlacedTotal.WithLabelValues("ByBit", string(types.StatusRejected)).Inc()
			a.logger.Warn("order-rejected-insufficient-balance")
			return types.Order{Symbol: a.symbol, Price: req.Price, Status: types.StatusRejected}, nil
		}
		return types.Order{}, fmt.Errorf("place order: %s", resp.Body)
	}

	var result struct {
		OrderID string `json:"orderId"`
	}
	err = json.Unmarshal(env.Result, &result)
	if err != nil {
		return types.Order{}, fmt.Errorf("parse order response: %w", err)
	}

	venue.OrdersPlacedTotal.WithLabelValues("ByBit", string(types.StatusNew)).Inc()

	return a.OrderStatus(ctx, types.Order{
		OrderID:       result.OrderID,
		ClientOrderID: result.OrderID,
		Symbol:        a.symbol,
		Price:         req.Price,
		Status:        types.StatusNew,
	})
}

type orderRow struct {
	OrderID      string `json:"orderId"`
	Price        string `json:"price"`
	OrderStatus  string `json:"orderStatus"`
	Side         string `json:"side"`
	CumExecValue string `json:"cumExecValue"`
	CumExecQty   string `json:"cumExecQty"`
	CumExecFee   string `json:"cumExecFee"`
	CreatedTime  string `json:"createdTime"`
}

func (a *Adapter) orderList(ctx context.Context, orderID string) (orderRow, error) {
	params := url.Values{}
	params.Set("symbol", a.symbol)
	params.Set("orderId", orderID)

	resp, err := a.signedGet(ctx, "/contract/v3/private/order/list", params)
	if err != nil {
		return orderRow{}, err
	}
	env, err := parseEnvelope(resp, "order list")
	if err != nil {
		return orderRow{}, err
	}

	var result struct {
		List []orderRow `json:"list"`
	}
	err = json.Unmarshal(env.Result, &result)
	if err != nil {
		return orderRow{}, fmt.Errorf("parse order list: %w", err)
	}
	if len(result.List) == 0 {
		return orderRow{}, fmt.Errorf("order %s not found", orderID)
	}
	return result.List[0], nil
}

// OrderStatus refreshes an order from the order list. ByBit reports
// statuses in mixed case; they are canonicalized to upper.
func (a *Adapter) OrderStatus(ctx context.Context, order types.Order) (types.Order, error) {
	row, err := a.orderList(ctx, order.OrderID)
	if err != nil {
		return types.Order{}, err
	}

	price, _ := decimal.NewFromString(row.Price)
	return types.Order{
		OrderID:       row.OrderID,
		ClientOrderID: row.OrderID,
		Symbol:        a.symbol,
		Price:         price,
		Status:        types.OrderStatus(strings.ToUpper(row.OrderStatus)),
	}, nil
}

// OrderInfo reads the order's cumulative execution figures. Rejected
// and cancelled orders report zero fills.
func (a *Adapter) OrderInfo(ctx context.Context, order types.Order) (types.OrderInfo, error) {
	row, err := a.orderList(ctx, order.OrderID)
	if err != nil {
		return types.OrderInfo{}, err
	}

	status := types.OrderStatus(strings.ToUpper(row.OrderStatus))
	price, _ := decimal.NewFromString(row.Price)

	info := types.OrderInfo{
		Order: types.Order{
			OrderID:       row.OrderID,
			ClientOrderID: row.OrderID,
			Symbol:        a.symbol,
			Price:         price,
			Status:        status,
		},
		Side: types.Side(strings.ToUpper(row.Side)),
	}

	createdMs, err := strconv.ParseInt(row.CreatedTime, 10, 64)
	if err == nil {
		info.OrderTime = time.UnixMilli(createdMs)
	}

	if status == types.StatusRejected || status == types.StatusCancelled {
		return info, nil
	}

	quote, err := decimal.NewFromString(row.CumExecValue)
	if err != nil {
		return types.OrderInfo{}, fmt.Errorf("parse exec value: %w", err)
	}
	qty, err := decimal.NewFromString(row.CumExecQty)
	if err != nil {
		return types.OrderInfo{}, fmt.Errorf("parse exec qty: %w", err)
	}
	fee, err := decimal.NewFromString(row.CumExecFee)
	if err != nil {
		return types.OrderInfo{}, fmt.Errorf("parse exec fee: %w", err)
	}

	info.QuoteQty = quote
	info.Qty = qty
	info.Fee = fee
	if qty.Sign() > 0 {
		info.AvgPrice = quote.Div(qty)
	}
	return info, nil
}

type closedPnLRow struct {
	Symbol     string `json:"symbol"`
	OrderID    string `json:"orderId"`
	Side       string `json:"side"`
	OrderPrice string `json:"orderPrice"`
	Qty        string `json:"qty"`
	ClosedPnL  string `json:"closedPnl"`
	CumExecFee string `json:"cumExecFee"`
	CreatedAt  string `json:"createdAt"`
}

func (a *Adapter) closedPnL(ctx context.Context, startMs, endMs int64) ([]closedPnLRow, error) {
	params := url.Values{}
	params.Set("symbol", a.symbol)
	params.Set("startTime", strconv.FormatInt(startMs, 10))
	params.Set("endTime", strconv.FormatInt(endMs, 10))
	params.Set("limit", "200")

	resp, err := a.signedGet(ctx, "/contract/v3/private/position/closed-pnl", params)
	if err != nil {
		return nil, err
	}
	env, err := parseEnvelope(resp, "closed pnl")
	if err != nil {
		return nil, err
	}

	var result struct {
		List []closedPnLRow `json:"list"`
	}
	err = json.Unmarshal(env.Result, &result)
	if err != nil {
		return nil, fmt.Errorf("parse closed pnl: %w", err)
	}
	return result.List, nil
}

// Trades lists closed-position executions in [startMs, endMs]. ByBit
// settles linear contracts in USDT.
func (a *Adapter) Trades(ctx context.Context, startMs, endMs int64) ([]types.Fill, error) {
	rows, err := a.closedPnL(ctx, startMs, endMs)
	if err != nil {
		return nil, err
	}

	fills := make([]types.Fill, 0, len(rows))
	for _, row := range rows {
		price, _ := decimal.NewFromString(row.OrderPrice)
		qty, _ := decimal.NewFromString(row.Qty)
		pnl, _ := decimal.NewFromString(row.ClosedPnL)
		fee, _ := decimal.NewFromString(row.CumExecFee)
		createdMs, _ := strconv.ParseInt(row.CreatedAt, 10, 64)
		fills = append(fills, types.Fill{
			Symbol:      row.Symbol,
			TradeID:     row.OrderID,
			OrderID:     row.OrderID,
			Side:        types.Side(strings.ToUpper(row.Side)),
			Price:       price,
			Qty:         qty,
			QuoteQty:    qty.Mul(price),
			RealizedPnL: pnl,
			Commission:  fee,
			MarginAsset: "USDT",
			Time:        time.UnixMilli(createdMs),
		})
	}
	return fills, nil
}

// Positions lists the symbol's positions. tradeMode 0 is cross, 1 isolated.
func (a *Adapter) Positions(ctx context.Context) ([]types.Position, error) {
	params := url.Values{}
	params.Set("symbol", a.symbol)

	resp, err := a.signedGet(ctx, "/contract/v3/private/position/list", params)
	if err != nil {
		return nil, err
	}
	env, err := parseEnvelope(resp, "positions")
	if err != nil {
		return nil, err
	}

	var result struct {
		List []struct {
			EntryPrice     string `json:"entryPrice"`
			PositionValue  string `json:"positionValue"`
			CumRealisedPnl string `json:"cumRealisedPnl"`
			MarkPrice      string `json:"markPrice"`
			LiqPrice       string `json:"liqPrice"`
			Leverage       string `json:"leverage"`
			TradeMode      int    `json:"tradeMode"`
		} `json:"list"`
	}
	err = json.Unmarshal(env.Result, &result)
	if err != nil {
		return nil, fmt.Errorf("parse positions: %w", err)
	}

	positions := make([]types.Position, 0, len(result.List))
	for _, row := range result.List {
		entry, _ := decimal.NewFromString(row.EntryPrice)
		value, _ := decimal.NewFromString(row.PositionValue)
		pnl, _ := decimal.NewFromString(row.CumRealisedPnl)
		mark, _ := decimal.NewFromString(row.MarkPrice)
		liq, _ := decimal.NewFromString(row.LiqPrice)
		lev, _ := decimal.NewFromString(row.Leverage)
		mode := types.Crossed
		if row.TradeMode == 1 {
			mode = types.Isolated
		}
		positions = append(positions, types.Position{
			EntryPrice:       entry,
			PositionValue:    value,
			CumPnL:           pnl,
			MarkPrice:        mark,
			LiquidationPrice: liq,
			Leverage:         lev,
			MarginMode:       mode,
		})
	}
	return positions, nil
}

// IncomeHistory lists realized-PnL records in [startMs, endMs].
func (a *Adapter) IncomeHistory(ctx context.Context, startMs, endMs int64) ([]types.Income, error) {
	rows, err := a.closedPnL(ctx, startMs, endMs)
	if err != nil {
		return nil, err
	}

	incomes := make([]types.Income, 0, len(rows))
	for _, row := range rows {
		amount, err := decimal.NewFromString(row.ClosedPnL)
		if err != nil {
			return nil, fmt.Errorf("parse closed pnl amount: %w", err)
		}
		createdMs, _ := strconv.ParseInt(row.CreatedAt, 10, 64)
		incomes = append(incomes, types.Income{
			Symbol: row.Symbol,
			Kind:   types.IncomePnL,
			Amount: amount,
			Asset:  "USDT",
			Time:   time.UnixMilli(createdMs),
			TranID: row.OrderID,
		})
	}
	return incomes, nil
}

// FundingFeeIncome sums funding executions in [startMs, endMs]. ByBit
// reports them as executions with execType Funding.
func (a *Adapter) FundingFeeIncome(ctx context.Context, startMs, endMs int64) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("symbol", a.symbol)
	params.Set("startTime", strconv.FormatInt(startMs, 10))
	params.Set("endTime", strconv.FormatInt(endMs, 10))
	params.Set("limit", "100")

	resp, err := a.signedGet(ctx, "/contract/v3/private/execution/list", params)
	if err != nil {
		return decimal.Zero, err
	}
	env, err := parseEnvelope(resp, "execution list")
	if err != nil {
		return decimal.Zero, err
	}

	var result struct {
		List []struct {
			ExecType string `json:"execType"`
			ExecFee  string `json:"execFee"`
		} `json:"list"`
	}
	err = json.Unmarshal(env.Result, &result)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse execution list: %w", err)
	}

	total := decimal.Zero
	for _, row := range result.List {
		if row.ExecType != "Funding" {
			continue
		}
		fee, err := decimal.NewFromString(row.ExecFee)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse funding exec fee: %w", err)
		}
		total = total.Add(fee)
	}
	return total, nil
}

// MaxLeverage reads the instrument's leverage filter. The notional is
// ignored: ByBit caps leverage per symbol, not per bracket.
func (a *Adapter) MaxLeverage(ctx context.Context, _ decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	instrument, err := a.instrumentInfo(ctx)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	max, err := decimal.NewFromString(instrument.LeverageFilter.MaxLeverage)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("parse max leverage: %w", err)
	}
	step, err := decimal.NewFromString(instrument.LeverageFilter.LeverageStep)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("parse leverage step: %w", err)
	}
	return max, step, nil
}

// CancelOrder cancels one order.
func (a *Adapter) CancelOrder(ctx context.Context, order types.Order) error {
	params := url.Values{}
	params.Set("symbol", a.symbol)
	params.Set("orderId", order.OrderID)

	resp, err := a.signedPost(ctx, "/contract/v3/private/order/cancel", params)
	if err != nil {
		return err
	}
	env, err := parseEnvelope(resp, "cancel order")
	if err != nil {
		return err
	}
	if env.RetCode != 0 {
		return fmt.Errorf("cancel order: %s", resp.Body)
	}
	return nil
}

// FundingRate returns the symbol's funding rate from the public
// tickers, in percent.
func (a *Adapter) FundingRate(ctx context.Context) (decimal.Decimal, error) {
	resp, err := a.get(ctx, "/derivatives/v3/public/tickers?category=linear&symbol="+a.symbol)
	if err != nil {
		return decimal.Zero, err
	}
	env, err := parseEnvelope(resp, "tickers")
	if err != nil {
		return decimal.Zero, err
	}

	var result struct {
		List []struct {
			FundingRate string `json:"fundingRate"`
		} `json:"list"`
	}
	err = json.Unmarshal(env.Result, &result)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse tickers: %w", err)
	}
	if len(result.List) == 0 {
		return decimal.Zero, fmt.Errorf("no ticker for %s", a.symbol)
	}

	rate, err := decimal.NewFromString(result.List[0].FundingRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse funding rate: %w", err)
	}
	return rate.Mul(decimal.NewFromInt(100)), nil
}

// SetMarginTypeAndLeverage sets both-side leverage, then switches the
// trade mode. The venue answering that the mode is already set counts
// as success.
func (a *Adapter) SetMarginTypeAndLeverage(ctx context.Context, mode types.MarginMode, leverage decimal.Decimal) error {
	levParams := url.Values{}
	levParams.Set("symbol", a.symbol)
	levParams.Set("buyLeverage", leverage.String())
	levParams.Set("sellLeverage", leverage.String())

	resp, err := a.signedPost(ctx, "/contract/v3/private/position/set-leverage", levParams)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("set leverage: %s", resp.Body)
	}

	modeParams := url.Values{}
	modeParams.Set("symbol", a.symbol)
	modeParams.Set("tradeMode", tradeModeParam(mode))
	modeParams.Set("buyLeverage", leverage.String())
	modeParams.Set("sellLeverage", leverage.String())

	resp, err = a.signedPost(ctx, "/contract/v3/private/position/switch-isolated", modeParams)
	if err != nil {
		return err
	}
	if !resp.OK() {
		if strings.Contains(string(resp.Body), marginTypeNoop) {
			return nil
		}
		return fmt.Errorf("switch margin mode: %s", resp.Body)
	}

	var env envelope
	if json.Unmarshal(resp.Body, &env) == nil && env.RetCode != 0 && !strings.Contains(env.RetMsg, "not modified") {
		return fmt.Errorf("switch margin mode: %s", resp.Body)
	}
	return nil
}

func tradeModeParam(mode types.MarginMode) string {
	if mode == types.Isolated {
		return "1"
	}
	return "0"
}

// ClosestTimeBeforeFunding reports an upcoming funding tick within the window.
func (a *Adapter) ClosestTimeBeforeFunding(windowSecs int) bool {
	return a.clock.ClosestTimeBeforeFunding(windowSecs)
}

// FundingTimeout reports a recent funding tick within the window.
func (a *Adapter) FundingTimeout(windowSecs int) bool {
	return a.clock.FundingTimeout(windowSecs)
}

// StartStreams launches the public depth/ticker and private user-data
// sessions feeding the given surfaces.
func (a *Adapter) StartStreams(ctx context.Context, book *orderbook.Book, reports *orderbook.Reports, balances *orderbook.Balances) error {
	a.stream = newStreamHandler(a, book, reports, balances)
	return a.stream.start(ctx)
}

// CloseStreams tears down both streaming sessions.
func (a *Adapter) CloseStreams() error {
	if a.stream == nil {
		return nil
	}
	return a.stream.close()
}
