package binance

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
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fundrate/funding-arb/internal/orderbook"
	"github.com/fundrate/funding-arb/internal/venue"
	"github.com/fundrate/funding-arb/pkg/types"
)

const (
	// insufficientMarginCode is the venue error for margin shortfall. It
	// maps to a REJECTED order instead of an error so the coordinator
	// can roll back the other leg.
	insufficientMarginCode = -5021

	marginTypeNoop = "No need to change margin type."

	orderNotFoundMsg = "Order does not exist."
)

// Adapter implements the venue contract for Binance USDT-M futures.
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

// Config holds Binance adapter configuration.
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

// New creates a Binance adapter for one symbol.
func New(cfg Config) *Adapter {
	return &Adapter{
		symbol:     cfg.Symbol,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		recvWindow: cfg.RecvWindow,
		baseURL:    withScheme(cfg.BaseURL, "https"),
		wsBaseURL:  withScheme(cfg.WSBaseURL, "wss"),
		rest: venue.NewRESTClient(venue.RESTConfig{
			Venue:  "Binance",
			Client: cfg.HTTPClient,
			Logger: cfg.Logger,
		}),
		clock:  venue.NewFundingClock(nil),
		logger: cfg.Logger.With(zap.String("venue", "Binance"), zap.String("symbol", cfg.Symbol)),
	}
}

func withScheme(host, scheme string) string {
	if host == "" || strings.Contains(host, "://") {
		return host
	}
	return scheme + "://" + host
}

// Name returns the venue label.
func (a *Adapter) Name() string { return "Binance" }

// Symbol returns the contract symbol.
func (a *Adapter) Symbol() string { return a.symbol }

// sign appends timestamp and recvWindow, then an HMAC-SHA256 hex digest
// over the encoded query string. The signature is computed over exactly
// the string that is sent.
func (a *Adapter) sign(params url.Values) string {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", strconv.Itoa(a.recvWindow))

	qs := params.Encode()
	mac := hmac.New(sha256.New, []byte(a.apiSecret))
	mac.Write([]byte(qs))
	return qs + "&signature=" + hex.EncodeToString(mac.Sum(nil))
}

func (a *Adapter) signedGet(ctx context.Context, path string, params url.Values) (venue.Response, error) {
	return a.rest.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		signed := a.sign(cloneValues(params))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path+"?"+signed, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-MBX-APIKEY", a.apiKey)
		return req, nil
	})
}

func (a *Adapter) signedForm(ctx context.Context, method, path string, params url.Values) (venue.Response, error) {
	return a.rest.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		signed := a.sign(cloneValues(params))
		req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, strings.NewReader(signed))
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-MBX-APIKEY", a.apiKey)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

func (a *Adapter) get(ctx context.Context, path string) (venue.Response, error) {
	return a.rest.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	})
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Multiplier returns the LOT_SIZE step for the symbol.
func (a *Adapter) Multiplier(ctx context.Context) (decimal.Decimal, error) {
	resp, err := a.get(ctx, "/fapi/v1/exchangeInfo")
	if err != nil {
		return decimal.Zero, err
	}
	if !resp.OK() {
		return decimal.Zero, fmt.Errorf("exchange info: %s", resp.Body)
	}

	var info struct {
		Symbols []struct {
			Symbol  string `json:"symbol"`
			Filters []struct {
				FilterType string `json:"filterType"`
				StepSize   string `json:"stepSize"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	err = json.Unmarshal(resp.Body, &info)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse exchange info: %w", err)
	}

	for _, sym := range info.Symbols {
		if sym.Symbol != a.symbol {
			continue
		}
		for _, f := range sym.Filters {
			if f.FilterType == "LOT_SIZE" {
				return decimal.NewFromString(f.StepSize)
			}
		}
	}
	return decimal.Zero, fmt.Errorf("no lot size filter for %s", a.symbol)
}

// Balances returns wallet balances by asset.
func (a *Adapter) Balances(ctx context.Context) (map[string]types.Balance, error) {
	resp, err := a.signedGet(ctx, "/fapi/v2/balance", url.Values{})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("balances: %s", resp.Body)
	}

	var rows []struct {
		Asset            string `json:"asset"`
		Balance          string `json:"balance"`
		AvailableBalance string `json:"availableBalance"`
	}
	err = json.Unmarshal(resp.Body, &rows)
	if err != nil {
		return nil, fmt.Errorf("parse balances: %w", err)
	}

	balances := make(map[string]types.Balance, len(rows))
	for _, row := range rows {
		total, err := decimal.NewFromString(row.Balance)
		if err != nil {
			return nil, fmt.Errorf("parse balance for %s: %w", row.Asset, err)
		}
		available, err := decimal.NewFromString(row.AvailableBalance)
		if err != nil {
			return nil, fmt.Errorf("parse available for %s: %w", row.Asset, err)
		}
		balances[row.Asset] = types.Balance{Total: total, Available: available}
	}
	return balances, nil
}

type orderResponse struct {
	OrderID       json.Number `json:"orderId"`
	ClientOrderID string      `json:"clientOrderId"`
	Price         string      `json:"price"`
	Status        string      `json:"status"`
	Time          int64       `json:"time"`
}

func (r orderResponse) toOrder(symbol string) types.Order {
	price, _ := decimal.NewFromString(r.Price)
	return types.Order{
		OrderID:       r.OrderID.String(),
		ClientOrderID: r.ClientOrderID,
		Symbol:        symbol,
		Price:         price,
		Status:        types.OrderStatus(r.Status),
	}
}

// PlaceOrder submits one order. Insufficient margin comes back as a
// REJECTED order; any other venue rejection is an error carrying the
// full body. On acceptance the terminal status is re-queried.
func (a *Adapter) PlaceOrder(ctx context.Context, req types.OrderRequest) (types.Order, error) {
	params := url.Values{}
	params.Set("symbol", a.symbol)
	params.Set("side", string(req.Side))
	params.Set("type", orderTypeParam(req.Type))
	params.Set("quantity", req.Qty.String())
	params.Set("newClientOrderId", uuid.NewString())
	params.Set("reduceOnly", strconv.FormatBool(req.ReduceOnly))
	if req.Type != types.Market {
		params.Set("price", req.Price.String())
		params.Set("timeInForce", string(req.TimeInForce))
	}
	if !req.StopPrice.IsZero() {
		params.Set("stopPrice", req.StopPrice.String())
	}
	if req.ClosePosition {
		params.Set("closePosition", "true")
	}

	resp, err := a.signedForm(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return types.Order{}, err
	}

	if !resp.OK() {
		var apiErr apiError
		if json.Unmarshal(resp.Body, &apiErr) == nil && apiErr.Code == insufficientMarginCode {
			venue.OrdersPlacedTotal.WithLabelValues("Binance", string(types.StatusRejected)).Inc()
			a.logger.Warn("order-rejected-insufficient-margin")
			return types.Order{Symbol: a.symbol, Price: req.Price, Status: types.StatusRejected}, nil
		}
		return types.Order{}, fmt.Errorf("place order: %s", resp.Body)
	}

	var placed orderResponse
	err = json.Unmarshal(resp.Body, &placed)
	if err != nil {
		return types.Order{}, fmt.Errorf("parse order response: %w", err)
	}

	order := placed.toOrder(a.symbol)
	order.Price = req.Price
	venue.OrdersPlacedTotal.WithLabelValues("Binance", string(order.Status)).Inc()

	return a.OrderStatus(ctx, order)
}

func orderTypeParam(t types.OrderType) string {
	if t == types.Market {
		return "MARKET"
	}
	return "LIMIT"
}

// OrderStatus refreshes an order through the open-orders endpoint,
// falling back to the historical endpoint once the order left the open
// set.
func (a *Adapter) OrderStatus(ctx context.Context, order types.Order) (types.Order, error) {
	params := url.Values{}
	params.Set("symbol", a.symbol)
	params.Set("orderId", order.OrderID)

	resp, err := a.signedGet(ctx, "/fapi/v1/openOrder", params)
	if err != nil {
		return types.Order{}, err
	}

	if !resp.OK() {
		var apiErr apiError
		if json.Unmarshal(resp.Body, &apiErr) == nil && apiErr.Msg == orderNotFoundMsg {
			return a.historicalStatus(ctx, order)
		}
		return types.Order{}, fmt.Errorf("order status: %s", resp.Body)
	}

	var row orderResponse
	err = json.Unmarshal(resp.Body, &row)
	if err != nil {
		return types.Order{}, fmt.Errorf("parse order status: %w", err)
	}
	return row.toOrder(a.symbol), nil
}

func (a *Adapter) historicalStatus(ctx context.Context, order types.Order) (types.Order, error) {
	params := url.Values{}
	params.Set("symbol", a.symbol)
	params.Set("orderId", order.OrderID)

	resp, err := a.signedGet(ctx, "/fapi/v1/order", params)
	if err != nil {
		return types.Order{}, err
	}
	if !resp.OK() {
		return types.Order{}, fmt.Errorf("historical order status: %s", resp.Body)
	}

	var row orderResponse
	err = json.Unmarshal(resp.Body, &row)
	if err != nil {
		return types.Order{}, fmt.Errorf("parse historical status: %w", err)
	}

	refreshed := order
	refreshed.Status = types.OrderStatus(row.Status)
	return refreshed, nil
}

type fillRow struct {
	Symbol          string `json:"symbol"`
	ID              json.Number `json:"id"`
	OrderID         json.Number `json:"orderId"`
	Side            string `json:"side"`
	Price           string `json:"price"`
	Qty             string `json:"qty"`
	QuoteQty        string `json:"quoteQty"`
	RealizedPnL     string `json:"realizedPnl"`
	Commission      string `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
	MarginAsset     string `json:"marginAsset"`
	PositionSide    string `json:"positionSide"`
	Maker           bool   `json:"maker"`
	Time            int64  `json:"time"`
}

// OrderInfo aggregates the order's fills: total commission, quote and
// base quantity, and average price as total quote over total base. The
// venue-reported placement time comes from the historical endpoint.
func (a *Adapter) OrderInfo(ctx context.Context, order types.Order) (types.OrderInfo, error) {
	params := url.Values{}
	params.Set("symbol", a.symbol)
	params.Set("orderId", order.OrderID)

	resp, err := a.signedGet(ctx, "/fapi/v1/userTrades", params)
	if err != nil {
		return types.OrderInfo{}, err
	}
	if !resp.OK() {
		return types.OrderInfo{}, fmt.Errorf("order fills: %s", resp.Body)
	}

	var fills []fillRow
	err = json.Unmarshal(resp.Body, &fills)
	if err != nil {
		return types.OrderInfo{}, fmt.Errorf("parse order fills: %w", err)
	}

	timeResp, err := a.signedGet(ctx, "/fapi/v1/order", params)
	if err != nil {
		return types.OrderInfo{}, err
	}
	if !timeResp.OK() {
		return types.OrderInfo{}, fmt.Errorf("order lookup: %s", timeResp.Body)
	}
	var row orderResponse
	err = json.Unmarshal(timeResp.Body, &row)
	if err != nil {
		return types.OrderInfo{}, fmt.Errorf("parse order lookup: %w", err)
	}

	info := types.OrderInfo{Order: order}
	info.OrderTime = time.UnixMilli(row.Time)
	for _, fill := range fills {
		quote, err := decimal.NewFromString(fill.QuoteQty)
		if err != nil {
			return types.OrderInfo{}, fmt.Errorf("parse fill quote qty: %w", err)
		}
		qty, err := decimal.NewFromString(fill.Qty)
		if err != nil {
			return types.OrderInfo{}, fmt.Errorf("parse fill qty: %w", err)
		}
		commission, err := decimal.NewFromString(fill.Commission)
		if err != nil {
			return types.OrderInfo{}, fmt.Errorf("parse fill commission: %w", err)
		}
		info.QuoteQty = info.QuoteQty.Add(quote)
		info.Qty = info.Qty.Add(qty)
		info.Fee = info.Fee.Add(commission)
		info.Side = types.Side(fill.Side)
		info.PositionSide = types.PositionSide(fill.PositionSide)
	}
	if info.Qty.Sign() > 0 {
		info.AvgPrice = info.QuoteQty.Div(info.Qty)
	}
	return info, nil
}

// Trades lists fills in [startMs, endMs].
func (a *Adapter) Trades(ctx context.Context, startMs, endMs int64) ([]types.Fill, error) {
	params := url.Values{}
	params.Set("symbol", a.symbol)
	params.Set("startTime", strconv.FormatInt(startMs, 10))
	params.Set("endTime", strconv.FormatInt(endMs, 10))

	resp, err := a.signedGet(ctx, "/fapi/v1/userTrades", params)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("trades: %s", resp.Body)
	}

	var rows []fillRow
	err = json.Unmarshal(resp.Body, &rows)
	if err != nil {
		return nil, fmt.Errorf("parse trades: %w", err)
	}

	fills := make([]types.Fill, 0, len(rows))
	for _, row := range rows {
		price, _ := decimal.NewFromString(row.Price)
		qty, _ := decimal.NewFromString(row.Qty)
		quoteQty, _ := decimal.NewFromString(row.QuoteQty)
		pnl, _ := decimal.NewFromString(row.RealizedPnL)
		commission, _ := decimal.NewFromString(row.Commission)
		fills = append(fills, types.Fill{
			Symbol:          row.Symbol,
			TradeID:         row.ID.String(),
			OrderID:         row.OrderID.String(),
			Side:            types.Side(row.Side),
			Price:           price,
			Qty:             qty,
			QuoteQty:        quoteQty,
			RealizedPnL:     pnl,
			Commission:      commission,
			CommissionAsset: row.CommissionAsset,
			MarginAsset:     row.MarginAsset,
			PositionSide:    types.PositionSide(row.PositionSide),
			Maker:           row.Maker,
			Time:            time.UnixMilli(row.Time),
		})
	}
	return fills, nil
}

// Positions lists the symbol's positions.
func (a *Adapter) Positions(ctx context.Context) ([]types.Position, error) {
	params := url.Values{}
	params.Set("symbol", a.symbol)

	resp, err := a.signedGet(ctx, "/fapi/v2/positionRisk", params)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("positions: %s", resp.Body)
	}

	var rows []struct {
		EntryPrice       string `json:"entryPrice"`
		PositionAmt      string `json:"positionAmt"`
		UnrealizedProfit string `json:"unRealizedProfit"`
		MarkPrice        string `json:"markPrice"`
		LiquidationPrice string `json:"liquidationPrice"`
		Leverage         string `json:"leverage"`
		MarginType       string `json:"marginType"`
	}
	err = json.Unmarshal(resp.Body, &rows)
	if err != nil {
		return nil, fmt.Errorf("parse positions: %w", err)
	}

	positions := make([]types.Position, 0, len(rows))
	for _, row := range rows {
		entry, _ := decimal.NewFromString(row.EntryPrice)
		value, _ := decimal.NewFromString(row.PositionAmt)
		pnl, _ := decimal.NewFromString(row.UnrealizedProfit)
		mark, _ := decimal.NewFromString(row.MarkPrice)
		liq, _ := decimal.NewFromString(row.LiquidationPrice)
		lev, _ := decimal.NewFromString(row.Leverage)
		mode := types.Crossed
		if strings.EqualFold(row.MarginType, "isolated") {
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

// IncomeHistory lists income records in [startMs, endMs].
func (a *Adapter) IncomeHistory(ctx context.Context, startMs, endMs int64) ([]types.Income, error) {
	params := url.Values{}
	params.Set("symbol", a.symbol)
	if startMs > 0 && endMs > 0 {
		params.Set("startTime", strconv.FormatInt(startMs, 10))
		params.Set("endTime", strconv.FormatInt(endMs, 10))
	}

	resp, err := a.signedGet(ctx, "/fapi/v1/income", params)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("income history: %s", resp.Body)
	}

	var rows []struct {
		Symbol     string `json:"symbol"`
		IncomeType string `json:"incomeType"`
		Income     string `json:"income"`
		Asset      string `json:"asset"`
		Time       int64  `json:"time"`
		TranID     json.Number `json:"tranId"`
	}
	err = json.Unmarshal(resp.Body, &rows)
	if err != nil {
		return nil, fmt.Errorf("parse income history: %w", err)
	}

	incomes := make([]types.Income, 0, len(rows))
	for _, row := range rows {
		amount, err := decimal.NewFromString(row.Income)
		if err != nil {
			return nil, fmt.Errorf("parse income amount: %w", err)
		}
		incomes = append(incomes, types.Income{
			Symbol: row.Symbol,
			Kind:   types.IncomeKind(row.IncomeType),
			Amount: amount,
			Asset:  row.Asset,
			Time:   time.UnixMilli(row.Time),
			TranID: row.TranID.String(),
		})
	}
	return incomes, nil
}

// FundingFeeIncome sums funding-fee income in [startMs, endMs].
func (a *Adapter) FundingFeeIncome(ctx context.Context, startMs, endMs int64) (decimal.Decimal, error) {
	incomes, err := a.IncomeHistory(ctx, startMs, endMs)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, income := range incomes {
		if income.Kind == types.IncomeFundingFee {
			total = total.Add(income.Amount)
		}
	}
	return total, nil
}

// MaxLeverage returns the highest bracket whose notional cap strictly
// exceeds notional times its initial leverage. The bracket step is 1.
func (a *Adapter) MaxLeverage(ctx context.Context, notional decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	params := url.Values{}
	params.Set("symbol", a.symbol)

	resp, err := a.signedGet(ctx, "/fapi/v1/leverageBracket", params)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if !resp.OK() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("leverage brackets: %s", resp.Body)
	}

	var rows []struct {
		Brackets []struct {
			InitialLeverage int64 `json:"initialLeverage"`
			NotionalCap     int64 `json:"notionalCap"`
		} `json:"brackets"`
	}
	err = json.Unmarshal(resp.Body, &rows)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("parse leverage brackets: %w", err)
	}
	if len(rows) == 0 {
		return decimal.Zero, decimal.Zero, fmt.Errorf("no leverage brackets for %s", a.symbol)
	}

	for _, bracket := range rows[0].Brackets {
		lev := decimal.NewFromInt(bracket.InitialLeverage)
		notionalCap := decimal.NewFromInt(bracket.NotionalCap)
		if notional.Mul(lev).LessThan(notionalCap) {
			return lev, decimal.NewFromInt(1), nil
		}
	}
	return decimal.Zero, decimal.Zero, fmt.Errorf("no usable leverage bracket for notional %s", notional)
}

// CancelOrder cancels one order.
func (a *Adapter) CancelOrder(ctx context.Context, order types.Order) error {
	params := url.Values{}
	params.Set("symbol", a.symbol)
	params.Set("orderId", order.OrderID)

	resp, err := a.signedForm(ctx, http.MethodDelete, "/fapi/v1/order", params)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("cancel order: %s", resp.Body)
	}
	return nil
}

// FundingRate returns the symbol's last funding rate, in percent.
func (a *Adapter) FundingRate(ctx context.Context) (decimal.Decimal, error) {
	resp, err := a.get(ctx, "/fapi/v1/premiumIndex?symbol="+a.symbol)
	if err != nil {
		return decimal.Zero, err
	}
	if !resp.OK() {
		return decimal.Zero, fmt.Errorf("premium index: %s", resp.Body)
	}

	var row struct {
		LastFundingRate string `json:"lastFundingRate"`
	}
	err = json.Unmarshal(resp.Body, &row)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse premium index: %w", err)
	}

	rate, err := decimal.NewFromString(row.LastFundingRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse funding rate: %w", err)
	}
	return rate.Mul(decimal.NewFromInt(100)), nil
}

// SetMarginTypeAndLeverage sets leverage, then margin mode. The venue
// answering that the margin type is already set counts as success.
func (a *Adapter) SetMarginTypeAndLeverage(ctx context.Context, mode types.MarginMode, leverage decimal.Decimal) error {
	levParams := url.Values{}
	levParams.Set("symbol", a.symbol)
	levParams.Set("leverage", leverage.String())

	resp, err := a.signedForm(ctx, http.MethodPost, "/fapi/v1/leverage", levParams)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("set leverage: %s", resp.Body)
	}

	marginParams := url.Values{}
	marginParams.Set("symbol", a.symbol)
	marginParams.Set("marginType", marginTypeParam(mode))

	resp, err = a.signedForm(ctx, http.MethodPost, "/fapi/v1/marginType", marginParams)
	if err != nil {
		return err
	}
	if !resp.OK() {
		var apiErr apiError
		if json.Unmarshal(resp.Body, &apiErr) == nil && apiErr.Msg == marginTypeNoop {
			return nil
		}
		return fmt.Errorf("set margin type: %s", resp.Body)
	}
	return nil
}

func marginTypeParam(mode types.MarginMode) string {
	if mode == types.Isolated {
		return "ISOLATED"
	}
	return "CROSSED"
}

// ClosestTimeBeforeFunding reports an upcoming funding tick within the window.
func (a *Adapter) ClosestTimeBeforeFunding(windowSecs int) bool {
	return a.clock.ClosestTimeBeforeFunding(windowSecs)
}

// FundingTimeout reports a recent funding tick within the window.
func (a *Adapter) FundingTimeout(windowSecs int) bool {
	return a.clock.FundingTimeout(windowSecs)
}

// StartStreams launches the combined depth + mark-price + user-data
// session feeding the given surfaces.
func (a *Adapter) StartStreams(ctx context.Context, book *orderbook.Book, reports *orderbook.Reports, balances *orderbook.Balances) error {
	a.stream = newStreamHandler(a, book, reports, balances)
	return a.stream.start(ctx)
}

// CloseStreams tears down the streaming session.
func (a *Adapter) CloseStreams() error {
	if a.stream == nil {
		return nil
	}
	return a.stream.close()
}
