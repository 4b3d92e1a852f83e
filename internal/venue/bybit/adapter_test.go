package bybit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fundrate/funding-arb/pkg/types"
)

func newTestAdapter(t *testing.T, mux *http.ServeMux) *Adapter {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return New(Config{
		Symbol:     "BTCUSDT",
		APIKey:     "test-key",
		APISecret:  "test-secret",
		RecvWindow: 5000,
		BaseURL:    srv.URL,
		Logger:     zap.NewNop(),
	})
}

func TestAdapter_PlaceOrderInsufficientBalance(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/contract/v3/private/order/create", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("X-BAPI-API-KEY"))
		assert.NotEmpty(t, r.Header.Get("X-BAPI-SIGN"))
		assert.NotEmpty(t, r.Header.Get("X-BAPI-TIMESTAMP"))
		assert.Equal(t, "5000", r.Header.Get("X-BAPI-RECV-WINDOW"))

		_, _ = w.Write([]byte(`{"retCode":140007,"retMsg":"remark:order[LinearPerpetual] fix price failed for CannotAffordOrderCost.","result":{}}`))
	})

	adapter := newTestAdapter(t, mux)

	order, err := adapter.PlaceOrder(context.Background(), types.OrderRequest{
		Side: types.Buy,
		Qty:  decimal.RequireFromString("0.05"),
		Type: types.Market,
	})

	require.NoError(t, err)
	assert.True(t, order.Rejected())
	assert.Equal(t, "BTCUSDT", order.Symbol)
}

func TestAdapter_PlaceOrderRequeriesStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/contract/v3/private/order/create", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "Buy", r.PostForm.Get("side"))
		assert.Equal(t, "Market", r.PostForm.Get("orderType"))
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"orderId":"uuid-1"}}`))
	})
	mux.HandleFunc("/contract/v3/private/order/list", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "uuid-1", r.URL.Query().Get("orderId"))
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[
			{"orderId":"uuid-1","price":"20000","orderStatus":"Filled","side":"Buy"}
		]}}`))
	})

	adapter := newTestAdapter(t, mux)

	order, err := adapter.PlaceOrder(context.Background(), types.OrderRequest{
		Side: types.Buy,
		Qty:  decimal.RequireFromString("0.05"),
		Type: types.Market,
	})

	require.NoError(t, err)
	assert.Equal(t, "uuid-1", order.OrderID)
	assert.Equal(t, types.StatusFilled, order.Status, "mixed-case venue status must be canonicalized")
}

func TestAdapter_OrderInfoZeroesRejectedFills(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/contract/v3/private/order/list", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[
			{"orderId":"uuid-2","price":"20000","orderStatus":"Rejected","side":"Sell",
			 "cumExecValue":"","cumExecQty":"","cumExecFee":"","createdTime":"1700000000000"}
		]}}`))
	})

	adapter := newTestAdapter(t, mux)

	info, err := adapter.OrderInfo(context.Background(), types.Order{OrderID: "uuid-2"})
	require.NoError(t, err)

	assert.Equal(t, types.StatusRejected, info.Status)
	assert.True(t, info.Qty.IsZero())
	assert.True(t, info.QuoteQty.IsZero())
	assert.True(t, info.Fee.IsZero())
	assert.True(t, info.AvgPrice.IsZero())
}

func TestAdapter_OrderInfoComputesAvgPrice(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/contract/v3/private/order/list", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[
			{"orderId":"uuid-3","price":"20000","orderStatus":"Filled","side":"Sell",
			 "cumExecValue":"1000.3","cumExecQty":"0.05","cumExecFee":"0.6","createdTime":"1700000000000"}
		]}}`))
	})

	adapter := newTestAdapter(t, mux)

	info, err := adapter.OrderInfo(context.Background(), types.Order{OrderID: "uuid-3"})
	require.NoError(t, err)

	assert.True(t, info.AvgPrice.Equal(decimal.RequireFromString("20006")), "got %s", info.AvgPrice)
	assert.True(t, info.Fee.Equal(decimal.RequireFromString("0.6")))
	assert.Equal(t, types.Sell, info.Side)
}

func TestAdapter_SetMarginModeAlreadySet(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/contract/v3/private/position/set-leverage", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "5", r.PostForm.Get("buyLeverage"))
		assert.Equal(t, "5", r.PostForm.Get("sellLeverage"))
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{}}`))
	})
	mux.HandleFunc("/contract/v3/private/position/switch-isolated", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "1", r.PostForm.Get("tradeMode"))
		_, _ = w.Write([]byte(`{"retCode":140026,"retMsg":"Cross/isolated margin mode is not modified","result":{}}`))
	})

	adapter := newTestAdapter(t, mux)

	err := adapter.SetMarginTypeAndLeverage(context.Background(), types.Isolated, decimal.NewFromInt(5))
	require.NoError(t, err)
}

func TestAdapter_FundingFeeIncomeSumsFundingExecs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/contract/v3/private/execution/list", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[
			{"execType":"Trade","execFee":"0.50"},
			{"execType":"Funding","execFee":"0.25"},
			{"execType":"Funding","execFee":"-0.05"},
			{"execType":"BustTrade","execFee":"1.00"}
		]}}`))
	})

	adapter := newTestAdapter(t, mux)

	total, err := adapter.FundingFeeIncome(context.Background(), 1699999999000, 1700000002000)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("0.2")), "got %s", total)
}

func TestAdapter_MaxLeverageFromInstrumentFilter(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/derivatives/v3/public/instruments-info", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[
			{"symbol":"BTCUSDT",
			 "lotSizeFilter":{"qtyStep":"0.001"},
			 "leverageFilter":{"maxLeverage":"100","leverageStep":"0.01"}}
		]}}`))
	})

	adapter := newTestAdapter(t, mux)

	max, step, err := adapter.MaxLeverage(context.Background(), decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.True(t, max.Equal(decimal.NewFromInt(100)))
	assert.True(t, step.Equal(decimal.RequireFromString("0.01")))

	mult, err := adapter.Multiplier(context.Background())
	require.NoError(t, err)
	assert.True(t, mult.Equal(decimal.RequireFromString("0.001")))
}

func TestRatesClient_FiltersAndConverts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/derivatives/v3/public/tickers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "linear", r.URL.Query().Get("category"))
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[
			{"symbol":"BTCUSDT","fundingRate":"0.0001"},
			{"symbol":"BTCPERP","fundingRate":"0.0002"},
			{"symbol":"ETHUSDT","fundingRate":"-0.0003"}
		]}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewRatesClient(RatesConfig{BaseURL: srv.URL, Logger: zap.NewNop()})

	rates, err := client.FundingRates(context.Background())
	require.NoError(t, err)

	assert.Len(t, rates, 2)
	assert.NotContains(t, rates, "BTCPERP", "non-USDT quote must be skipped")
	assert.True(t, rates["BTCUSDT"].Rate.Equal(decimal.RequireFromString("0.01")))
	assert.True(t, rates["ETHUSDT"].Rate.Equal(decimal.RequireFromString("-0.03")))
	assert.True(t, rates["BTCUSDT"].TakerFee.Equal(decimal.RequireFromString("0.06")))
}
