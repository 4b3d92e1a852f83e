package binance

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

func TestAdapter_PlaceOrderInsufficientMargin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fapi/v1/order", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("X-MBX-APIKEY"))
		require.NoError(t, r.ParseForm())
		assert.NotEmpty(t, r.PostForm.Get("signature"))
		assert.NotEmpty(t, r.PostForm.Get("timestamp"))

		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-5021,"msg":"Due to the order could not be filled immediately, margin is insufficient."}`))
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
	mux.HandleFunc("/fapi/v1/order", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orderId":123456,"clientOrderId":"abc","price":"0","status":"NEW"}`))
	})
	mux.HandleFunc("/fapi/v1/openOrder", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "123456", r.URL.Query().Get("orderId"))
		_, _ = w.Write([]byte(`{"orderId":123456,"clientOrderId":"abc","price":"0","status":"FILLED"}`))
	})

	adapter := newTestAdapter(t, mux)

	order, err := adapter.PlaceOrder(context.Background(), types.OrderRequest{
		Side: types.Sell,
		Qty:  decimal.RequireFromString("0.05"),
		Type: types.Market,
	})

	require.NoError(t, err)
	assert.Equal(t, "123456", order.OrderID)
	assert.Equal(t, types.StatusFilled, order.Status)
}

func TestAdapter_OrderStatusFallsBackToHistorical(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fapi/v1/openOrder", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-2013,"msg":"Order does not exist."}`))
	})
	mux.HandleFunc("/fapi/v1/order", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orderId":777,"clientOrderId":"xyz","price":"20000","status":"FILLED"}`))
	})

	adapter := newTestAdapter(t, mux)

	order, err := adapter.OrderStatus(context.Background(), types.Order{
		OrderID: "777",
		Symbol:  "BTCUSDT",
		Price:   decimal.RequireFromString("20000"),
		Status:  types.StatusNew,
	})

	require.NoError(t, err)
	assert.Equal(t, types.StatusFilled, order.Status)
	assert.Equal(t, "777", order.OrderID)
}

func TestAdapter_SetMarginTypeAlreadySet(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fapi/v1/leverage", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "5", r.PostForm.Get("leverage"))
		_, _ = w.Write([]byte(`{"leverage":5,"symbol":"BTCUSDT"}`))
	})
	mux.HandleFunc("/fapi/v1/marginType", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "ISOLATED", r.PostForm.Get("marginType"))
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-4046,"msg":"No need to change margin type."}`))
	})

	adapter := newTestAdapter(t, mux)

	err := adapter.SetMarginTypeAndLeverage(context.Background(), types.Isolated, decimal.NewFromInt(5))
	require.NoError(t, err)
}

func TestAdapter_Multiplier(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fapi/v1/exchangeInfo", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbols":[
			{"symbol":"ETHUSDT","filters":[{"filterType":"LOT_SIZE","stepSize":"0.01"}]},
			{"symbol":"BTCUSDT","filters":[{"filterType":"PRICE_FILTER","tickSize":"0.1"},{"filterType":"LOT_SIZE","stepSize":"0.001"}]}
		]}`))
	})

	adapter := newTestAdapter(t, mux)

	mult, err := adapter.Multiplier(context.Background())
	require.NoError(t, err)
	assert.True(t, mult.Equal(decimal.RequireFromString("0.001")))
}

func TestAdapter_FundingRateInPercent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fapi/v1/premiumIndex", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","lastFundingRate":"0.00010000"}`))
	})

	adapter := newTestAdapter(t, mux)

	rate, err := adapter.FundingRate(context.Background())
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.01")), "rate must be converted to percent, got %s", rate)
}

func TestAdapter_OrderInfoAggregatesFills(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fapi/v1/userTrades", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"symbol":"BTCUSDT","id":1,"orderId":555,"side":"BUY","price":"20000","qty":"0.02","quoteQty":"400","commission":"0.16","positionSide":"LONG","time":1700000000000},
			{"symbol":"BTCUSDT","id":2,"orderId":555,"side":"BUY","price":"20010","qty":"0.03","quoteQty":"600.3","commission":"0.24","positionSide":"LONG","time":1700000000100}
		]`))
	})
	mux.HandleFunc("/fapi/v1/order", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orderId":555,"clientOrderId":"abc","price":"0","status":"FILLED","time":1700000000000}`))
	})

	adapter := newTestAdapter(t, mux)

	info, err := adapter.OrderInfo(context.Background(), types.Order{OrderID: "555", Symbol: "BTCUSDT"})
	require.NoError(t, err)

	assert.True(t, info.Qty.Equal(decimal.RequireFromString("0.05")))
	assert.True(t, info.QuoteQty.Equal(decimal.RequireFromString("1000.3")))
	assert.True(t, info.Fee.Equal(decimal.RequireFromString("0.4")))
	assert.True(t, info.AvgPrice.Equal(decimal.RequireFromString("20006")), "avg price must be quote over base, got %s", info.AvgPrice)
	assert.Equal(t, types.Buy, info.Side)
}

func TestAdapter_FundingFeeIncomeSumsOnlyFunding(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fapi/v1/income", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"symbol":"BTCUSDT","incomeType":"FUNDING_FEE","income":"0.35","asset":"USDT","time":1700000000000,"tranId":1},
			{"symbol":"BTCUSDT","incomeType":"COMMISSION","income":"-0.40","asset":"USDT","time":1700000000000,"tranId":2},
			{"symbol":"BTCUSDT","incomeType":"FUNDING_FEE","income":"0.05","asset":"USDT","time":1700000001000,"tranId":3}
		]`))
	})

	adapter := newTestAdapter(t, mux)

	total, err := adapter.FundingFeeIncome(context.Background(), 1699999999000, 1700000002000)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("0.4")), "got %s", total)
}

func TestRatesClient_FiltersAndConverts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fapi/v1/premiumIndex", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"symbol":"BTCUSDT","lastFundingRate":"0.0001"},
			{"symbol":"HNTUSDT","lastFundingRate":"0.0050"},
			{"symbol":"BTCBUSD","lastFundingRate":"0.0002"},
			{"symbol":"ETHUSDT","lastFundingRate":"-0.0003"}
		]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewRatesClient(RatesConfig{BaseURL: srv.URL, Logger: zap.NewNop()})

	rates, err := client.FundingRates(context.Background())
	require.NoError(t, err)

	assert.Len(t, rates, 2)
	assert.NotContains(t, rates, "HNTUSDT", "blacklisted symbol must be skipped")
	assert.NotContains(t, rates, "BTCBUSD", "non-USDT quote must be skipped")
	assert.True(t, rates["BTCUSDT"].Rate.Equal(decimal.RequireFromString("0.01")))
	assert.True(t, rates["ETHUSDT"].Rate.Equal(decimal.RequireFromString("-0.03")))
	assert.True(t, rates["BTCUSDT"].TakerFee.Equal(decimal.RequireFromString("0.04")))
}
