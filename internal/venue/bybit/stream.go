package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fundrate/funding-arb/internal/orderbook"
	"github.com/fundrate/funding-arb/pkg/websocket"
)

// wsPingInterval is the app-level ping cadence both ByBit endpoints
// expect; the venue drops silent sessions.
const wsPingInterval = 20 * time.Second

var pingFrame = []byte(`{"req_id": "100001", "op": "ping"}`)

// streamHandler runs ByBit's two sessions: the public depth-and-tickers
// stream and the private contract-account stream.
type streamHandler struct {
	adapter  *Adapter
	book     *orderbook.Book
	reports  *orderbook.Reports
	balances *orderbook.Balances
	logger   *zap.Logger

	public  *websocket.Client
	private *websocket.Client
}

func newStreamHandler(a *Adapter, book *orderbook.Book, reports *orderbook.Reports, balances *orderbook.Balances) *streamHandler {
	return &streamHandler{
		adapter:  a,
		book:     book,
		reports:  reports,
		balances: balances,
		logger:   a.logger,
	}
}

func (h *streamHandler) start(ctx context.Context) error {
	sym := strings.ToLower(h.adapter.symbol)

	h.public = websocket.NewClient(websocket.Config{
		Name: "bybit-public-" + sym,
		URL: func(context.Context) (string, error) {
			return h.adapter.wsBaseURL + "/contract/usdt/public/v3", nil
		},
		KeepaliveInterval: wsPingInterval,
		Keepalive:         sendPing,
		Logger:            h.logger,
	}, websocket.Hooks{
		OnOpen:       h.onPublicOpen,
		OnMessage:    h.onPublicMessage,
		OnDisconnect: h.onPublicDisconnect,
	})

	h.private = websocket.NewClient(websocket.Config{
		Name: "bybit-private-" + sym,
		URL: func(context.Context) (string, error) {
			return h.adapter.wsBaseURL + "/contract/private/v3", nil
		},
		KeepaliveInterval: wsPingInterval,
		Keepalive:         sendPing,
		Logger:            h.logger,
	}, websocket.Hooks{
		OnOpen:       h.onPrivateOpen,
		OnMessage:    h.onPrivateMessage,
		OnDisconnect: h.onPrivateDisconnect,
	})

	err := h.public.Start(ctx)
	if err != nil {
		return err
	}
	err = h.private.Start(ctx)
	if err != nil {
		_ = h.public.Close()
		return err
	}
	return nil
}

func (h *streamHandler) close() error {
	var firstErr error
	if h.public != nil {
		firstErr = h.public.Close()
	}
	if h.private != nil {
		err := h.private.Close()
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func sendPing(c *websocket.Client) error {
	return c.SendText(pingFrame)
}

type subscribeFrame struct {
	Op    string   `json:"op"`
	Args  []string `json:"args"`
	ReqID string   `json:"req_id"`
}

func (h *streamHandler) onPublicOpen(_ context.Context, c *websocket.Client) error {
	err := c.SendJSON(subscribeFrame{
		Op:    "subscribe",
		Args:  []string{"orderbook.50." + h.adapter.symbol},
		ReqID: "depthsub",
	})
	if err != nil {
		return err
	}
	return c.SendJSON(subscribeFrame{
		Op:    "subscribe",
		Args:  []string{"tickers." + h.adapter.symbol},
		ReqID: "tickersub",
	})
}

// onPrivateOpen authenticates with an HMAC over "GET/realtime" plus an
// expiry 10 s out, then subscribes the contract-account topics.
func (h *streamHandler) onPrivateOpen(_ context.Context, c *websocket.Client) error {
	expires := time.Now().UnixMilli() + 10000

	mac := hmac.New(sha256.New, []byte(h.adapter.apiSecret))
	mac.Write([]byte("GET/realtime" + strconv.FormatInt(expires, 10)))

	err := c.SendJSON(map[string]interface{}{
		"op":   "auth",
		"args": []interface{}{h.adapter.apiKey, expires, hex.EncodeToString(mac.Sum(nil))},
	})
	if err != nil {
		return err
	}

	return c.SendJSON(subscribeFrame{
		Op: "subscribe",
		Args: []string{
			"user.wallet.contractAccount",
			"user.order.contractAccount",
			"user.execution.contractAccount",
			"user.position.contractAccount",
		},
		ReqID: "udssub",
	})
}

type publicFrame struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
}

func (h *streamHandler) onPublicMessage(data []byte) {
	var frame publicFrame
	err := json.Unmarshal(data, &frame)
	if err != nil || frame.Topic == "" {
		return
	}

	switch frame.Topic {
	case "orderbook.50." + h.adapter.symbol:
		h.onDepth(frame)
	case "tickers." + h.adapter.symbol:
		h.onTicker(frame.Data)
	}
}

// onDepth applies the book feed: a snapshot replaces both ladders, a
// delta applies level changes in arrival order.
func (h *streamHandler) onDepth(frame publicFrame) {
	var ev struct {
		Bids [][]string `json:"b"`
		Asks [][]string `json:"a"`
		Seq  int64      `json:"seq"`
	}
	err := json.Unmarshal(frame.Data, &ev)
	if err != nil {
		h.logger.Warn("depth-frame-parse-error", zap.Error(err))
		return
	}

	bids, err := parseLevels(ev.Bids)
	if err != nil {
		h.logger.Warn("depth-level-parse-error", zap.Error(err))
		return
	}
	asks, err := parseLevels(ev.Asks)
	if err != nil {
		h.logger.Warn("depth-level-parse-error", zap.Error(err))
		return
	}

	switch frame.Type {
	case "snapshot":
		h.book.ApplySnapshot(bids, asks, ev.Seq)
	case "delta":
		h.book.ApplyDelta(bids, asks)
		h.book.SetLastUpdateID(ev.Seq)
	}
}

func parseLevels(rows [][]string) ([]orderbook.Level, error) {
	levels := make([]orderbook.Level, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		price, err := decimal.NewFromString(row[0])
		if err != nil {
			return nil, err
		}
		qty, err := decimal.NewFromString(row[1])
		if err != nil {
			return nil, err
		}
		levels = append(levels, orderbook.Level{Price: price, Qty: qty})
	}
	return levels, nil
}

func (h *streamHandler) onTicker(data []byte) {
	var ev struct {
		FundingRate string `json:"fundingRate"`
	}
	err := json.Unmarshal(data, &ev)
	if err != nil || ev.FundingRate == "" {
		return
	}

	rate, err := decimal.NewFromString(ev.FundingRate)
	if err != nil {
		h.logger.Warn("ticker-rate-parse-error", zap.Error(err))
		return
	}
	h.book.SetFundingRate(rate.Mul(decimal.NewFromInt(100)))
}

func (h *streamHandler) onPrivateMessage(data []byte) {
	var frame publicFrame
	err := json.Unmarshal(data, &frame)
	if err != nil || frame.Topic == "" {
		return
	}

	switch frame.Topic {
	case "user.execution.contractAccount":
		h.onExecution(data, frame.Data)
	case "user.wallet.contractAccount":
		h.onWallet(frame.Data)
	}
}

// onExecution flags funding credits and bust trades from the execution
// feed.
func (h *streamHandler) onExecution(raw, data []byte) {
	h.reports.Append(raw)

	var rows []struct {
		ExecType string `json:"execType"`
	}
	err := json.Unmarshal(data, &rows)
	if err != nil {
		h.logger.Warn("execution-parse-error", zap.Error(err))
		return
	}

	for _, row := range rows {
		switch row.ExecType {
		case "Funding":
			h.logger.Info("funding-fee-collected")
			h.reports.MarkFundingCollected()
		case "BustTrade":
			h.logger.Warn("bust-trade-received")
			h.reports.MarkLiquidated()
		}
	}
}

func (h *streamHandler) onWallet(data []byte) {
	var rows []struct {
		Coin             string `json:"coin"`
		WalletBalance    string `json:"walletBalance"`
		AvailableBalance string `json:"availableBalance"`
	}
	err := json.Unmarshal(data, &rows)
	if err != nil {
		h.logger.Warn("wallet-parse-error", zap.Error(err))
		return
	}

	for _, row := range rows {
		total, err := decimal.NewFromString(row.WalletBalance)
		if err != nil {
			continue
		}
		available, err := decimal.NewFromString(row.AvailableBalance)
		if err != nil {
			available = total
		}
		h.balances.Set(row.Coin, total, available)
	}
}

func (h *streamHandler) onPublicDisconnect() {
	h.book.Clear()
}

func (h *streamHandler) onPrivateDisconnect() {
	h.reports.Clear()
}
