package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fundrate/funding-arb/internal/orderbook"
	"github.com/fundrate/funding-arb/internal/venue"
	"github.com/fundrate/funding-arb/pkg/websocket"
)

// listenKeyRenewInterval keeps the user-data session alive; the venue
// expires an unrenewed key after 60 minutes.
const listenKeyRenewInterval = 20 * time.Minute

// streamHandler runs Binance's single combined session: user-data,
// incremental depth at 100 ms and mark price at 1 s, multiplexed over
// one socket.
type streamHandler struct {
	adapter  *Adapter
	book     *orderbook.Book
	reports  *orderbook.Reports
	balances *orderbook.Balances

	depth  *depthSync
	client *websocket.Client
	logger *zap.Logger

	listenKey string
}

func newStreamHandler(a *Adapter, book *orderbook.Book, reports *orderbook.Reports, balances *orderbook.Balances) *streamHandler {
	h := &streamHandler{
		adapter:  a,
		book:     book,
		reports:  reports,
		balances: balances,
		logger:   a.logger,
	}
	h.depth = newDepthSync(book, h.fetchSnapshot, a.logger)
	return h
}

func (h *streamHandler) start(ctx context.Context) error {
	h.client = websocket.NewClient(websocket.Config{
		Name:              "binance-" + strings.ToLower(h.adapter.symbol),
		URL:               h.streamURL,
		KeepaliveInterval: listenKeyRenewInterval,
		Keepalive:         h.renewListenKey,
		Logger:            h.logger,
	}, websocket.Hooks{
		OnMessage:    h.onMessage,
		OnDisconnect: h.onDisconnect,
	})
	return h.client.Start(ctx)
}

func (h *streamHandler) close() error {
	if h.client == nil {
		return nil
	}
	return h.client.Close()
}

// streamURL mints a fresh listen key and builds the combined-stream
// endpoint. Resolved on every dial, so reconnects never reuse a key
// that may have expired with the old session.
func (h *streamHandler) streamURL(ctx context.Context) (string, error) {
	key, err := h.createListenKey(ctx)
	if err != nil {
		return "", err
	}
	h.listenKey = key

	sym := strings.ToLower(h.adapter.symbol)
	streams := strings.Join([]string{
		key,
		sym + "@depth@100ms",
		sym + "@markPrice@1s",
	}, "/")
	return h.adapter.wsBaseURL + "/stream?streams=" + streams, nil
}

func (h *streamHandler) createListenKey(ctx context.Context) (string, error) {
	resp, err := h.listenKeyRequest(ctx, http.MethodPost)
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", fmt.Errorf("create listen key: %s", resp.Body)
	}

	var row struct {
		ListenKey string `json:"listenKey"`
	}
	err = json.Unmarshal(resp.Body, &row)
	if err != nil {
		return "", fmt.Errorf("parse listen key: %w", err)
	}
	if row.ListenKey == "" {
		return "", fmt.Errorf("empty listen key in response")
	}
	return row.ListenKey, nil
}

func (h *streamHandler) renewListenKey(_ *websocket.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := h.listenKeyRequest(ctx, http.MethodPut)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("renew listen key: %s", resp.Body)
	}
	h.logger.Debug("listen-key-renewed")
	return nil
}

func (h *streamHandler) listenKeyRequest(ctx context.Context, method string) (venue.Response, error) {
	return h.adapter.rest.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, h.adapter.baseURL+"/fapi/v1/listenKey", nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-MBX-APIKEY", h.adapter.apiKey)
		return req, nil
	})
}

// fetchSnapshot pulls the full REST depth used to (re)seed the replica.
func (h *streamHandler) fetchSnapshot(ctx context.Context) (depthSnapshot, error) {
	params := url.Values{}
	params.Set("symbol", h.adapter.symbol)
	params.Set("limit", "1000")

	resp, err := h.adapter.get(ctx, "/fapi/v1/depth?"+params.Encode())
	if err != nil {
		return depthSnapshot{}, err
	}
	if !resp.OK() {
		return depthSnapshot{}, fmt.Errorf("depth snapshot: %s", resp.Body)
	}

	var row struct {
		LastUpdateID int64      `json:"lastUpdateId"`
		Bids         [][]string `json:"bids"`
		Asks         [][]string `json:"asks"`
	}
	err = json.Unmarshal(resp.Body, &row)
	if err != nil {
		return depthSnapshot{}, fmt.Errorf("parse depth snapshot: %w", err)
	}

	bids, err := parseLevels(row.Bids)
	if err != nil {
		return depthSnapshot{}, err
	}
	asks, err := parseLevels(row.Asks)
	if err != nil {
		return depthSnapshot{}, err
	}
	return depthSnapshot{LastUpdateID: row.LastUpdateID, Bids: bids, Asks: asks}, nil
}

// combinedFrame is the multiplexed envelope of the /stream endpoint.
type combinedFrame struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

func (h *streamHandler) onMessage(data []byte) {
	var frame combinedFrame
	err := json.Unmarshal(data, &frame)
	if err != nil {
		h.logger.Warn("stream-frame-parse-error", zap.Error(err))
		return
	}

	switch {
	case strings.Contains(frame.Stream, "@depth"):
		h.onDepth(frame.Data)
	case strings.Contains(frame.Stream, "@markPrice"):
		h.onMarkPrice(frame.Data)
	case frame.Stream == h.listenKey:
		h.onUserData(frame.Data)
	default:
		h.logger.Debug("stream-unrouted-frame", zap.String("stream", frame.Stream))
	}
}

func (h *streamHandler) onDepth(data []byte) {
	var ev depthEvent
	err := json.Unmarshal(data, &ev)
	if err != nil {
		h.logger.Warn("depth-frame-parse-error", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = h.depth.apply(ctx, ev)
	if err != nil {
		h.logger.Error("depth-resync-failed", zap.Error(err))
	}
}

func (h *streamHandler) onMarkPrice(data []byte) {
	var ev struct {
		FundingRate string `json:"r"`
	}
	err := json.Unmarshal(data, &ev)
	if err != nil {
		h.logger.Warn("mark-price-parse-error", zap.Error(err))
		return
	}

	rate, err := decimal.NewFromString(ev.FundingRate)
	if err != nil {
		h.logger.Warn("mark-price-rate-parse-error", zap.Error(err))
		return
	}
	h.book.SetFundingRate(rate.Mul(decimal.NewFromInt(100)))
}

// onUserData routes account events: a funding-fee account update flips
// the funding-collected flag, a margin call flips liquidated, and
// wallet balances are mirrored as they change.
func (h *streamHandler) onUserData(data []byte) {
	h.reports.Append(data)

	var ev struct {
		EventType string `json:"e"`
		Account   struct {
			Reason   string `json:"m"`
			Balances []struct {
				Asset         string `json:"a"`
				WalletBalance string `json:"wb"`
				CrossWallet   string `json:"cw"`
			} `json:"B"`
		} `json:"a"`
	}
	err := json.Unmarshal(data, &ev)
	if err != nil {
		h.logger.Warn("user-data-parse-error", zap.Error(err))
		return
	}

	switch ev.EventType {
	case "ACCOUNT_UPDATE":
		if ev.Account.Reason == "FUNDING_FEE" {
			h.logger.Info("funding-fee-collected")
			h.reports.MarkFundingCollected()
		}
		for _, bal := range ev.Account.Balances {
			total, err := decimal.NewFromString(bal.WalletBalance)
			if err != nil {
				continue
			}
			available, err := decimal.NewFromString(bal.CrossWallet)
			if err != nil {
				available = total
			}
			h.balances.Set(bal.Asset, total, available)
		}
	case "MARGIN_CALL":
		h.logger.Warn("margin-call-received")
		h.reports.MarkLiquidated()
	}
}

// onDisconnect drops the replica so the next session re-snapshots.
func (h *streamHandler) onDisconnect() {
	h.book.Clear()
	h.depth.invalidate()
}
