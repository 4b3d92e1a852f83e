package websocket

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hooks are the venue-specific callbacks driving one stream session.
type Hooks struct {
	// OnOpen runs after every successful dial: subscription and auth
	// frames go here. The previous session's state must already be
	// cleared by OnDisconnect.
	OnOpen func(ctx context.Context, c *Client) error

	// OnMessage receives every raw frame.
	OnMessage func(data []byte)

	// OnDisconnect runs on any socket error or close, before a
	// reconnection attempt. Book and report resets go here.
	OnDisconnect func()
}

// Config holds stream client configuration.
type Config struct {
	// Name labels the session in logs and metrics.
	Name string

	// URL is resolved before every dial, so session tokens embedded in
	// the endpoint (listen keys) are refreshed on reconnect.
	URL func(ctx context.Context) (string, error)

	DialTimeout           time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64

	// KeepaliveInterval and Keepalive enable an app-level keepalive
	// frame on venues that require one. Zero interval disables it.
	KeepaliveInterval time.Duration
	Keepalive         func(c *Client) error

	Logger *zap.Logger
}

// Client manages one WebSocket session: dial, read loop, keepalive and
// reconnection with exponential backoff.
type Client struct {
	cfg    Config
	hooks  Hooks
	redial *redialer
	logger *zap.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClient creates a stream client. Start must be called to connect.
func NewClient(cfg Config, hooks Hooks) *Client {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.ReconnectInitialDelay == 0 {
		cfg.ReconnectInitialDelay = time.Second
	}
	if cfg.ReconnectMaxDelay == 0 {
		cfg.ReconnectMaxDelay = 30 * time.Second
	}
	if cfg.ReconnectBackoffMult == 0 {
		cfg.ReconnectBackoffMult = 2.0
	}

	logger := cfg.Logger.With(zap.String("stream", cfg.Name))

	return &Client{
		cfg:   cfg,
		hooks: hooks,
		redial: newRedialer(ReconnectConfig{
			InitialDelay: cfg.ReconnectInitialDelay,
			MaxDelay:     cfg.ReconnectMaxDelay,
			Factor:       cfg.ReconnectBackoffMult,
		}, logger),
		logger: logger,
	}
}

// Start dials the endpoint and launches the session goroutines.
func (c *Client) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	err := c.connect(c.ctx)
	if err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.reconnectLoop()

	if c.cfg.KeepaliveInterval > 0 && c.cfg.Keepalive != nil {
		c.wg.Add(1)
		go c.keepaliveLoop()
	}

	return nil
}

func (c *Client) connect(ctx context.Context) error {
	url, err := c.cfg.URL(ctx)
	if err != nil {
		return fmt.Errorf("resolve url: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.DialTimeout}

	c.logger.Info("stream-connecting", zap.String("url", url))

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)
	ActiveSessions.WithLabelValues(c.cfg.Name).Set(1)

	if c.hooks.OnOpen != nil {
		err = c.hooks.OnOpen(ctx, c)
		if err != nil {
			c.teardown()
			return fmt.Errorf("on open: %w", err)
		}
	}

	c.logger.Info("stream-connected")

	return nil
}

// SendJSON writes one JSON frame.
func (c *Client) SendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return c.SendText(data)
}

// SendText writes one text frame.
func (c *Client) SendText(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}

	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		if conn == nil || !c.connected.Load() {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
				return
			default:
			}
			c.logger.Warn("stream-read-error", zap.Error(err))
			c.teardown()
			continue
		}

		MessagesReceivedTotal.WithLabelValues(c.cfg.Name).Inc()
		if c.hooks.OnMessage != nil {
			c.hooks.OnMessage(message)
		}
	}
}

// teardown marks the session dead and fires the disconnect hook. The
// reconnect loop picks it up from there.
func (c *Client) teardown() {
	if !c.connected.CompareAndSwap(true, false) {
		return
	}
	ActiveSessions.WithLabelValues(c.cfg.Name).Set(0)

	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()

	if c.hooks.OnDisconnect != nil {
		c.hooks.OnDisconnect()
	}
}

func (c *Client) keepaliveLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if !c.connected.Load() {
				continue
			}
			err := c.cfg.Keepalive(c)
			if err != nil {
				c.logger.Warn("stream-keepalive-error", zap.Error(err))
			}
		}
	}
}

func (c *Client) reconnectLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		if c.connected.Load() {
			time.Sleep(time.Second)
			continue
		}

		c.logger.Warn("stream-lost-initiating-reconnect")

		err := c.redial.run(c.ctx, c.connect)
		if err != nil {
			if err == context.Canceled {
				return
			}
			c.logger.Error("stream-reconnection-failed", zap.Error(err))
		}
	}
}

// Connected reports whether the session currently holds a live socket.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Close terminates the session and waits for its goroutines.
func (c *Client) Close() error {
	c.logger.Info("stream-closing")

	if c.cancel != nil {
		c.cancel()
	}

	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()

	c.wg.Wait()
	ActiveSessions.WithLabelValues(c.cfg.Name).Set(0)

	c.logger.Info("stream-closed")

	return nil
}
