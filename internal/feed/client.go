// Package feed implements the WebSocket bar feed client used to ingest
// historical bars into the series store.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/observability"
)

// Config configures WebSocket client behavior.
type Config struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultConfig returns default WebSocket configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Client streams OHLCV bars over a WebSocket connection.
// Subscriptions survive reconnects: the active symbol set is replayed
// after each successful reconnect.
type Client struct {
	endpoint string
	config   Config
	logger   zerolog.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// bars carries parsed bars to the consumer. Buffer absorbs bursts;
	// sends block rather than drop.
	bars chan *domain.Bar

	// symbols holds the active subscription set for resubscription after reconnect
	symbols   map[string]struct{}
	symbolsMu sync.RWMutex

	// pendingAcks maps request ID to channel waiting for subscription ack
	pendingAcks   map[uint64]chan struct{}
	pendingAcksMu sync.Mutex

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup

	// reconnecting indicates reconnection in progress
	reconnecting atomic.Bool
}

// NewClient creates a new bar feed client and connects to the endpoint.
func NewClient(ctx context.Context, endpoint string, config *Config, logger zerolog.Logger) (*Client, error) {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}

	c := &Client{
		endpoint:    endpoint,
		config:      cfg,
		logger:      logger.With().Str("component", "feed").Logger(),
		bars:        make(chan *domain.Bar, 10000),
		symbols:     make(map[string]struct{}),
		pendingAcks: make(map[uint64]chan struct{}),
		done:        make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// connect establishes WebSocket connection.
func (c *Client) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// Bars returns the channel of parsed bars. Closed on Close.
func (c *Client) Bars() <-chan *domain.Bar {
	return c.bars
}

// Subscribe adds symbols to the bar stream and waits for the server ack.
func (c *Client) Subscribe(ctx context.Context, symbols []string) error {
	if c.closed.Load() {
		return fmt.Errorf("client closed")
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols to subscribe")
	}

	if err := c.subscribeInternal(ctx, symbols); err != nil {
		return err
	}

	c.symbolsMu.Lock()
	for _, s := range symbols {
		c.symbols[s] = struct{}{}
	}
	observability.DefaultMetrics.FeedSubscription.Set(float64(len(c.symbols)))
	c.symbolsMu.Unlock()

	return nil
}

// subscribeInternal sends a subscribe request without touching the active set.
func (c *Client) subscribeInternal(ctx context.Context, symbols []string) error {
	reqID := c.requestID.Add(1)

	req := wsRequest{
		Op:      "subscribe",
		ID:      reqID,
		Symbols: symbols,
	}

	ackCh := make(chan struct{}, 1)
	c.pendingAcksMu.Lock()
	c.pendingAcks[reqID] = ackCh
	c.pendingAcksMu.Unlock()

	removePending := func() {
		c.pendingAcksMu.Lock()
		delete(c.pendingAcks, reqID)
		c.pendingAcksMu.Unlock()
	}

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		removePending()
		return fmt.Errorf("not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()

	if err != nil {
		removePending()
		return fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case <-ackCh:
		return nil
	case <-time.After(30 * time.Second):
		removePending()
		return fmt.Errorf("subscription timeout after 30s")
	case <-c.done:
		return fmt.Errorf("client closed")
	case <-ctx.Done():
		removePending()
		return ctx.Err()
	}
}

// Close closes the WebSocket connection and the bars channel.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.pendingAcksMu.Lock()
	for id, ch := range c.pendingAcks {
		close(ch)
		delete(c.pendingAcks, id)
	}
	c.pendingAcksMu.Unlock()

	c.wg.Wait()
	close(c.bars)
	return nil
}

// readLoop reads messages from WebSocket and dispatches bars.
func (c *Client) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			// Connection error - attempt reconnect with exponential backoff
			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = c.config.ReconnectDelay

		c.handleMessage(message)
	}
}

// reconnect attempts to reconnect and resubscribe.
func (c *Client) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	observability.DefaultMetrics.FeedReconnects.Inc()
	c.logger.Warn().Dur("delay", delay).Msg("feed connection lost, reconnecting")

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.logger.Error().Err(err).Msg("feed reconnect failed")
		// Will retry on next read error
		return
	}

	c.resubscribeAll()
}

// resubscribeAll replays the active symbol set after reconnect.
func (c *Client) resubscribeAll() {
	c.symbolsMu.RLock()
	symbols := make([]string, 0, len(c.symbols))
	for s := range c.symbols {
		symbols = append(symbols, s)
	}
	c.symbolsMu.RUnlock()

	if len(symbols) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.subscribeInternal(ctx, symbols); err != nil {
		c.logger.Error().Err(err).Int("symbols", len(symbols)).Msg("resubscribe failed")
		return
	}

	c.logger.Info().Int("symbols", len(symbols)).Msg("resubscribed after reconnect")
}

// handleMessage processes an incoming WebSocket message.
func (c *Client) handleMessage(message []byte) {
	var envelope struct {
		Op string `json:"op"`
		ID uint64 `json:"id"`
	}
	if err := json.Unmarshal(message, &envelope); err != nil {
		observability.DefaultMetrics.BarParseErrors.Inc()
		c.logger.Debug().Err(err).Msg("unparseable feed message")
		return
	}

	switch envelope.Op {
	case "subscribed":
		c.handleAck(envelope.ID)
	case "bar":
		c.handleBar(message)
	case "error":
		var errMsg wsError
		if err := json.Unmarshal(message, &errMsg); err == nil {
			c.logger.Error().Int("code", errMsg.Code).Str("message", errMsg.Message).Msg("feed error response")
		}
	}
}

// handleAck confirms a pending subscribe request.
func (c *Client) handleAck(reqID uint64) {
	c.pendingAcksMu.Lock()
	ch, ok := c.pendingAcks[reqID]
	if ok {
		delete(c.pendingAcks, reqID)
	}
	c.pendingAcksMu.Unlock()

	if ok {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// handleBar parses a bar message and forwards it to the consumer.
func (c *Client) handleBar(message []byte) {
	var msg wsBarMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		observability.DefaultMetrics.BarParseErrors.Inc()
		c.logger.Debug().Err(err).Msg("unparseable bar message")
		return
	}

	bar := &domain.Bar{
		TimestampMs:    msg.Bar.TimestampMs,
		Symbol:         msg.Bar.Symbol,
		Open:           msg.Bar.Open,
		High:           msg.Bar.High,
		Low:            msg.Bar.Low,
		Close:          msg.Bar.Close,
		Volume:         msg.Bar.Volume,
		LiquidityScore: msg.Bar.LiquidityScore,
	}

	if err := bar.Validate(); err != nil {
		observability.DefaultMetrics.BarParseErrors.Inc()
		c.logger.Debug().Err(err).Str("symbol", bar.Symbol).Int64("ts", bar.TimestampMs).Msg("invalid bar dropped")
		return
	}

	observability.RecordBarReceived(bar.Symbol)

	// Block until we can send - never drop bars
	select {
	case c.bars <- bar:
	case <-c.done:
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			c.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	Op      string   `json:"op"`
	ID      uint64   `json:"id"`
	Symbols []string `json:"symbols,omitempty"`
}

type wsError struct {
	Op      string `json:"op"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type wsBarMessage struct {
	Op  string    `json:"op"`
	Bar wsBarBody `json:"bar"`
}

type wsBarBody struct {
	Symbol         string  `json:"symbol"`
	TimestampMs    int64   `json:"timestamp_ms"`
	Open           float64 `json:"open"`
	High           float64 `json:"high"`
	Low            float64 `json:"low"`
	Close          float64 `json:"close"`
	Volume         float64 `json:"volume"`
	LiquidityScore float64 `json:"liquidity_score"`
}
