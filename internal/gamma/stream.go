package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

// StreamClient handles the WebSocket connection to the CLOB market channel.
// Received trade prints feed the per-market trade cache used by the
// short-horizon trend check.
type StreamClient struct {
	conn            *websocket.Conn
	baseURL         string
	mu              sync.RWMutex
	isConnected     bool
	handlers        []TradeHandler
	reconnectConfig ReconnectConfig
	lastMessageTime time.Time
	logger          *logrus.Logger
}

// ReconnectConfig controls reconnection behavior
type ReconnectConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// TradeHandler is called for each trade print received from the stream.
type TradeHandler func(marketID string, print models.TradePrint)

// streamEvent is a raw CLOB market channel event.
type streamEvent struct {
	EventType string `json:"event_type"`
	Market    string `json:"market"`
	AssetID   string `json:"asset_id"`
	Price     string `json:"price"`
	Timestamp string `json:"timestamp"`
}

// subscribeMessage subscribes to the market channel for a set of assets.
type subscribeMessage struct {
	Type      string   `json:"type"`
	AssetIDs  []string `json:"assets_ids"`
	MarketIDs []string `json:"markets,omitempty"`
}

// DefaultReconnectConfig returns default reconnection configuration
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxRetries:        10,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 1.5,
	}
}

// NewStreamClient creates a new stream client
func NewStreamClient(streamURL string, logger *logrus.Logger) *StreamClient {
	return &StreamClient{
		baseURL:         streamURL,
		handlers:        make([]TradeHandler, 0),
		reconnectConfig: DefaultReconnectConfig(),
		logger:          logger,
	}
}

// Connect establishes the WebSocket connection to the market channel.
func (s *StreamClient) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isConnected {
		return fmt.Errorf("already connected")
	}

	wsURL := fmt.Sprintf("wss://%s/ws/market", s.baseURL)

	s.logger.WithField("url", wsURL).Info("Connecting to market stream")

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to stream: %w", err)
	}

	s.conn = conn
	s.isConnected = true
	s.lastMessageTime = time.Now()

	go s.readMessages()

	return nil
}

// SubscribeToMarkets subscribes to trade events for the given asset ids.
func (s *StreamClient) SubscribeToMarkets(ctx context.Context, assetIDs []string) error {
	s.mu.RLock()
	if !s.isConnected || s.conn == nil {
		s.mu.RUnlock()
		return fmt.Errorf("not connected to stream")
	}
	s.mu.RUnlock()

	msg := subscribeMessage{
		Type:     "market",
		AssetIDs: assetIDs,
	}

	s.logger.WithField("assets", len(assetIDs)).Info("Subscribing to market channel")
	return s.sendMessage(msg)
}

// AddHandler registers a trade print handler
func (s *StreamClient) AddHandler(handler TradeHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

// readMessages reads messages from the WebSocket connection
func (s *StreamClient) readMessages() {
	defer s.Close()

	for {
		var raw json.RawMessage
		err := s.conn.ReadJSON(&raw)
		if err != nil {
			s.logger.WithField("error", err.Error()).Warn("Stream read error")
			s.mu.Lock()
			s.isConnected = false
			s.mu.Unlock()
			return
		}

		s.mu.Lock()
		s.lastMessageTime = time.Now()
		s.mu.Unlock()

		s.dispatch(raw)
	}
}

// dispatch decodes trade events and fans them out to handlers. Events arrive
// either singly or batched in an array.
func (s *StreamClient) dispatch(raw json.RawMessage) {
	var events []streamEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		var single streamEvent
		if err := json.Unmarshal(raw, &single); err != nil {
			return
		}
		events = []streamEvent{single}
	}

	s.mu.RLock()
	handlers := s.handlers
	s.mu.RUnlock()

	for _, ev := range events {
		if ev.EventType != "last_trade_price" || ev.Market == "" {
			continue
		}

		price, err := parsePrice(ev.Price)
		if err != nil {
			continue
		}

		ts := time.Now()
		if ev.Timestamp != "" {
			if parsed, err := time.Parse(time.RFC3339, ev.Timestamp); err == nil {
				ts = parsed
			}
		}

		print := models.TradePrint{Price: price, Timestamp: ts}
		for _, handler := range handlers {
			handler(ev.Market, print)
		}
	}
}

// sendMessage sends a JSON message to the stream
func (s *StreamClient) sendMessage(msg interface{}) error {
	s.mu.RLock()
	if !s.isConnected || s.conn == nil {
		s.mu.RUnlock()
		return fmt.Errorf("not connected")
	}
	conn := s.conn
	s.mu.RUnlock()

	return conn.WriteJSON(msg)
}

// IsConnected returns whether the stream is connected
func (s *StreamClient) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isConnected
}

// LastMessageTime returns the time of the last received message
func (s *StreamClient) LastMessageTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastMessageTime
}

// Close closes the stream connection
func (s *StreamClient) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}

	s.isConnected = false
	return s.conn.Close()
}
