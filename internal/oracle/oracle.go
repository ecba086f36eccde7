// Package oracle defines the price-feed collaborator the settlement
// package resolves windows against, plus a websocket-backed implementation
// for live/paper runs. Grounded on the teacher's feeds/polymarket_ws.go
// connection-management shape (reconnect loop, in-memory price cache),
// adapted to the narrower PriceOracle contract
// the backtest core's Non-goals carve out: the core only needs a price
// at a point in time, not a full orderbook feed.
package oracle

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// PriceOracle is the only contract the settlement/windowpnl packages
// depend on: a price for an asset at (or just before) a timestamp.
type PriceOracle interface {
	PriceAt(ctx context.Context, asset string, at time.Time) (float64, error)
}

// StaticOracle serves fixed prices, for scenario files and tests. PriceAt
// ignores the timestamp: it returns the last price Set for the asset, or 0
// for an asset never set.
type StaticOracle struct {
	mu     sync.RWMutex
	prices map[string]float64
}

func NewStaticOracle() *StaticOracle {
	return &StaticOracle{prices: make(map[string]float64)}
}

func (s *StaticOracle) Set(asset string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[asset] = price
}

func (s *StaticOracle) PriceAt(_ context.Context, asset string, _ time.Time) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prices[asset], nil
}

// WebSocketOracle maintains a live connection to an external price feed,
// following the teacher's reconnect-loop pattern, but exposing only PriceAt
// rather than a tick stream. PriceAt ignores the timestamp: it returns the
// most recent price received for the asset, or 0 if none has arrived.
type WebSocketOracle struct {
	mu            sync.RWMutex
	url           string
	conn          *websocket.Conn
	running       bool
	stopCh        chan struct{}
	lastPrice     map[string]float64
	reconnectWait time.Duration
}

func NewWebSocketOracle(url string) *WebSocketOracle {
	return &WebSocketOracle{
		url:           url,
		stopCh:        make(chan struct{}),
		lastPrice:     make(map[string]float64),
		reconnectWait: 5 * time.Second,
	}
}

func (w *WebSocketOracle) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	go w.runLoop(ctx)
}

func (w *WebSocketOracle) runLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}
		if err := w.connectAndRead(ctx); err != nil {
			log.Warn().Err(err).Str("url", w.url).Msg("oracle websocket disconnected, reconnecting")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.reconnectWait):
		}
	}
}

func (w *WebSocketOracle) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()
	defer conn.Close()

	for {
		var msg struct {
			Asset string  `json:"asset"`
			Price float64 `json:"price"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		w.mu.Lock()
		w.lastPrice[msg.Asset] = msg.Price
		w.mu.Unlock()
	}
}

func (w *WebSocketOracle) Stop() {
	close(w.stopCh)
}

func (w *WebSocketOracle) PriceAt(_ context.Context, asset string, _ time.Time) (float64, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastPrice[asset], nil
}
