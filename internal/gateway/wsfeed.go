package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	apperrors "bracket-trader/internal/errors"
	"bracket-trader/internal/models"
)

// wsTick is the wire format of one feed message. Instrument metadata rides
// along on the first message after connect and whenever it changes.
type wsTick struct {
	Symbol     string  `json:"symbol"`
	Bid        float64 `json:"bid"`
	Ask        float64 `json:"ask"`
	Last       float64 `json:"last"`
	TickSize   float64 `json:"tick_size,omitempty"`
	PointValue float64 `json:"point_value,omitempty"`
}

// WSFeed is a MarketFeed backed by a websocket price stream. It reconnects
// with exponential backoff and caches the last quote and any instrument
// metadata the stream delivers.
type WSFeed struct {
	url    string
	symbol string
	logger zerolog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	mu         sync.RWMutex
	quote      models.Quote
	tickSize   float64
	pointValue float64

	updates chan models.Quote
	closed  int32
}

const (
	wsHandshakeTimeout = 10 * time.Second
	wsReadTimeout      = 30 * time.Second
	wsPingInterval     = 15 * time.Second
	wsBackoffMin       = 500 * time.Millisecond
	wsBackoffMax       = 30 * time.Second
)

// NewWSFeed creates a websocket market feed for one symbol.
func NewWSFeed(url, symbol string, logger zerolog.Logger) *WSFeed {
	return &WSFeed{
		url:     url,
		symbol:  symbol,
		logger:  logger.With().Str("component", "ws_feed").Str("symbol", symbol).Logger(),
		updates: make(chan models.Quote, 256),
	}
}

// Connect dials the feed and subscribes to the configured symbol.
func (f *WSFeed) Connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrFeedUnavailable, "dialing feed %s: %v", f.url, err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	sub := map[string]interface{}{"op": "subscribe", "symbol": f.symbol}
	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		return fmt.Errorf("subscribing to %s: %w", f.symbol, err)
	}

	f.conn = conn
	f.logger.Info().Str("url", f.url).Msg("Feed connected")
	return nil
}

// Run reads the stream until ctx is done, reconnecting on failure.
func (f *WSFeed) Run(ctx context.Context) {
	go f.pingLoop(ctx)

	backoff := wsBackoffMin
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if atomic.LoadInt32(&f.closed) == 1 {
			return
		}

		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		if conn == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < wsBackoffMax {
				backoff *= 2
			}
			if err := f.Connect(ctx); err != nil {
				f.logger.Warn().Err(err).Msg("Feed reconnect failed")
			}
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			f.logger.Warn().Err(err).Msg("Feed read failed")
			f.dropConn()
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		backoff = wsBackoffMin

		var tick wsTick
		if err := json.Unmarshal(data, &tick); err != nil {
			f.logger.Debug().Err(err).Msg("Skipping unparsable feed message")
			continue
		}
		if tick.Symbol != "" && tick.Symbol != f.symbol {
			continue
		}
		f.apply(tick)
	}
}

func (f *WSFeed) apply(tick wsTick) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tick.Bid > 0 {
		f.quote.Bid = tick.Bid
	}
	if tick.Ask > 0 {
		f.quote.Ask = tick.Ask
	}
	if tick.Last > 0 {
		f.quote.Last = tick.Last
	}
	if tick.TickSize > 0 && tick.PointValue > 0 {
		f.tickSize = tick.TickSize
		f.pointValue = tick.PointValue
	}

	// Close closes the channel while holding the same lock, so a late
	// message after shutdown cannot send on a closed channel.
	if atomic.LoadInt32(&f.closed) == 1 {
		return
	}
	select {
	case f.updates <- f.quote:
	default:
		// Consumer is behind; the snapshot still advances.
	}
}

func (f *WSFeed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if atomic.LoadInt32(&f.closed) == 1 {
				return
			}
			f.connMu.Lock()
			conn := f.conn
			if conn != nil {
				deadline := time.Now().Add(5 * time.Second)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					f.logger.Warn().Err(err).Msg("Feed ping failed")
				}
			}
			f.connMu.Unlock()
		}
	}
}

func (f *WSFeed) dropConn() {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		_ = f.conn.Close()
		f.conn = nil
	}
}

// Quote returns the latest cached quote.
func (f *WSFeed) Quote() models.Quote {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.quote
}

// Updates returns the quote channel.
func (f *WSFeed) Updates() <-chan models.Quote {
	return f.updates
}

// InstrumentInfo returns tick metadata once the stream has delivered it.
func (f *WSFeed) InstrumentInfo() (float64, float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.tickSize, f.pointValue, f.tickSize > 0 && f.pointValue > 0
}

// Close shuts the feed down.
func (f *WSFeed) Close() error {
	if !atomic.CompareAndSwapInt32(&f.closed, 0, 1) {
		return nil
	}
	f.dropConn()
	f.mu.Lock()
	close(f.updates)
	f.mu.Unlock()
	return nil
}
