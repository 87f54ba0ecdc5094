package binance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/models"
)

const DefaultStreamURL = "wss://stream.binance.com:9443/ws"

var _ PriceFeed = (*BookTickerStream)(nil)

// BookTickerStream keeps the latest best bid/ask snapshot per symbol from
// the bookTicker websocket stream. It implements PriceFeed from the cache,
// so a live TWAP run can read top of book without a REST round trip per
// tick.
type BookTickerStream struct {
	url       string
	symbols   []string
	conn      *websocket.Conn
	mu        sync.RWMutex
	connected bool
	tickers   map[string]models.Ticker
	logger    *logrus.Logger
}

type bookTickerEvent struct {
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

func NewBookTickerStream(url string, symbols []string, logger *logrus.Logger) *BookTickerStream {
	if url == "" {
		url = DefaultStreamURL
	}
	return &BookTickerStream{
		url:     url,
		symbols: symbols,
		tickers: make(map[string]models.Ticker),
		logger:  logger,
	}
}

// Connect dials the combined bookTicker stream for the configured symbols
// and starts the read and keep-alive loops.
func (s *BookTickerStream) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return nil
	}

	streams := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		streams = append(streams, strings.ToLower(sym)+"@bookTicker")
	}
	endpoint := s.url + "/" + strings.Join(streams, "/")

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to book ticker stream: %w", err)
	}

	s.conn = conn
	s.connected = true

	go s.readLoop(ctx)
	go s.keepAlive(ctx)

	return nil
}

func (s *BookTickerStream) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			var event bookTickerEvent
			if err := s.conn.ReadJSON(&event); err != nil {
				s.logger.WithError(err).Error("Failed to read book ticker event")
				s.handleDisconnect()
				return
			}
			if event.Symbol == "" {
				continue
			}
			s.mu.Lock()
			s.tickers[event.Symbol] = models.Ticker{
				Symbol:    event.Symbol,
				BidPrice:  parseFloat(event.BidPrice),
				BidSize:   parseFloat(event.BidQty),
				AskPrice:  parseFloat(event.AskPrice),
				AskSize:   parseFloat(event.AskQty),
				Timestamp: time.Now().UTC(),
			}
			s.mu.Unlock()
		}
	}
}

func (s *BookTickerStream) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.connected {
				if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					s.logger.WithError(err).Error("Failed to send ping")
					s.mu.Unlock()
					s.handleDisconnect()
					continue
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *BookTickerStream) handleDisconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connected = false
	if s.conn != nil {
		s.conn.Close()
	}
}

// BestBidAsk serves the cached snapshot. An error means no event has
// arrived for the symbol yet (or the stream dropped before one did).
func (s *BookTickerStream) BestBidAsk(_ context.Context, symbol string) (float64, float64, error) {
	s.mu.RLock()
	ticker, ok := s.tickers[symbol]
	s.mu.RUnlock()
	if !ok {
		return 0, 0, fmt.Errorf("no book ticker snapshot for %s", symbol)
	}
	return ticker.BidPrice, ticker.AskPrice, nil
}

func (s *BookTickerStream) Close() {
	s.handleDisconnect()
}
