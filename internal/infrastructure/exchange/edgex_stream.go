package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultMaxPriceAge = 10 * time.Second

type pricePoint struct {
	price float64
	at    time.Time
}

// PriceStream keeps the last traded price per symbol from the EdgeX public
// ticker channel. Prices older than maxAge are reported as missing so callers
// fall back to REST.
type PriceStream struct {
	url    string
	maxAge time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	conn      *websocket.Conn
	done      chan struct{}
	prices    map[string]pricePoint
	bySymbol  map[string]string // contract id -> symbol
}

func NewPriceStream(url string, maxAge time.Duration, logger *zap.Logger) *PriceStream {
	if url == "" {
		url = EdgeXWSURL
	}
	if maxAge <= 0 {
		maxAge = defaultMaxPriceAge
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PriceStream{
		url:      url,
		maxAge:   maxAge,
		logger:   logger,
		now:      time.Now,
		prices:   make(map[string]pricePoint),
		bySymbol: make(map[string]string),
	}
}

// Connect dials the feed if needed and subscribes to symbols.
func (s *PriceStream) Connect(symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		c, _, err := websocket.DefaultDialer.Dial(s.url, nil)
		if err != nil {
			return err
		}
		s.conn = c
		s.done = make(chan struct{})
		go s.readLoop(c, s.done)
	}
	return s.subscribe(symbols)
}

func (s *PriceStream) subscribe(symbols []string) error {
	for _, symbol := range symbols {
		id, err := ContractID(symbol)
		if err != nil {
			return err
		}
		s.bySymbol[id] = strings.ToUpper(symbol)
		msg := map[string]string{
			"type":    "subscribe",
			"channel": "ticker." + id,
		}
		if err := s.conn.WriteJSON(msg); err != nil {
			return err
		}
	}
	return nil
}

// LastPrice returns the cached price of symbol if it is fresh.
func (s *PriceStream) LastPrice(symbol string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prices[strings.ToUpper(symbol)]
	if !ok || s.now().Sub(p.at) > s.maxAge {
		return 0, false
	}
	return p.price, true
}

// Done is closed when the read loop of the current connection exits. It is
// nil before the first successful Connect.
func (s *PriceStream) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Maintain redials and resubscribes symbols whenever the connection drops,
// waiting retry between attempts. It returns when ctx is done.
func (s *PriceStream) Maintain(ctx context.Context, symbols []string, retry time.Duration) {
	if retry <= 0 {
		retry = 5 * time.Second
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.Done():
		}
		s.logger.Warn("EdgeX stream disconnected, REST prices in use until it reconnects")

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(retry):
			}
			if err := s.Connect(symbols); err != nil {
				s.logger.Warn("EdgeX stream reconnect failed", zap.Error(err))
				continue
			}
			s.logger.Info("EdgeX stream reconnected", zap.Int("symbols", len(symbols)))
			break
		}
	}
}

func (s *PriceStream) Close() error {
	s.mu.Lock()
	c := s.conn
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	_ = c.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.Close()
}

type tickerEvent struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Content struct {
		Data []struct {
			ContractID string          `json:"contractId"`
			LastPrice  decimal.Decimal `json:"lastPrice"`
		} `json:"data"`
	} `json:"content"`
}

func (s *PriceStream) readLoop(c *websocket.Conn, done chan struct{}) {
	defer func() {
		c.Close()
		s.mu.Lock()
		if s.conn == c {
			s.conn = nil
		}
		s.mu.Unlock()
		close(done)
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.logger.Warn("EdgeX stream read error", zap.Error(err))
			}
			return
		}

		var event tickerEvent
		if err := json.Unmarshal(message, &event); err != nil {
			s.logger.Debug("EdgeX stream unmarshal error", zap.Error(err))
			continue
		}

		// server keepalive
		if event.Type == "ping" {
			s.mu.Lock()
			_ = c.WriteJSON(map[string]string{"type": "pong"})
			s.mu.Unlock()
			continue
		}
		if !strings.HasPrefix(event.Channel, "ticker.") {
			continue
		}

		for _, d := range event.Content.Data {
			s.update(d.ContractID, d.LastPrice.InexactFloat64())
		}
	}
}

func (s *PriceStream) update(contractID string, price float64) {
	if price <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if symbol, ok := s.bySymbol[contractID]; ok {
		s.prices[symbol] = pricePoint{price: price, at: s.now()}
	}
}
