package exchange

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vitos/edgex_trade_bot/internal/domain"
)

const paperHistoryLimit = 500

type paperPosition struct {
	size  float64
	entry float64
}

// PaperExchange simulates the exchange locally. Market orders fill at the last
// set price. Limit orders rest until SetPrice crosses them.
type PaperExchange struct {
	mu        sync.Mutex
	balance   float64
	prices    map[string]float64
	history   map[string][]domain.Candle
	orders    map[string]*domain.OrderReference
	positions map[string]*paperPosition
	now       func() time.Time
}

func NewPaperExchange(balance float64) *PaperExchange {
	return &PaperExchange{
		balance:   balance,
		prices:    make(map[string]float64),
		history:   make(map[string][]domain.Candle),
		orders:    make(map[string]*domain.OrderReference),
		positions: make(map[string]*paperPosition),
		now:       time.Now,
	}
}

// SetPrice updates the mark price of symbol and fills crossed limit orders.
func (p *PaperExchange) SetPrice(symbol string, price float64) {
	symbol = strings.ToUpper(symbol)
	p.mu.Lock()
	defer p.mu.Unlock()

	p.prices[symbol] = price
	h := append(p.history[symbol], domain.Candle{
		Time: p.now().Unix(), Open: price, High: price, Low: price, Close: price,
	})
	if len(h) > paperHistoryLimit {
		h = h[len(h)-paperHistoryLimit:]
	}
	p.history[symbol] = h

	for id, o := range p.orders {
		if o.Symbol != symbol {
			continue
		}
		crossed := (o.Side == domain.SideBuy && price <= o.Price) ||
			(o.Side == domain.SideSell && price >= o.Price)
		if crossed {
			p.fill(symbol, o.Side, o.Amount, o.Price)
			delete(p.orders, id)
		}
	}
}

func (p *PaperExchange) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	price, ok := p.prices[strings.ToUpper(symbol)]
	if !ok {
		return 0, fmt.Errorf("%w: no paper price for %s", domain.ErrTransport, symbol)
	}
	return price, nil
}

func (p *PaperExchange) GetPosition(ctx context.Context, symbol string) (*domain.Position, error) {
	symbol = strings.ToUpper(symbol)
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[symbol]
	if !ok || pos.size == 0 {
		return nil, nil
	}
	price := p.prices[symbol]
	return &domain.Position{
		Symbol:        symbol,
		Size:          pos.size,
		EntryPrice:    pos.entry,
		UnrealizedPnL: (price - pos.entry) * pos.size,
		Notional:      math.Abs(pos.size) * pos.entry,
	}, nil
}

func (p *PaperExchange) PlaceOrder(ctx context.Context, req *domain.OrderRequest) (*domain.OrderReference, error) {
	symbol := strings.ToUpper(req.Symbol)
	if _, err := ContractID(symbol); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrTransport)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ref := &domain.OrderReference{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Side:      req.Side,
		Type:      req.Type,
		Amount:    req.Amount,
		CreatedAt: p.now(),
	}

	if req.Type == domain.OrderTypeMarket {
		price, ok := p.prices[symbol]
		if !ok {
			return nil, fmt.Errorf("%w: no paper price for %s", domain.ErrTransport, symbol)
		}
		p.fill(symbol, req.Side, req.Amount, price)
		return ref, nil
	}

	if req.Price <= 0 {
		return nil, fmt.Errorf("%w: limit price must be positive", domain.ErrTransport)
	}
	ref.Price = req.Price
	stored := *ref
	p.orders[ref.ID] = &stored
	return ref, nil
}

// fill applies a trade to the position. Caller holds p.mu.
func (p *PaperExchange) fill(symbol string, side domain.OrderSide, amount, price float64) {
	delta := amount
	if side == domain.SideSell {
		delta = -amount
	}
	pos, ok := p.positions[symbol]
	if !ok {
		pos = &paperPosition{}
		p.positions[symbol] = pos
	}

	next := pos.size + delta
	switch {
	case pos.size == 0 || (pos.size > 0) == (delta > 0):
		// opening or adding
		pos.entry = (pos.entry*math.Abs(pos.size) + price*amount) / math.Abs(next)
	case math.Abs(delta) <= math.Abs(pos.size):
		// reducing
		p.balance += amount * (price - pos.entry) * sign(pos.size)
	default:
		// flipping
		p.balance += math.Abs(pos.size) * (price - pos.entry) * sign(pos.size)
		pos.entry = price
	}
	pos.size = next
	if math.Abs(pos.size) < 1e-12 {
		delete(p.positions, symbol)
	}
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func (p *PaperExchange) CancelOrder(ctx context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.orders[orderID]; !ok {
		return fmt.Errorf("%w: order %s not found", domain.ErrTransport, orderID)
	}
	delete(p.orders, orderID)
	return nil
}

func (p *PaperExchange) GetOpenOrders(ctx context.Context, symbol string) ([]domain.OrderReference, error) {
	symbol = strings.ToUpper(symbol)
	p.mu.Lock()
	defer p.mu.Unlock()

	orders := make([]domain.OrderReference, 0, len(p.orders))
	for _, o := range p.orders {
		if symbol == "" || o.Symbol == symbol {
			orders = append(orders, *o)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].Symbol != orders[j].Symbol {
			return orders[i].Symbol < orders[j].Symbol
		}
		return orders[i].Price < orders[j].Price
	})
	return orders, nil
}

func (p *PaperExchange) GetAccountInfo(ctx context.Context) (*domain.AccountSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	margin := p.balance
	for symbol, pos := range p.positions {
		margin += (p.prices[symbol] - pos.entry) * pos.size
	}
	locked := 0.0
	for _, o := range p.orders {
		locked += o.Amount * o.Price
	}
	return &domain.AccountSnapshot{
		TotalBalance:     p.balance,
		AvailableBalance: p.balance - locked,
		MarginBalance:    margin,
	}, nil
}

// GetCandles returns the recorded price history as flat candles. The interval
// is ignored.
func (p *PaperExchange) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := p.history[strings.ToUpper(symbol)]
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	out := make([]domain.Candle, len(h))
	copy(out, h)
	return out, nil
}
