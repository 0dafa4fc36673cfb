package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vitos/edgex_trade_bot/internal/domain"
	"go.uber.org/zap"
)

var errExchangeDown = errors.New("exchange down")

// mockExchange keeps resting limit orders and positions in memory. Market
// orders move the position; failures are scripted per call. Like the HTTP
// adapter, calls made with a done context fail.
type mockExchange struct {
	mu sync.Mutex

	prices       map[string]float64
	priceErr     error
	positions    map[string]*domain.Position
	positionErrs map[string]error
	open         []domain.OrderReference
	ordersErr    error

	placeErr  func(req *domain.OrderRequest) error
	cancelErr func(id string) error
	onPlace   func(req *domain.OrderRequest)

	placed    []domain.OrderRequest
	cancelled []string
	nextID    int
}

func newMockExchange() *mockExchange {
	return &mockExchange{
		prices:       map[string]float64{"BTC": 50000, "ETH": 3000},
		positions:    make(map[string]*domain.Position),
		positionErrs: make(map[string]error),
	}
}

func (m *mockExchange) setPosition(symbol string, size, pnl, notional float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[symbol] = &domain.Position{Symbol: symbol, Size: size, EntryPrice: m.prices[symbol], UnrealizedPnL: pnl, Notional: notional}
}

func (m *mockExchange) placedRequests() []domain.OrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OrderRequest(nil), m.placed...)
}

func (m *mockExchange) cancelledIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.cancelled...)
}

func (m *mockExchange) openCount(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, o := range m.open {
		if o.Symbol == symbol {
			n++
		}
	}
	return n
}

func (m *mockExchange) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.priceErr != nil {
		return 0, m.priceErr
	}
	p, ok := m.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("no price for %s", symbol)
	}
	return p, nil
}

func (m *mockExchange) GetPosition(ctx context.Context, symbol string) (*domain.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.positionErrs[symbol]; err != nil {
		return nil, err
	}
	p, ok := m.positions[symbol]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (m *mockExchange) PlaceOrder(ctx context.Context, req *domain.OrderRequest) (*domain.OrderReference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.onPlace != nil {
		m.onPlace(req)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.placed = append(m.placed, *req)
	if m.placeErr != nil {
		if err := m.placeErr(req); err != nil {
			return nil, err
		}
	}
	m.nextID++
	ref := &domain.OrderReference{
		ID:        fmt.Sprintf("ord-%d", m.nextID),
		Symbol:    req.Symbol,
		Side:      req.Side,
		Type:      req.Type,
		Amount:    req.Amount,
		CreatedAt: time.Now(),
	}
	if req.Type == domain.OrderTypeLimit {
		ref.Price = req.Price
		m.open = append(m.open, *ref)
		return ref, nil
	}

	delta := req.Amount
	if req.Side == domain.SideSell {
		delta = -delta
	}
	pos, ok := m.positions[req.Symbol]
	if !ok {
		pos = &domain.Position{Symbol: req.Symbol, EntryPrice: m.prices[req.Symbol]}
		m.positions[req.Symbol] = pos
	}
	pos.Size += delta
	if pos.Size == 0 {
		delete(m.positions, req.Symbol)
	}
	return ref, nil
}

func (m *mockExchange) CancelOrder(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelErr != nil {
		if err := m.cancelErr(orderID); err != nil {
			return err
		}
	}
	for i, o := range m.open {
		if o.ID == orderID {
			m.open = append(m.open[:i], m.open[i+1:]...)
			m.cancelled = append(m.cancelled, orderID)
			return nil
		}
	}
	return fmt.Errorf("order %s not found", orderID)
}

func (m *mockExchange) GetOpenOrders(ctx context.Context, symbol string) ([]domain.OrderReference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ordersErr != nil {
		return nil, m.ordersErr
	}
	var out []domain.OrderReference
	for _, o := range m.open {
		if symbol == "" || o.Symbol == symbol {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockExchange) GetAccountInfo(ctx context.Context) (*domain.AccountSnapshot, error) {
	return &domain.AccountSnapshot{TotalBalance: 1000, AvailableBalance: 1000, MarginBalance: 1000}, nil
}

type fixedSignal struct {
	signal domain.TrendSignal
	err    error
}

func (f fixedSignal) Signal(ctx context.Context, symbol string) (domain.TrendSignal, error) {
	return f.signal, f.err
}

type recordingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *recordingMetrics) Inc(stat string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[stat]++
}

func (r *recordingMetrics) Timing(string, time.Duration) {}

func (r *recordingMetrics) count(stat string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[stat]
}

type recordingJournal struct {
	mu      sync.Mutex
	entries []*domain.JournalEntry
}

func (j *recordingJournal) SaveEntry(ctx context.Context, e *domain.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

func (j *recordingJournal) ListEntries(ctx context.Context, limit int) ([]*domain.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]*domain.JournalEntry(nil), j.entries...), nil
}

func (j *recordingJournal) events() []domain.JournalEvent {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]domain.JournalEvent, len(j.entries))
	for i, e := range j.entries {
		out[i] = e.Event
	}
	return out
}

type countingPacer struct {
	mu    sync.Mutex
	waits int
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waits++
	return ctx.Err()
}

func newTestEngine(ex *mockExchange, opts ...Option) *Engine {
	return NewEngine(ex, fixedSignal{signal: domain.TrendFlat}, zap.NewNop(), EngineConfig{
		RequestTimeout:  time.Second,
		MaxPositionSize: 10,
		DefaultLeverage: 3,
	}, opts...)
}
