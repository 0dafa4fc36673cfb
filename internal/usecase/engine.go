package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vitos/edgex_trade_bot/internal/domain"
	"go.uber.org/zap"
)

type EngineConfig struct {
	// RequestTimeout bounds every exchange call. Zero means no extra bound.
	RequestTimeout time.Duration
	// MaxPositionSize caps the amount of any single order. Zero disables the cap.
	MaxPositionSize float64
	// DefaultLeverage is used by the trend strategy when none is given.
	DefaultLeverage int
}

type Option func(*Engine)

func WithPacer(p domain.Pacer) Option {
	return func(e *Engine) { e.executor.pacer = p }
}

func WithJournal(j domain.OrderJournal) Option {
	return func(e *Engine) { e.executor.journal = j }
}

func WithMetrics(m domain.Metrics) Option {
	return func(e *Engine) { e.metrics = m; e.executor.metrics = m }
}

// Engine runs the grid, DCA, scalp and trend strategies, unwinds symbols and
// owns the strategy Registry. Establishment and unwind of the same symbol are
// serialized through Registry.Lock.
type Engine struct {
	exchange domain.Exchange
	trend    domain.TrendSignalProvider
	registry *Registry
	executor *TradeExecutor
	metrics  domain.Metrics
	logger   *zap.Logger
	cfg      EngineConfig

	stopMu   sync.RWMutex
	stopped  atomic.Bool
	inflight sync.WaitGroup
}

func NewEngine(exchange domain.Exchange, trend domain.TrendSignalProvider, logger *zap.Logger, cfg EngineConfig, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		exchange: exchange,
		trend:    trend,
		registry: NewRegistry(),
		executor: NewTradeExecutor(exchange, logger),
		metrics:  nopMetrics{},
		logger:   logger,
		cfg:      cfg,
	}
	e.executor.timeout = cfg.RequestTimeout
	e.executor.maxSize = cfg.MaxPositionSize
	e.executor.stopped = e.Stopped
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Registry() *Registry {
	return e.registry
}

func (e *Engine) Stopped() bool {
	return e.stopped.Load()
}

// Stop refuses new operations and waits for in-flight ones. Establishments stop
// between two exchange calls; an unwind already running is completed.
func (e *Engine) Stop() {
	e.stopMu.Lock()
	already := e.stopped.Swap(true)
	e.stopMu.Unlock()
	if !already {
		e.logger.Info("Engine stopping, waiting for in-flight operations")
	}
	e.inflight.Wait()
}

// operationContext detaches an operation from the caller's cancellation.
// Once started, an operation is interrupted only by Stop, between two
// exchange calls, and each call stays bounded by the request timeout.
func operationContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func (e *Engine) begin() (func(), error) {
	e.stopMu.RLock()
	defer e.stopMu.RUnlock()
	if e.stopped.Load() {
		return nil, domain.ErrEngineStopped
	}
	e.inflight.Add(1)
	return e.inflight.Done, nil
}

// Status returns the active strategies ordered by symbol, then kind.
func (e *Engine) Status() []*domain.StrategyRecord {
	return e.registry.Snapshot()
}

type PositionView struct {
	Symbol   string
	Price    float64
	Position *domain.Position
}

// Position reports the live position and price of symbol. A nil Position
// means the account is flat.
func (e *Engine) Position(ctx context.Context, symbol string) (*PositionView, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	pos, err := e.position(ctx, symbol)
	if err != nil {
		return nil, err
	}
	price, err := e.currentPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &PositionView{Symbol: symbol, Price: price, Position: pos}, nil
}

// OpenOrders lists open orders across all symbols.
func (e *Engine) OpenOrders(ctx context.Context) ([]domain.OrderReference, error) {
	callCtx, cancel := e.executor.callContext(ctx)
	defer cancel()
	orders, err := e.exchange.GetOpenOrders(callCtx, "")
	if err != nil {
		return nil, fmt.Errorf("open orders: %w", err)
	}
	return orders, nil
}

func (e *Engine) Balance(ctx context.Context) (*domain.AccountSnapshot, error) {
	callCtx, cancel := e.executor.callContext(ctx)
	defer cancel()
	acc, err := e.exchange.GetAccountInfo(callCtx)
	if err != nil {
		return nil, fmt.Errorf("account info: %w", err)
	}
	if acc == nil {
		return nil, fmt.Errorf("account info: %w: empty response", domain.ErrTransport)
	}
	return acc, nil
}

func (e *Engine) currentPrice(ctx context.Context, symbol string) (float64, error) {
	callCtx, cancel := e.executor.callContext(ctx)
	defer cancel()
	price, err := e.exchange.GetCurrentPrice(callCtx, symbol)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", domain.ErrPriceUnavailable, symbol, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("%w: %s", domain.ErrPriceUnavailable, symbol)
	}
	return price, nil
}

func (e *Engine) position(ctx context.Context, symbol string) (*domain.Position, error) {
	callCtx, cancel := e.executor.callContext(ctx)
	defer cancel()
	pos, err := e.exchange.GetPosition(callCtx, symbol)
	if err != nil {
		return nil, fmt.Errorf("position %s: %w", symbol, err)
	}
	return pos, nil
}

// register stores rec as the active record for its key. A record of the same
// kind and symbol is replaced, never merged.
func (e *Engine) register(ctx context.Context, rec *domain.StrategyRecord) {
	rec.State = domain.StateEstablished
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if prev := e.registry.Put(rec); prev != nil {
		advance(ctx, prev, triggerReplace)
		e.logger.Info("Strategy replaced",
			zap.String("symbol", rec.Symbol),
			zap.String("kind", string(rec.Kind)),
			zap.Int("previous_orders", len(prev.Orders)))
	}
	e.metrics.Inc("strategies.established." + strings.ToLower(string(rec.Kind)))
}

func normalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return "", fmt.Errorf("%w: empty symbol", domain.ErrInvalidParams)
	}
	return s, nil
}

func isSizeError(err error) bool {
	return errors.Is(err, domain.ErrSizeLimit) || errors.Is(err, domain.ErrInvalidParams)
}

// placementOutcome classifies a multi-order establishment.
func placementOutcome(ledger *OrderLedger, requested int, interrupted bool) domain.Outcome {
	if requested == 0 {
		return domain.OutcomeNoOp
	}
	if ledger.Failed() > 0 || ledger.Placed() < requested || interrupted {
		return domain.OutcomePartial
	}
	return domain.OutcomeEstablished
}
