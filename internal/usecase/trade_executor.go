package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/vitos/edgex_trade_bot/internal/domain"
	"go.uber.org/zap"
)

// TradeExecutor sends orders and cancellations to the exchange. It applies the
// size guard and the per-call timeout, paces sequences, and journals every
// outcome.
type TradeExecutor struct {
	exchange domain.Exchange
	pacer    domain.Pacer
	journal  domain.OrderJournal
	metrics  domain.Metrics
	logger   *zap.Logger
	timeout  time.Duration
	maxSize  float64
	stopped  func() bool
}

func NewTradeExecutor(exchange domain.Exchange, logger *zap.Logger) *TradeExecutor {
	return &TradeExecutor{
		exchange: exchange,
		pacer:    noPacer{},
		metrics:  nopMetrics{},
		logger:   logger,
		stopped:  func() bool { return false },
	}
}

// callContext bounds a single exchange call by the configured timeout.
func (e *TradeExecutor) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

// Execute places a single order opening or adding exposure. Orders above the
// max position size are refused without reaching the exchange.
func (e *TradeExecutor) Execute(ctx context.Context, kind domain.StrategyKind, req domain.OrderRequest) (*domain.OrderReference, error) {
	if e.maxSize > 0 && req.Amount > e.maxSize {
		e.metrics.Inc("orders.skipped")
		return nil, fmt.Errorf("%w: %g > %g", domain.ErrSizeLimit, req.Amount, e.maxSize)
	}
	return e.place(ctx, kind, req, domain.EventPlaced)
}

// Close places a market order that flattens a position. The size cap does
// not apply: reducing exposure is always allowed.
func (e *TradeExecutor) Close(ctx context.Context, req domain.OrderRequest) (*domain.OrderReference, error) {
	req.Type = domain.OrderTypeMarket
	return e.place(ctx, "", req, domain.EventClosed)
}

func (e *TradeExecutor) place(ctx context.Context, kind domain.StrategyKind, req domain.OrderRequest, event domain.JournalEvent) (*domain.OrderReference, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount %g", domain.ErrInvalidParams, req.Amount)
	}

	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	start := time.Now()
	ref, err := e.exchange.PlaceOrder(callCtx, &req)
	e.metrics.Timing("exchange.place_order", time.Since(start))
	if err == nil && ref == nil {
		err = fmt.Errorf("%w: empty order response", domain.ErrTransport)
	}
	if err != nil {
		e.metrics.Inc("orders.rejected")
		e.logger.Warn("Order placement failed",
			zap.String("strategy", string(kind)),
			zap.String("symbol", req.Symbol),
			zap.String("side", string(req.Side)),
			zap.String("type", string(req.Type)),
			zap.Float64("price", req.Price),
			zap.Float64("amount", req.Amount),
			zap.Error(err))
		e.journalEntry(ctx, &domain.JournalEntry{
			Event: domain.EventRejected, Strategy: kind, Symbol: req.Symbol, Side: req.Side,
			Type: req.Type, Amount: req.Amount, Price: req.Price, Reason: err.Error(),
		})
		return nil, err
	}

	e.metrics.Inc("orders.placed")
	e.logger.Info("Order placed",
		zap.String("strategy", string(kind)),
		zap.String("order_id", ref.ID),
		zap.String("symbol", ref.Symbol),
		zap.String("side", string(ref.Side)),
		zap.String("type", string(ref.Type)),
		zap.Float64("price", ref.Price),
		zap.Float64("amount", ref.Amount))
	e.journalEntry(ctx, &domain.JournalEntry{
		Event: event, Strategy: kind, OrderID: ref.ID, Symbol: ref.Symbol, Side: ref.Side,
		Type: ref.Type, Amount: ref.Amount, Price: ref.Price,
	})
	return ref, nil
}

// ExecuteSequence places reqs one after another, waiting on the pacer before
// each submission. A failed placement is recorded and the sequence continues.
// The sequence is cut short only by cancellation or engine shutdown, in which
// case the ledger holds what was done so far and the error says why.
func (e *TradeExecutor) ExecuteSequence(ctx context.Context, kind domain.StrategyKind, reqs []domain.OrderRequest) (*OrderLedger, error) {
	ledger := &OrderLedger{}
	for _, req := range reqs {
		if e.stopped() {
			return ledger, domain.ErrEngineStopped
		}
		if err := e.pacer.Wait(ctx); err != nil {
			return ledger, err
		}

		ref, err := e.Execute(ctx, kind, req)
		switch {
		case err == nil:
			ledger.recordPlaced(req, ref)
		case isSizeError(err):
			ledger.recordFailed(req, DispositionSkipped, err)
		default:
			ledger.recordFailed(req, DispositionRejected, err)
		}
	}
	return ledger, nil
}

// Cancel cancels one order.
func (e *TradeExecutor) Cancel(ctx context.Context, order domain.OrderReference) error {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	if err := e.exchange.CancelOrder(callCtx, order.ID); err != nil {
		e.metrics.Inc("orders.cancel_failed")
		e.logger.Warn("Order cancel failed",
			zap.String("order_id", order.ID),
			zap.String("symbol", order.Symbol),
			zap.Error(err))
		return err
	}
	e.metrics.Inc("orders.cancelled")
	e.journalEntry(ctx, &domain.JournalEntry{
		Event: domain.EventCancelled, OrderID: order.ID, Symbol: order.Symbol, Side: order.Side,
		Type: order.Type, Amount: order.Amount, Price: order.Price,
	})
	return nil
}

// CancelSequence cancels orders one after another with pacing. Failures are
// counted and do not stop the remaining cancellations.
func (e *TradeExecutor) CancelSequence(ctx context.Context, orders []domain.OrderReference) (*OrderLedger, error) {
	ledger := &OrderLedger{}
	for _, o := range orders {
		if err := e.pacer.Wait(ctx); err != nil {
			return ledger, err
		}
		req := domain.OrderRequest{Symbol: o.Symbol, Side: o.Side, Type: o.Type, Amount: o.Amount, Price: o.Price}
		if err := e.Cancel(ctx, o); err != nil {
			ledger.recordFailed(req, DispositionRejected, err)
			continue
		}
		ref := o
		ledger.entries = append(ledger.entries, LedgerEntry{Request: req, Order: &ref, Disposition: DispositionCancelled})
	}
	return ledger, nil
}

func (e *TradeExecutor) journalEntry(ctx context.Context, entry *domain.JournalEntry) {
	if e.journal == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := e.journal.SaveEntry(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.Warn("Failed to journal order event", zap.String("event", string(entry.Event)), zap.Error(err))
	}
}

type nopMetrics struct{}

func (nopMetrics) Inc(string)                  {}
func (nopMetrics) Timing(string, time.Duration) {}
