package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/vitos/edgex_trade_bot/internal/domain"
	"go.uber.org/zap"
)

// Unwind cancels every open order of symbol, flattens its position with one
// market order and drops every strategy record of the symbol. Each step is
// best-effort: failures are reported in the result and do not stop the next
// step. With no orders, no position and no records it is a no-op.
func (e *Engine) Unwind(ctx context.Context, symbol string) (*UnwindResult, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	done, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer done()
	unlock := e.registry.Lock(symbol)
	defer unlock()
	ctx = operationContext(ctx)

	return e.unwindLocked(ctx, symbol), nil
}

func (e *Engine) unwindLocked(ctx context.Context, symbol string) *UnwindResult {
	e.logger.Info("Unwinding symbol", zap.String("symbol", symbol))
	result := &UnwindResult{Symbol: symbol}

	e.registry.updateSymbol(symbol, func(rec *domain.StrategyRecord) {
		advance(ctx, rec, triggerUnwind)
	})

	// 1. Cancel open orders
	callCtx, cancel := e.executor.callContext(ctx)
	orders, err := e.exchange.GetOpenOrders(callCtx, symbol)
	cancel()
	if err != nil {
		result.OrdersErr = fmt.Errorf("open orders %s: %w", symbol, err)
		e.logger.Warn("Unwind could not list open orders", zap.String("symbol", symbol), zap.Error(err))
	} else if len(orders) > 0 {
		ledger, seqErr := e.executor.CancelSequence(ctx, orders)
		result.OpenOrders = len(orders)
		result.Cancelled = ledger.Cancelled()
		result.CancelFailed = len(orders) - result.Cancelled
		result.CancelErr = ledger.Err()
		if seqErr != nil && result.CancelErr == nil {
			result.CancelErr = seqErr
		}
		e.logger.Info("Open orders cancelled",
			zap.String("symbol", symbol),
			zap.Int("cancelled", result.Cancelled),
			zap.Int("failed", result.CancelFailed))
	}

	// 2. Flatten position
	pos, err := e.position(ctx, symbol)
	if err != nil {
		result.PositionErr = err
		e.logger.Warn("Unwind could not read position", zap.String("symbol", symbol), zap.Error(err))
	} else if pos.IsOpen() {
		result.CloseSide = pos.CloseSide()
		result.ClosedSize = math.Abs(pos.Size)
		order, err := e.executor.Close(ctx, domain.OrderRequest{
			Symbol: symbol,
			Side:   result.CloseSide,
			Amount: result.ClosedSize,
		})
		if err != nil {
			result.CloseErr = err
			e.logger.Error("Unwind failed to close position",
				zap.String("symbol", symbol),
				zap.Float64("size", pos.Size),
				zap.Error(err))
		} else {
			result.CloseOrder = order
		}
	}

	// 3. Drop strategy state
	for _, rec := range e.registry.RemoveSymbol(symbol) {
		advance(ctx, rec, triggerRemove)
		result.Removed = append(result.Removed, rec.Kind)
	}

	switch {
	case result.Failed():
		result.Outcome = domain.OutcomePartial
	case result.OpenOrders == 0 && result.CloseOrder == nil && len(result.Removed) == 0:
		result.Outcome = domain.OutcomeNoOp
	default:
		result.Outcome = domain.OutcomeCompleted
	}
	e.metrics.Inc("unwind." + strings.ToLower(string(result.Outcome)))

	e.logger.Info("Symbol unwound",
		zap.String("symbol", symbol),
		zap.String("outcome", string(result.Outcome)),
		zap.Int("cancelled", result.Cancelled),
		zap.Float64("closed_size", result.ClosedSize),
		zap.Int("strategies_removed", len(result.Removed)))
	return result
}
