package usecase

import (
	"context"
	"fmt"

	"github.com/vitos/edgex_trade_bot/internal/domain"
	"go.uber.org/zap"
)

// ScalpLevels returns the take-profit and advisory stop-loss prices around entry.
func ScalpLevels(entry, profitPercent, stopPercent float64) domain.DerivedLevels {
	return domain.DerivedLevels{
		TakeProfit: entry * (1 + profitPercent/100),
		StopLoss:   entry * (1 - stopPercent/100),
	}
}

// EstablishScalp buys size at market and rests a limit sell at the take-profit
// price. The stop-loss price is recorded only; no stop order is sent, so the
// emergency check of the position monitor is the only protection.
// If the entry fails nothing else is attempted.
func (e *Engine) EstablishScalp(ctx context.Context, symbol string, profitPercent, stopPercent, size float64) (*ScalpResult, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if profitPercent <= 0 || size <= 0 {
		return nil, fmt.Errorf("%w: profit percent and size must be positive", domain.ErrInvalidParams)
	}
	if stopPercent <= 0 || stopPercent >= 100 {
		return nil, fmt.Errorf("%w: stop percent must be in (0, 100)", domain.ErrInvalidParams)
	}

	done, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer done()
	unlock := e.registry.Lock(symbol)
	defer unlock()
	ctx = operationContext(ctx)

	price, err := e.currentPrice(ctx, symbol)
	if err != nil {
		e.logger.Warn("Scalp strategy aborted", zap.String("symbol", symbol), zap.Error(err))
		return nil, err
	}

	e.logger.Info("Scalp strategy starting",
		zap.String("symbol", symbol),
		zap.Float64("profit_pct", profitPercent),
		zap.Float64("stop_pct", stopPercent),
		zap.Float64("size", size),
		zap.Float64("price", price))

	buy, err := e.executor.Execute(ctx, domain.KindScalp, domain.OrderRequest{
		Symbol: symbol,
		Side:   domain.SideBuy,
		Type:   domain.OrderTypeMarket,
		Amount: size,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEntryFailed, err)
	}

	levels := ScalpLevels(price, profitPercent, stopPercent)
	result := &ScalpResult{
		Symbol:     symbol,
		EntryPrice: price,
		BuyOrder:   buy,
		Levels:     levels,
		Outcome:    domain.OutcomeEstablished,
	}

	tp, err := e.executor.Execute(ctx, domain.KindScalp, domain.OrderRequest{
		Symbol: symbol,
		Side:   domain.SideSell,
		Type:   domain.OrderTypeLimit,
		Amount: size,
		Price:  levels.TakeProfit,
	})
	orders := []domain.OrderReference{*buy}
	if err != nil {
		result.TakeProfitErr = err
		result.Outcome = domain.OutcomePartial
	} else {
		result.TakeProfitOrder = tp
		orders = append(orders, *tp)
	}

	rec := &domain.StrategyRecord{
		Kind:   domain.KindScalp,
		Symbol: symbol,
		Params: domain.StrategyParams{ProfitPercent: profitPercent, StopPercent: stopPercent, Size: size},
		Orders: orders,
		Levels: &levels,
	}
	e.register(ctx, rec)
	result.Record = rec.Clone()

	e.logger.Info("Scalp strategy established",
		zap.String("symbol", symbol),
		zap.Float64("take_profit", levels.TakeProfit),
		zap.Float64("stop_loss", levels.StopLoss),
		zap.Bool("take_profit_placed", result.TakeProfitOrder != nil))
	return result, nil
}
