package usecase

import (
	"context"
	"fmt"

	"github.com/vitos/edgex_trade_bot/internal/domain"
	"go.uber.org/zap"
)

// TrendAction applies the trend decision table:
//
//	UP   and no long position -> BUY
//	DOWN and a long position  -> SELL
//	anything else             -> no action
func TrendAction(signal domain.TrendSignal, pos *domain.Position) (domain.OrderSide, bool) {
	long := pos != nil && pos.Size > 0
	switch {
	case signal == domain.TrendUp && !long:
		return domain.SideBuy, true
	case signal == domain.TrendDown && long:
		return domain.SideSell, true
	default:
		return "", false
	}
}

// EvaluateTrend asks the trend provider for a signal and, when the decision
// table calls for it, places one market order of size. A position that cannot
// be read is treated as no position.
func (e *Engine) EvaluateTrend(ctx context.Context, symbol string, size float64, leverage int) (*TrendResult, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if size <= 0 || leverage < 0 {
		return nil, fmt.Errorf("%w: size must be positive and leverage non-negative", domain.ErrInvalidParams)
	}
	if leverage == 0 {
		leverage = e.cfg.DefaultLeverage
	}
	if e.trend == nil {
		return nil, fmt.Errorf("%w: no trend signal provider configured", domain.ErrInvalidParams)
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
		e.logger.Warn("Trend strategy aborted", zap.String("symbol", symbol), zap.Error(err))
		return nil, err
	}

	pos, err := e.position(ctx, symbol)
	if err != nil {
		e.logger.Warn("Trend strategy could not read position, assuming flat", zap.String("symbol", symbol), zap.Error(err))
		pos = nil
	}

	callCtx, cancel := e.executor.callContext(ctx)
	signal, err := e.trend.Signal(callCtx, symbol)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("trend signal %s: %w", symbol, err)
	}

	result := &TrendResult{
		Symbol:   symbol,
		Signal:   signal,
		Price:    price,
		Position: pos,
		Outcome:  domain.OutcomeNoOp,
	}
	side, act := TrendAction(signal, pos)
	e.logger.Info("Trend evaluated",
		zap.String("symbol", symbol),
		zap.String("signal", string(signal)),
		zap.Float64("price", price),
		zap.Bool("action", act))
	if !act {
		return result, nil
	}

	order, err := e.executor.Execute(ctx, domain.KindTrend, domain.OrderRequest{
		Symbol:   symbol,
		Side:     side,
		Type:     domain.OrderTypeMarket,
		Amount:   size,
		Leverage: leverage,
	})
	if err != nil {
		return result, fmt.Errorf("%w: trend %s order: %w", domain.ErrNoOrdersPlaced, side, err)
	}

	rec := &domain.StrategyRecord{
		Kind:   domain.KindTrend,
		Symbol: symbol,
		Params: domain.StrategyParams{Size: size, Leverage: leverage},
		Orders: []domain.OrderReference{*order},
	}
	e.register(ctx, rec)

	result.Order = order
	result.Outcome = domain.OutcomeEstablished
	result.Record = rec.Clone()
	return result, nil
}
