package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/vitos/edgex_trade_bot/internal/domain"
	"go.uber.org/zap"
)

const DCALevelCount = 5

// DCALevels computes the DCA ladder for i = 1..5: price = target*(1-step*i/100),
// amount = base*i. Only levels strictly below the current market price are
// returned, in order of decreasing price.
func DCALevels(symbol string, target, stepPercent, base, market float64) []domain.OrderRequest {
	var levels []domain.OrderRequest
	for i := 1; i <= DCALevelCount; i++ {
		price := target * (1 - stepPercent*float64(i)/100)
		if price >= market {
			continue
		}
		levels = append(levels, domain.OrderRequest{
			Symbol: symbol,
			Side:   domain.SideBuy,
			Type:   domain.OrderTypeLimit,
			Amount: base * float64(i),
			Price:  price,
		})
	}
	return levels
}

// EstablishDCA places the DCA buy ladder below the market. Having no eligible
// level is a no-op, not an error.
func (e *Engine) EstablishDCA(ctx context.Context, symbol string, target, stepPercent, base float64) (*PlacementResult, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if target <= 0 || base <= 0 {
		return nil, fmt.Errorf("%w: target and base amount must be positive", domain.ErrInvalidParams)
	}
	if stepPercent <= 0 || stepPercent*DCALevelCount >= 100 {
		return nil, fmt.Errorf("%w: step percent must be in (0, %g)", domain.ErrInvalidParams, 100.0/DCALevelCount)
	}

	done, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer done()
	unlock := e.registry.Lock(symbol)
	defer unlock()
	ctx = operationContext(ctx)

	market, err := e.currentPrice(ctx, symbol)
	if err != nil {
		e.logger.Warn("DCA strategy aborted", zap.String("symbol", symbol), zap.Error(err))
		return nil, err
	}

	e.logger.Info("DCA strategy starting",
		zap.String("symbol", symbol),
		zap.Float64("target", target),
		zap.Float64("step_pct", stepPercent),
		zap.Float64("base", base),
		zap.Float64("market", market))

	levels := DCALevels(symbol, target, stepPercent, base, market)
	result := &PlacementResult{
		Kind:      domain.KindDCA,
		Symbol:    symbol,
		Requested: len(levels),
		Ledger:    &OrderLedger{},
		Outcome:   domain.OutcomeNoOp,
	}
	if len(levels) == 0 {
		e.logger.Info("DCA strategy has no level below market", zap.String("symbol", symbol))
		return result, nil
	}

	ledger, seqErr := e.executor.ExecuteSequence(ctx, domain.KindDCA, levels)
	result.Ledger = ledger
	result.Outcome = placementOutcome(ledger, len(levels), seqErr != nil)
	if ledger.Placed() == 0 {
		e.logger.Warn("DCA strategy placed no orders", zap.String("symbol", symbol), zap.Error(ledger.Err()))
		return result, errors.Join(domain.ErrNoOrdersPlaced, seqErr, ledger.Err())
	}

	result.Record = &domain.StrategyRecord{
		Kind:   domain.KindDCA,
		Symbol: symbol,
		Params: domain.StrategyParams{TargetPrice: target, StepPercent: stepPercent, Size: base},
		Orders: ledger.Orders(),
	}
	e.register(ctx, result.Record)
	result.Record = result.Record.Clone()

	e.logger.Info("DCA strategy established",
		zap.String("symbol", symbol),
		zap.Int("placed", ledger.Placed()),
		zap.Int("requested", len(levels)))
	return result, seqErr
}
