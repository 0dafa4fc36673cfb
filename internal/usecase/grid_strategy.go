package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/vitos/edgex_trade_bot/internal/domain"
	"go.uber.org/zap"
)

// GridLevelsPerSide is the number of resting orders on each side of the center.
const GridLevelsPerSide = 5

// GridLevels builds the grid ladder: BUY limits at center-5*spacing .. center-spacing
// followed by SELL limits at center+spacing .. center+5*spacing. The center
// itself is never a level.
func GridLevels(symbol string, center, spacing, size float64) []domain.OrderRequest {
	levels := make([]domain.OrderRequest, 0, 2*GridLevelsPerSide)
	for i := -GridLevelsPerSide; i <= GridLevelsPerSide; i++ {
		if i == 0 {
			continue
		}
		side := domain.SideBuy
		if i > 0 {
			side = domain.SideSell
		}
		levels = append(levels, domain.OrderRequest{
			Symbol: symbol,
			Side:   side,
			Type:   domain.OrderTypeLimit,
			Amount: size,
			Price:  center + float64(i)*spacing,
		})
	}
	return levels
}

// EstablishGrid places the grid ladder level by level. Failed levels are
// skipped; the grid is registered if at least one level was placed.
func (e *Engine) EstablishGrid(ctx context.Context, symbol string, center, spacing, size float64) (*PlacementResult, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if center <= 0 || spacing <= 0 || size <= 0 {
		return nil, fmt.Errorf("%w: center, spacing and size must be positive", domain.ErrInvalidParams)
	}
	if center-GridLevelsPerSide*spacing <= 0 {
		return nil, fmt.Errorf("%w: lowest grid level %g is not positive", domain.ErrInvalidParams, center-GridLevelsPerSide*spacing)
	}

	done, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer done()
	unlock := e.registry.Lock(symbol)
	defer unlock()
	ctx = operationContext(ctx)

	e.logger.Info("Grid strategy starting",
		zap.String("symbol", symbol),
		zap.Float64("center", center),
		zap.Float64("spacing", spacing),
		zap.Float64("size", size))

	levels := GridLevels(symbol, center, spacing, size)
	ledger, seqErr := e.executor.ExecuteSequence(ctx, domain.KindGrid, levels)

	result := &PlacementResult{
		Kind:      domain.KindGrid,
		Symbol:    symbol,
		Requested: len(levels),
		Ledger:    ledger,
		Outcome:   placementOutcome(ledger, len(levels), seqErr != nil),
	}
	if ledger.Placed() == 0 {
		e.logger.Warn("Grid strategy placed no orders", zap.String("symbol", symbol), zap.Error(ledger.Err()))
		return result, errors.Join(domain.ErrNoOrdersPlaced, seqErr, ledger.Err())
	}

	result.Record = &domain.StrategyRecord{
		Kind:   domain.KindGrid,
		Symbol: symbol,
		Params: domain.StrategyParams{CenterPrice: center, Spacing: spacing, Size: size},
		Orders: ledger.Orders(),
	}
	e.register(ctx, result.Record)
	result.Record = result.Record.Clone()

	e.logger.Info("Grid strategy established",
		zap.String("symbol", symbol),
		zap.Int("placed", ledger.Placed()),
		zap.Int("requested", len(levels)))
	return result, seqErr
}
