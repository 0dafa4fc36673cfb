package usecase

import (
	"fmt"

	"github.com/vitos/edgex_trade_bot/internal/domain"
)

// PlacementResult reports a grid or DCA establishment.
type PlacementResult struct {
	Kind      domain.StrategyKind
	Symbol    string
	Requested int
	Outcome   domain.Outcome
	// Record is the registered strategy; nil when no order was placed.
	Record *domain.StrategyRecord
	Ledger *OrderLedger
}

func (r *PlacementResult) Placed() int { return r.Ledger.Placed() }
func (r *PlacementResult) Failed() int { return r.Ledger.Failed() }

// Err combines the per-level placement failures, nil if there were none.
func (r *PlacementResult) Err() error { return r.Ledger.Err() }

func (r *PlacementResult) String() string {
	if r.Outcome == domain.OutcomeNoOp {
		return fmt.Sprintf("%s %s: no eligible levels", r.Kind, r.Symbol)
	}
	return fmt.Sprintf("%s %s: %d/%d orders placed (%d failed)", r.Kind, r.Symbol, r.Placed(), r.Requested, r.Failed())
}

// ScalpResult reports a scalp entry. TakeProfitOrder is nil when the take-profit
// placement failed after a successful entry.
type ScalpResult struct {
	Symbol          string
	EntryPrice      float64
	BuyOrder        *domain.OrderReference
	TakeProfitOrder *domain.OrderReference
	TakeProfitErr   error
	Levels          domain.DerivedLevels
	Outcome         domain.Outcome
	Record          *domain.StrategyRecord
}

func (r *ScalpResult) String() string {
	tp := "take-profit placed"
	if r.TakeProfitOrder == nil {
		tp = "take-profit NOT placed"
	}
	return fmt.Sprintf("SCALP %s: bought at ~%.2f, %s at %.2f, advisory stop %.2f",
		r.Symbol, r.EntryPrice, tp, r.Levels.TakeProfit, r.Levels.StopLoss)
}

// TrendResult reports a trend evaluation. Order is nil when the signal called
// for no action.
type TrendResult struct {
	Symbol   string
	Signal   domain.TrendSignal
	Price    float64
	Position *domain.Position
	Order    *domain.OrderReference
	Outcome  domain.Outcome
	Record   *domain.StrategyRecord
}

func (r *TrendResult) String() string {
	if r.Order == nil {
		return fmt.Sprintf("TREND %s: signal %s, no action", r.Symbol, r.Signal)
	}
	return fmt.Sprintf("TREND %s: signal %s, market %s %g at ~%.2f", r.Symbol, r.Signal, r.Order.Side, r.Order.Amount, r.Price)
}

// UnwindResult reports what an unwind did for one symbol.
type UnwindResult struct {
	Symbol string
	// OpenOrders is the number of open orders found; Cancelled + CancelFailed == OpenOrders.
	OpenOrders   int
	Cancelled    int
	CancelFailed int
	CancelErr    error
	// OrdersErr is set when the open orders could not be listed.
	OrdersErr error
	// PositionErr is set when the position could not be read.
	PositionErr error
	CloseSide   domain.OrderSide
	ClosedSize  float64
	CloseOrder  *domain.OrderReference
	CloseErr    error
	Removed     []domain.StrategyKind
	Outcome     domain.Outcome
}

func (r *UnwindResult) Failed() bool {
	return r.CancelFailed > 0 || r.OrdersErr != nil || r.PositionErr != nil || r.CloseErr != nil
}

func (r *UnwindResult) String() string {
	s := fmt.Sprintf("STOP %s: %d/%d orders cancelled", r.Symbol, r.Cancelled, r.OpenOrders)
	switch {
	case r.CloseOrder != nil:
		s += fmt.Sprintf(", position closed (%s %g)", r.CloseSide, r.ClosedSize)
	case r.CloseErr != nil:
		s += fmt.Sprintf(", position close FAILED (%s %g)", r.CloseSide, r.ClosedSize)
	}
	if len(r.Removed) > 0 {
		s += fmt.Sprintf(", %d strategies removed", len(r.Removed))
	}
	return s
}
