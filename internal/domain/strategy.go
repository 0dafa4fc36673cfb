package domain

import (
	"fmt"
	"time"
)

type StrategyKind string

const (
	KindGrid  StrategyKind = "GRID"
	KindDCA   StrategyKind = "DCA"
	KindScalp StrategyKind = "SCALP"
	KindTrend StrategyKind = "TREND"
)

type StrategyState string

const (
	StateEstablished StrategyState = "ESTABLISHED"
	StateUnwinding   StrategyState = "UNWINDING"
	StateRemoved     StrategyState = "REMOVED"
)

// StrategyKey identifies a registry slot. At most one record exists per key.
type StrategyKey struct {
	Symbol string
	Kind   StrategyKind
}

func (k StrategyKey) String() string {
	return fmt.Sprintf("%s_%s", k.Symbol, k.Kind)
}

// StrategyParams holds the numeric inputs of a strategy. Only the fields of the
// record's kind are set:
//   - GRID:  CenterPrice, Spacing, Size
//   - DCA:   TargetPrice, StepPercent, Size (base amount)
//   - SCALP: ProfitPercent, StopPercent, Size
//   - TREND: Size, Leverage
type StrategyParams struct {
	CenterPrice   float64 `json:"center_price,omitempty"`
	Spacing       float64 `json:"spacing,omitempty"`
	TargetPrice   float64 `json:"target_price,omitempty"`
	StepPercent   float64 `json:"step_percent,omitempty"`
	ProfitPercent float64 `json:"profit_percent,omitempty"`
	StopPercent   float64 `json:"stop_percent,omitempty"`
	Size          float64 `json:"size"`
	Leverage      int     `json:"leverage,omitempty"`
}

// DerivedLevels are the scalp bracket prices computed at entry. The stop level
// is advisory: no exchange order backs it.
type DerivedLevels struct {
	TakeProfit float64 `json:"take_profit"`
	StopLoss   float64 `json:"stop_loss"`
}

type StrategyRecord struct {
	Kind      StrategyKind     `json:"kind"`
	Symbol    string           `json:"symbol"`
	Params    StrategyParams   `json:"params"`
	Orders    []OrderReference `json:"orders"`
	Levels    *DerivedLevels   `json:"levels,omitempty"`
	State     StrategyState    `json:"state"`
	CreatedAt time.Time        `json:"created_at"`
}

func (r *StrategyRecord) Key() StrategyKey {
	return StrategyKey{Symbol: r.Symbol, Kind: r.Kind}
}

// Clone returns a deep copy safe to hand out of the registry.
func (r *StrategyRecord) Clone() *StrategyRecord {
	c := *r
	c.Orders = append([]OrderReference(nil), r.Orders...)
	if r.Levels != nil {
		lv := *r.Levels
		c.Levels = &lv
	}
	return &c
}

type TrendSignal string

const (
	TrendUp   TrendSignal = "UP"
	TrendDown TrendSignal = "DOWN"
	TrendFlat TrendSignal = "FLAT"
)

// Outcome classifies a completed engine operation.
type Outcome string

const (
	OutcomeEstablished Outcome = "ESTABLISHED"
	OutcomePartial     Outcome = "PARTIAL"
	OutcomeNoOp        Outcome = "NOOP"
	// OutcomeCompleted is reported by unwind when it acted and nothing failed.
	OutcomeCompleted   Outcome = "COMPLETED"
)
