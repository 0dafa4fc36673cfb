package domain

import "time"

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderRequest is what the engine asks the exchange to place.
// Price is ignored for market orders.
type OrderRequest struct {
	Symbol   string
	Side     OrderSide
	Type     OrderType
	Amount   float64
	Price    float64
	Leverage int
	ClientID string
}

// OrderReference identifies an order accepted by the exchange together with the
// parameters it was created from. It is never mutated after creation.
type OrderReference struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Side      OrderSide `json:"side"`
	Type      OrderType `json:"type"`
	Price     float64   `json:"price"` // zero for market orders
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// HasPrice reports whether the order was created with a limit price.
func (o OrderReference) HasPrice() bool {
	return o.Type == OrderTypeLimit && o.Price > 0
}

// Position is a live snapshot of an exchange position. Size is signed:
// positive for long, negative for short. Snapshots are never cached.
type Position struct {
	Symbol        string
	Size          float64
	EntryPrice    float64
	UnrealizedPnL float64
	Notional      float64
}

func (p *Position) IsOpen() bool {
	return p != nil && p.Size != 0
}

// CloseSide is the side of the market order that flattens the position.
func (p *Position) CloseSide() OrderSide {
	if p.Size > 0 {
		return SideSell
	}
	return SideBuy
}

// PnLPercent returns unrealized PnL as a percentage of notional. The second
// value is false when either figure is missing.
func (p *Position) PnLPercent() (float64, bool) {
	if p == nil || p.UnrealizedPnL == 0 || p.Notional == 0 {
		return 0, false
	}
	notional := p.Notional
	if notional < 0 {
		notional = -notional
	}
	return p.UnrealizedPnL / notional * 100, true
}

// AccountSnapshot holds account balances in quote currency.
type AccountSnapshot struct {
	TotalBalance     float64
	AvailableBalance float64
	MarginBalance    float64
}
