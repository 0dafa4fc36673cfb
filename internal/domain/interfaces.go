package domain

import (
	"context"
	"time"
)

// Exchange defines the interface for interacting with the derivatives exchange.
// Every failure (auth, network, exchange error) is returned as an error; callers
// do not distinguish causes.
type Exchange interface {
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
	// GetPosition returns nil with a nil error when there is no position.
	GetPosition(ctx context.Context, symbol string) (*Position, error)
	PlaceOrder(ctx context.Context, req *OrderRequest) (*OrderReference, error)
	CancelOrder(ctx context.Context, orderID string) error
	// GetOpenOrders lists open orders for symbol, or for every symbol when empty.
	GetOpenOrders(ctx context.Context, symbol string) ([]OrderReference, error)
	GetAccountInfo(ctx context.Context) (*AccountSnapshot, error)
}

// CandleSource is implemented by exchanges that serve historical klines.
type CandleSource interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}

type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// TrendSignalProvider produces the directional signal consumed by the trend strategy.
type TrendSignalProvider interface {
	Signal(ctx context.Context, symbol string) (TrendSignal, error)
}

// Pacer spaces out sequential exchange calls.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Metrics receives operational counters.
type Metrics interface {
	Inc(stat string)
	Timing(stat string, d time.Duration)
}

// OrderJournal is an append-only audit trail of order activity. It is never
// read back to rebuild strategy state.
type OrderJournal interface {
	SaveEntry(ctx context.Context, entry *JournalEntry) error
	ListEntries(ctx context.Context, limit int) ([]*JournalEntry, error)
}

type JournalEvent string

const (
	EventPlaced    JournalEvent = "PLACED"
	EventRejected  JournalEvent = "REJECTED"
	EventCancelled JournalEvent = "CANCELLED"
	EventClosed    JournalEvent = "CLOSED"
)

type JournalEntry struct {
	ID        int64        `json:"id"`
	Event     JournalEvent `json:"event"`
	Strategy  StrategyKind `json:"strategy,omitempty"`
	OrderID   string       `json:"order_id,omitempty"`
	Symbol    string       `json:"symbol"`
	Side      OrderSide    `json:"side,omitempty"`
	Type      OrderType    `json:"type,omitempty"`
	Amount    float64      `json:"amount"`
	Price     float64      `json:"price"`
	Reason    string       `json:"reason,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
