package usecase

import (
	"fmt"

	"github.com/vitos/edgex_trade_bot/internal/domain"
	"go.uber.org/multierr"
)

type Disposition string

const (
	DispositionPlaced   Disposition = "PLACED"
	DispositionRejected Disposition = "REJECTED"
	// DispositionSkipped marks a request never sent, e.g. above the size limit.
	DispositionSkipped   Disposition = "SKIPPED"
	DispositionCancelled Disposition = "CANCELLED"
)

type LedgerEntry struct {
	Request     domain.OrderRequest
	Order       *domain.OrderReference
	Disposition Disposition
	Err         error
}

// OrderLedger records, in submission order, every order a strategy operation
// attempted and what became of it.
type OrderLedger struct {
	entries []LedgerEntry
}

func (l *OrderLedger) recordPlaced(req domain.OrderRequest, ref *domain.OrderReference) {
	l.entries = append(l.entries, LedgerEntry{Request: req, Order: ref, Disposition: DispositionPlaced})
}

func (l *OrderLedger) recordFailed(req domain.OrderRequest, d Disposition, err error) {
	l.entries = append(l.entries, LedgerEntry{Request: req, Disposition: d, Err: err})
}

func (l *OrderLedger) Entries() []LedgerEntry {
	if l == nil {
		return nil
	}
	return append([]LedgerEntry(nil), l.entries...)
}

// Orders returns references of the placed orders in submission order.
func (l *OrderLedger) Orders() []domain.OrderReference {
	if l == nil {
		return nil
	}
	var out []domain.OrderReference
	for _, e := range l.entries {
		if e.Disposition == DispositionPlaced && e.Order != nil {
			out = append(out, *e.Order)
		}
	}
	return out
}

func (l *OrderLedger) Placed() int {
	return len(l.Orders())
}

func (l *OrderLedger) Failed() int {
	if l == nil {
		return 0
	}
	n := 0
	for _, e := range l.entries {
		if e.Disposition == DispositionRejected || e.Disposition == DispositionSkipped {
			n++
		}
	}
	return n
}

func (l *OrderLedger) Cancelled() int {
	if l == nil {
		return 0
	}
	n := 0
	for _, e := range l.entries {
		if e.Disposition == DispositionCancelled {
			n++
		}
	}
	return n
}

// Err combines the errors of every failed entry, or returns nil.
func (l *OrderLedger) Err() error {
	if l == nil {
		return nil
	}
	var err error
	for _, e := range l.entries {
		if e.Err != nil {
			err = multierr.Append(err, fmt.Errorf("%s %s @ %g: %w", e.Request.Side, e.Request.Type, e.Request.Price, e.Err))
		}
	}
	return err
}
