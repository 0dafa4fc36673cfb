package domain

import "errors"

var (
	// ErrPriceUnavailable means no live price could be obtained; the operation
	// was aborted before any order was sent.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrNoOrdersPlaced means every placement of a multi-order strategy failed.
	ErrNoOrdersPlaced = errors.New("no orders placed")
	// ErrEntryFailed means the entry order of a scalp was rejected.
	ErrEntryFailed = errors.New("entry order failed")
	// ErrEngineStopped is returned once the engine has begun shutting down.
	ErrEngineStopped     = errors.New("engine stopped")
	ErrInvalidParams     = errors.New("invalid parameters")
	ErrSizeLimit         = errors.New("order size exceeds max position size")
	ErrUnsupportedSymbol = errors.New("unsupported symbol")
	// ErrTransport wraps every failure reported by the exchange boundary.
	ErrTransport = errors.New("exchange transport failure")
)
