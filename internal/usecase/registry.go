package usecase

import (
	"sort"
	"sync"

	"github.com/vitos/edgex_trade_bot/internal/domain"
)

// Registry is the in-memory table of active strategies, keyed by (symbol, kind).
//
// Reads return copies taken under a read lock, so a caller always sees a
// consistent point-in-time view. Put and RemoveSymbol are atomic per key.
// Callers that sequence exchange calls for a symbol (establish, unwind) must
// hold Lock(symbol) for the whole sequence so the two never interleave.
type Registry struct {
	mu      sync.RWMutex
	records map[domain.StrategyKey]*domain.StrategyRecord

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{
		records: make(map[domain.StrategyKey]*domain.StrategyRecord),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Lock serializes work on one symbol and returns the matching unlock.
func (r *Registry) Lock(symbol string) func() {
	r.locksMu.Lock()
	l, ok := r.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		r.locks[symbol] = l
	}
	r.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}

// Put stores rec, replacing any record with the same key. The replaced record
// is returned, or nil.
func (r *Registry) Put(rec *domain.StrategyRecord) *domain.StrategyRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.records[rec.Key()]
	r.records[rec.Key()] = rec
	return prev
}

func (r *Registry) Get(key domain.StrategyKey) (*domain.StrategyRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[key]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// RemoveSymbol deletes every record for symbol regardless of kind and returns them.
func (r *Registry) RemoveSymbol(symbol string) []*domain.StrategyRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []*domain.StrategyRecord
	for key, rec := range r.records {
		if key.Symbol == symbol {
			removed = append(removed, rec)
			delete(r.records, key)
		}
	}
	sortRecords(removed)
	return removed
}

// updateSymbol applies fn to the stored records of symbol under the write lock.
func (r *Registry) updateSymbol(symbol string, fn func(*domain.StrategyRecord)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, rec := range r.records {
		if key.Symbol == symbol {
			fn(rec)
		}
	}
}

// BySymbol returns copies of the records for symbol.
func (r *Registry) BySymbol(symbol string) []*domain.StrategyRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.StrategyRecord
	for key, rec := range r.records {
		if key.Symbol == symbol {
			out = append(out, rec.Clone())
		}
	}
	sortRecords(out)
	return out
}

// Snapshot returns copies of all records ordered by symbol, then kind.
func (r *Registry) Snapshot() []*domain.StrategyRecord {
	r.mu.RLock()
	out := make([]*domain.StrategyRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Clone())
	}
	r.mu.RUnlock()
	sortRecords(out)
	return out
}

// Symbols returns the distinct symbols that have at least one record.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	seen := make(map[string]struct{})
	for key := range r.records {
		seen[key.Symbol] = struct{}{}
	}
	r.mu.RUnlock()

	symbols := make([]string, 0, len(seen))
	for s := range seen {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

func sortRecords(recs []*domain.StrategyRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Symbol != recs[j].Symbol {
			return recs[i].Symbol < recs[j].Symbol
		}
		return recs[i].Kind < recs[j].Kind
	})
}
