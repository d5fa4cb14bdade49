package store

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rickgao/reya-positions/internal/model"
	"github.com/rickgao/reya-positions/internal/positions"
)

// PriceStats counts price updates by outcome.
type PriceStats struct {
	Symbols    int
	Applied    int64
	Suppressed int64 // Dropped as insignificant
	Version    uint64
}

// PriceStore holds one price per symbol. An update replaces the stored
// price only when the symbol is new or its mark price moved by more than
// the significance threshold.
type PriceStore struct {
	threshold decimal.Decimal

	mu         sync.RWMutex
	prices     map[string]model.Price
	version    uint64
	applied    int64
	suppressed int64
}

// NewPriceStore creates a store. A negative threshold is treated as zero,
// so every change is applied.
func NewPriceStore(threshold decimal.Decimal) *PriceStore {
	if threshold.IsNegative() {
		threshold = decimal.Zero
	}
	return &PriceStore{
		threshold: threshold,
		prices:    make(map[string]model.Price),
	}
}

// Update applies a batch and returns how many prices were stored.
func (s *PriceStore) Update(batch []model.Price) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for _, p := range batch {
		if p.Symbol == "" {
			continue
		}
		old, ok := s.prices[p.Symbol]
		if ok && !positions.IsSignificantWithin(positions.MarkOf(old), positions.MarkOf(p), s.threshold) {
			s.suppressed++
			continue
		}
		s.prices[p.Symbol] = p
		s.applied++
		n++
	}
	if n > 0 {
		s.version++
	}
	return n
}

// Get returns the stored price for symbol.
func (s *PriceStore) Get(symbol string) (model.Price, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[symbol]
	return p, ok
}

// Snapshot returns a copy of all stored prices keyed by symbol.
func (s *PriceStore) Snapshot() map[string]model.Price {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.Price, len(s.prices))
	for k, v := range s.prices {
		out[k] = v
	}
	return out
}

// Version increases every time Update stores at least one price.
func (s *PriceStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Stats returns update counters.
func (s *PriceStore) Stats() PriceStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return PriceStats{
		Symbols:    len(s.prices),
		Applied:    s.applied,
		Suppressed: s.suppressed,
		Version:    s.version,
	}
}
