package market

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rickgao/reya-positions/internal/model"
)

// Registry keeps the exchange's market definitions current.
type Registry interface {
	// Start runs the initial sync and begins periodic reconciliation.
	Start(ctx context.Context) error

	// Stop gracefully shuts down.
	Stop(ctx context.Context) error

	// Definitions returns a copy of every known market keyed by symbol.
	Definitions() map[string]model.MarketDefinition

	// Get returns a single market by symbol.
	Get(symbol string) (model.MarketDefinition, bool)

	// Symbols returns known symbols in ascending order.
	Symbols() []string

	// Version increases whenever the set of definitions changes.
	Version() uint64

	// LastSyncAt returns when definitions were last fetched successfully.
	LastSyncAt() time.Time
}

// Source fetches market definitions. *api.Client satisfies it.
type Source interface {
	GetMarketDefinitions(ctx context.Context) ([]model.MarketDefinition, error)
}

// syncResult counts what one sync changed.
type syncResult struct {
	Added   int
	Changed int
	Removed int
}

func (r syncResult) any() bool {
	return r.Added+r.Changed+r.Removed > 0
}

// registryState is the guarded market map.
type registryState struct {
	mu         sync.RWMutex
	markets    map[string]model.MarketDefinition
	version    uint64
	lastSyncAt time.Time
}

func newState() *registryState {
	return &registryState{markets: make(map[string]model.MarketDefinition)}
}

// replaceAll swaps in a full listing. Markets missing from defs are removed.
func (s *registryState) replaceAll(defs []model.MarketDefinition, at time.Time) syncResult {
	next := make(map[string]model.MarketDefinition, len(defs))
	for _, d := range defs {
		if d.Symbol == "" {
			continue
		}
		next[d.Symbol] = d
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var res syncResult
	for symbol, d := range next {
		old, ok := s.markets[symbol]
		switch {
		case !ok:
			res.Added++
		case old != d:
			res.Changed++
		}
	}
	for symbol := range s.markets {
		if _, ok := next[symbol]; !ok {
			res.Removed++
		}
	}

	s.markets = next
	s.lastSyncAt = at
	if res.any() {
		s.version++
	}
	return res
}

func (s *registryState) definitions() map[string]model.MarketDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.MarketDefinition, len(s.markets))
	for k, v := range s.markets {
		out[k] = v
	}
	return out
}

func (s *registryState) get(symbol string) (model.MarketDefinition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.markets[symbol]
	return m, ok
}

func (s *registryState) symbols() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.markets))
	for symbol := range s.markets {
		out = append(out, symbol)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (s *registryState) getVersion() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *registryState) getLastSyncAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSyncAt
}
