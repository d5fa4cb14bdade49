package store

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/reya-positions/internal/model"
	"github.com/rickgao/reya-positions/internal/positions"
)

// MarketLookup supplies market definitions for max-leverage enrichment.
type MarketLookup interface {
	Definitions() map[string]model.MarketDefinition
	Version() uint64
}

// View is a sorted, read-only rendering of the portfolio.
type View struct {
	Rows       []model.AggregatedPosition
	TotalValue decimal.Decimal
	Sort       positions.SortState
	Loading    bool
	Error      string
	UpdatedAt  time.Time
}

// Portfolio aggregates the position store against the price store. The
// aggregate is memoized and rebuilt only after a store version changes.
type Portfolio struct {
	prices    *PriceStore
	positions *PositionStore
	markets   MarketLookup // May be nil

	mu          sync.Mutex
	priceVer    uint64
	positionVer uint64
	marketVer   uint64
	cached      map[string]model.AggregatedPosition
	computed    bool
	recomputes  int64
}

// NewPortfolio creates a portfolio over the given stores. markets may be nil.
func NewPortfolio(prices *PriceStore, positionStore *PositionStore, markets MarketLookup) *Portfolio {
	return &Portfolio{
		prices:    prices,
		positions: positionStore,
		markets:   markets,
	}
}

// Aggregated returns the aggregated rows keyed by symbol. The map is a
// copy the caller may keep.
func (p *Portfolio) Aggregated() map[string]model.AggregatedPosition {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.refreshLocked()

	out := make(map[string]model.AggregatedPosition, len(p.cached))
	for k, v := range p.cached {
		out[k] = v
	}
	return out
}

// View returns the aggregated rows ordered by state, with their total value
// and the position store's load state.
func (p *Portfolio) View(state positions.SortState) View {
	rows := positions.Sort(positions.Rows(p.Aggregated()), state)

	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.PositionValue)
	}

	ps := p.positions.State()
	return View{
		Rows:       rows,
		TotalValue: total,
		Sort:       state,
		Loading:    ps.Loading,
		Error:      ps.Error,
		UpdatedAt:  ps.UpdatedAt,
	}
}

// Recomputes reports how many times the aggregate has been rebuilt.
func (p *Portfolio) Recomputes() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recomputes
}

func (p *Portfolio) refreshLocked() {
	priceVer := p.prices.Version()
	positionVer := p.positions.Version()
	var marketVer uint64
	if p.markets != nil {
		marketVer = p.markets.Version()
	}

	if p.computed && priceVer == p.priceVer && positionVer == p.positionVer && marketVer == p.marketVer {
		return
	}

	agg := positions.Aggregate(p.positions.Snapshot(), p.prices.Snapshot())
	if p.markets != nil {
		positions.WithMaxLeverage(agg, p.markets.Definitions())
	}

	p.cached = agg
	p.priceVer = priceVer
	p.positionVer = positionVer
	p.marketVer = marketVer
	p.computed = true
	p.recomputes++
}
