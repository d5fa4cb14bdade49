package positions

import (
	"github.com/shopspring/decimal"

	"github.com/rickgao/reya-positions/internal/model"
)

// DefaultSignificanceThreshold is the relative mark-price move below which
// a price update is not worth publishing (0.01%).
var DefaultSignificanceThreshold = decimal.RequireFromString("0.0001")

// Aggregate nets raw positions per symbol and values each row.
//
// The first pass folds signed quantities; the second derives mark price,
// value and side from the final net so the result does not depend on
// record order.
func Aggregate(raw []model.Position, prices map[string]model.Price) map[string]model.AggregatedPosition {
	out := make(map[string]model.AggregatedPosition, len(raw))

	for _, p := range raw {
		agg := out[p.Symbol]
		agg.Symbol = p.Symbol
		agg.NetQty = agg.NetQty.Add(p.SignedQty())
		out[p.Symbol] = agg
	}

	for symbol, agg := range out {
		agg.MarkPrice = MarkPrice(symbol, prices)
		agg.PositionValue = PositionValue(agg.NetQty, agg.MarkPrice)
		agg.Side = SideOf(agg.NetQty)
		out[symbol] = agg
	}

	return out
}

// WithMaxLeverage copies market leverage limits onto aggregated rows.
// Rows without a matching market keep an empty MaxLeverage.
func WithMaxLeverage(rows map[string]model.AggregatedPosition, markets map[string]model.MarketDefinition) {
	for symbol, row := range rows {
		if m, ok := markets[symbol]; ok {
			row.MaxLeverage = m.MaxLeverage
			rows[symbol] = row
		}
	}
}

// MarkPrice picks the oracle price when it is non-zero and falls back to
// the pool price. A symbol without any price is marked at zero.
func MarkPrice(symbol string, prices map[string]model.Price) decimal.Decimal {
	p, ok := prices[symbol]
	if !ok {
		return decimal.Zero
	}
	return MarkOf(p)
}

// MarkOf returns the mark price of a single price record.
func MarkOf(p model.Price) decimal.Decimal {
	if !p.OraclePrice.IsZero() {
		return p.OraclePrice
	}
	return p.PoolPrice
}

// PositionValue returns |qty| * mark.
func PositionValue(qty, mark decimal.Decimal) decimal.Decimal {
	return qty.Abs().Mul(mark)
}

// SideOf returns SideLong for a non-negative net quantity.
func SideOf(net decimal.Decimal) model.Side {
	if net.Sign() >= 0 {
		return model.SideLong
	}
	return model.SideShort
}

// IsSignificant reports whether moving from prev to next exceeds the
// default threshold. A zero prev price is always significant.
func IsSignificant(prev, next decimal.Decimal) bool {
	return IsSignificantWithin(prev, next, DefaultSignificanceThreshold)
}

// IsSignificantWithin is IsSignificant with an explicit relative threshold.
func IsSignificantWithin(prev, next, threshold decimal.Decimal) bool {
	if prev.IsZero() {
		return true
	}
	change := next.Sub(prev).Div(prev).Abs()
	return change.GreaterThan(threshold)
}
