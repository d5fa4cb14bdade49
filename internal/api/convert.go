package api

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rickgao/reya-positions/internal/model"
)

// ParseDecimal converts an API numeric string to a decimal.
// Returns zero for empty or invalid input.
func ParseDecimal(s FlexString) decimal.Decimal {
	str := strings.TrimSpace(string(s))
	if str == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(str)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ToModel converts an APIMarketDefinition to a model.MarketDefinition.
func (m *APIMarketDefinition) ToModel() model.MarketDefinition {
	return model.MarketDefinition{
		Symbol:      m.Symbol,
		BaseAsset:   m.BaseAsset,
		QuoteAsset:  m.QuoteAsset,
		MaxLeverage: string(m.MaxLeverage),
	}
}

// ToModel converts an APIPosition to a model.Position.
// Any side other than "B" is treated as short.
func (p *APIPosition) ToModel() model.Position {
	side := model.SideShort
	if p.Side == string(model.SideLong) {
		side = model.SideLong
	}
	return model.Position{
		ExchangeID:              p.ExchangeID,
		Symbol:                  p.Symbol,
		AccountID:               p.AccountID,
		Qty:                     ParseDecimal(p.Qty),
		Side:                    side,
		AvgEntryPrice:           ParseDecimal(p.AvgEntryPrice),
		AvgEntryFundingValue:    ParseDecimal(p.AvgEntryFundingValue),
		LastTradeSequenceNumber: p.LastTradeSequenceNumber,
	}
}

// ToModel converts an APIPrice to a model.Price.
func (p *APIPrice) ToModel() model.Price {
	return model.Price{
		Symbol:      p.Symbol,
		OraclePrice: ParseDecimal(p.OraclePrice),
		PoolPrice:   ParseDecimal(p.PoolPrice),
		UpdatedAt:   p.UpdatedAt,
	}
}

// PositionsToModel converts a slice of API positions.
func PositionsToModel(in []APIPosition) []model.Position {
	out := make([]model.Position, len(in))
	for i := range in {
		out[i] = in[i].ToModel()
	}
	return out
}

// PricesToModel converts a slice of API prices.
func PricesToModel(in []APIPrice) []model.Price {
	out := make([]model.Price, len(in))
	for i := range in {
		out[i] = in[i].ToModel()
	}
	return out
}
