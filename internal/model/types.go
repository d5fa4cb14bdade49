package model

import "github.com/shopspring/decimal"

// Side is the direction of a position.
type Side string

const (
	SideLong  Side = "B" // Buy / long
	SideShort Side = "S" // Sell / short
)

// Sign returns +1 for long and -1 for anything else.
func (s Side) Sign() int64 {
	if s == SideLong {
		return 1
	}
	return -1
}

// -----------------------------------------------------------------------------
// Reference Types
// -----------------------------------------------------------------------------

// MarketDefinition describes a tradeable perpetual market.
type MarketDefinition struct {
	Symbol      string // Primary key (e.g., "ETHRUSDPERP")
	BaseAsset   string // e.g., "ETH"
	QuoteAsset  string // e.g., "RUSD"
	MaxLeverage string // Empty if the exchange does not report one
}

// -----------------------------------------------------------------------------
// Streamed Types
// -----------------------------------------------------------------------------

// Position is one raw position record for an account.
// Records for the same (AccountID, Symbol) supersede each other by
// LastTradeSequenceNumber.
type Position struct {
	ExchangeID              int64
	Symbol                  string
	AccountID               int64
	Qty                     decimal.Decimal // Unsigned size; direction is in Side
	Side                    Side
	AvgEntryPrice           decimal.Decimal
	AvgEntryFundingValue    decimal.Decimal
	LastTradeSequenceNumber int64
}

// Key identifies the record a position update supersedes.
func (p Position) Key() PositionKey {
	return PositionKey{AccountID: p.AccountID, Symbol: p.Symbol}
}

// SignedQty returns Qty with the side applied.
func (p Position) SignedQty() decimal.Decimal {
	if p.Side == SideLong {
		return p.Qty
	}
	return p.Qty.Neg()
}

// PositionKey is the merge key for raw positions.
type PositionKey struct {
	AccountID int64
	Symbol    string
}

// Price is the latest price for a symbol.
type Price struct {
	Symbol      string
	OraclePrice decimal.Decimal // Zero when absent
	PoolPrice   decimal.Decimal // Zero when absent
	UpdatedAt   int64           // ms since epoch
}

// -----------------------------------------------------------------------------
// Derived Types
// -----------------------------------------------------------------------------

// AggregatedPosition is the per-symbol net of all raw positions.
type AggregatedPosition struct {
	Symbol        string
	NetQty        decimal.Decimal // Signed
	Side          Side            // SideLong when NetQty >= 0
	MarkPrice     decimal.Decimal
	PositionValue decimal.Decimal // |NetQty| * MarkPrice
	MaxLeverage   string
}

// Size returns the absolute net quantity.
func (a AggregatedPosition) Size() decimal.Decimal {
	return a.NetQty.Abs()
}
