package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FlexString is a numeric field the API sends either as a JSON string or
// as a JSON number. null and absent decode to "".
type FlexString string

// UnmarshalJSON accepts "1.5", 1.5 and null.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("flex string: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

// APIMarketDefinition from GET /marketDefinitions
type APIMarketDefinition struct {
	Symbol      string     `json:"symbol"`
	BaseAsset   string     `json:"baseAsset"`
	QuoteAsset  string     `json:"quoteAsset"`
	MaxLeverage FlexString `json:"maxLeverage,omitempty"`
}

// APIPosition from GET /wallet/{address}/positions and the
// /v2/wallet/{address}/positions channel.
type APIPosition struct {
	ExchangeID              int64      `json:"exchangeId"`
	Symbol                  string     `json:"symbol"`
	AccountID               int64      `json:"accountId"`
	Qty                     FlexString `json:"qty"`
	Side                    string     `json:"side"` // "B" = long, "S" = short
	AvgEntryPrice           FlexString `json:"avgEntryPrice"`
	AvgEntryFundingValue    FlexString `json:"avgEntryFundingValue"`
	LastTradeSequenceNumber int64      `json:"lastTradeSequenceNumber"`
}

// APIPrice from the /v2/prices channel.
type APIPrice struct {
	Symbol      string     `json:"symbol"`
	OraclePrice FlexString `json:"oraclePrice"`
	PoolPrice   FlexString `json:"poolPrice"`
	UpdatedAt   int64      `json:"updatedAt"`
}
