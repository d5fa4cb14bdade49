// Package model defines shared data types used across the positions client.
//
// Conventions:
//   - Quantities and prices: shopspring/decimal, never float64
//   - Timestamps: int64 milliseconds since Unix epoch
//   - Symbols: exchange symbols as sent on the wire (e.g., "ETHRUSDPERP")
package model
