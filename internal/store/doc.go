// Package store holds the in-memory projection fed by the real-time client.
//
// PriceStore keeps the latest significant price per symbol, PositionStore
// the wallet's raw positions with their load state, and Portfolio derives
// aggregated rows from both, recomputing only when either has changed.
package store
