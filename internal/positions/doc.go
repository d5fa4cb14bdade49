// Package positions implements the reconciliation engine.
//
// It folds raw per-account position records into one row per symbol,
// values them against the latest mark price, merges streamed updates
// into a snapshot without letting stale records win, and orders rows
// for display. Everything here is pure: callers own the state.
package positions
