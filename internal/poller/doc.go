// Package poller implements the background positions refresh.
//
// The poller:
//   - Re-fetches a wallet's positions over REST on a fixed interval
//   - Hands each result to a handler that merges it into local state
//   - Logs failures without surfacing them; the next tick retries
package poller
