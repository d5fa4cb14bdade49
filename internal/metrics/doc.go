// Package metrics exposes the client's runtime state to Prometheus.
//
// Key metrics:
//   - WebSocket connection state, reconnects and heartbeat timeouts
//   - Frame throughput and router outcomes
//   - Price significance filtering and position merge staleness
//   - Per-symbol net quantity and position value
//
// Every value is read from component stats at scrape time.
package metrics
