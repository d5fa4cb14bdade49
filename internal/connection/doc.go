// Package connection implements the real-time session to the exchange.
//
// The Connection Manager:
//   - Owns one WebSocket at a time and shares a single in-flight open
//   - Keeps the subscription registry and replays it after every open
//   - Forces the socket closed when no frame arrives within the heartbeat timeout
//   - Reconnects with a bounded number of attempts, then gives up
//   - Forwards every inbound frame, in order, to the Message Router
package connection
