// Package api provides the Reya DEX REST client and the wire types shared
// with the WebSocket channels.
//
// REST endpoint:
//   - Production: https://api.reya.xyz/v2
//
// WebSocket endpoint:
//   - wss://ws.reya.xyz
//
// Channels: /v2/prices, /v2/wallet/{address}/positions
package api
