// Package router dispatches frames from the Connection Manager.
//
// Pings are answered with pongs, channel data and subscription snapshots
// go to the handler registered for their channel, and server errors are
// logged and counted without disturbing the connection.
package router
