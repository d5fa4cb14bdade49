package connection

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrStaleConnection  = errors.New("connection stale (no inbound frames)")
	ErrForcedDisconnect = errors.New("forced disconnect")
	ErrAlreadyClosed    = errors.New("already closed")
	ErrClosedWhileOpen  = errors.New("connection closed while opening")
	ErrManagerStopped   = errors.New("connection manager stopped")

	ErrReconnectExhausted = errors.New("max reconnection attempts reached")
)

// Frame types on the wire.
const (
	TypeSubscribe    = "subscribe"
	TypeUnsubscribe  = "unsubscribe"
	TypePing         = "ping"
	TypePong         = "pong"
	TypeSubscribed   = "subscribed"
	TypeUnsubscribed = "unsubscribed"
	TypeChannelData  = "channel_data"
	TypeError        = "error"
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// RawMessage is a message from the Connection Manager to the Message Router.
type RawMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ConnID     string    // Physical connection the frame arrived on
	ReceivedAt time.Time // Local timestamp when the client received the frame
}

// Handler receives the payload of a channel's frames.
type Handler func(data json.RawMessage)

// SubscribeFrame is sent for both subscribe and unsubscribe.
type SubscribeFrame struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

// PongFrame answers an application-level ping.
type PongFrame struct {
	Type      string      `json:"type"`
	Timestamp json.Number `json:"timestamp"`
}

// State is the transport connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "unknown"
}

// ReconnectState is the state of the reconnection controller.
type ReconnectState int

const (
	ReconnectIdle ReconnectState = iota
	ReconnectConnecting
	ReconnectConnected
	ReconnectFailed // Attempts exhausted; only an explicit Connect starts over
)

func (s ReconnectState) String() string {
	switch s {
	case ReconnectIdle:
		return "idle"
	case ReconnectConnecting:
		return "connecting"
	case ReconnectConnected:
		return "connected"
	case ReconnectFailed:
		return "failed"
	}
	return "unknown"
}

// EventKind identifies a lifecycle event.
type EventKind int

const (
	EventOpen EventKind = iota + 1
	EventClose
	EventError
	EventReconnectScheduled
	EventReconnectFailed
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventClose:
		return "close"
	case EventError:
		return "error"
	case EventReconnectScheduled:
		return "reconnect_scheduled"
	case EventReconnectFailed:
		return "reconnect_failed"
	}
	return "unknown"
}

// Event is a connection lifecycle notification.
type Event struct {
	Kind    EventKind
	ConnID  string
	Err     error         // EventClose (nil when closed explicitly), EventError
	Attempt int           // EventReconnectScheduled, EventReconnectFailed
	Delay   time.Duration // EventReconnectScheduled
	At      time.Time
}

// ReconnectPolicy selects how the wait between attempts grows.
type ReconnectPolicy string

const (
	PolicyFixed       ReconnectPolicy = "fixed"
	PolicyExponential ReconnectPolicy = "exponential"
)

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g., wss://ws.reya.xyz)
	HandshakeTimeout time.Duration // Dial + upgrade deadline
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	WSURL                string
	HandshakeTimeout     time.Duration
	WriteTimeout         time.Duration
	ClientBufferSize     int
	HeartbeatInterval    time.Duration // How often staleness is checked
	HeartbeatTimeout     time.Duration // Max silence before the socket is forced closed
	ReconnectPolicy      ReconnectPolicy
	ReconnectDelay       time.Duration // Fixed delay, or first delay for exponential
	ReconnectMaxDelay    time.Duration // Cap for exponential
	ReconnectMaxAttempts int
	MessageBufferSize    int // Initial capacity of the output buffer
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		WSURL:                "wss://ws.reya.xyz",
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         5 * time.Second,
		ClientBufferSize:     1000,
		HeartbeatInterval:    30 * time.Second,
		HeartbeatTimeout:     60 * time.Second,
		ReconnectPolicy:      PolicyFixed,
		ReconnectDelay:       3 * time.Second,
		ReconnectMaxDelay:    30 * time.Second,
		ReconnectMaxAttempts: 5,
		MessageBufferSize:    1024,
	}
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State             State
	ReconnectState    ReconnectState
	ConnID            string
	ConnectedSince    time.Time
	Subscriptions     int
	ReconnectAttempts int   // Attempts since the last successful open
	Reconnects        int64 // Successful opens after the first
	HeartbeatTimeouts int64
	FramesReceived    int64
	FramesSent        int64
	Buffer            BufferStats
}
