package router

import (
	"bytes"
	"encoding/json"
	"log/slog"

	"github.com/rickgao/reya-positions/internal/connection"
)

// Dispatcher is the part of the Connection Manager the router needs:
// handler lookup for channel frames and a way to answer pings.
type Dispatcher interface {
	Handler(channel string) (connection.Handler, bool)
	Send(frame any) error
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	MessagesReceived int64
	MessagesRouted   int64 // Frames handed to a channel handler
	PingsAnswered    int64
	ServerErrors     int64
	ParseErrors      int64
	UnknownMessages  int64
	Unhandled        int64 // Channel frames with no registered handler
	HandlerPanics    int64
}

// envelope is every server frame's superset. Fields absent from a given
// type are left zero.
type envelope struct {
	Type      string          `json:"type"`
	Channel   string          `json:"channel"`
	Timestamp json.Number     `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	Contents  json.RawMessage `json:"contents"`
	Message   string          `json:"message"`
}

// hasPayload reports whether raw carries something a handler can use.
// Missing, null and empty-string payloads do not.
func hasPayload(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	return !bytes.Equal(trimmed, []byte("null")) && !bytes.Equal(trimmed, []byte(`""`))
}

func snippet(data []byte) slog.Attr {
	const limit = 256
	if len(data) > limit {
		return slog.String("frame", string(data[:limit])+"...")
	}
	return slog.String("frame", string(data))
}
