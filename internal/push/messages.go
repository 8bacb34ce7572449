// Package push streams change batches to connected clients over a
// websocket, as an alternative to polling GetAllUpdates.
package push

import (
	"encoding/json"
)

// Message types.
const (
	MsgSubscribe = "subscribe"
	MsgPing      = "ping"

	MsgSession = "session"
	MsgUpdates = "updates"
	MsgPong    = "pong"
	MsgError   = "error"
)

// ── Client → Server messages ────────────────────────────────────────────────

// ClientMessage is the envelope for all client-to-server messages.
type ClientMessage struct {
	Type string          `json:"type"`
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SubscribeData is the payload of "subscribe": the client's watermark and
// the types it follows (none means all).
type SubscribeData struct {
	LastUpdate int64    `json:"last_update"`
	Types      []string `json:"types,omitempty"`
}

// ── Server → Client messages ────────────────────────────────────────────────

// ServerMessage is the envelope for all server-to-client messages.
type ServerMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// InboundMessage is a ServerMessage as read by a client.
type InboundMessage struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// SessionData carries session information.
type SessionData struct {
	SessionID string `json:"session_id"`
}

// ErrorData carries an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
