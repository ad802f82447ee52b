package ws

import (
	"encoding/json"
	"time"
)

// Message is the shared WebSocket message shape used by the server and clients.
type Message struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp,omitempty"`
}

// Marshal marshals the message to JSON bytes.
func (m *Message) Marshal() ([]byte, error) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	return json.Marshal(m)
}

// Note: writing JSON to a *websocket.Conn is intentionally left to the
// caller to avoid dragging the websocket dependency into this package.
// Use Message.Marshal() and write bytes with an appropriate deadline.

// Standard message type constants used by server/UI
const (
	MessageTypeHeartbeat       = "heartbeat"
	MessageTypePong            = "pong"
	MessageTypeError           = "error"
	MessageTypeCloneAssigned   = "clone_assigned"   // Single clone bound to an account
	MessageTypeCloneReleased   = "clone_released"   // Clone returned to the available pool
	MessageTypeAutoAssign      = "auto_assign"      // Bulk assignment completed (possibly partial)
	MessageTypeAccountsUpdated = "accounts_updated" // Bulk status change applied
	MessageTypeAccountsDeleted = "accounts_deleted" // Bulk delete (with clone release) applied
)
