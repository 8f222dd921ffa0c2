package eventlog

import "time"

// Event kind constants.
const (
	KindConnect    = "connect"
	KindDisconnect = "disconnect"
	KindMessage    = "message"
	KindError      = "error"
)

// MaxBodyBytes is the largest payload excerpt stored per entry.
// Larger payloads are truncated; BodySize always reflects the original.
const MaxBodyBytes = 1024

// Entry captures one connection event for debugging and inspection.
type Entry struct {
	// ID is a unique identifier for the log entry.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Kind identifies the event type (connect, disconnect, message, error).
	Kind string `json:"kind"`

	// ConnectionID is the connection the event belongs to.
	ConnectionID string `json:"connectionId"`

	// RemoteAddr is the client address.
	RemoteAddr string `json:"remoteAddr"`

	// Opcode is the frame opcode name for message events (text, binary).
	Opcode string `json:"opcode,omitempty"`

	// Body is the payload excerpt for message events (truncated if > 1KB).
	Body string `json:"body,omitempty"`

	// BodySize is the original payload size in bytes.
	BodySize int `json:"bodySize,omitempty"`

	// CloseCode is the close status for disconnect events.
	CloseCode int `json:"closeCode,omitempty"`

	// Error contains the failure message for error events.
	Error string `json:"error,omitempty"`
}

// TruncateBody clips a payload to MaxBodyBytes for storage.
func TruncateBody(payload []byte) string {
	if len(payload) > MaxBodyBytes {
		return string(payload[:MaxBodyBytes])
	}
	return string(payload)
}
