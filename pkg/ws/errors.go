package ws

import "errors"

// Common errors for the ws package.
var (
	// ErrConnectionClosed indicates the connection is closed.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrConnectionNotFound indicates the connection id is stale or unknown.
	ErrConnectionNotFound = errors.New("connection not found")
	// ErrNotUpgradeRequest indicates the request is not a WebSocket upgrade.
	ErrNotUpgradeRequest = errors.New("not a websocket upgrade request")
	// ErrBadHandshake indicates a malformed upgrade request.
	ErrBadHandshake = errors.New("malformed websocket handshake")
	// ErrBadVersion indicates an unsupported Sec-WebSocket-Version.
	ErrBadVersion = errors.New("unsupported websocket version")
	// ErrMissingKey indicates the Sec-WebSocket-Key header is absent.
	ErrMissingKey = errors.New("missing Sec-WebSocket-Key header")
	// ErrHijackUnsupported indicates the ResponseWriter cannot be hijacked.
	ErrHijackUnsupported = errors.New("connection does not support hijacking")
	// ErrMaxConnectionsReached indicates the connection limit was hit.
	ErrMaxConnectionsReached = errors.New("maximum connections reached")
	// ErrFrameTooLarge indicates a declared payload length above the limit.
	ErrFrameTooLarge = errors.New("frame payload exceeds maximum size")
	// ErrUnmaskedFrame indicates a client frame without the required mask.
	ErrUnmaskedFrame = errors.New("client frame is not masked")
	// ErrReservedBits indicates non-zero RSV bits (no extension negotiated).
	ErrReservedBits = errors.New("reserved bits set without negotiated extension")
	// ErrBadControlFrame indicates a fragmented or oversized control frame.
	ErrBadControlFrame = errors.New("invalid control frame")
	// ErrFragmentedFrame indicates message fragmentation, which this server
	// does not accept.
	ErrFragmentedFrame = errors.New("fragmented frames not supported")
	// ErrUnknownOpcode indicates a reserved or unknown opcode.
	ErrUnknownOpcode = errors.New("unknown opcode")
)
