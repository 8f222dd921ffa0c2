package ws

// Opcode identifies a WebSocket frame type per RFC 6455.
type Opcode byte

const (
	// OpcodeContinuation is a continuation of a fragmented message.
	OpcodeContinuation Opcode = 0x0
	// OpcodeText indicates a UTF-8 encoded text frame.
	OpcodeText Opcode = 0x1
	// OpcodeBinary indicates a binary frame.
	OpcodeBinary Opcode = 0x2
	// OpcodeClose initiates or completes the closing handshake.
	OpcodeClose Opcode = 0x8
	// OpcodePing requests a pong from the peer.
	OpcodePing Opcode = 0x9
	// OpcodePong answers a ping.
	OpcodePong Opcode = 0xA
)

// IsControl returns whether the opcode is a control frame opcode.
func (o Opcode) IsControl() bool {
	return o&0x8 != 0
}

// IsData returns whether the opcode carries application data.
func (o Opcode) IsData() bool {
	return o == OpcodeText || o == OpcodeBinary
}

// String returns the string representation of the opcode.
func (o Opcode) String() string {
	switch o {
	case OpcodeContinuation:
		return "continuation"
	case OpcodeText:
		return "text"
	case OpcodeBinary:
		return "binary"
	case OpcodeClose:
		return "close"
	case OpcodePing:
		return "ping"
	case OpcodePong:
		return "pong"
	default:
		return "unknown"
	}
}

// CloseCode represents a WebSocket close status code per RFC 6455.
type CloseCode int

const (
	// CloseNormalClosure indicates a normal closure (1000).
	CloseNormalClosure CloseCode = 1000
	// CloseGoingAway indicates the endpoint is going away (1001).
	CloseGoingAway CloseCode = 1001
	// CloseProtocolError indicates a protocol error (1002).
	CloseProtocolError CloseCode = 1002
	// CloseNoStatusReceived indicates no status code was received (1005).
	CloseNoStatusReceived CloseCode = 1005
	// CloseAbnormalClosure indicates the connection dropped without a close frame (1006).
	CloseAbnormalClosure CloseCode = 1006
	// CloseMessageTooBig indicates a frame exceeded the size limit (1009).
	CloseMessageTooBig CloseCode = 1009
	// CloseInternalError indicates an internal server error (1011).
	CloseInternalError CloseCode = 1011
)

// String returns a human-readable description of the close code.
func (c CloseCode) String() string {
	switch c {
	case CloseNormalClosure:
		return "normal closure"
	case CloseGoingAway:
		return "going away"
	case CloseProtocolError:
		return "protocol error"
	case CloseNoStatusReceived:
		return "no status received"
	case CloseAbnormalClosure:
		return "abnormal closure"
	case CloseMessageTooBig:
		return "message too big"
	case CloseInternalError:
		return "internal error"
	default:
		return "unknown"
	}
}

// Header describes a frame whose payload has not been consumed yet. It is the
// result of the length-probe step: everything the codec knows about the frame
// before committing to the payload read.
type Header struct {
	// Fin indicates the final fragment of a message.
	Fin bool
	// Opcode is the frame type.
	Opcode Opcode
	// Masked indicates the payload is masked (required for client frames).
	Masked bool
	// Length is the declared payload length in bytes.
	Length int64
	// MaskKey is the 4-byte masking key, valid only when Masked is set.
	MaskKey [4]byte
}

// Frame is one decoded message unit: opcode plus payload. Frames are
// transient: constructed on receive, consumed by the echo step, and
// discarded once the corresponding send completes.
type Frame struct {
	Opcode  Opcode
	Payload []byte
}
