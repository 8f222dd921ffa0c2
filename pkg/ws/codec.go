package ws

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// DefaultMaxPayload is the payload size limit applied when none is configured.
const DefaultMaxPayload = 64 * 1024

// Codec reads and writes WebSocket frames on a hijacked connection.
//
// The receive path is two-phase: ReadHeader probes the declared payload
// length without reading any payload bytes, then ReadPayload commits to
// reading exactly that many bytes. The send path writes a frame with a
// single Write call so that a frame is transmitted whole or fails whole.
type Codec struct {
	br         *bufio.Reader
	w          io.Writer
	maxPayload int64

	writeMu sync.Mutex
}

// NewCodec creates a Codec over a hijacked connection. br carries any bytes
// already buffered by the HTTP server during the handshake; w is the raw
// connection. maxPayload <= 0 selects DefaultMaxPayload.
func NewCodec(br *bufio.Reader, w io.Writer, maxPayload int64) *Codec {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	return &Codec{br: br, w: w, maxPayload: maxPayload}
}

// ReadHeader parses the next frame's header: FIN bit, opcode, mask flag and
// key, and the declared payload length. No payload bytes are consumed, so the
// caller can size a buffer before committing to the read.
func (c *Codec) ReadHeader() (Header, error) {
	var hdr Header

	var b [2]byte
	if _, err := io.ReadFull(c.br, b[:]); err != nil {
		return hdr, fmt.Errorf("read frame header: %w", err)
	}

	if b[0]&0x70 != 0 {
		return hdr, ErrReservedBits
	}

	hdr.Fin = b[0]&0x80 != 0
	hdr.Opcode = Opcode(b[0] & 0x0F)
	hdr.Masked = b[1]&0x80 != 0
	hdr.Length = int64(b[1] & 0x7F)

	switch hdr.Length {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(c.br, ext[:]); err != nil {
			return hdr, fmt.Errorf("read extended length: %w", err)
		}
		hdr.Length = int64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(c.br, ext[:]); err != nil {
			return hdr, fmt.Errorf("read extended length: %w", err)
		}
		v := binary.BigEndian.Uint64(ext[:])
		if v > 1<<62 {
			return hdr, ErrFrameTooLarge
		}
		hdr.Length = int64(v)
	}

	if hdr.Masked {
		if _, err := io.ReadFull(c.br, hdr.MaskKey[:]); err != nil {
			return hdr, fmt.Errorf("read mask key: %w", err)
		}
	}

	// Clients must mask all frames (RFC 6455 §5.1).
	if !hdr.Masked {
		return hdr, ErrUnmaskedFrame
	}

	if hdr.Opcode.IsControl() {
		if !hdr.Fin || hdr.Length > 125 {
			return hdr, ErrBadControlFrame
		}
	}

	if hdr.Length > c.maxPayload {
		return hdr, fmt.Errorf("%w: declared %d bytes, limit %d", ErrFrameTooLarge, hdr.Length, c.maxPayload)
	}

	return hdr, nil
}

// ReadPayload reads the payload announced by hdr. The buffer is allocated
// with one terminator margin byte and zero-initialized before the read, so
// the byte past the payload is deterministically zero. The returned slice is
// exactly hdr.Length bytes; a short read or transport error fails the frame
// without closing the connection, that decision belongs to the caller.
func (c *Codec) ReadPayload(hdr Header) ([]byte, error) {
	buf := make([]byte, hdr.Length+1)
	if _, err := io.ReadFull(c.br, buf[:hdr.Length]); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	payload := buf[:hdr.Length]
	if hdr.Masked {
		maskPayload(payload, hdr.MaskKey)
	}
	return payload, nil
}

// DiscardPayload consumes and drops the payload announced by hdr. Used when
// an oversized frame is skipped without closing the connection.
func (c *Codec) DiscardPayload(hdr Header) error {
	if _, err := c.br.Discard(int(hdr.Length)); err != nil {
		return fmt.Errorf("discard frame payload: %w", err)
	}
	return nil
}

// WriteFrame sends one final, unmasked frame with the given opcode and
// payload. Header and payload are assembled into one buffer and issued with a
// single Write, so a partial frame is never observable by the receiver. The
// opcode is written untouched: text is never promoted to binary or back.
func (c *Codec) WriteFrame(op Opcode, payload []byte) error {
	n := len(payload)

	var hdr [10]byte
	hdr[0] = 0x80 | byte(op&0x0F)

	var hdrLen int
	switch {
	case n <= 125:
		hdr[1] = byte(n)
		hdrLen = 2
	case n <= 0xFFFF:
		hdr[1] = 126
		binary.BigEndian.PutUint16(hdr[2:4], uint16(n))
		hdrLen = 4
	default:
		hdr[1] = 127
		binary.BigEndian.PutUint64(hdr[2:10], uint64(n))
		hdrLen = 10
	}

	buf := make([]byte, 0, hdrLen+n)
	buf = append(buf, hdr[:hdrLen]...)
	buf = append(buf, payload...)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// WriteClose sends a close frame carrying the given status code and reason.
func (c *Codec) WriteClose(code CloseCode, reason string) error {
	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload[:2], uint16(code))
	copy(payload[2:], reason)
	return c.WriteFrame(OpcodeClose, payload)
}

// WritePong answers a ping, echoing its application data.
func (c *Codec) WritePong(payload []byte) error {
	return c.WriteFrame(OpcodePong, payload)
}

// ParseClosePayload extracts the status code and reason from a close frame
// payload. An empty payload means no status was received.
func ParseClosePayload(payload []byte) (CloseCode, string) {
	if len(payload) < 2 {
		return CloseNoStatusReceived, ""
	}
	return CloseCode(binary.BigEndian.Uint16(payload[:2])), string(payload[2:])
}

func maskPayload(p []byte, key [4]byte) {
	for i := range p {
		p[i] ^= key[i%4]
	}
}
