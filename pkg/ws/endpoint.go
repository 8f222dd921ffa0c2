package ws

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/blinksock/blinksock/pkg/logging"
)

// Toggler is the feedback hook fired exactly once per successful echo. The
// call happens synchronously on the connection's goroutine, so toggles are
// issued in the causal order of successful echoes.
type Toggler interface {
	Toggle() error
}

// EndpointConfig defines the behavior of the echo endpoint.
type EndpointConfig struct {
	// MaxMessageSize bounds the declared payload length in bytes.
	MaxMessageSize int64
	// MaxConnections limits concurrent connections (0 = unlimited).
	MaxConnections int
	// CloseOnProtocolError selects the recovery policy for a decode failure
	// that leaves the byte stream intact (an oversized frame): close the
	// connection, or discard the frame and keep serving. Failures that break
	// framing always close.
	CloseOnProtocolError bool
	// IdleTimeout closes connections after inactivity (0 = disabled).
	IdleTimeout time.Duration
}

// DefaultEndpointConfig returns an EndpointConfig with sensible defaults.
func DefaultEndpointConfig() EndpointConfig {
	return EndpointConfig{
		MaxMessageSize:       DefaultMaxPayload,
		CloseOnProtocolError: true,
	}
}

// Endpoint serves the single echo route. It accepts upgrade requests,
// registers connections, and runs one goroutine per connection so a slow or
// hung peer stalls only its own frame cycle.
type Endpoint struct {
	cfg      EndpointConfig
	registry *Registry
	actuator Toggler
	log      *slog.Logger
	handler  EventHandler
}

// EndpointOption customizes an Endpoint.
type EndpointOption func(*Endpoint)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) EndpointOption {
	return func(e *Endpoint) {
		if log != nil {
			e.log = log
		}
	}
}

// WithEventHandler sets the handler that receives all connection events.
func WithEventHandler(h EventHandler) EndpointOption {
	return func(e *Endpoint) {
		e.handler = h
	}
}

// NewEndpoint creates the echo endpoint. The actuator may be nil, in which
// case echoes produce no hardware feedback.
func NewEndpoint(cfg EndpointConfig, registry *Registry, actuator Toggler, opts ...EndpointOption) *Endpoint {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultMaxPayload
	}
	e := &Endpoint{
		cfg:      cfg,
		registry: registry,
		actuator: actuator,
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ServeHTTP implements http.Handler. A request that is not a well-formed
// upgrade is rejected with 400 before any registration and without any
// actuator activity.
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if e.cfg.MaxConnections > 0 && e.registry.Count() >= e.cfg.MaxConnections {
		http.Error(w, "maximum connections reached", http.StatusServiceUnavailable)
		e.log.Warn("connection rejected", "remote", r.RemoteAddr, "error", ErrMaxConnectionsReached)
		return
	}

	conn, br, err := Upgrade(w, r)
	if err != nil {
		e.log.Warn("handshake rejected", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := NewConnection(conn, br, e.cfg.MaxMessageSize)
	e.registry.Add(c)
	e.log.Info("connection opened", "id", c.ID(), "remote", c.RemoteAddr())
	e.emit(Event{Kind: EventOpened, ConnectionID: c.ID(), RemoteAddr: c.RemoteAddr()})

	go e.serve(c)
}

// serve runs one connection's frame cycles until the connection closes. For
// a single connection, frames are processed strictly in arrival order: the
// echo (or failure) of frame N completes before the receive of frame N+1
// begins.
func (e *Endpoint) serve(c *Connection) {
	closeCode := CloseNormalClosure
	closeReason := ""

	defer func() {
		if !c.IsClosed() {
			_ = c.Close(closeCode, closeReason)
		}
		// Purge the registry entry synchronously before reporting closure.
		e.registry.Remove(c.ID())
		e.emit(Event{Kind: EventClosed, ConnectionID: c.ID(), RemoteAddr: c.RemoteAddr(), Code: closeCode, Reason: closeReason})
		e.log.Info("connection closed", "id", c.ID(), "code", int(closeCode), "reason", closeCode.String())
	}()

	if e.cfg.IdleTimeout > 0 {
		done := make(chan struct{})
		defer close(done)
		go e.watchIdle(c, done)
	}

	for {
		c.setState(StateIdle)

		hdr, err := c.codec.ReadHeader()
		if err != nil {
			closeCode, closeReason = e.handleReadError(c, hdr, err)
			if closeCode == 0 {
				// Recovered: oversized frame discarded, connection stays open.
				closeCode = CloseNormalClosure
				continue
			}
			return
		}

		c.setState(StateReceiving)

		if hdr.Opcode.IsControl() {
			var stop bool
			closeCode, closeReason, stop = e.handleControl(c, hdr)
			if stop {
				return
			}
			continue
		}

		if hdr.Opcode == OpcodeContinuation || !hdr.Fin {
			e.emitError(c, ErrFragmentedFrame)
			closeCode, closeReason = CloseProtocolError, ErrFragmentedFrame.Error()
			return
		}
		if !hdr.Opcode.IsData() {
			e.emitError(c, ErrUnknownOpcode)
			closeCode, closeReason = CloseProtocolError, ErrUnknownOpcode.Error()
			return
		}

		payload, err := c.codec.ReadPayload(hdr)
		if err != nil {
			// The stream is broken mid-frame; no echo or toggle for this one.
			e.emitError(c, err)
			closeCode, closeReason = CloseAbnormalClosure, ""
			return
		}

		c.noteReceived()
		e.emit(Event{Kind: EventMessage, ConnectionID: c.ID(), RemoteAddr: c.RemoteAddr(), Opcode: hdr.Opcode, Payload: payload})

		// A zero-length payload is a deliverable message: it is echoed as a
		// zero-length frame and toggles the actuator like any other.
		c.setState(StateEchoing)
		if err := c.Send(hdr.Opcode, payload); err != nil {
			e.emitError(c, err)
			closeCode, closeReason = CloseAbnormalClosure, ""
			return
		}

		// The toggle is gated on send success and fires exactly once per
		// echoed frame, before the next frame is accepted.
		if e.actuator != nil {
			if terr := e.actuator.Toggle(); terr != nil {
				e.log.Warn("actuator toggle failed", "id", c.ID(), "error", terr)
			}
		}
		e.emit(Event{Kind: EventEchoed, ConnectionID: c.ID(), RemoteAddr: c.RemoteAddr(), Opcode: hdr.Opcode, Payload: payload})
	}
}

// handleReadError classifies a header decode failure. It returns the close
// code to use, or 0 when the frame was discarded and the connection should
// keep serving.
func (e *Endpoint) handleReadError(c *Connection, hdr Header, err error) (CloseCode, string) {
	if c.IsClosed() {
		return CloseNormalClosure, ""
	}

	switch {
	case errors.Is(err, ErrFrameTooLarge):
		e.emitError(c, err)
		if !e.cfg.CloseOnProtocolError {
			if derr := c.codec.DiscardPayload(hdr); derr == nil {
				return 0, ""
			}
			return CloseAbnormalClosure, ""
		}
		return CloseMessageTooBig, ErrFrameTooLarge.Error()
	case errors.Is(err, ErrUnmaskedFrame),
		errors.Is(err, ErrReservedBits),
		errors.Is(err, ErrBadControlFrame):
		e.emitError(c, err)
		return CloseProtocolError, err.Error()
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		// Peer dropped the transport without a close frame.
		return CloseAbnormalClosure, ""
	default:
		e.emitError(c, err)
		return CloseAbnormalClosure, ""
	}
}

// handleControl processes ping, pong and close frames. stop reports whether
// the connection is finished.
func (e *Endpoint) handleControl(c *Connection, hdr Header) (code CloseCode, reason string, stop bool) {
	payload, err := c.codec.ReadPayload(hdr)
	if err != nil {
		e.emitError(c, err)
		return CloseAbnormalClosure, "", true
	}

	switch hdr.Opcode {
	case OpcodePing:
		if err := c.codec.WritePong(payload); err != nil {
			e.emitError(c, err)
			return CloseAbnormalClosure, "", true
		}
		return 0, "", false
	case OpcodePong:
		return 0, "", false
	case OpcodeClose:
		peerCode, peerReason := ParseClosePayload(payload)
		if peerCode == CloseNoStatusReceived {
			peerCode = CloseNormalClosure
		}
		return peerCode, peerReason, true
	default:
		e.emitError(c, ErrUnknownOpcode)
		return CloseProtocolError, ErrUnknownOpcode.Error(), true
	}
}

// watchIdle closes the connection if no frame activity happens within the
// configured idle timeout.
func (e *Endpoint) watchIdle(c *Connection, done <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if time.Since(c.LastMessageAt()) > e.cfg.IdleTimeout {
				_ = c.Close(CloseGoingAway, "idle timeout")
				return
			}
		}
	}
}

func (e *Endpoint) emit(ev Event) {
	if e.handler != nil {
		e.handler(ev)
	}
}

func (e *Endpoint) emitError(c *Connection, err error) {
	e.log.Warn("transport error", "id", c.ID(), "error", err)
	e.emit(Event{Kind: EventTransportError, ConnectionID: c.ID(), RemoteAddr: c.RemoteAddr(), Err: err})
}
