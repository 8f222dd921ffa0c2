// Package engine assembles the echo service: network attachment wait,
// actuator setup, connection registry, the echo endpoint, and the small
// control API that exposes service state.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"sync"
	"time"

	"golang.org/x/net/netutil"

	"github.com/blinksock/blinksock/pkg/config"
	"github.com/blinksock/blinksock/pkg/eventlog"
	"github.com/blinksock/blinksock/pkg/gpio"
	"github.com/blinksock/blinksock/pkg/logging"
	"github.com/blinksock/blinksock/pkg/netattach"
	"github.com/blinksock/blinksock/pkg/ws"
)

// Server owns the full service lifecycle. Create one with NewServer, then
// Start it; Stop shuts everything down gracefully.
type Server struct {
	cfg      *config.Config
	log      *slog.Logger
	output   gpio.Output
	actuator *gpio.Actuator
	events   eventlog.Store
	registry *ws.Registry
	endpoint *ws.Endpoint
	handler  http.Handler

	httpServer *http.Server
	listener   net.Listener
	addr       netip.Addr

	running   bool
	startTime time.Time
	mu        sync.Mutex
}

// ServerOption configures optional server dependencies.
type ServerOption func(*Server)

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) ServerOption {
	return func(s *Server) {
		s.log = log
	}
}

// WithOutput replaces the GPIO line with the given output. Tests use this
// to observe actuator writes without hardware.
func WithOutput(out gpio.Output) ServerOption {
	return func(s *Server) {
		s.output = out
	}
}

// WithEventStore replaces the in-memory event history.
func WithEventStore(store eventlog.Store) ServerOption {
	return func(s *Server) {
		s.events = store
	}
}

// NewServer builds a Server from the given configuration. The GPIO line is
// opened here, so a missing or busy line fails fast instead of at first
// toggle.
func NewServer(cfg *config.Config, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	s := &Server{
		cfg: cfg,
		log: logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.output == nil {
		if cfg.GPIO.Disabled {
			s.output = gpio.NewMemory()
		} else {
			out, err := gpio.OpenChardev(cfg.GPIO.Chip, uint32(cfg.GPIO.Line), cfg.GPIO.ActiveLow)
			if err != nil {
				return nil, fmt.Errorf("open gpio line %d on %s: %w", cfg.GPIO.Line, cfg.GPIO.Chip, err)
			}
			s.output = out
		}
	}
	s.actuator = gpio.NewActuator(s.output)

	if s.events == nil {
		s.events = eventlog.NewMemoryStore(cfg.EventLogSize)
	}

	s.registry = ws.NewRegistry()

	epCfg := ws.EndpointConfig{
		MaxMessageSize:       cfg.MaxMessageSize,
		MaxConnections:       cfg.MaxConnections,
		CloseOnProtocolError: cfg.CloseOnProtocolError == nil || *cfg.CloseOnProtocolError,
		IdleTimeout:          cfg.IdleTimeout.Duration(),
	}
	s.endpoint = ws.NewEndpoint(epCfg, s.registry, s.actuator,
		ws.WithLogger(s.log),
		ws.WithEventHandler(s.recordEvent),
	)

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, s.endpoint)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/status", s.handleStatus)
	s.handler = mux

	return s, nil
}

// Start brings the service up: waits for network attachment when
// configured, drives the actuator to its known initial state, and begins
// serving the echo route. It returns once the listener is accepting.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server is already running")
	}

	if s.cfg.Network.Wait == nil || *s.cfg.Network.Wait {
		waitCtx := ctx
		if timeout := s.cfg.Network.Timeout.Duration(); timeout > 0 {
			var cancel context.CancelFunc
			waitCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		addr, err := netattach.Wait(waitCtx, netattach.Config{Interface: s.cfg.Network.Interface}, s.log)
		if err != nil {
			return fmt.Errorf("wait for network: %w", err)
		}
		s.addr = addr
	}

	if err := s.actuator.Reset(); err != nil {
		return fmt.Errorf("reset actuator: %w", err)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if s.cfg.MaxConnections > 0 {
		// Headroom above the connection cap so over-limit clients still
		// receive an HTTP 503 instead of hanging in the accept queue.
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections+8)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("http server error", "error", err)
		}
	}()

	s.running = true
	s.startTime = time.Now()
	s.log.Info("echo service started",
		"addr", ln.Addr().String(),
		"path", s.cfg.Path,
		"maxMessageSize", s.cfg.MaxMessageSize)
	return nil
}

// Stop gracefully shuts down the server: the listener stops accepting,
// open connections get a going-away close, and the GPIO line is released.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	var errs []error

	closed := s.registry.CloseAll(ws.CloseGoingAway, "server shutting down")
	if closed > 0 {
		s.log.Info("closed active connections", "count", closed)
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		s.httpServer = nil
	}

	if err := s.actuator.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close actuator: %w", err))
	}

	s.running = false

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// IsRunning reports whether Start has completed and Stop has not.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Addr returns the bound listener address. Empty before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler returns the HTTP handler serving the echo route and control API.
// Exposed for tests that mount the service on their own listener.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Registry returns the connection registry.
func (s *Server) Registry() *ws.Registry {
	return s.registry
}

// Actuator returns the hardware actuator.
func (s *Server) Actuator() *gpio.Actuator {
	return s.actuator
}

// Events returns the event history store.
func (s *Server) Events() eventlog.Store {
	return s.events
}

// recordEvent feeds endpoint lifecycle events into the history store.
// Echo completions are not recorded separately; the message entry stands
// for the full receive-echo-toggle cycle.
func (s *Server) recordEvent(ev ws.Event) {
	switch ev.Kind {
	case ws.EventOpened:
		s.events.Log(&eventlog.Entry{
			Kind:         eventlog.KindConnect,
			ConnectionID: ev.ConnectionID,
			RemoteAddr:   ev.RemoteAddr,
		})
	case ws.EventMessage:
		s.events.Log(&eventlog.Entry{
			Kind:         eventlog.KindMessage,
			ConnectionID: ev.ConnectionID,
			RemoteAddr:   ev.RemoteAddr,
			Opcode:       ev.Opcode.String(),
			Body:         eventlog.TruncateBody(ev.Payload),
			BodySize:     len(ev.Payload),
		})
	case ws.EventClosed:
		s.events.Log(&eventlog.Entry{
			Kind:         eventlog.KindDisconnect,
			ConnectionID: ev.ConnectionID,
			RemoteAddr:   ev.RemoteAddr,
			CloseCode:    int(ev.Code),
		})
	case ws.EventTransportError:
		s.events.Log(&eventlog.Entry{
			Kind:         eventlog.KindError,
			ConnectionID: ev.ConnectionID,
			RemoteAddr:   ev.RemoteAddr,
			Error:        ev.Err.Error(),
		})
	}
}
