package engine

import (
	"net/http"
	"time"

	"github.com/blinksock/blinksock/pkg/eventlog"
	"github.com/blinksock/blinksock/pkg/httputil"
	"github.com/blinksock/blinksock/pkg/ws"
)

// HealthResponse is the /healthz payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusResponse is the /status payload.
type StatusResponse struct {
	Status      string               `json:"status"`
	Uptime      string               `json:"uptime"`
	Addr        string               `json:"addr,omitempty"`
	Path        string               `json:"path"`
	GPIOState   bool                 `json:"gpioState"`
	Stats       ws.Stats             `json:"stats"`
	Connections []*ws.ConnectionInfo `json:"connections"`
	Events      []*eventlog.Entry    `json:"recentEvents,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteMethodNotAllowed(w)
		return
	}
	httputil.WriteOK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteMethodNotAllowed(w)
		return
	}

	resp := StatusResponse{
		Status:      "running",
		Path:        s.cfg.Path,
		GPIOState:   s.actuator.State(),
		Stats:       s.registry.Stats(),
		Connections: s.registry.Infos(),
		Events:      s.events.List(&eventlog.Filter{Limit: 20}),
	}

	s.mu.Lock()
	if !s.running {
		resp.Status = "stopped"
	} else {
		resp.Uptime = time.Since(s.startTime).Round(time.Second).String()
	}
	if s.addr.IsValid() {
		resp.Addr = s.addr.String()
	}
	s.mu.Unlock()

	httputil.WriteOK(w, resp)
}
