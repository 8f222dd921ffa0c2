package ws

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func upgradeRequest() *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	return req
}

func TestComputeAccept(t *testing.T) {
	// Sample handshake from RFC 6455 §1.3.
	got := computeAccept("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Errorf("computeAccept() = %q, want %q", got, want)
	}
}

func TestIsUpgrade(t *testing.T) {
	tests := []struct {
		name       string
		connection string
		upgrade    string
		want       bool
	}{
		{"standard", "Upgrade", "websocket", true},
		{"case insensitive", "upgrade", "WebSocket", true},
		{"multi-token connection", "keep-alive, Upgrade", "websocket", true},
		{"plain http", "", "", false},
		{"connection without upgrade token", "keep-alive", "websocket", false},
		{"wrong upgrade protocol", "Upgrade", "h2c", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.connection != "" {
				req.Header.Set("Connection", tt.connection)
			}
			if tt.upgrade != "" {
				req.Header.Set("Upgrade", tt.upgrade)
			}
			if got := IsUpgrade(req); got != tt.want {
				t.Errorf("IsUpgrade() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUpgradeRejectsPlainRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()

	_, _, err := Upgrade(rec, req)
	if !errors.Is(err, ErrNotUpgradeRequest) {
		t.Fatalf("Upgrade() error = %v, want %v", err, ErrNotUpgradeRequest)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestUpgradeRejectsPost(t *testing.T) {
	req := upgradeRequest()
	req.Method = http.MethodPost
	rec := httptest.NewRecorder()

	_, _, err := Upgrade(rec, req)
	if !errors.Is(err, ErrNotUpgradeRequest) {
		t.Fatalf("Upgrade() error = %v, want %v", err, ErrNotUpgradeRequest)
	}
}

func TestUpgradeRejectsBadVersion(t *testing.T) {
	req := upgradeRequest()
	req.Header.Set("Sec-WebSocket-Version", "8")
	rec := httptest.NewRecorder()

	_, _, err := Upgrade(rec, req)
	if !errors.Is(err, ErrBadVersion) {
		t.Fatalf("Upgrade() error = %v, want %v", err, ErrBadVersion)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if got := rec.Header().Get("Sec-WebSocket-Version"); got != "13" {
		t.Errorf("Sec-WebSocket-Version header = %q, want %q", got, "13")
	}
}

func TestUpgradeRejectsMissingKey(t *testing.T) {
	req := upgradeRequest()
	req.Header.Del("Sec-WebSocket-Key")
	rec := httptest.NewRecorder()

	_, _, err := Upgrade(rec, req)
	if !errors.Is(err, ErrMissingKey) {
		t.Fatalf("Upgrade() error = %v, want %v", err, ErrMissingKey)
	}
}

func TestUpgradeRequiresHijacker(t *testing.T) {
	// httptest.ResponseRecorder does not implement http.Hijacker.
	rec := httptest.NewRecorder()

	_, _, err := Upgrade(rec, upgradeRequest())
	if !errors.Is(err, ErrHijackUnsupported) {
		t.Fatalf("Upgrade() error = %v, want %v", err, ErrHijackUnsupported)
	}
}
