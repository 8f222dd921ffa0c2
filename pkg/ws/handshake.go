package ws

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// acceptGUID is the fixed GUID appended to the client key when computing
// Sec-WebSocket-Accept (RFC 6455 §4.2.2).
const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// IsUpgrade reports whether the request is a WebSocket upgrade request, as
// opposed to plain HTTP traffic on the same route.
func IsUpgrade(r *http.Request) bool {
	if !headerContainsToken(r.Header, "Connection", "upgrade") {
		return false
	}
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// Upgrade validates the handshake, hijacks the underlying connection and
// completes the 101 exchange. On success the connection is promoted to
// WebSocket framing and no HTTP machinery touches it again; any bytes the
// server already buffered are preserved in the returned reader.
//
// A malformed or unsupported upgrade request fails the connection before it
// ever reaches the registry: a 400 response is written and an error returned.
func Upgrade(w http.ResponseWriter, r *http.Request) (net.Conn, *bufio.Reader, error) {
	if r.Method != http.MethodGet || !IsUpgrade(r) {
		http.Error(w, "websocket upgrade required", http.StatusBadRequest)
		return nil, nil, ErrNotUpgradeRequest
	}
	if v := r.Header.Get("Sec-WebSocket-Version"); v != "13" {
		w.Header().Set("Sec-WebSocket-Version", "13")
		http.Error(w, "unsupported websocket version", http.StatusBadRequest)
		return nil, nil, fmt.Errorf("%w: %q", ErrBadVersion, v)
	}
	key := r.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		http.Error(w, "missing Sec-WebSocket-Key", http.StatusBadRequest)
		return nil, nil, ErrMissingKey
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return nil, nil, ErrHijackUnsupported
	}
	conn, brw, err := hj.Hijack()
	if err != nil {
		return nil, nil, fmt.Errorf("hijack connection: %w", err)
	}

	// No sub-protocol is negotiated and no extension is accepted, so the
	// response carries only the mandatory upgrade headers.
	var resp strings.Builder
	resp.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	resp.WriteString("Upgrade: websocket\r\n")
	resp.WriteString("Connection: Upgrade\r\n")
	resp.WriteString("Sec-WebSocket-Accept: " + computeAccept(key) + "\r\n\r\n")

	if _, err := conn.Write([]byte(resp.String())); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("write handshake response: %w", err)
	}

	return conn, brw.Reader, nil
}

// computeAccept derives the Sec-WebSocket-Accept value from the client key.
func computeAccept(key string) string {
	h := sha1.New()
	h.Write([]byte(key + acceptGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// headerContainsToken reports whether a comma-separated header contains the
// given token, case-insensitively.
func headerContainsToken(h http.Header, name, token string) bool {
	for _, v := range h.Values(name) {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}
