package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	wsclient "github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinksock/blinksock/pkg/config"
	"github.com/blinksock/blinksock/pkg/eventlog"
	"github.com/blinksock/blinksock/pkg/gpio"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.GPIO.Disabled = true
	noWait := false
	cfg.Network.Wait = &noWait
	return cfg
}

func setupServer(t *testing.T, cfg *config.Config) (*Server, *httptest.Server, *gpio.Memory) {
	t.Helper()

	mem := gpio.NewMemory()
	srv, err := NewServer(cfg, WithOutput(mem))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts, mem
}

func dialEcho(t *testing.T, ts *httptest.Server, path string) *wsclient.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, resp, err := wsclient.Dial(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close(wsclient.StatusNormalClosure, "test cleanup")
	})
	return conn
}

// findFreePort asks the kernel for an unused TCP port.
func findFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestEchoThroughEngine(t *testing.T) {
	cfg := testConfig()
	_, ts, mem := setupServer(t, cfg)
	conn := dialEcho(t, ts, cfg.Path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, conn.Write(ctx, wsclient.MessageText, []byte("Message 1")))
	msgType, payload, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, wsclient.MessageText, msgType)
	assert.Equal(t, "Message 1", string(payload))

	// One echo, one GPIO write.
	require.Eventually(t, func() bool {
		return len(mem.Values()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, mem.Values()[0])
}

func TestHealthz(t *testing.T) {
	_, ts, _ := setupServer(t, testConfig())

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
}

func TestStatusReportsActivity(t *testing.T) {
	cfg := testConfig()
	srv, ts, _ := setupServer(t, cfg)
	conn := dialEcho(t, ts, cfg.Path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, conn.Write(ctx, wsclient.MessageText, []byte("ping me")))
	_, _, err := conn.Read(ctx)
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var status StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))

	assert.Equal(t, cfg.Path, status.Path)
	assert.True(t, status.GPIOState, "one echo leaves the line high")
	assert.Equal(t, 1, status.Stats.ActiveConnections)
	assert.Equal(t, int64(1), status.Stats.TotalMessagesReceived)
	assert.Len(t, status.Connections, 1)
	require.NotNil(t, srv.Registry().Get(status.Connections[0].ID))
}

func TestEventHistoryRecorded(t *testing.T) {
	cfg := testConfig()
	srv, ts, _ := setupServer(t, cfg)
	conn := dialEcho(t, ts, cfg.Path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, conn.Write(ctx, wsclient.MessageText, []byte("logged")))
	_, _, err := conn.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.Close(wsclient.StatusNormalClosure, "done"))

	require.Eventually(t, func() bool {
		return len(srv.Events().List(&eventlog.Filter{Kind: eventlog.KindDisconnect})) == 1
	}, 2*time.Second, 10*time.Millisecond)

	connects := srv.Events().List(&eventlog.Filter{Kind: eventlog.KindConnect})
	require.Len(t, connects, 1)

	messages := srv.Events().List(&eventlog.Filter{Kind: eventlog.KindMessage})
	require.Len(t, messages, 1)
	assert.Equal(t, "logged", messages[0].Body)
	assert.Equal(t, 6, messages[0].BodySize)
	assert.Equal(t, "text", messages[0].Opcode)
	assert.NotEmpty(t, messages[0].ID)

	disconnects := srv.Events().List(&eventlog.Filter{Kind: eventlog.KindDisconnect})
	assert.Equal(t, 1000, disconnects[0].CloseCode)
}

func TestStartAndStop(t *testing.T) {
	cfg := testConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = findFreePort(t)

	mem := gpio.NewMemory()
	srv, err := NewServer(cfg, WithOutput(mem))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Start(ctx))
	require.True(t, srv.IsRunning())

	// Startup drives the line to a known low state.
	values := mem.Values()
	require.NotEmpty(t, values)
	assert.False(t, values[0])

	// The echo route is live on the real listener.
	dialCtx, dialCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dialCancel()
	url := fmt.Sprintf("ws://%s%s", srv.Addr(), cfg.Path)
	conn, resp, err := wsclient.Dial(dialCtx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err)
	require.NoError(t, conn.Write(dialCtx, wsclient.MessageText, []byte("live")))
	_, payload, err := conn.Read(dialCtx)
	require.NoError(t, err)
	assert.Equal(t, "live", string(payload))

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	require.NoError(t, srv.Stop(stopCtx))
	assert.False(t, srv.IsRunning())
}

func TestStartTwiceFails(t *testing.T) {
	cfg := testConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = findFreePort(t)

	srv, err := NewServer(cfg, WithOutput(gpio.NewMemory()))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, srv.Start(ctx))
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Stop(stopCtx)
	}()

	require.Error(t, srv.Start(ctx))
}

func TestStopIsIdempotent(t *testing.T) {
	srv, err := NewServer(testConfig(), WithOutput(gpio.NewMemory()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx), "stopping a never-started server is a no-op")
}
