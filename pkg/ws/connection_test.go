package ws

import (
	"bufio"
	"errors"
	"io"
	"net"
	"testing"
)

// newPipeConnection returns a Connection backed by an in-memory pipe whose
// peer side is continuously drained.
func newPipeConnection(t *testing.T) *Connection {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	go func() {
		_, _ = io.Copy(io.Discard, client)
	}()
	return NewConnection(server, bufio.NewReader(server), DefaultMaxPayload)
}

func TestGenerateConnectionID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateConnectionID()
		if id == "" {
			t.Fatal("empty connection ID")
		}
		if seen[id] {
			t.Fatalf("duplicate connection ID %q", id)
		}
		seen[id] = true
	}
}

func TestConnectionSendCountsMessages(t *testing.T) {
	c := newPipeConnection(t)

	if err := c.Send(OpcodeText, []byte("hello")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := c.Send(OpcodeBinary, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got := c.MessagesSent(); got != 2 {
		t.Errorf("MessagesSent() = %d, want 2", got)
	}
}

func TestConnectionSendAfterClose(t *testing.T) {
	c := newPipeConnection(t)

	if err := c.Close(CloseNormalClosure, ""); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Send(OpcodeText, []byte("late")); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Send() error = %v, want %v", err, ErrConnectionClosed)
	}
}

func TestConnectionCloseIdempotent(t *testing.T) {
	c := newPipeConnection(t)

	if err := c.Close(CloseGoingAway, "bye"); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := c.Close(CloseGoingAway, "bye"); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("second Close() error = %v, want %v", err, ErrConnectionClosed)
	}
	if !c.IsClosed() {
		t.Error("IsClosed() = false after Close")
	}
	if c.State() != StateClosed {
		t.Errorf("State() = %v, want %v", c.State(), StateClosed)
	}
}

func TestConnectionStateTransitions(t *testing.T) {
	c := newPipeConnection(t)

	if c.State() != StateIdle {
		t.Fatalf("initial state = %v, want %v", c.State(), StateIdle)
	}
	c.setState(StateReceiving)
	if c.State() != StateReceiving {
		t.Errorf("state = %v, want %v", c.State(), StateReceiving)
	}
	c.setState(StateEchoing)
	if c.State() != StateEchoing {
		t.Errorf("state = %v, want %v", c.State(), StateEchoing)
	}
	c.setState(StateIdle)
	if c.State() != StateIdle {
		t.Errorf("state = %v, want %v", c.State(), StateIdle)
	}
}

func TestConnectionInfo(t *testing.T) {
	c := newPipeConnection(t)
	c.noteReceived()
	if err := c.Send(OpcodeText, []byte("x")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	info := c.Info()
	if info.ID != c.ID() {
		t.Errorf("info.ID = %q, want %q", info.ID, c.ID())
	}
	if info.MessagesReceived != 1 {
		t.Errorf("info.MessagesReceived = %d, want 1", info.MessagesReceived)
	}
	if info.MessagesSent != 1 {
		t.Errorf("info.MessagesSent = %d, want 1", info.MessagesSent)
	}
	if info.ConnectedAt.IsZero() {
		t.Error("info.ConnectedAt is zero")
	}
	if info.LastMessageAt.IsZero() {
		t.Error("info.LastMessageAt is zero")
	}
}
