package mcpclient

import (
	"context"
	"os/exec"
	"testing"
	"time"
)

func TestNewTransportInitializesState(t *testing.T) {
	tr := NewTransport("cat", nil, nil, nil)
	if tr == nil {
		t.Fatal("expected non-nil transport")
	}
	if tr.Connected() {
		t.Error("expected Connected() to be false before Connect()")
	}
}

func TestTransportConnectRequiresCommand(t *testing.T) {
	tr := NewTransport("", nil, nil, nil)
	if err := tr.Connect(context.Background()); err == nil {
		t.Error("expected error for missing command")
	}
}

func TestTransportCallNotConnected(t *testing.T) {
	tr := NewTransport("cat", nil, nil, nil)
	_, err := tr.Call(context.Background(), "initialize", nil)
	if err != ErrDisconnected {
		t.Errorf("expected ErrDisconnected, got %v", err)
	}
}

func TestTransportNotifyNotConnected(t *testing.T) {
	tr := NewTransport("cat", nil, nil, nil)
	if err := tr.Notify("notifications/initialized", nil); err != ErrDisconnected {
		t.Errorf("expected ErrDisconnected, got %v", err)
	}
}

func requireCat(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available on PATH")
	}
}

// cat echoes each request line back verbatim; since the request JSON
// carries the same "id" field a response needs, the transport's response
// correlation can be exercised without a real external tool server.
func TestTransportCallRoundTripsThroughChildProcess(t *testing.T) {
	requireCat(t)

	tr := NewTransport("cat", nil, nil, nil)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer tr.Close()

	if !tr.Connected() {
		t.Fatal("expected Connected() to be true after Connect()")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := tr.Call(ctx, "ping", map[string]any{"x": 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTransportSequentialCallsEachGetTheirOwnResponse(t *testing.T) {
	requireCat(t)

	tr := NewTransport("cat", nil, nil, nil)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 3; i++ {
		if _, err := tr.Call(ctx, "ping", nil); err != nil {
			t.Errorf("call %d failed: %v", i, err)
		}
	}
}

func TestTransportCallRespectsContextCancellation(t *testing.T) {
	tr := NewTransport("sleep", []string{"5"}, nil, nil)
	if err := tr.Connect(context.Background()); err != nil {
		t.Skipf("sleep not available: %v", err)
	}
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Call(ctx, "ping", nil)
	if err == nil {
		t.Error("expected error when context is already canceled")
	}
}

func TestTransportCloseDrainsPendingCalls(t *testing.T) {
	requireCat(t)

	tr := NewTransport("cat", nil, nil, nil)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	// Register a pending call directly (bypassing Call/stdin) so it has
	// no corresponding reply in flight; Close must still drain it with
	// ErrDisconnected rather than leaving the goroutine blocked forever.
	respChan := make(chan *JSONRPCResponse, 1)
	tr.pendingMu.Lock()
	tr.pending[9999] = respChan
	tr.pendingMu.Unlock()

	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case resp := <-respChan:
		if resp.Error == nil {
			t.Error("expected drained pending call to carry an error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not drain the pending table")
	}
}
