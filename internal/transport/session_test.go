package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/fd1az/marketfeed/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "transport-test", nil)
}

func mockWSServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		if handler != nil {
			handler(conn)
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestSession_ConnectReachesOpenAndFiresOnConnect(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	sess, err := NewSession(DefaultConfig(wsURL(server), "test"), testLogger())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	opened := make(chan struct{})
	sess.OnConnect(func(s *Session) { close(opened) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go sess.Run(ctx)

	select {
	case <-opened:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for OnConnect")
	}

	if sess.State() != StateOpen {
		t.Fatalf("expected StateOpen, got %v", sess.State())
	}
	sess.Close()
}

func TestSession_WriteQueueFlushedInFIFOOrder(t *testing.T) {
	var mu sync.Mutex
	var received []string

	allReceived := make(chan struct{})

	server := mockWSServer(t, func(conn *websocket.Conn) {
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			mu.Lock()
			received = append(received, string(data))
			mu.Unlock()
		}
		close(allReceived)
		time.Sleep(50 * time.Millisecond)
	})
	defer server.Close()

	sess, err := NewSession(DefaultConfig(wsURL(server), "test"), testLogger())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	// Queue writes before the session is Open; they must still be delivered,
	// in order, once the handshake completes.
	sess.Write([]byte("one"))
	sess.Write([]byte("two"))
	sess.Write([]byte("three"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go sess.Run(ctx)
	defer sess.Close()

	select {
	case <-allReceived:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for server to receive all writes")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"one", "two", "three"}
	if len(received) != len(want) {
		t.Fatalf("expected %d messages, got %d: %v", len(want), len(received), received)
	}
	for i, w := range want {
		if received[i] != w {
			t.Errorf("message %d: expected %q, got %q", i, w, received[i])
		}
	}
}

func TestSession_ReadCreditGatesDelivery(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		ctx := context.Background()
		for _, msg := range []string{"first", "second"} {
			if err := conn.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
				return
			}
			time.Sleep(30 * time.Millisecond)
		}
		time.Sleep(200 * time.Millisecond)
	})
	defer server.Close()

	sess, err := NewSession(DefaultConfig(wsURL(server), "test"), testLogger())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	var mu sync.Mutex
	var frames []string
	gotFirst := make(chan struct{})

	sess.OnRead(func(s *Session, data []byte) int {
		mu.Lock()
		frames = append(frames, string(data))
		n := len(frames)
		mu.Unlock()
		if n == 1 {
			close(gotFirst)
		}
		return len(data)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go sess.Run(ctx)
	defer sess.Close()

	select {
	case <-gotFirst:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for first frame")
	}

	// Without a call to ReadAfter, the session parks after the first frame
	// and must not have consumed the second one yet.
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	n := len(frames)
	mu.Unlock()
	if n != 1 {
		t.Fatalf("expected exactly 1 frame before ReadAfter, got %d", n)
	}

	sess.ReadAfter()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n = len(frames)
		mu.Unlock()
		if n == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(frames) != 2 || frames[1] != "second" {
		t.Fatalf("expected second frame after ReadAfter, got %v", frames)
	}
}

func TestSession_DialFailureFiresOnConnErrThenOnClose(t *testing.T) {
	// Port 0 on loopback: nothing is listening, so Dial fails immediately.
	sess, err := NewSession(DefaultConfig("ws://127.0.0.1:0/nope", "test"), testLogger())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})

	sess.OnConnErr(func(s *Session, err error) {
		mu.Lock()
		order = append(order, "conn_err")
		mu.Unlock()
	})
	sess.OnClose(func(s *Session) {
		mu.Lock()
		order = append(order, "close")
		mu.Unlock()
		close(done)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go sess.Run(ctx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for on_close")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "conn_err" || order[1] != "close" {
		t.Fatalf("expected [conn_err close], got %v", order)
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	sess, err := NewSession(DefaultConfig(wsURL(server), "test"), testLogger())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go sess.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	if err := sess.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("second Close should not error: %v", err)
	}
	if sess.State() != StateClosed {
		t.Fatalf("expected StateClosed, got %v", sess.State())
	}
}
