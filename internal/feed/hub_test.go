package feed

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		t.Fatalf("unmarshal %q: %v", payload, err)
	}
	return ev
}

func TestGreetingOnConnect(t *testing.T) {
	_, srv := newTestHub(t)
	conn := dial(t, srv)

	ev := readEvent(t, conn)
	if ev.Type != "connected" {
		t.Fatalf("first event type = %q, want connected", ev.Type)
	}
	data, ok := ev.Data.(map[string]any)
	if !ok || data["client_id"] == "" {
		t.Errorf("greeting data = %+v, want a client_id", ev.Data)
	}
}

func TestPublishReachesAllViewers(t *testing.T) {
	hub, srv := newTestHub(t)

	first := dial(t, srv)
	second := dial(t, srv)
	readEvent(t, first)  // greeting
	readEvent(t, second) // greeting

	hub.Publish("trade", map[string]any{"symbol": "NVDA", "shares": 50})

	for _, conn := range []*websocket.Conn{first, second} {
		ev := readEvent(t, conn)
		if ev.Type != "trade" {
			t.Fatalf("event type = %q, want trade", ev.Type)
		}
		data := ev.Data.(map[string]any)
		if data["symbol"] != "NVDA" {
			t.Errorf("data = %+v", data)
		}
	}
}

func TestConnectAfterShutdownDoesNotHang(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go hub.Run(ctx)
	cancel()
	<-hub.done

	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		// Refusing the upgrade outright is also an acceptable outcome.
		return
	}
	defer conn.Close()

	// With no event loop the server must close the connection instead of
	// parking the handler on the register channel.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the connection to be closed after shutdown")
	}
}

func TestPublishWithNoViewersDoesNotBlock(t *testing.T) {
	hub, _ := newTestHub(t)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Publish("trade", i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked with no viewers")
	}
}
