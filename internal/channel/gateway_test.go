package channel

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func testGateway(t *testing.T) (*Gateway, *httptest.Server, chan Event) {
	t.Helper()

	g := NewGateway(GatewayConfig{
		SendBuffer:   8,
		WriteTimeout: time.Second,
		PingInterval: time.Minute,
	})

	events := make(chan Event, 16)
	g.SetEventHandler(func(ctx context.Context, ev Event) error {
		events <- ev
		return nil
	})

	srv := httptest.NewServer(g)
	t.Cleanup(func() {
		g.Close()
		srv.Close()
	})
	return g, srv, events
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func waitEvent(t *testing.T, events chan Event, want EventType) Event {
	t.Helper()
	select {
	case ev := <-events:
		if ev.Type != want {
			t.Fatalf("expected %s event, got %s", want, ev.Type)
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for %s event", want)
		return Event{}
	}
}

func TestGateway_ConnectSendDisconnect(t *testing.T) {
	g, srv, events := testGateway(t)

	ws := dial(t, srv)
	connect := waitEvent(t, events, EventConnect)
	if connect.ConnectionID == "" {
		t.Fatal("expected a connection id on connect")
	}

	if err := g.Send(context.Background(), connect.ConnectionID, []byte("hello viewer")); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("client read failed: %v", err)
	}
	if string(msg) != "hello viewer" {
		t.Errorf("expected 'hello viewer', got %q", msg)
	}

	ws.Close()
	disconnect := waitEvent(t, events, EventDisconnect)
	if disconnect.ConnectionID != connect.ConnectionID {
		t.Errorf("disconnect id %s does not match connect id %s", disconnect.ConnectionID, connect.ConnectionID)
	}
}

func TestGateway_SendToUnknownConnectionIsGone(t *testing.T) {
	g, _, _ := testGateway(t)

	err := g.Send(context.Background(), "no-such-connection", []byte("x"))
	if !errors.Is(err, ErrGone) {
		t.Fatalf("expected ErrGone for unknown connection, got %v", err)
	}
}

func TestGateway_SendAfterCloseIsGone(t *testing.T) {
	g, srv, events := testGateway(t)

	ws := dial(t, srv)
	connect := waitEvent(t, events, EventConnect)

	ws.Close()
	waitEvent(t, events, EventDisconnect)

	err := g.Send(context.Background(), connect.ConnectionID, []byte("x"))
	if !errors.Is(err, ErrGone) {
		t.Fatalf("expected ErrGone after disconnect, got %v", err)
	}
}

func TestGateway_PerConnectionOrder(t *testing.T) {
	g, srv, events := testGateway(t)

	ws := dial(t, srv)
	connect := waitEvent(t, events, EventConnect)

	msgs := []string{"one", "two", "three"}
	for _, m := range msgs {
		if err := g.Send(context.Background(), connect.ConnectionID, []byte(m)); err != nil {
			t.Fatalf("send %q failed: %v", m, err)
		}
	}

	for _, want := range msgs {
		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, got, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("client read failed: %v", err)
		}
		if string(got) != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}
