package web_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pulseai/pulsewatch/internal/web"
)

func dialHub(t *testing.T, hub *web.Hub) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubBroadcastReachesSubscriber(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := web.NewHub(nil)
	go hub.Run(ctx)

	conn := dialHub(t, hub)

	// Registration races the first broadcast, so keep sending until one
	// arrives or the deadline passes.
	type payload struct {
		Type string `json:"type"`
		Seq  int    `json:"seq"`
	}
	received := make(chan payload, 1)
	go func() {
		_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		var p payload
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if json.Unmarshal(data, &p) == nil {
				received <- p
				return
			}
		}
	}()

	deadline := time.After(3 * time.Second)
	for seq := 0; ; seq++ {
		hub.Broadcast(payload{Type: "update", Seq: seq})
		select {
		case p := <-received:
			if p.Type != "update" {
				t.Fatalf("received payload type %q, want %q", p.Type, "update")
			}
			return
		case <-deadline:
			t.Fatal("subscriber never received a broadcast")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestHubShutdownDisconnectsSubscribers(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	hub := web.NewHub(nil)
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	conn := dialHub(t, hub)

	// Wait for the registration to be picked up before stopping the hub.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub run loop did not stop on context cancellation")
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return // connection closed, as expected
		}
	}
}
