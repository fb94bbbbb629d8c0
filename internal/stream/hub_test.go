package stream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

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

func TestHubBroadcastReachesAllClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	c1 := dial(t, srv)
	c2 := dial(t, srv)

	// Registration goes through the hub loop; give it a beat.
	deadline := time.Now().Add(2 * time.Second)
	for clientCount(hub) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if clientCount(hub) != 2 {
		t.Fatalf("expected 2 registered clients, got %d", clientCount(hub))
	}

	hub.Broadcast(Message{
		Type:   "trade_executed",
		Ticker: "NVDA",
		Action: "buy",
		Price:  "880.50",
	})

	for i, conn := range []*websocket.Conn{c1, c2} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("client %d read: %v", i, err)
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("client %d decode: %v", i, err)
		}
		if msg.Type != "trade_executed" || msg.Ticker != "NVDA" {
			t.Errorf("client %d got unexpected message: %+v", i, msg)
		}
	}
}

func TestBroadcastNeverBlocks(t *testing.T) {
	hub := NewHub() // Run is never started: the buffer fills, then drops.

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Broadcast(Message{Type: "momentum_updated", Topic: "ai"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked with no consumer")
	}
}

func clientCount(h *Hub) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
