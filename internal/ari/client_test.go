package ari

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newEventServer(t *testing.T, serve func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		serve(conn)
	}))
}

func TestEventsStreamsUntilSocketCloses(t *testing.T) {
	srv := newEventServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]any{
			"type":    EventStasisEnd,
			"channel": map[string]string{"id": "ch-1"},
		})
	})
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Username: "u", Password: "p", Application: "app"})
	events, err := c.Events(context.Background())
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}

	var got []Message
	for msg := range events {
		got = append(got, msg)
	}
	if len(got) != 1 || got[0].Type != EventStasisEnd || got[0].Channel.ID != "ch-1" {
		t.Fatalf("events = %+v, want one StasisEnd for ch-1", got)
	}
}

func TestEventsWatcherExitsWithReadLoop(t *testing.T) {
	srv := newEventServer(t, func(*websocket.Conn) {})
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Username: "u", Password: "p", Application: "app"})
	before := runtime.NumGoroutine()

	// Each cycle is a socket the server drops without the context ever being
	// cancelled, the reconnect-loop pattern.
	for i := 0; i < 5; i++ {
		events, err := c.Events(context.Background())
		if err != nil {
			t.Fatalf("Events() error = %v", err)
		}
		for range events {
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= before+1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("goroutines did not settle: before=%d now=%d", before, runtime.NumGoroutine())
}
