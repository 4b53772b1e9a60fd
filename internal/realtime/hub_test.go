package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestHubPushReachesConnectedClient(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, 7)
	}))
	defer srv.Close()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	waitFor(t, func() bool { return hub.Connected(7) == 1 }, "client to join room 7")
	if hub.Connected(8) != 0 {
		t.Fatalf("room 8 must be empty, got %d", hub.Connected(8))
	}

	// Pushing to an empty room is a no-op.
	hub.Push(8, map[string]string{"titulo": "ignorada"})

	hub.Push(7, map[string]string{"titulo": "Demanda Aprovada"})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(msg), "Demanda Aprovada") {
		t.Fatalf("payload = %s", msg)
	}

	conn.Close()
	waitFor(t, func() bool { return hub.Connected(7) == 0 }, "client to leave room 7")
}
