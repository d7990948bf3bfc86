package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"medication-adherence/internal/domain/medications"
	"medication-adherence/internal/middleware"
	"medication-adherence/internal/platform/querycache"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func newTestHub(t *testing.T) (*Hub, *medications.Cache, string) {
	t.Helper()
	cache := querycache.New(func(context.Context, string) ([]medications.MedicationWithLogs, error) {
		return nil, nil
	})
	hub := NewHub(cache, zerolog.Nop())
	t.Cleanup(hub.Close)

	srv := httptest.NewServer(middleware.AuthContext(nil)(http.HandlerFunc(hub.ServeWS)))
	t.Cleanup(srv.Close)
	return hub, cache, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url, userID string) *websocket.Conn {
	t.Helper()
	h := http.Header{}
	h.Set("X-Debug-User-ID", userID)
	conn, _, err := websocket.DefaultDialer.Dial(url, h)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitConnections(t *testing.T, hub *Hub, userID string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Connections(userID) != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d connections for %s, got %d", n, userID, hub.Connections(userID))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_PushesOnlyToKeyOwner(t *testing.T) {
	hub, cache, url := newTestHub(t)

	c1 := dial(t, url, "u1")
	c2 := dial(t, url, "u2")
	waitConnections(t, hub, "u1", 1)
	waitConnections(t, hub, "u2", 1)

	cache.Set("u1", []medications.MedicationWithLogs{{Medication: medications.Medication{ID: "m1", Name: "Aspirin"}}})

	var msg Message
	_ = c1.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := c1.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != TypeMedicationsUpdated || msg.Invalidated || len(msg.Medications) != 1 || msg.Medications[0].ID != "m1" {
		t.Fatalf("unexpected message %#v", msg)
	}

	// u2 no debe recibir nada de u1
	_ = c2.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if err := c2.ReadJSON(&msg); err == nil {
		t.Fatalf("u2 received someone else's update: %#v", msg)
	}
}

func TestHub_InvalidationMessage(t *testing.T) {
	hub, cache, url := newTestHub(t)

	c := dial(t, url, "u1")
	waitConnections(t, hub, "u1", 1)

	ver := cache.Invalidate("u1")

	var msg Message
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := c.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !msg.Invalidated || msg.Version != ver || msg.Medications != nil {
		t.Fatalf("unexpected message %#v", msg)
	}
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub, _, url := newTestHub(t)

	c := dial(t, url, "u1")
	waitConnections(t, hub, "u1", 1)
	_ = c.Close()
	waitConnections(t, hub, "u1", 0)
}

func TestServeWS_RequiresUser(t *testing.T) {
	hub, _, _ := newTestHub(t)

	rr := httptest.NewRecorder()
	hub.ServeWS(rr, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}
