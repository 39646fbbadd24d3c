package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Tyrowin/challengehub/internal/protocol"
)

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func newTestRoutes(t *testing.T) (http.Handler, *Hub) {
	t.Helper()
	h, _ := newTestHub(t)
	return SetupRoutes(h, RouteOptions{AllowedOrigins: []string{testOrigin}, Metrics: h.metrics}), h
}

// TestHealthHandler verifies the plain text liveness endpoint.
func TestHealthHandler(t *testing.T) {
	routes, _ := newTestRoutes(t)
	rec := get(t, routes, "/")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain" {
		t.Errorf("expected text/plain, got %s", ct)
	}
	if body := rec.Body.String(); body != "Challenge hub is running!" {
		t.Errorf("unexpected body %q", body)
	}
}

// TestHealthzReportsCounts verifies the JSON health endpoint.
func TestHealthzReportsCounts(t *testing.T) {
	routes, h := newTestRoutes(t)
	a := connect(h)
	joinAs(t, h, a, 7, 42)

	rec := get(t, routes, "/healthz")
	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["connections"] != 1 || body["rooms"] != 1 || body["goroutines"] <= 0 {
		t.Fatalf("unexpected health body %v", body)
	}
}

// TestRoomHandler verifies the snapshot API and its error statuses.
func TestRoomHandler(t *testing.T) {
	routes, h := newTestRoutes(t)
	a := connect(h)
	joinAs(t, h, a, 7, 42)

	rec := get(t, routes, "/api/challenges/42/room")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var snapshot protocol.RoomSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatal(err)
	}
	if snapshot.Challenge.ID != 42 || len(snapshot.Participants) != 1 || snapshot.Participants[0] != 7 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}

	for path, want := range map[string]int{
		"/api/challenges/999/room": http.StatusNotFound,
		"/api/challenges/7/room":   http.StatusConflict,
		"/api/challenges/abc/room": http.StatusBadRequest,
		"/api/challenges/0/room":   http.StatusBadRequest,
	} {
		if rec := get(t, routes, path); rec.Code != want {
			t.Errorf("%s: expected %d, got %d", path, want, rec.Code)
		}
	}
}

// TestMetricsEndpoint verifies the Prometheus exposition.
func TestMetricsEndpoint(t *testing.T) {
	routes, h := newTestRoutes(t)
	connect(h)

	rec := get(t, routes, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "challengehub_connections 1") {
		t.Fatalf("connection gauge missing from metrics output")
	}
}

// TestTestPageHandler verifies the diagnostic page.
func TestTestPageHandler(t *testing.T) {
	routes, _ := newTestRoutes(t)
	rec := get(t, routes, "/test")

	if ct := rec.Header().Get("Content-Type"); ct != "text/html" {
		t.Errorf("expected text/html, got %s", ct)
	}
	if !strings.Contains(rec.Body.String(), "join_challenge") {
		t.Error("test page should speak the room protocol")
	}
}

// TestWebSocketEndpointRejectsPost verifies that only GET reaches the upgrader.
func TestWebSocketEndpointRejectsPost(t *testing.T) {
	routes, _ := newTestRoutes(t)
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ws", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
