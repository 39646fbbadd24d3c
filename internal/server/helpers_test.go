package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Tyrowin/challengehub/internal/models"
	"github.com/Tyrowin/challengehub/internal/observability"
	"github.com/Tyrowin/challengehub/internal/protocol"
	"github.com/Tyrowin/challengehub/internal/store"
)

// frame is an outbound envelope read back from a client's queue.
type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (f frame) decode(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(f.Payload, v); err != nil {
		t.Fatalf("decode %s payload %s: %v", f.Type, f.Payload, err)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestHub returns a hub over an in-memory store holding challenge 42
// (collaborative) and challenge 7 (individual).
func newTestHub(t *testing.T) (*Hub, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	ctx := context.Background()
	for _, c := range []*models.Challenge{
		{ID: 42, Title: "Reading sprint", Kind: models.KindCollaborative},
		{ID: 43, Title: "Second room", Kind: models.KindCollaborative},
		{ID: 7, Title: "Solo kata", Kind: models.KindIndividual},
	} {
		if err := st.CreateChallenge(ctx, c); err != nil {
			t.Fatalf("seed challenge %d: %v", c.ID, err)
		}
	}

	h := NewHub(HubOptions{
		Store:   st,
		Logger:  discardLogger(),
		Metrics: observability.NewMetrics(),
	})
	return h, st
}

// connect adds a connection without a socket to the hub.
func connect(h *Hub) *Client {
	c := NewClient(nil, h, "test")
	h.addClient(c)
	return c
}

// send runs one inbound envelope through the router.
func send(t *testing.T, h *Hub, c *Client, eventType string, payload any) {
	t.Helper()
	env := map[string]any{"type": eventType}
	if payload != nil {
		env["payload"] = payload
	}
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	h.HandleMessage(c, raw)
}

// drain returns every frame currently queued for c.
func drain(t *testing.T, c *Client) []frame {
	t.Helper()
	var frames []frame
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				return frames
			}
			var f frame
			if err := json.Unmarshal(raw, &f); err != nil {
				t.Fatalf("queued frame is not JSON: %s", raw)
			}
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

// expectOne drains c and requires exactly one frame of the given type.
func expectOne(t *testing.T, c *Client, eventType string) frame {
	t.Helper()
	frames := drain(t, c)
	if len(frames) != 1 || frames[0].Type != eventType {
		t.Fatalf("expected a single %s frame, got %v", eventType, frameTypes(frames))
	}
	return frames[0]
}

func expectNone(t *testing.T, c *Client) {
	t.Helper()
	if frames := drain(t, c); len(frames) != 0 {
		t.Fatalf("expected no frames, got %v", frameTypes(frames))
	}
}

func frameTypes(frames []frame) []string {
	types := make([]string, len(frames))
	for i, f := range frames {
		types[i] = f.Type
	}
	return types
}

func expectErrorCode(t *testing.T, c *Client, eventType, code string) {
	t.Helper()
	var payload protocol.ErrorPayload
	expectOne(t, c, eventType).decode(t, &payload)
	if payload.Code != code {
		t.Fatalf("expected %s code %q, got %q (%s)", eventType, code, payload.Code, payload.Message)
	}
}

// joinAs authenticates c as userID, joins challengeID and discards the acks.
func joinAs(t *testing.T, h *Hub, c *Client, userID, challengeID int64) {
	t.Helper()
	send(t, h, c, protocol.TypeAuthenticate, map[string]any{"userId": userID})
	expectOne(t, c, protocol.TypeAuthSuccess)
	send(t, h, c, protocol.TypeJoinChallenge, map[string]any{"challengeId": challengeID})
	expectOne(t, c, protocol.TypeJoinSuccess)
}

func activityKinds(t *testing.T, st store.Store, challengeID int64) []models.ActivityKind {
	t.Helper()
	events, err := st.ListRecentActivity(context.Background(), challengeID, 100)
	if err != nil {
		t.Fatal(err)
	}
	kinds := make([]models.ActivityKind, len(events))
	for i, e := range events {
		kinds[len(events)-1-i] = e.Kind()
	}
	return kinds
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
