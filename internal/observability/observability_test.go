package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerRedactsTokens(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "debug", Format: "json", Output: &buf})

	logger.Info("client authenticated", "user_id", 7, "session_token", "s3cr3t-value")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "client authenticated", record["msg"])
	assert.Equal(t, float64(7), record["user_id"])
	assert.Equal(t, redacted, record["session_token"])
	assert.NotContains(t, buf.String(), "s3cr3t-value")
}

func TestNewLoggerTextFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "text", Output: &buf})

	logger.Info("hidden")
	logger.Warn("shown", "challenge_id", 42)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.Contains(out, "challenge_id=42"), out)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestMetricsCountersAndHandler(t *testing.T) {
	m := NewMetrics()
	m.EnvelopeReceived("join_challenge")
	m.EnvelopeReceived("join_challenge")
	m.BroadcastDelivery(true)
	m.BroadcastDelivery(false)
	m.HandlerError("empty_message")
	m.ObserveStore("append_message", 2*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Envelopes.WithLabelValues("join_challenge")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BroadcastDeliveries.WithLabelValues("dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HandlerErrors.WithLabelValues("empty_message")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "challengehub_envelopes_total")
	assert.Contains(t, rec.Body.String(), "challengehub_store_operation_duration_seconds")
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.ConnectionReaped()
	m.FrameRateLimited()
	m.SetRoomMembers(1)
	m.EnvelopeReceived("x")
	m.HandlerError("x")
	m.BroadcastDelivery(true)
	m.ObserveStore("x", time.Second)
}

func TestTwoMetricsInstancesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		_ = NewMetrics()
		_ = NewMetrics()
	})
}

func TestConnectionGauges(t *testing.T) {
	m := NewMetrics()
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.ConnectionReaped()
	m.SetRoomMembers(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Connections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reaped))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RoomMembers))
}
