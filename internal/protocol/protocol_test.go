package protocol

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/challengehub/internal/models"
)

func TestDecodeRecognizedTypes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Request
	}{
		{"authenticate", `{"type":"authenticate","payload":{"userId":7,"sessionToken":"abc"}}`, Authenticate{UserID: 7, SessionToken: "abc"}},
		{"join", `{"type":"join_challenge","payload":{"challengeId":42}}`, JoinChallenge{ChallengeID: 42}},
		{"leave without payload", `{"type":"leave_challenge"}`, LeaveChallenge{}},
		{"chat", `{"type":"challenge_message","payload":{"content":"hello"}}`, ChatMessage{Content: "hello"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeProgressDistinguishesMissingFromZero(t *testing.T) {
	got, err := Decode([]byte(`{"type":"progress_update","payload":{"progress":0,"completed":true}}`))
	require.NoError(t, err)
	p := got.(ProgressUpdate)
	require.NotNil(t, p.Progress)
	assert.Equal(t, 0.0, *p.Progress)
	assert.True(t, p.Completed)

	got, err = Decode([]byte(`{"type":"progress_update","payload":{"completed":true}}`))
	require.NoError(t, err)
	assert.Nil(t, got.(ProgressUpdate).Progress)
}

func TestDecodeProgressAcceptsAnyNumber(t *testing.T) {
	got, err := Decode([]byte(`{"type":"progress_update","payload":{"progress":50.5}}`))
	require.NoError(t, err)
	p := got.(ProgressUpdate)
	require.NotNil(t, p.Progress)
	assert.Equal(t, 50.5, *p.Progress)
}

func TestDecodeUnknownTypeIsNotAnError(t *testing.T) {
	got, err := Decode([]byte(`{"type":"typing_indicator","payload":{"on":true}}`))
	require.NoError(t, err)
	assert.Equal(t, Unknown{Type: "typing_indicator"}, got)
	assert.Equal(t, "typing_indicator", got.RequestType())
}

func TestDecodeMalformedFrames(t *testing.T) {
	for _, raw := range []string{`not json`, `{"payload":{}}`, `{"type":12}`, `[]`} {
		_, err := Decode([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformedEnvelope, "frame %q", raw)
	}
}

func TestDecodePayloadErrors(t *testing.T) {
	for _, raw := range []string{
		`{"type":"join_challenge"}`,
		`{"type":"join_challenge","payload":{"challengeId":"forty-two"}}`,
		`{"type":"progress_update","payload":{"progress":50.5}}`,
		`{"type":"challenge_message","payload":null}`,
	} {
		_, err := Decode([]byte(raw))
		var perr *PayloadError
		require.True(t, errors.As(err, &perr), "frame %q: %v", raw, err)
		assert.NotEmpty(t, perr.Type)
	}
}

func TestEventMarshalShapesEnvelope(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := &models.Message{ID: 1, ChallengeID: 42, UserID: 7, Content: "hello", CreatedAt: at}
	activity := models.NewActivity(42, 7, models.MessagePostedData{MessageID: 1}, at)

	raw, err := Event{Type: TypeNewMessage, Payload: NewMessagePayload{Message: msg, Activity: activity}}.Marshal()
	require.NoError(t, err)

	var decoded struct {
		Type    string `json:"type"`
		Payload struct {
			Message  models.Message       `json:"message"`
			Activity models.ActivityEvent `json:"activity"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, TypeNewMessage, decoded.Type)
	assert.Equal(t, "hello", decoded.Payload.Message.Content)
	assert.Equal(t, models.ActivityPostedMessage, decoded.Payload.Activity.Kind())
}

func TestNewErrorPayload(t *testing.T) {
	raw, err := NewError(TypeJoinError, CodeChallengeNotFound, "challenge 5 not found").Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"join_error","payload":{"code":"challenge_not_found","message":"challenge 5 not found"}}`, string(raw))
}
