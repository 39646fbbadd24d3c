package protocol

import (
	"encoding/json"
	"time"

	"github.com/Tyrowin/challengehub/internal/models"
)

// Outbound envelope types.
const (
	TypeAuthSuccess  = "auth_success"
	TypeAuthError    = "auth_error"
	TypeJoinSuccess  = "join_success"
	TypeJoinError    = "join_error"
	TypeLeaveSuccess = "leave_success"
	TypeUserJoined   = "user_joined"
	TypeUserLeft     = "user_left"
	TypeNewMessage   = "new_message"
	TypeError        = "error"
	// progress_update is used in both directions.
)

// Event is an outbound envelope before serialization.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Marshal serializes the event.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Error codes carried by error envelopes.
const (
	CodeNotAuthenticated  = "not_authenticated"
	CodeAuthFailed        = "auth_failed"
	CodeChallengeNotFound = "challenge_not_found"
	CodeNotCollaborative  = "not_collaborative"
	CodeNotInChallenge    = "not_in_challenge"
	CodeEmptyMessage      = "empty_message"
	CodeInvalidProgress   = "invalid_progress"
	CodeInvalidPayload    = "invalid_payload"
	CodeRateLimited       = "rate_limited"
	CodeInternal          = "internal_error"
)

// ErrorPayload accompanies auth_error, join_error and error.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AuthSuccessPayload accompanies auth_success.
type AuthSuccessPayload struct {
	UserID int64 `json:"userId"`
}

// ParticipantProgress is one roster entry's standing.
type ParticipantProgress struct {
	UserID      int64 `json:"userId"`
	Progress    int   `json:"progress"`
	IsCompleted bool  `json:"isCompleted"`
}

// RoomSnapshot is the state handed to a client when it joins a room.
type RoomSnapshot struct {
	Challenge      *models.Challenge       `json:"challenge"`
	RecentMessages []*models.Message       `json:"recentMessages"`
	RecentActivity []*models.ActivityEvent `json:"recentActivity"`
	Participants   []int64                 `json:"participants"`
	ProgressByUser []ParticipantProgress   `json:"progressByUser"`
}

// PresencePayload accompanies user_joined and user_left.
type PresencePayload struct {
	UserID    int64     `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// LeaveSuccessPayload accompanies leave_success.
type LeaveSuccessPayload struct {
	ChallengeID int64 `json:"challengeId"`
}

// NewMessagePayload accompanies new_message.
type NewMessagePayload struct {
	Message  *models.Message       `json:"message"`
	Activity *models.ActivityEvent `json:"activity"`
}

// ProgressPayload accompanies outbound progress_update.
type ProgressPayload struct {
	UserID    int64     `json:"userId"`
	Progress  int       `json:"progress"`
	Completed bool      `json:"completed"`
	Timestamp time.Time `json:"timestamp"`
}

// NewError builds an error-class event of the given type.
func NewError(eventType, code, message string) Event {
	return Event{Type: eventType, Payload: ErrorPayload{Code: code, Message: message}}
}
