// Package protocol defines the JSON envelope exchanged over challenge room
// connections. Inbound frames are decoded once into a closed set of request
// types; outbound events are typed payloads wrapped in the same envelope.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound envelope types.
const (
	TypeAuthenticate     = "authenticate"
	TypeJoinChallenge    = "join_challenge"
	TypeLeaveChallenge   = "leave_challenge"
	TypeChallengeMessage = "challenge_message"
	TypeProgressUpdate   = "progress_update"
)

// ErrMalformedEnvelope is returned by Decode for frames that are not a JSON
// object with a string "type".
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Envelope is the wire frame in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Request is one decoded inbound envelope.
type Request interface {
	// RequestType returns the envelope type the request was decoded from.
	RequestType() string
}

// Authenticate binds a claimed identity to the connection.
type Authenticate struct {
	UserID       int64  `json:"userId"`
	SessionToken string `json:"sessionToken,omitempty"`
}

// JoinChallenge enters a challenge's live room.
type JoinChallenge struct {
	ChallengeID int64 `json:"challengeId"`
}

// LeaveChallenge exits the current room.
type LeaveChallenge struct{}

// ChatMessage posts content to the current room.
type ChatMessage struct {
	Content string `json:"content"`
}

// ProgressUpdate reports the sender's completion percentage. Progress is any
// JSON number; the hub accepts whole values in 0..100. It is a pointer so a
// missing field can be told apart from zero.
type ProgressUpdate struct {
	Progress  *float64 `json:"progress"`
	Completed bool     `json:"completed"`
}

// Unknown is any envelope whose type is not recognized.
type Unknown struct {
	Type string
}

func (Authenticate) RequestType() string   { return TypeAuthenticate }
func (JoinChallenge) RequestType() string  { return TypeJoinChallenge }
func (LeaveChallenge) RequestType() string { return TypeLeaveChallenge }
func (ChatMessage) RequestType() string    { return TypeChallengeMessage }
func (ProgressUpdate) RequestType() string { return TypeProgressUpdate }
func (u Unknown) RequestType() string      { return u.Type }

// PayloadError reports a recognized envelope whose payload did not decode.
type PayloadError struct {
	Type string
	Err  error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("invalid %s payload: %v", e.Type, e.Err)
}

func (e *PayloadError) Unwrap() error { return e.Err }

// Decode parses raw into a Request. Unrecognized types yield Unknown and a
// nil error; frames without a usable type yield ErrMalformedEnvelope; payload
// decode failures yield a *PayloadError.
func Decode(raw []byte) (Request, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	}

	var req Request
	switch env.Type {
	case TypeAuthenticate:
		var r Authenticate
		if err := decodePayload(env, &r); err != nil {
			return nil, err
		}
		req = r
	case TypeJoinChallenge:
		var r JoinChallenge
		if err := decodePayload(env, &r); err != nil {
			return nil, err
		}
		req = r
	case TypeLeaveChallenge:
		req = LeaveChallenge{}
	case TypeChallengeMessage:
		var r ChatMessage
		if err := decodePayload(env, &r); err != nil {
			return nil, err
		}
		req = r
	case TypeProgressUpdate:
		var r ProgressUpdate
		if err := decodePayload(env, &r); err != nil {
			return nil, err
		}
		req = r
	default:
		req = Unknown{Type: env.Type}
	}
	return req, nil
}

func decodePayload(env Envelope, v any) error {
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return &PayloadError{Type: env.Type, Err: errors.New("missing payload")}
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return &PayloadError{Type: env.Type, Err: err}
	}
	return nil
}
