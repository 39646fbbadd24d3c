package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActivityKind names an entry in a challenge's activity log.
type ActivityKind string

const (
	ActivityJoined          ActivityKind = "joined"
	ActivityLeft            ActivityKind = "left"
	ActivityPostedMessage   ActivityKind = "posted_message"
	ActivityUpdatedProgress ActivityKind = "updated_progress"
	ActivityCompleted       ActivityKind = "completed"
)

// ActivityData is the kind-specific payload of an ActivityEvent. Each
// ActivityKind has exactly one implementation.
type ActivityData interface {
	ActivityKind() ActivityKind
}

// JoinedData accompanies ActivityJoined.
type JoinedData struct{}

// LeftData accompanies ActivityLeft.
type LeftData struct{}

// MessagePostedData accompanies ActivityPostedMessage.
type MessagePostedData struct {
	MessageID int64 `json:"messageId"`
}

// ProgressData accompanies ActivityUpdatedProgress.
type ProgressData struct {
	Progress int `json:"progress"`
}

// CompletedData accompanies ActivityCompleted.
type CompletedData struct {
	Progress int `json:"progress"`
}

func (JoinedData) ActivityKind() ActivityKind        { return ActivityJoined }
func (LeftData) ActivityKind() ActivityKind          { return ActivityLeft }
func (MessagePostedData) ActivityKind() ActivityKind { return ActivityPostedMessage }
func (ProgressData) ActivityKind() ActivityKind      { return ActivityUpdatedProgress }
func (CompletedData) ActivityKind() ActivityKind     { return ActivityCompleted }

// ActivityEvent is one append-only entry in a challenge's activity log.
type ActivityEvent struct {
	ID          int64
	ChallengeID int64
	UserID      int64
	Data        ActivityData
	CreatedAt   time.Time
}

// NewActivity builds an event whose kind is implied by data.
func NewActivity(challengeID, userID int64, data ActivityData, at time.Time) *ActivityEvent {
	return &ActivityEvent{
		ChallengeID: challengeID,
		UserID:      userID,
		Data:        data,
		CreatedAt:   at,
	}
}

// Kind returns the kind of the event's payload.
func (e *ActivityEvent) Kind() ActivityKind {
	if e.Data == nil {
		return ""
	}
	return e.Data.ActivityKind()
}

type activityJSON struct {
	ID          int64           `json:"id"`
	ChallengeID int64           `json:"challengeId"`
	UserID      int64           `json:"userId"`
	Kind        ActivityKind    `json:"kind"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// MarshalJSON encodes the event with an explicit kind tag.
func (e ActivityEvent) MarshalJSON() ([]byte, error) {
	data := e.Data
	if data == nil {
		return nil, fmt.Errorf("activity %d has no data", e.ID)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(activityJSON{
		ID:          e.ID,
		ChallengeID: e.ChallengeID,
		UserID:      e.UserID,
		Kind:        data.ActivityKind(),
		Data:        raw,
		CreatedAt:   e.CreatedAt,
	})
}

// UnmarshalJSON decodes the payload variant selected by the kind tag.
func (e *ActivityEvent) UnmarshalJSON(b []byte) error {
	var aux activityJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	data, err := DecodeActivityData(aux.Kind, aux.Data)
	if err != nil {
		return err
	}
	*e = ActivityEvent{
		ID:          aux.ID,
		ChallengeID: aux.ChallengeID,
		UserID:      aux.UserID,
		Data:        data,
		CreatedAt:   aux.CreatedAt,
	}
	return nil
}

// DecodeActivityData decodes raw into the payload type for kind. Storage
// backends keep kind and data in separate columns and use this directly.
func DecodeActivityData(kind ActivityKind, raw []byte) (ActivityData, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	var (
		data ActivityData
		err  error
	)
	switch kind {
	case ActivityJoined:
		var d JoinedData
		err = json.Unmarshal(raw, &d)
		data = d
	case ActivityLeft:
		var d LeftData
		err = json.Unmarshal(raw, &d)
		data = d
	case ActivityPostedMessage:
		var d MessagePostedData
		err = json.Unmarshal(raw, &d)
		data = d
	case ActivityUpdatedProgress:
		var d ProgressData
		err = json.Unmarshal(raw, &d)
		data = d
	case ActivityCompleted:
		var d CompletedData
		err = json.Unmarshal(raw, &d)
		data = d
	default:
		return nil, fmt.Errorf("unknown activity kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s activity: %w", kind, err)
	}
	return data, nil
}
