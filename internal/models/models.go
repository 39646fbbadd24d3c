// Package models defines the challenge domain records shared by the hub and
// its storage backends.
package models

import "time"

// ChallengeKind distinguishes challenges that have a live room from those
// that do not.
type ChallengeKind string

const (
	// KindIndividual challenges are completed alone and have no live room.
	KindIndividual ChallengeKind = "individual"
	// KindCollaborative challenges host a live room for their participants.
	KindCollaborative ChallengeKind = "collaborative"
)

// Challenge is a time-boxed group activity.
type Challenge struct {
	ID                  int64         `json:"id"`
	Title               string        `json:"title"`
	Description         string        `json:"description,omitempty"`
	Kind                ChallengeKind `json:"kind"`
	CurrentParticipants int           `json:"currentParticipants"`
	MaxParticipants     int           `json:"maxParticipants,omitempty"`
	StartsAt            time.Time     `json:"startsAt"`
	EndsAt              time.Time     `json:"endsAt"`
	CreatedAt           time.Time     `json:"createdAt"`
}

// IsCollaborative reports whether the challenge has a live room.
func (c *Challenge) IsCollaborative() bool {
	return c != nil && c.Kind == KindCollaborative
}

// Participation records a user's enrollment in a challenge.
type Participation struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"userId"`
	ChallengeID int64      `json:"challengeId"`
	Progress    int        `json:"progress"`
	IsCompleted bool       `json:"isCompleted"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	JoinedAt    time.Time  `json:"joinedAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ParticipationUpdate carries the mutable fields of a Participation.
type ParticipationUpdate struct {
	Progress    int
	IsCompleted bool
	At          time.Time
}

// Apply writes the update onto p. CompletedAt is stamped the first time the
// participation becomes complete and is never moved afterwards.
func (u ParticipationUpdate) Apply(p *Participation) {
	p.Progress = u.Progress
	p.IsCompleted = u.IsCompleted
	p.UpdatedAt = u.At
	if u.IsCompleted && p.CompletedAt == nil {
		at := u.At
		p.CompletedAt = &at
	}
}

// Message is a chat message posted in a challenge room.
type Message struct {
	ID          int64     `json:"id"`
	ChallengeID int64     `json:"challengeId"`
	UserID      int64     `json:"userId"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
}
