// Package store defines the persistence collaborators consumed by the hub and
// provides in-memory, SQLite and bbolt backends for them.
package store

import (
	"context"
	"errors"

	"github.com/Tyrowin/challengehub/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// ChallengeDirectory resolves challenges and tracks their participant counter.
type ChallengeDirectory interface {
	GetChallenge(ctx context.Context, id int64) (*models.Challenge, error)
	UpdateParticipantCount(ctx context.Context, id int64, delta int) error
}

// ParticipationStore persists (user, challenge) enrollments.
type ParticipationStore interface {
	GetParticipation(ctx context.Context, userID, challengeID int64) (*models.Participation, error)
	// CreateParticipation assigns p.ID. It returns ErrAlreadyExists when the
	// (UserID, ChallengeID) pair is taken.
	CreateParticipation(ctx context.Context, p *models.Participation) error
	UpdateParticipation(ctx context.Context, id int64, update models.ParticipationUpdate) (*models.Participation, error)
	// ListParticipationsForChallenge returns participations in creation order.
	ListParticipationsForChallenge(ctx context.Context, challengeID int64) ([]*models.Participation, error)
}

// MessageStore persists chat messages.
type MessageStore interface {
	// AppendMessage assigns m.ID.
	AppendMessage(ctx context.Context, m *models.Message) error
	// ListRecentMessages returns up to limit of the newest messages, ordered
	// oldest to newest.
	ListRecentMessages(ctx context.Context, challengeID int64, limit int) ([]*models.Message, error)
}

// ActivityLog is the append-only per-challenge activity feed.
type ActivityLog interface {
	// AppendActivity assigns e.ID.
	AppendActivity(ctx context.Context, e *models.ActivityEvent) error
	// ListRecentActivity returns up to limit events, newest first.
	ListRecentActivity(ctx context.Context, challengeID int64, limit int) ([]*models.ActivityEvent, error)
}

// Store groups every collaborator behind a single backend.
type Store interface {
	ChallengeDirectory
	ParticipationStore
	MessageStore
	ActivityLog

	// CreateChallenge assigns c.ID when it is zero. It returns
	// ErrAlreadyExists when an explicit id is taken.
	CreateChallenge(ctx context.Context, c *models.Challenge) error
	Close() error
}
