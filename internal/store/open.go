package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Tyrowin/challengehub/internal/models"
)

// Supported storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
)

// Open returns the backend named by driver. path is ignored for the memory
// driver and required for bolt.
func Open(driver, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		return OpenSQLite(path)
	case DriverBolt:
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bolt driver requires a path")
		}
		return OpenBolt(path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// EnsureChallenge creates c unless a challenge with its id already exists.
// It reports whether a new record was written.
func EnsureChallenge(ctx context.Context, s Store, c *models.Challenge) (bool, error) {
	if c.ID != 0 {
		if _, err := s.GetChallenge(ctx, c.ID); err == nil {
			return false, nil
		} else if !errors.Is(err, ErrNotFound) {
			return false, err
		}
	}
	if err := s.CreateChallenge(ctx, c); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ObserveFunc receives the name and duration of every store operation.
type ObserveFunc func(operation string, d time.Duration)

type instrumented struct {
	Store
	observe ObserveFunc
}

// Instrument wraps s so that each collaborator call is reported to observe.
func Instrument(s Store, observe ObserveFunc) Store {
	if observe == nil {
		return s
	}
	return &instrumented{Store: s, observe: observe}
}

func (s *instrumented) track(op string) func() {
	start := time.Now()
	return func() { s.observe(op, time.Since(start)) }
}

func (s *instrumented) GetChallenge(ctx context.Context, id int64) (*models.Challenge, error) {
	defer s.track("get_challenge")()
	return s.Store.GetChallenge(ctx, id)
}

func (s *instrumented) UpdateParticipantCount(ctx context.Context, id int64, delta int) error {
	defer s.track("update_participant_count")()
	return s.Store.UpdateParticipantCount(ctx, id, delta)
}

func (s *instrumented) GetParticipation(ctx context.Context, userID, challengeID int64) (*models.Participation, error) {
	defer s.track("get_participation")()
	return s.Store.GetParticipation(ctx, userID, challengeID)
}

func (s *instrumented) CreateParticipation(ctx context.Context, p *models.Participation) error {
	defer s.track("create_participation")()
	return s.Store.CreateParticipation(ctx, p)
}

func (s *instrumented) UpdateParticipation(ctx context.Context, id int64, update models.ParticipationUpdate) (*models.Participation, error) {
	defer s.track("update_participation")()
	return s.Store.UpdateParticipation(ctx, id, update)
}

func (s *instrumented) ListParticipationsForChallenge(ctx context.Context, challengeID int64) ([]*models.Participation, error) {
	defer s.track("list_participations")()
	return s.Store.ListParticipationsForChallenge(ctx, challengeID)
}

func (s *instrumented) AppendMessage(ctx context.Context, m *models.Message) error {
	defer s.track("append_message")()
	return s.Store.AppendMessage(ctx, m)
}

func (s *instrumented) ListRecentMessages(ctx context.Context, challengeID int64, limit int) ([]*models.Message, error) {
	defer s.track("list_recent_messages")()
	return s.Store.ListRecentMessages(ctx, challengeID, limit)
}

func (s *instrumented) AppendActivity(ctx context.Context, e *models.ActivityEvent) error {
	defer s.track("append_activity")()
	return s.Store.AppendActivity(ctx, e)
}

func (s *instrumented) ListRecentActivity(ctx context.Context, challengeID int64, limit int) ([]*models.ActivityEvent, error) {
	defer s.track("list_recent_activity")()
	return s.Store.ListRecentActivity(ctx, challengeID, limit)
}
