package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Tyrowin/challengehub/internal/models"
)

type participationKey struct {
	userID      int64
	challengeID int64
}

// MemoryStore keeps everything in process memory. Returned records are
// copies; callers may mutate them freely.
type MemoryStore struct {
	mu sync.RWMutex

	challenges     map[int64]*models.Challenge
	participations map[participationKey]*models.Participation
	participByID   map[int64]*models.Participation
	participOrder  map[int64][]*models.Participation
	messages       map[int64][]*models.Message
	activity       map[int64][]*models.ActivityEvent

	nextChallengeID int64
	nextParticipID  int64
	nextMessageID   int64
	nextActivityID  int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		challenges:     make(map[int64]*models.Challenge),
		participations: make(map[participationKey]*models.Participation),
		participByID:   make(map[int64]*models.Participation),
		participOrder:  make(map[int64][]*models.Participation),
		messages:       make(map[int64][]*models.Message),
		activity:       make(map[int64][]*models.ActivityEvent),
	}
}

func (s *MemoryStore) CreateChallenge(_ context.Context, c *models.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == 0 {
		s.nextChallengeID++
		for s.challenges[s.nextChallengeID] != nil {
			s.nextChallengeID++
		}
		c.ID = s.nextChallengeID
	} else if _, exists := s.challenges[c.ID]; exists {
		return ErrAlreadyExists
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	cp := *c
	s.challenges[c.ID] = &cp
	return nil
}

func (s *MemoryStore) GetChallenge(_ context.Context, id int64) (*models.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.challenges[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) UpdateParticipantCount(_ context.Context, id int64, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[id]
	if !ok {
		return ErrNotFound
	}
	c.CurrentParticipants += delta
	if c.CurrentParticipants < 0 {
		c.CurrentParticipants = 0
	}
	return nil
}

func (s *MemoryStore) GetParticipation(_ context.Context, userID, challengeID int64) (*models.Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.participations[participationKey{userID, challengeID}]
	if !ok {
		return nil, ErrNotFound
	}
	return copyParticipation(p), nil
}

func (s *MemoryStore) CreateParticipation(_ context.Context, p *models.Participation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := participationKey{p.UserID, p.ChallengeID}
	if _, exists := s.participations[key]; exists {
		return ErrAlreadyExists
	}
	s.nextParticipID++
	p.ID = s.nextParticipID
	stored := copyParticipation(p)
	s.participations[key] = stored
	s.participByID[p.ID] = stored
	s.participOrder[p.ChallengeID] = append(s.participOrder[p.ChallengeID], stored)
	return nil
}

func (s *MemoryStore) UpdateParticipation(_ context.Context, id int64, update models.ParticipationUpdate) (*models.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	update.Apply(p)
	return copyParticipation(p), nil
}

func (s *MemoryStore) ListParticipationsForChallenge(_ context.Context, challengeID int64) ([]*models.Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.participOrder[challengeID]
	out := make([]*models.Participation, 0, len(list))
	for _, p := range list {
		out = append(out, copyParticipation(p))
	}
	return out, nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextMessageID++
	m.ID = s.nextMessageID
	cp := *m
	s.messages[m.ChallengeID] = append(s.messages[m.ChallengeID], &cp)
	return nil
}

func (s *MemoryStore) ListRecentMessages(_ context.Context, challengeID int64, limit int) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.messages[challengeID]
	start := 0
	if limit > 0 && len(list) > limit {
		start = len(list) - limit
	}
	out := make([]*models.Message, 0, len(list)-start)
	for _, m := range list[start:] {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) AppendActivity(_ context.Context, e *models.ActivityEvent) error {
	if e.Data == nil {
		return fmt.Errorf("activity for challenge %d has no data", e.ChallengeID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextActivityID++
	e.ID = s.nextActivityID
	cp := *e
	s.activity[e.ChallengeID] = append(s.activity[e.ChallengeID], &cp)
	return nil
}

func (s *MemoryStore) ListRecentActivity(_ context.Context, challengeID int64, limit int) ([]*models.ActivityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.activity[challengeID]
	n := len(list)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]*models.ActivityEvent, 0, n)
	for i := len(list) - 1; i >= 0 && len(out) < n; i-- {
		cp := *list[i]
		out = append(out, &cp)
	}
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func copyParticipation(p *models.Participation) *models.Participation {
	cp := *p
	if p.CompletedAt != nil {
		at := *p.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}
