package store_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/challengehub/internal/models"
	"github.com/Tyrowin/challengehub/internal/store"
)

// backends opens every driver against a fresh location.
func backends(t *testing.T) map[string]func(t *testing.T) store.Store {
	return map[string]func(t *testing.T) store.Store{
		"memory": func(t *testing.T) store.Store {
			return store.NewMemoryStore()
		},
		"sqlite": func(t *testing.T) store.Store {
			s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "hub.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
		"bolt": func(t *testing.T) store.Store {
			s, err := store.OpenBolt(filepath.Join(t.TempDir(), "hub.bolt"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func TestStoreConformance(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("challenges", func(t *testing.T) { testChallenges(t, open(t)) })
			t.Run("participations", func(t *testing.T) { testParticipations(t, open(t)) })
			t.Run("messages", func(t *testing.T) { testMessages(t, open(t)) })
			t.Run("activity", func(t *testing.T) { testActivity(t, open(t)) })
		})
	}
}

func seedChallenge(t *testing.T, s store.Store, id int64) *models.Challenge {
	t.Helper()
	c := &models.Challenge{
		ID:        id,
		Title:     "Read 10 books",
		Kind:      models.KindCollaborative,
		StartsAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndsAt:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.CreateChallenge(context.Background(), c))
	return c
}

func testChallenges(t *testing.T, s store.Store) {
	ctx := context.Background()

	c := seedChallenge(t, s, 42)
	assert.Equal(t, int64(42), c.ID)

	err := s.CreateChallenge(ctx, &models.Challenge{ID: 42, Title: "dup", Kind: models.KindIndividual})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	auto := &models.Challenge{Title: "auto", Kind: models.KindIndividual}
	require.NoError(t, s.CreateChallenge(ctx, auto))
	assert.NotZero(t, auto.ID)
	assert.NotEqual(t, int64(42), auto.ID)

	got, err := s.GetChallenge(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Read 10 books", got.Title)
	assert.True(t, got.IsCollaborative())
	assert.True(t, got.StartsAt.Equal(c.StartsAt))

	require.NoError(t, s.UpdateParticipantCount(ctx, 42, 1))
	require.NoError(t, s.UpdateParticipantCount(ctx, 42, 1))
	got, err = s.GetChallenge(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentParticipants)

	_, err = s.GetChallenge(ctx, 9999)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.UpdateParticipantCount(ctx, 9999, 1), store.ErrNotFound)

	created, err := store.EnsureChallenge(ctx, s, &models.Challenge{ID: 42, Title: "again"})
	require.NoError(t, err)
	assert.False(t, created)
}

func testParticipations(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedChallenge(t, s, 42)
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	_, err := s.GetParticipation(ctx, 7, 42)
	require.ErrorIs(t, err, store.ErrNotFound)

	for _, user := range []int64{7, 9, 3} {
		p := &models.Participation{UserID: user, ChallengeID: 42, JoinedAt: now, UpdatedAt: now}
		require.NoError(t, s.CreateParticipation(ctx, p))
		assert.NotZero(t, p.ID)
	}

	dup := &models.Participation{UserID: 7, ChallengeID: 42, JoinedAt: now, UpdatedAt: now}
	assert.ErrorIs(t, s.CreateParticipation(ctx, dup), store.ErrAlreadyExists)

	list, err := s.ListParticipationsForChallenge(ctx, 42)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int64{7, 9, 3}, []int64{list[0].UserID, list[1].UserID, list[2].UserID})

	p, err := s.GetParticipation(ctx, 9, 42)
	require.NoError(t, err)
	updated, err := s.UpdateParticipation(ctx, p.ID, models.ParticipationUpdate{
		Progress: 100, IsCompleted: true, At: now.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, 100, updated.Progress)
	assert.True(t, updated.IsCompleted)
	require.NotNil(t, updated.CompletedAt)

	again, err := s.GetParticipation(ctx, 9, 42)
	require.NoError(t, err)
	assert.True(t, again.IsCompleted)
	assert.True(t, again.CompletedAt.Equal(now.Add(time.Hour)))

	_, err = s.UpdateParticipation(ctx, 424242, models.ParticipationUpdate{})
	assert.ErrorIs(t, err, store.ErrNotFound)

	other, err := s.ListParticipationsForChallenge(ctx, 43)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func testMessages(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	for i, content := range []string{"one", "two", "three", "four"} {
		m := &models.Message{ChallengeID: 42, UserID: 7, Content: content, CreatedAt: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, s.AppendMessage(ctx, m))
		assert.NotZero(t, m.ID)
	}
	require.NoError(t, s.AppendMessage(ctx, &models.Message{ChallengeID: 43, UserID: 1, Content: "elsewhere", CreatedAt: base}))

	recent, err := s.ListRecentMessages(ctx, 42, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "two", recent[0].Content)
	assert.Equal(t, "four", recent[2].Content)

	all, err := s.ListRecentMessages(ctx, 42, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	none, err := s.ListRecentMessages(ctx, 44, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testActivity(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	events := []models.ActivityData{
		models.JoinedData{},
		models.MessagePostedData{MessageID: 5},
		models.ProgressData{Progress: 40},
		models.CompletedData{Progress: 100},
		models.LeftData{},
	}
	for i, data := range events {
		e := models.NewActivity(42, 7, data, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, s.AppendActivity(ctx, e))
		assert.NotZero(t, e.ID)
	}

	recent, err := s.ListRecentActivity(ctx, 42, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, models.ActivityLeft, recent[0].Kind())
	assert.Equal(t, models.CompletedData{Progress: 100}, recent[1].Data)
	assert.Equal(t, models.ProgressData{Progress: 40}, recent[2].Data)
	assert.True(t, recent[0].CreatedAt.After(recent[1].CreatedAt))

	all, err := s.ListRecentActivity(ctx, 42, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, models.MessagePostedData{MessageID: 5}, all[3].Data)

	assert.Error(t, s.AppendActivity(ctx, &models.ActivityEvent{ChallengeID: 42, UserID: 7}))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := store.Open("postgres", "")
	require.Error(t, err)

	_, err = store.Open(store.DriverBolt, "")
	require.Error(t, err)

	s, err := store.Open("", "")
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, s)
}

func TestInstrumentReportsOperations(t *testing.T) {
	var (
		mu  sync.Mutex
		ops []string
	)
	s := store.Instrument(store.NewMemoryStore(), func(op string, _ time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		ops = append(ops, op)
	})
	ctx := context.Background()

	require.NoError(t, s.CreateChallenge(ctx, &models.Challenge{ID: 1, Kind: models.KindCollaborative}))
	_, err := s.GetChallenge(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, s.AppendMessage(ctx, &models.Message{ChallengeID: 1, UserID: 1, Content: "x"}))

	assert.Equal(t, []string{"get_challenge", "append_message"}, ops)
}
