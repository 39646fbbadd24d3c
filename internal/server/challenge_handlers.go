package server

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/Tyrowin/challengehub/internal/models"
	"github.com/Tyrowin/challengehub/internal/protocol"
)

// Authenticate binds a user to the connection. Re-authenticating replaces the
// previous identity; switching to a different user while joined leaves the
// room first. A failed attempt leaves the session untouched.
func (h *Hub) Authenticate(ctx context.Context, c *Client, userID int64, sessionToken string) error {
	id, err := h.auth.Authenticate(ctx, userID, sessionToken)
	if err != nil {
		c.logger.Info("authentication failed", "user_id", userID, "error", err)
		return err
	}

	if prev := c.UserID(); prev != 0 && prev != id {
		h.leave(ctx, c)
	}
	c.setUser(id)

	c.logger.Info("client authenticated", "user_id", id)
	h.unicast(c, protocol.Event{Type: protocol.TypeAuthSuccess, Payload: protocol.AuthSuccessPayload{UserID: id}})
	return nil
}

// SendChatMessage persists a chat message in the client's room and delivers it
// to every member, the sender included.
func (h *Hub) SendChatMessage(ctx context.Context, c *Client, content string) error {
	challengeID := c.ChallengeID()
	if challengeID == 0 {
		return ErrNotInChallenge
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}

	userID := c.UserID()
	now := h.now()
	msg := &models.Message{
		ChallengeID: challengeID,
		UserID:      userID,
		Content:     content,
		CreatedAt:   now,
	}
	if err := h.store.AppendMessage(ctx, msg); err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	activity := models.NewActivity(challengeID, userID, models.MessagePostedData{MessageID: msg.ID}, now)
	if err := h.store.AppendActivity(ctx, activity); err != nil {
		return fmt.Errorf("append message activity: %w", err)
	}

	h.Broadcast(challengeID, protocol.Event{
		Type:    protocol.TypeNewMessage,
		Payload: protocol.NewMessagePayload{Message: msg, Activity: activity},
	}, nil)
	return nil
}

// UpdateProgress records the client's progress in its room and delivers the
// update to every member, the sender included. Reaching 100 always counts as
// completed.
func (h *Hub) UpdateProgress(ctx context.Context, c *Client, progress int, completed bool) error {
	challengeID := c.ChallengeID()
	if challengeID == 0 {
		return ErrNotInChallenge
	}
	if progress < 0 || progress > 100 {
		return ErrInvalidProgress.withMessage(fmt.Sprintf("progress %d is outside 0..100", progress))
	}
	completed = completed || progress == 100

	userID := c.UserID()
	participation, err := h.store.GetParticipation(ctx, userID, challengeID)
	if err != nil {
		return fmt.Errorf("get participation: %w", err)
	}

	now := h.now()
	if _, err := h.store.UpdateParticipation(ctx, participation.ID, models.ParticipationUpdate{
		Progress:    progress,
		IsCompleted: completed,
		At:          now,
	}); err != nil {
		return fmt.Errorf("update participation: %w", err)
	}

	var data models.ActivityData = models.ProgressData{Progress: progress}
	if completed {
		data = models.CompletedData{Progress: progress}
	}
	if err := h.store.AppendActivity(ctx, models.NewActivity(challengeID, userID, data, now)); err != nil {
		return fmt.Errorf("append progress activity: %w", err)
	}

	h.Broadcast(challengeID, protocol.Event{
		Type: protocol.TypeProgressUpdate,
		Payload: protocol.ProgressPayload{
			UserID:    userID,
			Progress:  progress,
			Completed: completed,
			Timestamp: now,
		},
	}, nil)
	return nil
}

// progressPercent converts a progress value from the wire into a whole
// percentage in 0..100.
func progressPercent(v float64) (int, error) {
	if v < 0 || v > 100 {
		return 0, ErrInvalidProgress.withMessage(fmt.Sprintf("progress %v is outside 0..100", v))
	}
	if v != math.Trunc(v) {
		return 0, ErrInvalidProgress.withMessage(fmt.Sprintf("progress %v must be a whole number", v))
	}
	return int(v), nil
}
