package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Tyrowin/challengehub/internal/models"
	"github.com/Tyrowin/challengehub/internal/protocol"
	"github.com/Tyrowin/challengehub/internal/store"
)

// Join enters c into the live room of challengeID. A first visit enrolls the
// user. The caller receives join_success with the room snapshot and the rest
// of the room receives user_joined. Joining another room while joined leaves
// the first; joining the same room again only resends the snapshot.
func (h *Hub) Join(ctx context.Context, c *Client, challengeID int64) (*protocol.RoomSnapshot, error) {
	userID := c.UserID()
	if userID == 0 {
		return nil, ErrNotAuthenticated
	}

	if _, err := h.collaborativeChallenge(ctx, challengeID); err != nil {
		return nil, err
	}

	current := c.ChallengeID()
	rejoin := current == challengeID
	if current != 0 && !rejoin {
		h.leave(ctx, c)
	}

	if !rejoin {
		if !h.registry.Add(c, challengeID) {
			return nil, errClientClosed
		}
		h.metrics.SetRoomMembers(h.registry.MemberCount())
	}

	snapshot, enrolled, err := h.enroll(ctx, userID, challengeID)
	if err != nil {
		if !rejoin {
			h.registry.Remove(c)
			h.metrics.SetRoomMembers(h.registry.MemberCount())
		}
		return nil, err
	}

	// A disconnect during enrollment has already run leave for this client.
	if room, ok := h.registry.RoomOf(c); !ok || room != challengeID {
		if enrolled {
			h.recordLeft(ctx, c, userID, challengeID, h.now())
		}
		c.logger.Info("client left during join", "user_id", userID, "challenge_id", challengeID)
		return nil, errClientClosed
	}

	h.unicast(c, protocol.Event{Type: protocol.TypeJoinSuccess, Payload: snapshot})
	if !rejoin {
		h.Broadcast(challengeID, protocol.Event{
			Type:    protocol.TypeUserJoined,
			Payload: protocol.PresencePayload{UserID: userID, Timestamp: h.now()},
		}, c)
		c.logger.Info("joined challenge", "user_id", userID, "challenge_id", challengeID)
	}
	return snapshot, nil
}

// enroll creates the user's participation on first visit and returns the
// room snapshot. It reports whether a participation was created.
func (h *Hub) enroll(ctx context.Context, userID, challengeID int64) (*protocol.RoomSnapshot, bool, error) {
	created, err := h.ensureParticipation(ctx, userID, challengeID)
	if err != nil {
		return nil, created, err
	}
	snapshot, err := h.Snapshot(ctx, challengeID)
	return snapshot, created, err
}

func (h *Hub) ensureParticipation(ctx context.Context, userID, challengeID int64) (bool, error) {
	_, err := h.store.GetParticipation(ctx, userID, challengeID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("get participation: %w", err)
	}

	now := h.now()
	p := &models.Participation{
		UserID:      userID,
		ChallengeID: challengeID,
		JoinedAt:    now,
		UpdatedAt:   now,
	}
	if err := h.store.CreateParticipation(ctx, p); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return false, nil
		}
		return false, fmt.Errorf("create participation: %w", err)
	}
	if err := h.store.UpdateParticipantCount(ctx, challengeID, 1); err != nil {
		return true, fmt.Errorf("update participant count: %w", err)
	}
	if err := h.store.AppendActivity(ctx, models.NewActivity(challengeID, userID, models.JoinedData{}, now)); err != nil {
		return true, fmt.Errorf("append joined activity: %w", err)
	}
	return true, nil
}

func (h *Hub) collaborativeChallenge(ctx context.Context, challengeID int64) (*models.Challenge, error) {
	challenge, err := h.store.GetChallenge(ctx, challengeID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrChallengeNotFound.withMessage(fmt.Sprintf("challenge %d not found", challengeID))
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge %d: %w", challengeID, err)
	}
	if !challenge.IsCollaborative() {
		return nil, ErrNotCollaborative.withMessage(fmt.Sprintf("challenge %d is not collaborative", challengeID))
	}
	return challenge, nil
}

// Snapshot assembles the current state of a room: the challenge, recent
// messages oldest first, recent activity newest first, the roster in join
// order and every participant's progress.
func (h *Hub) Snapshot(ctx context.Context, challengeID int64) (*protocol.RoomSnapshot, error) {
	challenge, err := h.collaborativeChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	messages, err := h.store.ListRecentMessages(ctx, challengeID, h.cfg.RecentMessages)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	activity, err := h.store.ListRecentActivity(ctx, challengeID, h.cfg.RecentActivity)
	if err != nil {
		return nil, fmt.Errorf("list recent activity: %w", err)
	}
	participations, err := h.store.ListParticipationsForChallenge(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("list participations: %w", err)
	}

	snapshot := &protocol.RoomSnapshot{
		Challenge:      challenge,
		RecentMessages: messages,
		RecentActivity: activity,
		Participants:   make([]int64, 0, len(participations)),
		ProgressByUser: make([]protocol.ParticipantProgress, 0, len(participations)),
	}
	if snapshot.RecentMessages == nil {
		snapshot.RecentMessages = []*models.Message{}
	}
	if snapshot.RecentActivity == nil {
		snapshot.RecentActivity = []*models.ActivityEvent{}
	}

	seen := make(map[int64]struct{}, len(participations))
	for _, p := range participations {
		if _, dup := seen[p.UserID]; dup {
			continue
		}
		seen[p.UserID] = struct{}{}
		snapshot.Participants = append(snapshot.Participants, p.UserID)
		snapshot.ProgressByUser = append(snapshot.ProgressByUser, protocol.ParticipantProgress{
			UserID:      p.UserID,
			Progress:    p.Progress,
			IsCompleted: p.IsCompleted,
		})
	}
	return snapshot, nil
}

// LeaveChallenge handles an explicit leave_challenge. It acknowledges with
// leave_success when the client was joined and does nothing otherwise.
func (h *Hub) LeaveChallenge(ctx context.Context, c *Client) {
	challengeID, ok := h.leave(ctx, c)
	if !ok {
		return
	}
	h.unicast(c, protocol.Event{
		Type:    protocol.TypeLeaveSuccess,
		Payload: protocol.LeaveSuccessPayload{ChallengeID: challengeID},
	})
}

// leave takes c out of its room, records a left activity and tells the
// remaining members. The participation is kept. It reports the room left, or
// false if c was not joined.
func (h *Hub) leave(ctx context.Context, c *Client) (int64, bool) {
	challengeID, ok := h.registry.Remove(c)
	if !ok {
		return 0, false
	}
	h.metrics.SetRoomMembers(h.registry.MemberCount())

	userID := c.UserID()
	now := h.now()
	h.recordLeft(ctx, c, userID, challengeID, now)

	h.Broadcast(challengeID, protocol.Event{
		Type:    protocol.TypeUserLeft,
		Payload: protocol.PresencePayload{UserID: userID, Timestamp: now},
	}, nil)
	c.logger.Info("left challenge", "user_id", userID, "challenge_id", challengeID)
	return challengeID, true
}

// recordLeft appends a left activity. Failures are logged only.
func (h *Hub) recordLeft(ctx context.Context, c *Client, userID, challengeID int64, at time.Time) {
	if err := h.store.AppendActivity(ctx, models.NewActivity(challengeID, userID, models.LeftData{}, at)); err != nil {
		c.logger.Error("failed to record left activity", "user_id", userID, "challenge_id", challengeID, "error", err)
	}
}
