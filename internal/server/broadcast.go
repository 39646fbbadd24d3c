package server

import (
	"github.com/Tyrowin/challengehub/internal/protocol"
)

// Broadcast sends event to every member of the room except exclude, which may
// be nil. The event is serialized once. Delivery never blocks: a member whose
// queue is full or closed is skipped, logged and left for the liveness monitor.
// It returns the number of members the event was queued for.
func (h *Hub) Broadcast(challengeID int64, event protocol.Event, exclude *Client) int {
	payload, err := event.Marshal()
	if err != nil {
		h.logger.Error("failed to encode broadcast", "type", event.Type, "challenge_id", challengeID, "error", err)
		return 0
	}

	members := h.registry.Members(challengeID)
	delivered := 0
	for _, member := range members {
		if member == exclude {
			continue
		}
		if member.enqueue(payload) {
			delivered++
			h.metrics.BroadcastDelivery(true)
			continue
		}
		h.metrics.BroadcastDelivery(false)
		member.logger.Warn("dropped broadcast; send queue full or closed",
			"type", event.Type, "challenge_id", challengeID)
	}

	h.logger.Debug("broadcast", "type", event.Type, "challenge_id", challengeID,
		"members", len(members), "delivered", delivered)
	return delivered
}

// unicast queues event for a single client.
func (h *Hub) unicast(c *Client, event protocol.Event) bool {
	payload, err := event.Marshal()
	if err != nil {
		c.logger.Error("failed to encode event", "type", event.Type, "error", err)
		return false
	}
	if !c.enqueue(payload) {
		h.metrics.BroadcastDelivery(false)
		c.logger.Warn("dropped event; send queue full or closed", "type", event.Type)
		return false
	}
	return true
}
