package server

import "sync"

// Registry maps challenge ids to the clients currently joined to them. It is
// the only place room membership is recorded: a client's challengeID is
// written here, under the registry lock, and nowhere else.
type Registry struct {
	mu         sync.RWMutex
	rooms      map[int64]map[*Client]struct{}
	membership map[*Client]int64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:      make(map[int64]map[*Client]struct{}),
		membership: make(map[*Client]int64),
	}
}

// Add places c in the room for challengeID, moving it out of any other room.
// It returns false without changes if c has already been closed.
func (r *Registry) Add(c *Client, challengeID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}

	if prev, ok := r.membership[c]; ok {
		if prev == challengeID {
			return true
		}
		r.removeLocked(c, prev)
	}

	room, ok := r.rooms[challengeID]
	if !ok {
		room = make(map[*Client]struct{})
		r.rooms[challengeID] = room
	}
	room[c] = struct{}{}
	r.membership[c] = challengeID
	c.challengeID = challengeID
	return true
}

// Remove takes c out of its room and reports which room that was. Only one of
// several concurrent callers observes ok == true.
func (r *Registry) Remove(c *Client) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	challengeID, ok := r.membership[c]
	if !ok {
		return 0, false
	}

	c.mu.Lock()
	r.removeLocked(c, challengeID)
	c.mu.Unlock()
	return challengeID, true
}

// removeLocked requires both r.mu and c.mu.
func (r *Registry) removeLocked(c *Client, challengeID int64) {
	if room, ok := r.rooms[challengeID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(r.rooms, challengeID)
		}
	}
	delete(r.membership, c)
	c.challengeID = 0
}

// Members returns a snapshot of the clients in a room.
func (r *Registry) Members(challengeID int64) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[challengeID]
	members := make([]*Client, 0, len(room))
	for c := range room {
		members = append(members, c)
	}
	return members
}

// RoomOf returns the room c is joined to.
func (r *Registry) RoomOf(c *Client) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	challengeID, ok := r.membership[c]
	return challengeID, ok
}

// RoomCount returns the number of non-empty rooms.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// MemberCount returns the number of joined clients across all rooms.
func (r *Registry) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.membership)
}
