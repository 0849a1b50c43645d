package chat

import (
	"fmt"
	"slices"
	"sync"
)

// Room is a named broadcast group. Member order follows join order.
type Room struct {
	Name string

	mu      sync.RWMutex
	members []*User
}

func newRoom(name string) *Room {
	return &Room{Name: name}
}

// join adds u, announces it to the existing members and sets the user's room
// under the same lock. It reports false if u was already a member.
func (r *Room) join(u *User) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.Contains(r.members, u) {
		return false
	}

	notice := fmt.Sprintf("* new user joined chat: %s", u.Name())
	for _, m := range r.members {
		m.Send(notice)
	}
	r.members = append(r.members, u)
	u.setRoom(r)
	u.Send(fmt.Sprintf("entering room: %s", r.Name))
	return true
}

// leave announces the departure to every member, the leaver included, then
// removes u and clears its room. It reports false if u was not a member.
func (r *Room) leave(u *User) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := slices.Index(r.members, u)
	if idx < 0 {
		return false
	}

	notice := fmt.Sprintf("* user has left chat: %s", u.Name())
	r.distribute(u, notice, true)
	r.members = slices.Delete(r.members, idx, idx+1)
	u.setRoom(nil)
	return true
}

// Broadcast delivers msg to every member, the sender included.
func (r *Room) Broadcast(from *User, msg string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.distribute(from, msg, false)
}

// distribute must be called with r.mu held.
func (r *Room) distribute(from *User, msg string, flagSelf bool) {
	for _, m := range r.members {
		if flagSelf && m == from {
			m.Send(msg + selfTag)
			continue
		}
		m.Send(msg)
	}
}

// Members returns a snapshot of the member list.
func (r *Room) Members() []*User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.members)
}

// Has reports whether u is a member.
func (r *Room) Has(u *User) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Contains(r.members, u)
}

// Len reports the current member count.
func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}
