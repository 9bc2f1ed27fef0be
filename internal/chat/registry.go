package chat

import (
	"sort"
	"sync"
)

// Registry holds the two shared maps every connection dispatches against:
// nickname -> live session, and group name -> member set. One lock guards
// both so membership facts and session lookups stay consistent within a
// command. A group entry exists iff its member set is non-empty.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	groups   map[string]map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		groups:   make(map[string]map[string]bool),
	}
}

// Register claims nick for s. It reports false when the nickname is already
// held by a live session.
func (r *Registry) Register(nick string, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.sessions[nick]; taken {
		return false
	}
	r.sessions[nick] = s
	return true
}

// Unregister removes nick and prunes it from every group, deleting groups
// that become empty.
func (r *Registry) Unregister(nick string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, nick)
	for name, members := range r.groups {
		if members[nick] {
			delete(members, nick)
			if len(members) == 0 {
				delete(r.groups, name)
			}
		}
	}
}

// Lookup returns the live session registered under nick.
func (r *Registry) Lookup(nick string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[nick]
	return s, ok
}

// Nicknames returns all registered nicknames, sorted.
func (r *Registry) Nicknames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sessions))
	for nick := range r.sessions {
		out = append(out, nick)
	}
	sort.Strings(out)
	return out
}

// Sessions returns a snapshot of every live session, for broadcasts.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// CreateGroup creates name with owner as sole member. It reports false when
// the group already exists.
func (r *Registry) CreateGroup(name, owner string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.groups[name]; exists {
		return false
	}
	r.groups[name] = map[string]bool{owner: true}
	return true
}

// JoinGroup adds nick to an existing group (idempotent for members). It
// reports false when the group does not exist.
func (r *Registry) JoinGroup(name, nick string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.groups[name]
	if !ok {
		return false
	}
	members[nick] = true
	return true
}

// LeaveGroup removes nick from the group, deleting it when the last member
// leaves. It reports false when nick is not a member.
func (r *Registry) LeaveGroup(name, nick string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.groups[name]
	if !ok || !members[nick] {
		return false
	}
	delete(members, nick)
	if len(members) == 0 {
		delete(r.groups, name)
	}
	return true
}

// IsMember reports whether nick currently belongs to the group.
func (r *Registry) IsMember(name, nick string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.groups[name][nick]
}

// GroupMembers returns the sorted member list, or ok=false when the group
// does not exist.
func (r *Registry) GroupMembers(name string) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members, ok := r.groups[name]
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(members))
	for nick := range members {
		out = append(out, nick)
	}
	sort.Strings(out)
	return out, true
}

// Groups returns every group name with its sorted members.
func (r *Registry) Groups() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]string, len(r.groups))
	for name, members := range r.groups {
		list := make([]string, 0, len(members))
		for nick := range members {
			list = append(list, nick)
		}
		sort.Strings(list)
		out[name] = list
	}
	return out
}
