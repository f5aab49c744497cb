package core

import (
	"net"
	"sync"
	"time"

	"github.com/hmuro/roomcast/internal/domain"
)

// historyLimit bounds the in-memory chat history per room. History is not
// persisted; it dies with the room.
const historyLimit = 50

// Room is a threadsafe in-memory room: membership keyed by credential,
// the host credential, and recent chat lines. Rooms are created and torn
// down only by the Registry; the relay path reads and refreshes members
// under the room's own lock.
type Room struct {
	name     string
	capacity int

	mu      sync.RWMutex
	members map[string]*domain.Membership
	host    string
	history []string
}

func newRoom(name string, capacity int) *Room {
	return &Room{
		name:     name,
		capacity: capacity,
		members:  make(map[string]*domain.Membership),
	}
}

func (r *Room) Name() string { return r.name }

func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// addMember registers a membership. It returns false at capacity. The
// first host member fixes the room's host credential for its lifetime.
func (r *Room) addMember(m *domain.Membership) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.members) >= r.capacity {
		return false
	}
	r.members[m.Credential] = m
	if m.IsHost && r.host == "" {
		r.host = m.Credential
	}
	return true
}

func (r *Room) removeMember(credential string) (domain.Membership, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[credential]
	if !ok {
		return domain.Membership{}, false
	}
	delete(r.members, credential)
	return *m, true
}

// removeAll clears the room and returns the prior membership so the
// caller can notify everyone. Used for host-initiated teardown.
func (r *Room) removeAll() []domain.Membership {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Membership, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, *m)
	}
	r.members = make(map[string]*domain.Membership)
	return out
}

func (r *Room) isHost(credential string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return credential != "" && credential == r.host
}

// Refresh marks activity on a credential and rebinds its endpoint if the
// datagram arrived from a new source address. It returns a copy of the
// membership.
func (r *Room) Refresh(credential string, from *net.UDPAddr, now time.Time) (domain.Membership, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[credential]
	if !ok {
		return domain.Membership{}, false
	}
	m.LastActivity = now
	if from != nil && (m.Endpoint == nil || m.Endpoint.String() != from.String()) {
		m.Endpoint = from
	}
	return *m, true
}

// ResolveEndpoint returns the relay endpoint bound to a credential.
func (r *Room) ResolveEndpoint(credential string) (*net.UDPAddr, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[credential]
	if !ok {
		return nil, false
	}
	return m.Endpoint, true
}

// BroadcastTargets returns every member's endpoint except the excluded
// credential's, in no particular order.
func (r *Room) BroadcastTargets(exclude string) []*net.UDPAddr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*net.UDPAddr, 0, len(r.members))
	for cred, m := range r.members {
		if cred == exclude || m.Endpoint == nil {
			continue
		}
		out = append(out, m.Endpoint)
	}
	return out
}

// membersSnapshot copies the current membership.
func (r *Room) membersSnapshot(exclude string) []domain.Membership {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Membership, 0, len(r.members))
	for cred, m := range r.members {
		if cred == exclude {
			continue
		}
		out = append(out, *m)
	}
	return out
}

// idleCredentials returns members whose last activity predates the cutoff.
func (r *Room) idleCredentials(cutoff time.Time) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for cred, m := range r.members {
		if m.LastActivity.Before(cutoff) {
			out = append(out, cred)
		}
	}
	return out
}

// AppendMessage records a chat line in the room's bounded history.
func (r *Room) AppendMessage(displayName, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, displayName+": "+text)
	if len(r.history) > historyLimit {
		r.history = r.history[len(r.history)-historyLimit:]
	}
}

// HistoryLen reports how many chat lines the room currently retains.
func (r *Room) HistoryLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.history)
}
