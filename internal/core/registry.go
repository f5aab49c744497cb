package core

import (
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hmuro/roomcast/internal/domain"
)

// TokenIssuer mints session credentials.
type TokenIssuer interface {
	Issue() (string, error)
}

// Registry owns the room-name to room mapping and serializes room
// lifecycle. Every check-then-act sequence (create, join, leave, sweep)
// runs under the registry lock so that two concurrent creates of the same
// name cannot both succeed and a departure cannot race a teardown.
type Registry struct {
	mu       sync.Mutex
	rooms    map[string]*Room
	issuer   TokenIssuer
	capacity int
}

func NewRegistry(issuer TokenIssuer, capacity int) *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		issuer:   issuer,
		capacity: capacity,
	}
}

// Departure describes one completed leave sequence, whether client-sent
// or synthesized by the idle monitor.
type Departure struct {
	Room       string
	Member     domain.Membership
	HostLeft   bool
	RoomClosed bool
	// Notify holds the peers owed a notice: everyone evicted by a host
	// teardown, or the members remaining after a non-host departure.
	Notify []domain.Membership
}

// Create registers a new room with the creator as host and returns the
// issued credential.
func (g *Registry) Create(name, displayName string, endpoint *net.UDPAddr) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.rooms[name]; ok {
		return "", domain.ErrRoomExists
	}
	cred, err := g.issuer.Issue()
	if err != nil {
		return "", err
	}
	room := newRoom(name, g.capacity)
	if !room.addMember(domain.NewMembership(cred, displayName, endpoint, true)) {
		return "", domain.ErrRoomFull
	}
	g.rooms[name] = room
	log.Info().Str("module", "core.registry").Str("room", name).Str("host", displayName).Msg("room created")
	return cred, nil
}

// Join adds a non-host member to an existing room and returns the issued
// credential.
func (g *Registry) Join(name, displayName string, endpoint *net.UDPAddr) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.rooms[name]
	if !ok {
		return "", domain.ErrRoomNotFound
	}
	cred, err := g.issuer.Issue()
	if err != nil {
		return "", err
	}
	if !room.addMember(domain.NewMembership(cred, displayName, endpoint, false)) {
		return "", domain.ErrRoomFull
	}
	log.Info().Str("module", "core.registry").Str("room", name).Str("member", displayName).Msg("member joined")
	return cred, nil
}

// Lookup is a non-mutating read of the registry.
func (g *Registry) Lookup(name string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.rooms[name]
	return room, ok
}

// Leave runs the leave sequence for one credential. A host departure
// tears down the whole room; a non-host departure deletes the room only
// if it emptied it.
func (g *Registry) Leave(name, credential string) (Departure, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.rooms[name]
	if !ok {
		return Departure{}, domain.ErrRoomNotFound
	}
	return g.leaveLocked(name, room, credential)
}

func (g *Registry) leaveLocked(name string, room *Room, credential string) (Departure, error) {
	if room.isHost(credential) {
		removed := room.removeAll()
		delete(g.rooms, name)
		dep := Departure{Room: name, HostLeft: true, RoomClosed: true}
		for _, m := range removed {
			if m.Credential == credential {
				dep.Member = m
				continue
			}
			dep.Notify = append(dep.Notify, m)
		}
		log.Info().Str("module", "core.registry").Str("room", name).Int("evicted", len(dep.Notify)).Msg("host left, room closed")
		return dep, nil
	}
	m, ok := room.removeMember(credential)
	if !ok {
		return Departure{}, domain.ErrCredentialUnknown
	}
	dep := Departure{Room: name, Member: m, Notify: room.membersSnapshot("")}
	if room.MemberCount() == 0 {
		delete(g.rooms, name)
		dep.RoomClosed = true
	}
	log.Info().Str("module", "core.registry").Str("room", name).Str("member", m.DisplayName).Bool("closed", dep.RoomClosed).Msg("member left")
	return dep, nil
}

// SweepIdle removes every member whose last activity predates the cutoff,
// applying the same leave sequence as an explicit exit. The idle check is
// atomic with the removal, so activity that lands after the sweep started
// keeps the member for the next round.
func (g *Registry) SweepIdle(cutoff time.Time) []Departure {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Departure
	for name, room := range g.rooms {
		for _, cred := range room.idleCredentials(cutoff) {
			dep, err := g.leaveLocked(name, room, cred)
			if err != nil {
				// Already gone, e.g. evicted by an earlier host cascade.
				continue
			}
			out = append(out, dep)
			if dep.HostLeft {
				break
			}
		}
	}
	return out
}

// RoomInfo is a point-in-time view of one room, for the operational API.
type RoomInfo struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
	History int    `json:"history"`
}

// List snapshots all rooms.
func (g *Registry) List() []RoomInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]RoomInfo, 0, len(g.rooms))
	for name, room := range g.rooms {
		out = append(out, RoomInfo{Name: name, Members: room.MemberCount(), History: room.HistoryLen()})
	}
	return out
}
