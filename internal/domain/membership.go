package domain

import (
	"net"
	"time"
)

// Membership represents one joined session within a room.
// It is owned by its room and mutated only under the room's lock.
type Membership struct {
	Credential   string
	DisplayName  string
	Endpoint     *net.UDPAddr
	IsHost       bool
	LastActivity time.Time
}

// NewMembership avoids raw literals in transports and keeps construction obvious.
func NewMembership(credential, displayName string, endpoint *net.UDPAddr, isHost bool) *Membership {
	return &Membership{
		Credential:   credential,
		DisplayName:  displayName,
		Endpoint:     endpoint,
		IsHost:       isHost,
		LastActivity: time.Now(),
	}
}
