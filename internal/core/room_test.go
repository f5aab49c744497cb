package core

import (
	"net"
	"testing"
	"time"

	"github.com/hmuro/roomcast/internal/domain"
)

func TestRoomCapacity(t *testing.T) {
	r := newRoom("lobby", 2)
	if !r.addMember(domain.NewMembership("a", "alice", testEndpoint(9100), true)) {
		t.Fatal("first add rejected")
	}
	if !r.addMember(domain.NewMembership("b", "bob", testEndpoint(9101), false)) {
		t.Fatal("second add rejected")
	}
	if r.addMember(domain.NewMembership("c", "carol", testEndpoint(9102), false)) {
		t.Error("add beyond capacity accepted")
	}
}

func TestBroadcastTargetsExcludeSender(t *testing.T) {
	r := newRoom("lobby", 10)
	r.addMember(domain.NewMembership("a", "alice", testEndpoint(9100), true))
	r.addMember(domain.NewMembership("b", "bob", testEndpoint(9101), false))
	r.addMember(domain.NewMembership("c", "carol", testEndpoint(9102), false))

	targets := r.BroadcastTargets("b")
	if len(targets) != 2 {
		t.Fatalf("got %d targets, want 2", len(targets))
	}
	for _, ep := range targets {
		if ep.Port == 9101 {
			t.Error("sender's own endpoint included in fan-out")
		}
	}
}

func TestRefreshRebindsEndpoint(t *testing.T) {
	r := newRoom("lobby", 10)
	r.addMember(domain.NewMembership("a", "alice", testEndpoint(9100), true))

	rebound := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9200}
	m, ok := r.Refresh("a", rebound, time.Now())
	if !ok {
		t.Fatal("refresh of known credential failed")
	}
	if m.Endpoint.Port != 9200 {
		t.Errorf("endpoint port = %d, want 9200", m.Endpoint.Port)
	}
	ep, _ := r.ResolveEndpoint("a")
	if ep.Port != 9200 {
		t.Errorf("resolved port = %d, want 9200", ep.Port)
	}
	if _, ok := r.Refresh("zz", rebound, time.Now()); ok {
		t.Error("refresh of unknown credential succeeded")
	}
}

func TestHostFixedForRoomLife(t *testing.T) {
	r := newRoom("lobby", 10)
	r.addMember(domain.NewMembership("a", "alice", testEndpoint(9100), true))
	r.addMember(domain.NewMembership("b", "bob", testEndpoint(9101), true))
	if !r.isHost("a") {
		t.Error("creator not host")
	}
	if r.isHost("b") {
		t.Error("second member stole host")
	}
	if r.isHost("") {
		t.Error("empty credential matched host")
	}
}

func TestHistoryBounded(t *testing.T) {
	r := newRoom("lobby", 10)
	for i := 0; i < historyLimit+20; i++ {
		r.AppendMessage("alice", "spam")
	}
	if r.HistoryLen() != historyLimit {
		t.Errorf("history length = %d, want %d", r.HistoryLen(), historyLimit)
	}
}
