package http

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hmuro/roomcast/internal/config"
	"github.com/hmuro/roomcast/internal/core"
	"github.com/hmuro/roomcast/internal/token"
)

func TestRoomsEndpoint(t *testing.T) {
	reg := core.NewRegistry(token.Issuer{}, 10)
	ep := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9100}
	if _, err := reg.Create("lobby", "alice", ep); err != nil {
		t.Fatal(err)
	}

	r := SetupRouter(&config.Config{Mode: "release"}, reg)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Rooms []core.RoomInfo `json:"rooms"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Rooms) != 1 || body.Rooms[0].Name != "lobby" || body.Rooms[0].Members != 1 {
		t.Errorf("rooms = %+v", body.Rooms)
	}
}
