// Package relay implements the connectionless data plane: it decodes
// inbound datagrams, resolves room and sender, and fans messages out to
// room peers.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hmuro/roomcast/internal/core"
	"github.com/hmuro/roomcast/internal/protocol"
)

type Engine struct {
	registry  *core.Registry
	conn      net.PacketConn
	readLimit int
}

func NewEngine(registry *core.Registry, conn net.PacketConn, readLimit int) *Engine {
	return &Engine{registry: registry, conn: conn, readLimit: readLimit}
}

// Run receives datagrams until the context is canceled, spawning one
// handler per datagram. Fan-out sends share the engine's socket.
func (e *Engine) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		e.conn.Close()
	}()
	log.Info().Str("module", "transport.relay").Str("addr", e.conn.LocalAddr().String()).Msg("relay engine started")
	for {
		buf := make([]byte, e.readLimit)
		n, from, err := e.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Error().Err(err).Str("module", "transport.relay").Msg("read failed")
			return err
		}
		go e.handle(buf[:n], from)
	}
}

func (e *Engine) handle(pkt []byte, from net.Addr) {
	d, err := protocol.DecodeDatagram(pkt)
	if err != nil {
		log.Debug().Err(err).Str("module", "transport.relay").Str("from", from.String()).Msg("dropping malformed datagram")
		return
	}

	// A missing room is not an error for the sender: it may have just
	// been torn down.
	room, ok := e.registry.Lookup(d.RoomName)
	if !ok {
		log.Debug().Str("module", "transport.relay").Str("room", d.RoomName).Msg("dropping datagram for unknown room")
		return
	}

	if d.Message == protocol.LeaveSentinel {
		e.leave(d.RoomName, d.Credential)
		return
	}

	udpFrom, _ := from.(*net.UDPAddr)
	member, ok := room.Refresh(d.Credential, udpFrom, time.Now())
	if !ok {
		log.Debug().Str("module", "transport.relay").Str("room", d.RoomName).Msg("dropping datagram with unknown credential")
		return
	}

	room.AppendMessage(member.DisplayName, d.Message)
	e.fanOut(room.BroadcastTargets(d.Credential), member.DisplayName+": "+d.Message)
}

func (e *Engine) leave(roomName, credential string) {
	dep, err := e.registry.Leave(roomName, credential)
	if err != nil {
		log.Debug().Err(err).Str("module", "transport.relay").Str("room", roomName).Msg("dropping leave for unknown session")
		return
	}
	e.NotifyDeparture(dep)
}

// NotifyDeparture broadcasts the notice for a completed leave sequence.
// The idle monitor calls this too, so a timed-out member produces the
// same traffic as an explicit exit.
func (e *Engine) NotifyDeparture(dep core.Departure) {
	var line string
	if dep.HostLeft {
		line = fmt.Sprintf("room %s closed: host %s left", dep.Room, dep.Member.DisplayName)
	} else {
		line = fmt.Sprintf("%s left the room", dep.Member.DisplayName)
	}
	targets := make([]*net.UDPAddr, 0, len(dep.Notify))
	for _, m := range dep.Notify {
		if m.Endpoint != nil {
			targets = append(targets, m.Endpoint)
		}
	}
	e.fanOut(targets, line)
}

// fanOut delivers a line to each endpoint, fire-and-forget. One peer's
// send failure never blocks the others.
func (e *Engine) fanOut(targets []*net.UDPAddr, line string) {
	for _, ep := range targets {
		if _, err := e.conn.WriteTo([]byte(line), ep); err != nil {
			log.Debug().Err(err).Str("module", "transport.relay").Str("to", ep.String()).Msg("send failed")
		}
	}
}
