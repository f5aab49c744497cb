// Package control implements the connection-oriented control plane: one
// create/join handshake per accepted connection.
package control

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hmuro/roomcast/internal/core"
	"github.com/hmuro/roomcast/internal/domain"
	"github.com/hmuro/roomcast/internal/protocol"
)

// handshakeTimeout bounds both phases of a single handshake so a stalled
// client cannot pin a goroutine.
const handshakeTimeout = 10 * time.Second

type Server struct {
	registry  *core.Registry
	ln        net.Listener
	readLimit int
}

func NewServer(registry *core.Registry, ln net.Listener, readLimit int) *Server {
	return &Server{registry: registry, ln: ln, readLimit: readLimit}
}

// Run accepts connections until the context is canceled, spawning one
// handler per connection. A single connection's failure never stops the
// accept loop.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()
	log.Info().Str("module", "transport.control").Str("addr", s.ln.Addr().String()).Msg("control server started")
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Error().Err(err).Str("module", "transport.control").Msg("accept failed")
			return err
		}
		go s.handle(conn)
	}
}

// handle drives the three-phase handshake: receive request, dispatch to
// the registry, respond. No room state is mutated unless the dispatch
// succeeds.
func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	logger := log.With().
		Str("module", "transport.control").
		Str("conn", uuid.NewString()).
		Str("remote", conn.RemoteAddr().String()).
		Logger()

	if err := conn.SetDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		logger.Error().Err(err).Msg("set deadline")
		return
	}

	head := make([]byte, protocol.HeaderSize)
	if _, err := io.ReadFull(conn, head); err != nil {
		logger.Debug().Err(err).Msg("unreadable header, closing")
		return
	}
	hdr, err := protocol.DecodeHeader(head)
	if err != nil {
		logger.Debug().Err(err).Msg("malformed header, closing")
		return
	}
	if hdr.PayloadLen > uint64(s.readLimit) {
		logger.Debug().Uint64("payload_len", hdr.PayloadLen).Msg("oversized payload, closing")
		return
	}

	body := make([]byte, int(hdr.RoomNameLen)+int(hdr.PayloadLen))
	if _, err := io.ReadFull(conn, body); err != nil {
		logger.Debug().Err(err).Msg("unreadable body, closing")
		return
	}
	roomName := string(body[:hdr.RoomNameLen])
	if roomName == "" {
		s.respond(conn, logger, hdr.Operation, roomName, protocol.Response{
			Status:  protocol.StatusBadRequest,
			Message: "room name must not be empty",
		})
		return
	}
	req, err := protocol.DecodeRequest(body[hdr.RoomNameLen:])
	if err != nil {
		logger.Debug().Err(err).Msg("malformed request payload")
		s.respond(conn, logger, hdr.Operation, roomName, protocol.Response{
			Status:  protocol.StatusBadRequest,
			Message: "malformed request payload",
		})
		return
	}
	endpoint, err := resolveReturnEndpoint(req.ReturnEndpoint, conn.RemoteAddr())
	if err != nil {
		logger.Debug().Err(err).Str("endpoint", req.ReturnEndpoint).Msg("bad return endpoint")
		s.respond(conn, logger, hdr.Operation, roomName, protocol.Response{
			Status:  protocol.StatusBadRequest,
			Message: "unresolvable return endpoint",
		})
		return
	}

	var cred string
	switch hdr.Operation {
	case protocol.OpCreate:
		cred, err = s.registry.Create(roomName, req.DisplayName, endpoint)
	case protocol.OpJoin:
		cred, err = s.registry.Join(roomName, req.DisplayName, endpoint)
	default:
		s.respond(conn, logger, hdr.Operation, roomName, protocol.Response{
			Status:  protocol.StatusBadRequest,
			Message: "unknown operation",
		})
		return
	}
	if err != nil {
		s.respond(conn, logger, hdr.Operation, roomName, errResponse(roomName, err))
		return
	}

	logger.Info().Str("room", roomName).Str("member", req.DisplayName).Uint8("op", hdr.Operation).Msg("handshake complete")
	s.respond(conn, logger, hdr.Operation, roomName, protocol.Response{
		Status:     protocol.StatusOK,
		Message:    "welcome to " + roomName,
		Credential: cred,
	})
}

// respond sends the final header+body. A success carries StateComplete;
// every error goes back as StateInit so the client knows to retry with
// different input.
func (s *Server) respond(conn net.Conn, logger zerolog.Logger, op byte, roomName string, resp protocol.Response) {
	state := protocol.StateComplete
	if resp.Status != protocol.StatusOK {
		state = protocol.StateInit
	}
	payload, err := protocol.EncodeResponse(resp)
	if err != nil {
		logger.Error().Err(err).Msg("encode response")
		return
	}
	out, err := protocol.EncodeControl(op, state, roomName, payload)
	if err != nil {
		logger.Error().Err(err).Msg("frame response")
		return
	}
	if _, err := conn.Write(out); err != nil {
		logger.Error().Err(err).Msg("write response")
	}
}

func errResponse(roomName string, err error) protocol.Response {
	switch {
	case errors.Is(err, domain.ErrRoomExists):
		return protocol.Response{Status: protocol.StatusRoomExists, Message: "room " + roomName + " already exists"}
	case errors.Is(err, domain.ErrRoomNotFound):
		return protocol.Response{Status: protocol.StatusRoomNotFound, Message: "room " + roomName + " does not exist"}
	case errors.Is(err, domain.ErrRoomFull):
		return protocol.Response{Status: protocol.StatusRoomFull, Message: "room " + roomName + " is full"}
	default:
		return protocol.Response{Status: protocol.StatusBadRequest, Message: err.Error()}
	}
}

// resolveReturnEndpoint parses the client's advertised relay endpoint.
// An unspecified or missing IP is replaced with the IP observed on the
// control connection, so clients behind NAT-less setups can advertise
// just a port.
func resolveReturnEndpoint(advertised string, remote net.Addr) (*net.UDPAddr, error) {
	addr, err := net.ResolveUDPAddr("udp", advertised)
	if err != nil {
		return nil, err
	}
	if addr.IP == nil || addr.IP.IsUnspecified() {
		if tcp, ok := remote.(*net.TCPAddr); ok {
			addr.IP = tcp.IP
		}
	}
	return addr, nil
}
