// Package client is a programmatic peer for the room session protocol:
// the create/join handshake over the control plane and message exchange
// over the relay plane. Interactive prompting lives outside this package.
package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/hmuro/roomcast/internal/protocol"
)

// Session owns one UDP socket, used both to receive relayed lines and to
// send. The socket is bound before the handshake so its port can be
// advertised as the return endpoint.
type Session struct {
	conn       *net.UDPConn
	relay      *net.UDPAddr
	room       string
	credential string
}

// NewSession binds a local UDP socket for exchanging messages with the
// relay at relayAddr.
func NewSession(relayAddr string) (*Session, error) {
	relay, err := net.ResolveUDPAddr("udp", relayAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve relay addr: %w", err)
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("bind udp socket: %w", err)
	}
	return &Session{conn: conn, relay: relay}, nil
}

// Endpoint is the return endpoint to advertise during the handshake. The
// host is left unspecified; the server fills in the IP it observes on the
// control connection.
func (s *Session) Endpoint() string {
	port := s.conn.LocalAddr().(*net.UDPAddr).Port
	return net.JoinHostPort("", strconv.Itoa(port))
}

// Create performs the create-room handshake and stores the issued
// credential.
func (s *Session) Create(controlAddr, room, displayName string) error {
	return s.handshake(controlAddr, protocol.OpCreate, room, displayName)
}

// Join performs the join-room handshake and stores the issued credential.
func (s *Session) Join(controlAddr, room, displayName string) error {
	return s.handshake(controlAddr, protocol.OpJoin, room, displayName)
}

func (s *Session) handshake(controlAddr string, op byte, room, displayName string) error {
	resp, err := Handshake(controlAddr, op, room, displayName, s.Endpoint())
	if err != nil {
		return err
	}
	if resp.Status != protocol.StatusOK {
		return fmt.Errorf("%s: %s", resp.Status, resp.Message)
	}
	s.room = room
	s.credential = resp.Credential
	return nil
}

func (s *Session) Credential() string { return s.credential }

// Send relays one message to the room's other members.
func (s *Session) Send(message string) error {
	if s.credential == "" {
		return errors.New("no session credential, handshake first")
	}
	pkt, err := protocol.EncodeDatagram(protocol.Datagram{
		RoomName:   s.room,
		Credential: s.credential,
		Message:    message,
	})
	if err != nil {
		return err
	}
	_, err = s.conn.WriteToUDP(pkt, s.relay)
	return err
}

// Leave sends the reserved exit sentinel.
func (s *Session) Leave() error {
	return s.Send(protocol.LeaveSentinel)
}

// Recv waits up to timeout for one relayed line.
func (s *Session) Recv(timeout time.Duration) (string, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	buf := make([]byte, 4096)
	n, _, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

func (s *Session) Close() error { return s.conn.Close() }

// Handshake runs one raw control-plane exchange and returns the decoded
// response. Most callers want Session.Create or Session.Join instead.
func Handshake(controlAddr string, op byte, room, displayName, returnEndpoint string) (protocol.Response, error) {
	payload, err := protocol.EncodeRequest(protocol.Request{
		DisplayName:    displayName,
		ReturnEndpoint: returnEndpoint,
	})
	if err != nil {
		return protocol.Response{}, err
	}
	out, err := protocol.EncodeControl(op, protocol.StateInit, room, payload)
	if err != nil {
		return protocol.Response{}, err
	}

	conn, err := net.DialTimeout("tcp", controlAddr, 5*time.Second)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("dial control plane: %w", err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return protocol.Response{}, err
	}
	if _, err := conn.Write(out); err != nil {
		return protocol.Response{}, fmt.Errorf("send request: %w", err)
	}

	head := make([]byte, protocol.HeaderSize)
	if _, err := io.ReadFull(conn, head); err != nil {
		return protocol.Response{}, fmt.Errorf("read response header: %w", err)
	}
	hdr, err := protocol.DecodeHeader(head)
	if err != nil {
		return protocol.Response{}, err
	}
	body := make([]byte, int(hdr.RoomNameLen)+int(hdr.PayloadLen))
	if _, err := io.ReadFull(conn, body); err != nil {
		return protocol.Response{}, fmt.Errorf("read response body: %w", err)
	}
	return protocol.DecodeResponse(body[hdr.RoomNameLen:])
}
