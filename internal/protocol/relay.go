package protocol

import (
	"fmt"

	"github.com/hmuro/roomcast/internal/domain"
)

// LeaveSentinel is the reserved message body that triggers the leave
// sequence. It is an unescaped literal; a chat message of the same text
// is indistinguishable on the wire.
const LeaveSentinel = "exit"

// Datagram is one relay-plane message.
type Datagram struct {
	RoomName   string
	Credential string
	Message    string
}

// EncodeDatagram frames a relay datagram:
// room_name_len:1 | credential_len:1 | room_name | credential | message.
func EncodeDatagram(d Datagram) ([]byte, error) {
	if len(d.RoomName) > MaxNameLen {
		return nil, fmt.Errorf("room name is %d bytes: %w", len(d.RoomName), domain.ErrMalformedFrame)
	}
	if len(d.Credential) > MaxNameLen {
		return nil, fmt.Errorf("credential is %d bytes: %w", len(d.Credential), domain.ErrMalformedFrame)
	}
	buf := make([]byte, 2+len(d.RoomName)+len(d.Credential)+len(d.Message))
	buf[0] = byte(len(d.RoomName))
	buf[1] = byte(len(d.Credential))
	copy(buf[2:], d.RoomName)
	copy(buf[2+len(d.RoomName):], d.Credential)
	copy(buf[2+len(d.RoomName)+len(d.Credential):], d.Message)
	return buf, nil
}

// DecodeDatagram parses a relay datagram. Declared lengths that exceed the
// received buffer fail as malformed.
func DecodeDatagram(buf []byte) (Datagram, error) {
	if len(buf) < 2 {
		return Datagram{}, fmt.Errorf("datagram is %d bytes: %w", len(buf), domain.ErrMalformedFrame)
	}
	roomLen, credLen := int(buf[0]), int(buf[1])
	if 2+roomLen+credLen > len(buf) {
		return Datagram{}, fmt.Errorf("declared lengths exceed %d received bytes: %w", len(buf), domain.ErrMalformedFrame)
	}
	return Datagram{
		RoomName:   string(buf[2 : 2+roomLen]),
		Credential: string(buf[2+roomLen : 2+roomLen+credLen]),
		Message:    string(buf[2+roomLen+credLen:]),
	}, nil
}
