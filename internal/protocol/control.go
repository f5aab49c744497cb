// Package protocol implements the two wire formats of the room session
// protocol: the fixed 32-byte control header with its JSON payloads, and
// the relay datagram. Encoding and decoding are pure; no I/O happens here.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/hmuro/roomcast/internal/domain"
)

const (
	// HeaderSize is the fixed size of a control-plane header.
	HeaderSize = 32

	// payloadLenSize is the width of the payload length field. The value
	// always fits in the trailing 8 bytes; the field is this wide only to
	// pad the header to 32 bytes.
	payloadLenSize = 29

	// MaxNameLen bounds room names and display names (UTF-8 bytes).
	MaxNameLen = 255
)

// Control-plane operations.
const (
	OpCreate byte = 1
	OpJoin   byte = 2
)

// Handshake states.
const (
	StateInit     byte = 0
	StateAck      byte = 1
	StateComplete byte = 2
)

// Response status values.
const (
	StatusOK           = "ok"
	StatusRoomExists   = "room_exists"
	StatusRoomNotFound = "room_not_found"
	StatusRoomFull     = "room_full"
	StatusBadRequest   = "bad_request"
)

// Header is the decoded fixed portion of a control message.
type Header struct {
	RoomNameLen byte
	Operation   byte
	State       byte
	PayloadLen  uint64
}

// Request is the payload of a create/join request.
type Request struct {
	DisplayName    string `json:"display_name"`
	ReturnEndpoint string `json:"return_endpoint"`
}

// Response is the payload of a handshake response. Credential is set only
// when Status is StatusOK.
type Response struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	Credential string `json:"credential,omitempty"`
}

// EncodeControl frames a complete control message: header, room name,
// payload.
func EncodeControl(op, state byte, roomName string, payload []byte) ([]byte, error) {
	if len(roomName) > MaxNameLen {
		return nil, fmt.Errorf("room name is %d bytes: %w", len(roomName), domain.ErrMalformedFrame)
	}
	buf := make([]byte, HeaderSize+len(roomName)+len(payload))
	buf[0] = byte(len(roomName))
	buf[1] = op
	buf[2] = state
	binary.BigEndian.PutUint64(buf[3+payloadLenSize-8:3+payloadLenSize], uint64(len(payload)))
	copy(buf[HeaderSize:], roomName)
	copy(buf[HeaderSize+len(roomName):], payload)
	return buf, nil
}

// DecodeHeader parses a 32-byte control header. The payload length is a
// 29-byte big-endian integer; any value that does not fit in 8 bytes is
// rejected as malformed.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) != HeaderSize {
		return Header{}, fmt.Errorf("header is %d bytes: %w", len(buf), domain.ErrMalformedFrame)
	}
	for _, b := range buf[3 : 3+payloadLenSize-8] {
		if b != 0 {
			return Header{}, fmt.Errorf("payload length overflows: %w", domain.ErrMalformedFrame)
		}
	}
	return Header{
		RoomNameLen: buf[0],
		Operation:   buf[1],
		State:       buf[2],
		PayloadLen:  binary.BigEndian.Uint64(buf[3+payloadLenSize-8 : 3+payloadLenSize]),
	}, nil
}

// EncodeRequest marshals a request payload.
func EncodeRequest(req Request) ([]byte, error) {
	return json.Marshal(req)
}

// DecodeRequest parses and validates a request payload.
func DecodeRequest(payload []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return Request{}, fmt.Errorf("request payload: %w", domain.ErrMalformedFrame)
	}
	if req.DisplayName == "" || len(req.DisplayName) > MaxNameLen {
		return Request{}, fmt.Errorf("display name must be 1-%d bytes: %w", MaxNameLen, domain.ErrMalformedFrame)
	}
	if req.ReturnEndpoint == "" {
		return Request{}, fmt.Errorf("return endpoint missing: %w", domain.ErrMalformedFrame)
	}
	return req, nil
}

// EncodeResponse marshals a response payload.
func EncodeResponse(resp Response) ([]byte, error) {
	return json.Marshal(resp)
}

// DecodeResponse parses a response payload.
func DecodeResponse(payload []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return Response{}, fmt.Errorf("response payload: %w", domain.ErrMalformedFrame)
	}
	if resp.Status == "" {
		return Response{}, fmt.Errorf("response status missing: %w", domain.ErrMalformedFrame)
	}
	return resp, nil
}
