package protocol

import (
	"errors"
	"strings"
	"testing"

	"github.com/hmuro/roomcast/internal/domain"
)

func TestControlRoundTrip(t *testing.T) {
	names := []string{"lobby", "部屋", strings.Repeat("r", 255)}
	for _, name := range names {
		payload, err := EncodeRequest(Request{DisplayName: "alice", ReturnEndpoint: "127.0.0.1:9100"})
		if err != nil {
			t.Fatal(err)
		}
		buf, err := EncodeControl(OpCreate, StateInit, name, payload)
		if err != nil {
			t.Fatalf("encode %q: %v", name, err)
		}
		if len(buf) != HeaderSize+len(name)+len(payload) {
			t.Errorf("frame length = %d, want %d", len(buf), HeaderSize+len(name)+len(payload))
		}

		hdr, err := DecodeHeader(buf[:HeaderSize])
		if err != nil {
			t.Fatal(err)
		}
		if hdr.Operation != OpCreate || hdr.State != StateInit {
			t.Errorf("got op=%d state=%d", hdr.Operation, hdr.State)
		}
		if int(hdr.RoomNameLen) != len(name) {
			t.Errorf("room name len = %d, want %d", hdr.RoomNameLen, len(name))
		}
		if hdr.PayloadLen != uint64(len(payload)) {
			t.Errorf("payload len = %d, want %d", hdr.PayloadLen, len(payload))
		}
		body := buf[HeaderSize:]
		if got := string(body[:hdr.RoomNameLen]); got != name {
			t.Errorf("room name = %q, want %q", got, name)
		}
		req, err := DecodeRequest(body[hdr.RoomNameLen:])
		if err != nil {
			t.Fatal(err)
		}
		if req.DisplayName != "alice" || req.ReturnEndpoint != "127.0.0.1:9100" {
			t.Errorf("request = %+v", req)
		}
	}
}

func TestEncodeControlRejectsLongRoomName(t *testing.T) {
	_, err := EncodeControl(OpCreate, StateInit, strings.Repeat("r", 256), nil)
	if !errors.Is(err, domain.ErrMalformedFrame) {
		t.Errorf("got %v, want ErrMalformedFrame", err)
	}
}

func TestDecodeHeaderRejectsWrongSize(t *testing.T) {
	for _, n := range []int{0, 31, 33} {
		if _, err := DecodeHeader(make([]byte, n)); !errors.Is(err, domain.ErrMalformedFrame) {
			t.Errorf("size %d: got %v, want ErrMalformedFrame", n, err)
		}
	}
}

func TestDecodeHeaderRejectsOverflowingPayloadLen(t *testing.T) {
	buf := make([]byte, HeaderSize)
	buf[5] = 1 // a set bit above the 8 trailing bytes of the length field
	if _, err := DecodeHeader(buf); !errors.Is(err, domain.ErrMalformedFrame) {
		t.Errorf("got %v, want ErrMalformedFrame", err)
	}
}

func TestDecodeRequestValidation(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"not json", "not-json"},
		{"empty display name", `{"display_name":"","return_endpoint":":9100"}`},
		{"long display name", `{"display_name":"` + strings.Repeat("a", 256) + `","return_endpoint":":9100"}`},
		{"missing endpoint", `{"display_name":"alice"}`},
	}
	for _, tc := range cases {
		if _, err := DecodeRequest([]byte(tc.payload)); !errors.Is(err, domain.ErrMalformedFrame) {
			t.Errorf("%s: got %v, want ErrMalformedFrame", tc.name, err)
		}
	}
}

func TestResponseRoundTrip(t *testing.T) {
	in := Response{Status: StatusOK, Message: "welcome to lobby", Credential: "deadbeef"}
	payload, err := EncodeResponse(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := DecodeResponse(payload)
	if err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Errorf("got %+v, want %+v", out, in)
	}
}

func TestDatagramRoundTrip(t *testing.T) {
	cases := []Datagram{
		{RoomName: "lobby", Credential: "cafebabe", Message: "hi"},
		{RoomName: strings.Repeat("r", 255), Credential: strings.Repeat("c", 255), Message: ""},
		{RoomName: "lobby", Credential: "cafebabe", Message: LeaveSentinel},
	}
	for _, in := range cases {
		buf, err := EncodeDatagram(in)
		if err != nil {
			t.Fatal(err)
		}
		out, err := DecodeDatagram(buf)
		if err != nil {
			t.Fatal(err)
		}
		if out != in {
			t.Errorf("got %+v, want %+v", out, in)
		}
	}
}

func TestDecodeDatagramRejectsTruncated(t *testing.T) {
	cases := [][]byte{
		nil,
		{5},
		{10, 10, 'a', 'b'}, // declared lengths exceed the buffer
	}
	for _, buf := range cases {
		if _, err := DecodeDatagram(buf); !errors.Is(err, domain.ErrMalformedFrame) {
			t.Errorf("%v: got %v, want ErrMalformedFrame", buf, err)
		}
	}
}
