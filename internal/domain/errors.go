package domain

import "errors"

var (
	ErrRoomExists        = errors.New("room already exists")
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomFull          = errors.New("room is full")
	ErrMalformedFrame    = errors.New("malformed frame")
	ErrCredentialUnknown = errors.New("credential unknown")
)
