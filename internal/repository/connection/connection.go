package connection

import "errors"

var (
	ErrNotFound       = errors.New("connection not found")
	ErrAlreadyExists  = errors.New("connection already exists")
	ErrNotInRoom      = errors.New("connection is not in a room")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Sender delivers an encoded message to one connection. Send must not block
// on a slow peer.
type Sender interface {
	Send(data []byte) error
}
