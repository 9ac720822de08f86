package room

import (
	"errors"
	"regexp"
)

var (
	ErrInvalidRoomId = errors.New("invalid room id")
	ErrRoomNotFound  = errors.New("room not found")
)

var roomIdPattern = regexp.MustCompile(`^[\w\-_]+$`)

// ValidateRoomId reports whether id may be used as a room key: word
// characters, hyphen and underscore only.
func ValidateRoomId(roomId string) error {
	if !roomIdPattern.MatchString(roomId) {
		return ErrInvalidRoomId
	}

	return nil
}
