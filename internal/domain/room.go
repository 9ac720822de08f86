package domain

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNotParticipant       = errors.New("connection is not a participant")
	ErrVersionMismatch      = errors.New("playback state version mismatch")
	ErrInvalidStartTime     = errors.New("start time must be positive")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrUnknownCommand       = errors.New("unknown command")
)

type Option func(*Room)

// WithPlaybackResetOnMediaChange pauses playback and bumps the version
// whenever the media source changes.
func WithPlaybackResetOnMediaChange(enabled bool) Option {
	return func(r *Room) {
		r.resetPlaybackOnMediaChange = enabled
	}
}

// Room is the authoritative state of one playback room.
//
// Room is not safe for concurrent use on its own: callers hold the room lock
// (Lock/Unlock) around every read and mutation, so a version check, the
// mutation it guards and the resulting broadcast happen atomically.
type Room struct {
	mu sync.Mutex

	id               string
	media            Media
	playback         PlaybackState
	participants     map[string]*Participant
	participantCount int
	closed           bool

	resetPlaybackOnMediaChange bool
}

func NewRoom(id string, opts ...Option) *Room {
	r := &Room{
		id:           id,
		participants: make(map[string]*Participant),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Room) Lock()   { r.mu.Lock() }
func (r *Room) Unlock() { r.mu.Unlock() }

func (r *Room) Id() string {
	return r.id
}

func (r *Room) Version() int64 {
	return r.playback.Version
}

func (r *Room) Playback() PlaybackState {
	return r.playback
}

// Close marks the room as removed from its registry. A closed room accepts
// no further commands.
func (r *Room) Close() {
	r.closed = true
}

func (r *Room) IsClosed() bool {
	return r.closed
}

// Apply runs cmd on behalf of connId. It reports whether the room state
// changed in a way participants must be told about. A non-nil error means
// the command was rejected and nothing changed.
func (r *Room) Apply(connId string, cmd Command) (bool, error) {
	if join, ok := cmd.(JoinCommand); ok {
		if join.RoomId != r.id {
			return false, fmt.Errorf("join %s applied to room %s", join.RoomId, r.id)
		}
		r.addParticipant(connId)
		// re-join is idempotent but still republishes state
		return true, nil
	}

	participant, ok := r.participants[connId]
	if !ok {
		return false, ErrNotParticipant
	}

	switch c := cmd.(type) {
	case LeaveCommand:
		return r.removeParticipant(connId), nil

	case SetMediaCommand:
		if c.Type != MediaTypeVideo {
			return false, fmt.Errorf("%w: %q", ErrUnsupportedMediaType, c.Type)
		}
		r.media = Media{Type: c.Type, Src: c.Src}
		if r.resetPlaybackOnMediaChange {
			r.playback.Started = nil
			r.playback.Version++
		}
		return true, nil

	case PlayCommand:
		if c.Version != r.playback.Version {
			return false, ErrVersionMismatch
		}
		if c.Started <= 0 {
			return false, ErrInvalidStartTime
		}
		started := c.Started
		r.playback.Started = &started
		r.playback.Version++
		return true, nil

	case PauseCommand:
		if c.Version != r.playback.Version {
			return false, ErrVersionMismatch
		}
		r.playback.Started = nil
		r.playback.Version++
		return true, nil

	case SeekCommand:
		// seek offsets are not tracked yet; the command only republishes state
		return true, nil

	case SetNameCommand:
		name := c.DisplayName
		participant.Name = &name
		return true, nil

	case SetReadyCommand:
		participant.Ready = c.Ready
		return true, nil

	case SetPlaybackReadyCommand:
		participant.PlaybackReady = c.PlaybackReady
		return true, nil

	default:
		return false, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}
