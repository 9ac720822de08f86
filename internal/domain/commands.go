package domain

// Command is a closed set of mutations a connection can request on its room.
// Every variant is handled by Room.Apply.
type Command interface {
	Name() string
	isCommand()
}

type JoinCommand struct {
	RoomId string
}

type LeaveCommand struct{}

type SetMediaCommand struct {
	Type MediaType
	Src  *string
}

type PlayCommand struct {
	Version int64
	// Started is the reference time in milliseconds at which playback
	// began (or would have begun).
	Started int64
}

type PauseCommand struct {
	Version int64
}

type SeekCommand struct {
	Version int64
	Time    float64
}

type SetNameCommand struct {
	DisplayName string
}

type SetReadyCommand struct {
	Ready bool
}

type SetPlaybackReadyCommand struct {
	PlaybackReady bool
}

func (JoinCommand) Name() string             { return "JOIN" }
func (LeaveCommand) Name() string            { return "LEAVE" }
func (SetMediaCommand) Name() string         { return "SET_MEDIA" }
func (PlayCommand) Name() string             { return "PLAY" }
func (PauseCommand) Name() string            { return "PAUSE" }
func (SeekCommand) Name() string             { return "SEEK" }
func (SetNameCommand) Name() string          { return "SET_NAME" }
func (SetReadyCommand) Name() string         { return "SET_READY" }
func (SetPlaybackReadyCommand) Name() string { return "SET_PLAYBACK_READY" }

func (JoinCommand) isCommand()             {}
func (LeaveCommand) isCommand()            {}
func (SetMediaCommand) isCommand()         {}
func (PlayCommand) isCommand()             {}
func (PauseCommand) isCommand()            {}
func (SeekCommand) isCommand()             {}
func (SetNameCommand) isCommand()          {}
func (SetReadyCommand) isCommand()         {}
func (SetPlaybackReadyCommand) isCommand() {}
