package domain

import "encoding/json"

type MediaType string

const (
	MediaTypeNone  MediaType = ""
	MediaTypeVideo MediaType = "video"
)

// MarshalJSON encodes the empty media type as null.
func (t MediaType) MarshalJSON() ([]byte, error) {
	if t == MediaTypeNone {
		return []byte("null"), nil
	}

	return json.Marshal(string(t))
}

type Media struct {
	Type MediaType `json:"type"`
	Src  *string   `json:"src"`
}

type PlaybackState struct {
	// Started is nil while the room is paused.
	Started *int64 `json:"started"`
	Version int64  `json:"version"`
}

func (p PlaybackState) IsPlaying() bool {
	return p.Started != nil
}

// Position returns the nominal playback position in milliseconds for the
// given reference time.
func (p PlaybackState) Position(referenceNow int64) (int64, bool) {
	if p.Started == nil {
		return 0, false
	}

	return referenceNow - *p.Started, true
}
