package domain

// Snapshot is a detached copy of a room's full state, the unit of every
// broadcast.
type Snapshot struct {
	Id               string                 `json:"id"`
	Media            Media                  `json:"media"`
	PlaybackState    PlaybackState          `json:"playback_state"`
	Participants     map[string]Participant `json:"participants"`
	ParticipantCount int                    `json:"participant_count"`
}

func (r *Room) Snapshot() Snapshot {
	participants := make(map[string]Participant, len(r.participants))
	for id, p := range r.participants {
		participants[id] = Participant{
			Name:          cloneString(p.Name),
			Ready:         p.Ready,
			PlaybackReady: p.PlaybackReady,
		}
	}

	return Snapshot{
		Id: r.id,
		Media: Media{
			Type: r.media.Type,
			Src:  cloneString(r.media.Src),
		},
		PlaybackState: PlaybackState{
			Started: cloneInt64(r.playback.Started),
			Version: r.playback.Version,
		},
		Participants:     participants,
		ParticipantCount: r.participantCount,
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt64(i *int64) *int64 {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
