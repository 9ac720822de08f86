package domain

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Participant struct {
	Name          *string `json:"name"`
	Ready         bool    `json:"ready"`
	PlaybackReady bool    `json:"playback_ready"`
}

func (r *Room) HasParticipant(connId string) bool {
	_, ok := r.participants[connId]
	return ok
}

func (r *Room) ParticipantCount() int {
	return r.participantCount
}

// ConnIds returns the connection ids of all participants in a stable order.
func (r *Room) ConnIds() []string {
	ids := maps.Keys(r.participants)
	slices.Sort(ids)
	return ids
}

func (r *Room) addParticipant(connId string) bool {
	if _, ok := r.participants[connId]; ok {
		return false
	}

	r.participants[connId] = &Participant{}
	r.participantCount++
	return true
}

func (r *Room) removeParticipant(connId string) bool {
	if _, ok := r.participants[connId]; !ok {
		return false
	}

	delete(r.participants, connId)
	r.participantCount--
	return true
}
