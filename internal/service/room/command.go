package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/metrics"
	"github.com/sharetube/syncroom/internal/repository/connection"
)

type DispatchParams struct {
	ConnId  string
	Command domain.Command
}

// Dispatch applies a command on behalf of a connection. Version check,
// mutation and broadcast run under the room lock.
func (s *service) Dispatch(ctx context.Context, params *DispatchParams) error {
	switch c := params.Command.(type) {
	case domain.JoinCommand:
		_, err := s.JoinRoom(ctx, &JoinRoomParams{ConnId: params.ConnId, RoomId: c.RoomId})
		return err
	case domain.LeaveCommand:
		return s.LeaveRoom(ctx, &LeaveRoomParams{ConnId: params.ConnId})
	}

	name := params.Command.Name()

	roomId, err := s.connRepo.GetRoomId(params.ConnId)
	if err != nil {
		s.metrics.ObserveCommand(name, metrics.ResultRejected)
		if errors.Is(err, connection.ErrNotInRoom) {
			return ErrNotInRoom
		}
		return fmt.Errorf("failed to get connection room: %w", err)
	}

	r, err := s.roomRepo.Get(roomId)
	if err != nil {
		s.metrics.ObserveCommand(name, metrics.ResultRejected)
		return ErrNotInRoom
	}

	r.Lock()
	defer r.Unlock()

	if r.IsClosed() {
		s.metrics.ObserveCommand(name, metrics.ResultRejected)
		return ErrNotInRoom
	}

	changed, err := r.Apply(params.ConnId, params.Command)
	if err != nil {
		s.metrics.ObserveCommand(name, metrics.ResultRejected)
		if errors.Is(err, domain.ErrNotParticipant) {
			return ErrNotInRoom
		}
		return err
	}
	s.metrics.ObserveCommand(name, metrics.ResultAccepted)

	if changed {
		s.broadcastLocked(ctx, r)
	}

	return nil
}
