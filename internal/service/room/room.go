package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/metrics"
	"github.com/sharetube/syncroom/internal/repository/connection"
	roomrepo "github.com/sharetube/syncroom/internal/repository/room"
	"github.com/sharetube/syncroom/pkg/ctxlogger"
)

type ConnectParams struct {
	ConnId string
	Sender connection.Sender
}

func (s *service) Connect(ctx context.Context, params *ConnectParams) error {
	if err := s.connRepo.Add(params.ConnId, params.Sender); err != nil {
		return fmt.Errorf("failed to add connection: %w", err)
	}

	s.logger.DebugContext(ctx, "connection registered", "conn_id", params.ConnId)
	return nil
}

// Disconnect leaves the connection's room, if any, and forgets the
// connection.
func (s *service) Disconnect(ctx context.Context, connId string) error {
	if err := s.LeaveRoom(ctx, &LeaveRoomParams{ConnId: connId}); err != nil {
		s.logger.InfoContext(ctx, "failed to leave room on disconnect", "error", err)
	}

	if err := s.connRepo.Remove(connId); err != nil {
		return fmt.Errorf("failed to remove connection: %w", err)
	}

	return nil
}

type JoinRoomParams struct {
	ConnId string
	RoomId string
}

type JoinRoomResponse struct {
	Created bool
}

// JoinRoom makes the connection a participant of RoomId, leaving its
// previous room first. Joining the current room again republishes its state.
func (s *service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", params.RoomId))
	if err := roomrepo.ValidateRoomId(params.RoomId); err != nil {
		s.metrics.ObserveCommand("JOIN", metrics.ResultRejected)
		s.logger.DebugContext(ctx, "join rejected", "error", err)
		return JoinRoomResponse{}, ErrInvalidRoomId
	}

	currentRoomId, err := s.connRepo.GetRoomId(params.ConnId)
	switch {
	case err == nil:
		if currentRoomId != params.RoomId {
			if err := s.LeaveRoom(ctx, &LeaveRoomParams{ConnId: params.ConnId}); err != nil {
				return JoinRoomResponse{}, err
			}
		}
	case errors.Is(err, connection.ErrNotInRoom):
	default:
		return JoinRoomResponse{}, fmt.Errorf("failed to get connection room: %w", err)
	}

	for {
		r, created, err := s.roomRepo.GetOrCreate(params.RoomId)
		if err != nil {
			if errors.Is(err, roomrepo.ErrInvalidRoomId) {
				return JoinRoomResponse{}, ErrInvalidRoomId
			}
			return JoinRoomResponse{}, fmt.Errorf("failed to get room: %w", err)
		}
		if created {
			s.metrics.IncRoomsCreated()
		}

		joined, err := s.joinLocked(ctx, r, params)
		if err != nil {
			return JoinRoomResponse{}, err
		}
		if !joined {
			// room was collected while we waited for its lock
			continue
		}

		s.metrics.ObserveCommand("JOIN", metrics.ResultAccepted)
		return JoinRoomResponse{Created: created}, nil
	}
}

func (s *service) joinLocked(ctx context.Context, r *domain.Room, params *JoinRoomParams) (bool, error) {
	r.Lock()
	defer r.Unlock()

	if r.IsClosed() {
		return false, nil
	}

	if err := s.connRepo.SetRoomId(params.ConnId, params.RoomId); err != nil {
		s.collectLocked(ctx, r)
		return false, fmt.Errorf("failed to bind connection to room: %w", err)
	}

	if _, err := r.Apply(params.ConnId, domain.JoinCommand{RoomId: params.RoomId}); err != nil {
		s.collectLocked(ctx, r)
		return false, err
	}

	s.logger.InfoContext(ctx, "participant joined", "participant_count", r.ParticipantCount())
	s.broadcastLocked(ctx, r)
	return true, nil
}

type LeaveRoomParams struct {
	ConnId string
}

// LeaveRoom removes the connection from its room. Leaving while not in a
// room does nothing.
func (s *service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) error {
	roomId, err := s.connRepo.GetRoomId(params.ConnId)
	if err != nil {
		if errors.Is(err, connection.ErrNotInRoom) {
			return nil
		}
		return fmt.Errorf("failed to get connection room: %w", err)
	}
	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", roomId))

	defer func() {
		if err := s.connRepo.UnsetRoomId(params.ConnId); err != nil {
			s.logger.DebugContext(ctx, "failed to unbind connection", "error", err)
		}
	}()

	r, err := s.roomRepo.Get(roomId)
	if err != nil {
		return nil
	}

	r.Lock()
	defer r.Unlock()

	if r.IsClosed() {
		return nil
	}

	changed, err := r.Apply(params.ConnId, domain.LeaveCommand{})
	if err != nil {
		s.metrics.ObserveCommand("LEAVE", metrics.ResultRejected)
		return nil
	}
	s.metrics.ObserveCommand("LEAVE", metrics.ResultAccepted)
	s.logger.InfoContext(ctx, "participant left", "participant_count", r.ParticipantCount())

	if s.collectLocked(ctx, r) {
		return nil
	}
	if changed {
		s.broadcastLocked(ctx, r)
	}

	return nil
}

// GetRoom returns a snapshot of a live room.
func (s *service) GetRoom(ctx context.Context, roomId string) (domain.Snapshot, error) {
	r, err := s.roomRepo.Get(roomId)
	if err != nil {
		return domain.Snapshot{}, ErrRoomNotFound
	}

	r.Lock()
	defer r.Unlock()

	if r.IsClosed() {
		return domain.Snapshot{}, ErrRoomNotFound
	}

	return r.Snapshot(), nil
}
