package room

import (
	"context"

	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/pkg/wsrouter"
)

// broadcastLocked sends the room snapshot to every participant. The caller
// holds the room lock.
func (s *service) broadcastLocked(ctx context.Context, r *domain.Room) {
	snapshot := r.Snapshot()
	data, err := wsrouter.Encode(RoomUpdatedMessageType, &snapshot)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode room snapshot", "room_id", r.Id(), "error", err)
		return
	}

	sent := 0
	for _, connId := range r.ConnIds() {
		if err := s.connRepo.Send(connId, data); err != nil {
			s.metrics.IncBroadcastDrops()
			s.logger.WarnContext(ctx, "failed to send room snapshot", "room_id", r.Id(), "conn_id", connId, "error", err)
			continue
		}
		sent++
	}
	s.metrics.AddBroadcasts(sent)

	s.mirror.enqueue(mirrorJob{roomId: snapshot.Id, snapshot: &snapshot})
}

// collectLocked deletes an empty room from the registry. The caller holds
// the room lock. It reports whether the room was deleted.
func (s *service) collectLocked(ctx context.Context, r *domain.Room) bool {
	if r.ParticipantCount() > 0 {
		return false
	}

	r.Close()
	// the delete job must be queued before a same-id room can be created
	// and queue its first save
	if current, err := s.roomRepo.Get(r.Id()); err == nil && current == r {
		s.mirror.enqueue(mirrorJob{roomId: r.Id()})
	}
	if s.roomRepo.Remove(r.Id(), r) {
		s.metrics.IncRoomsDeleted()
		s.logger.InfoContext(ctx, "room deleted", "room_id", r.Id())
	}

	return true
}
