package room

import (
	"context"
	"log/slog"
	"time"

	"github.com/sharetube/syncroom/internal/domain"
)

const mirrorWriteTimeout = 2 * time.Second

type mirrorJob struct {
	roomId string
	// nil removes the room
	snapshot *domain.Snapshot
}

type mirror struct {
	repo   iSnapshotRepo
	jobs   chan mirrorJob
	logger *slog.Logger
}

func newMirror(repo iSnapshotRepo, queueSize int, logger *slog.Logger) *mirror {
	if queueSize <= 0 {
		queueSize = 256
	}

	return &mirror{
		repo:   repo,
		jobs:   make(chan mirrorJob, queueSize),
		logger: logger,
	}
}

// enqueue never blocks. Jobs are enqueued under the room lock, so per room
// they reach the worker in version order.
func (m *mirror) enqueue(job mirrorJob) {
	if m == nil {
		return
	}

	select {
	case m.jobs <- job:
	default:
		m.logger.Warn("snapshot mirror queue full, dropping job", "room_id", job.roomId)
	}
}

func (m *mirror) run(ctx context.Context) {
	m.purge(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-m.jobs:
			m.handle(ctx, job)
		}
	}
}

func (m *mirror) handle(ctx context.Context, job mirrorJob) {
	ctx, cancel := context.WithTimeout(ctx, mirrorWriteTimeout)
	defer cancel()

	var err error
	if job.snapshot == nil {
		err = m.repo.RemoveSnapshot(ctx, job.roomId)
	} else {
		err = m.repo.SaveSnapshot(ctx, job.snapshot)
	}
	if err != nil {
		m.logger.WarnContext(ctx, "failed to mirror room snapshot", "room_id", job.roomId, "error", err)
	}
}

// purge removes every mirrored room. It runs before the first job is handled,
// so only rooms of a previous process are affected.
func (m *mirror) purge(ctx context.Context) {
	listCtx, cancel := context.WithTimeout(ctx, mirrorWriteTimeout)
	roomIds, err := m.repo.GetRoomIds(listCtx)
	cancel()
	if err != nil {
		m.logger.WarnContext(ctx, "failed to list mirrored rooms", "error", err)
		return
	}

	for _, roomId := range roomIds {
		m.discard(ctx, roomId)
	}
}

func (m *mirror) discard(ctx context.Context, roomId string) {
	ctx, cancel := context.WithTimeout(ctx, mirrorWriteTimeout)
	defer cancel()

	if snapshot, err := m.repo.GetSnapshot(ctx, roomId); err == nil {
		m.logger.InfoContext(ctx, "discarding stale room snapshot",
			"room_id", roomId,
			"version", snapshot.PlaybackState.Version,
			"participant_count", snapshot.ParticipantCount,
		)
	}

	if err := m.repo.RemoveSnapshot(ctx, roomId); err != nil {
		m.logger.WarnContext(ctx, "failed to discard stale room snapshot", "room_id", roomId, "error", err)
	}
}
