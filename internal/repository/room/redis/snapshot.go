package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/repository/room"
)

type roomRecord struct {
	Snapshot         string `redis:"snapshot"`
	Version          int64  `redis:"version"`
	ParticipantCount int    `redis:"participant_count"`
	UpdatedAt        int64  `redis:"updated_at"`
}

func (r repo) getRoomKey(roomId string) string {
	return "room:" + roomId
}

func (r repo) getRoomListKey() string {
	return "rooms"
}

func (r repo) SaveSnapshot(ctx context.Context, snapshot *domain.Snapshot) error {
	r.logger.DebugContext(ctx, "called", "room_id", snapshot.Id, "version", snapshot.PlaybackState.Version)

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	pipe := r.rc.TxPipeline()

	roomKey := r.getRoomKey(snapshot.Id)
	pipe.HSet(ctx, roomKey, roomRecord{
		Snapshot:         string(data),
		Version:          snapshot.PlaybackState.Version,
		ParticipantCount: snapshot.ParticipantCount,
		UpdatedAt:        time.Now().UnixMilli(),
	})
	pipe.Expire(ctx, roomKey, r.expireDuration)

	roomListKey := r.getRoomListKey()
	pipe.SAdd(ctx, roomListKey, snapshot.Id)
	pipe.Expire(ctx, roomListKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

func (r repo) RemoveSnapshot(ctx context.Context, roomId string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)

	pipe := r.rc.TxPipeline()
	pipe.Del(ctx, r.getRoomKey(roomId))
	pipe.SRem(ctx, r.getRoomListKey(), roomId)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}

	return nil
}

func (r repo) GetSnapshot(ctx context.Context, roomId string) (domain.Snapshot, error) {
	data, err := r.rc.HGet(ctx, r.getRoomKey(roomId), "snapshot").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Snapshot{}, room.ErrRoomNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return snapshot, nil
}

func (r repo) GetRoomIds(ctx context.Context) ([]string, error) {
	roomIds, err := r.rc.SMembers(ctx, r.getRoomListKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get room ids: %w", err)
	}

	return roomIds, nil
}
