package inmemory

import (
	"log/slog"
	"sync"

	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/repository/room"
)

type repo struct {
	rooms    map[string]*domain.Room
	roomOpts []domain.Option
	mu       sync.RWMutex
	logger   *slog.Logger
}

func NewRepo(logger *slog.Logger, roomOpts ...domain.Option) *repo {
	return &repo{
		rooms:    make(map[string]*domain.Room),
		roomOpts: roomOpts,
		logger:   logger,
	}
}

// GetOrCreate returns the live room for roomId, creating it on first use.
// The second return value reports whether the room was created by this call.
func (r *repo) GetOrCreate(roomId string) (*domain.Room, bool, error) {
	funcName := "room.inmemory.GetOrCreate"
	if err := room.ValidateRoomId(roomId); err != nil {
		r.logger.Debug(funcName, "room_id", roomId, "error", err)
		return nil, false, err
	}

	r.mu.RLock()
	existing, ok := r.rooms[roomId]
	r.mu.RUnlock()
	if ok {
		return existing, false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.rooms[roomId]; ok {
		return existing, false, nil
	}

	created := domain.NewRoom(roomId, r.roomOpts...)
	r.rooms[roomId] = created

	r.logger.Info("room created", "room_id", roomId)
	return created, true, nil
}

func (r *repo) Get(roomId string) (*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	existing, ok := r.rooms[roomId]
	if !ok {
		return nil, room.ErrRoomNotFound
	}

	return existing, nil
}

// Remove deletes roomId only while it still maps to target, so a stale
// caller never removes a newer room created under the same id.
func (r *repo) Remove(roomId string, target *domain.Room) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.rooms[roomId]
	if !ok || existing != target {
		r.logger.Debug("room.inmemory.Remove", "room_id", roomId, "result", "skipped")
		return false
	}

	delete(r.rooms, roomId)

	r.logger.Info("room removed", "room_id", roomId)
	return true
}

func (r *repo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}
