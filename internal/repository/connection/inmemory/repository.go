package inmemory

import (
	"log/slog"
	"sync"

	"github.com/sharetube/syncroom/internal/repository/connection"
)

type entry struct {
	sender connection.Sender
	roomId string
}

type repo struct {
	conns  map[string]*entry
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		conns:  make(map[string]*entry),
		logger: logger,
	}
}

func (r *repo) Add(connId string, sender connection.Sender) error {
	funcName := "connection.inmemory.Add"
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug(funcName, "conn_id", connId)
	if _, ok := r.conns[connId]; ok {
		r.logger.Info(funcName, "error", connection.ErrAlreadyExists)
		return connection.ErrAlreadyExists
	}

	r.conns[connId] = &entry{sender: sender}

	r.logger.Debug(funcName, "result", "OK")
	return nil
}

func (r *repo) Remove(connId string) error {
	funcName := "connection.inmemory.Remove"
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug(funcName, "conn_id", connId)
	if _, ok := r.conns[connId]; !ok {
		r.logger.Info(funcName, "error", connection.ErrNotFound)
		return connection.ErrNotFound
	}

	delete(r.conns, connId)

	r.logger.Debug(funcName, "result", "OK")
	return nil
}

func (r *repo) Send(connId string, data []byte) error {
	r.mu.RLock()
	e, ok := r.conns[connId]
	r.mu.RUnlock()
	if !ok {
		return connection.ErrNotFound
	}

	return e.sender.Send(data)
}

func (r *repo) GetRoomId(connId string) (string, error) {
	funcName := "connection.inmemory.GetRoomId"
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.conns[connId]
	if !ok {
		r.logger.Debug(funcName, "conn_id", connId, "error", connection.ErrNotFound)
		return "", connection.ErrNotFound
	}

	if e.roomId == "" {
		return "", connection.ErrNotInRoom
	}

	return e.roomId, nil
}

func (r *repo) SetRoomId(connId, roomId string) error {
	funcName := "connection.inmemory.SetRoomId"
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug(funcName, "conn_id", connId, "room_id", roomId)
	e, ok := r.conns[connId]
	if !ok {
		r.logger.Info(funcName, "error", connection.ErrNotFound)
		return connection.ErrNotFound
	}

	e.roomId = roomId
	return nil
}

func (r *repo) UnsetRoomId(connId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[connId]
	if !ok {
		return connection.ErrNotFound
	}

	e.roomId = ""
	return nil
}

func (r *repo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}
