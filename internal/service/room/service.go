package room

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/metrics"
	"github.com/sharetube/syncroom/internal/repository/connection"
)

const RoomUpdatedMessageType = "ROOM_UPDATED"

var (
	ErrInvalidRoomId = errors.New("invalid room id")
	ErrRoomNotFound  = errors.New("room not found")
	ErrNotInRoom     = errors.New("connection is not in a room")
)

type iRoomRepo interface {
	GetOrCreate(roomId string) (*domain.Room, bool, error)
	Get(roomId string) (*domain.Room, error)
	Remove(roomId string, target *domain.Room) bool
	Count() int
}

type iConnRepo interface {
	Add(connId string, sender connection.Sender) error
	Remove(connId string) error
	Send(connId string, data []byte) error
	GetRoomId(connId string) (string, error)
	SetRoomId(connId, roomId string) error
	UnsetRoomId(connId string) error
	Count() int
}

type iSnapshotRepo interface {
	SaveSnapshot(ctx context.Context, snapshot *domain.Snapshot) error
	RemoveSnapshot(ctx context.Context, roomId string) error
	GetSnapshot(ctx context.Context, roomId string) (domain.Snapshot, error)
	GetRoomIds(ctx context.Context) ([]string, error)
}

type service struct {
	roomRepo iRoomRepo
	connRepo iConnRepo
	mirror   *mirror
	clock    clockwork.Clock
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*service)

// WithSnapshotMirror copies every broadcast snapshot to repo in the
// background. Mirror failures never affect the live rooms.
func WithSnapshotMirror(repo iSnapshotRepo, queueSize int) Option {
	return func(s *service) {
		s.mirror = newMirror(repo, queueSize, s.logger)
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(s *service) {
		s.clock = clock
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *service) {
		s.metrics = m
	}
}

func NewService(roomRepo iRoomRepo, connRepo iConnRepo, logger *slog.Logger, opts ...Option) *service {
	s := &service{
		roomRepo: roomRepo,
		connRepo: connRepo,
		clock:    clockwork.NewRealClock(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run drives background work (the snapshot mirror) until ctx is done.
// Snapshots left behind by a previous process are discarded first.
func (s *service) Run(ctx context.Context) error {
	if s.mirror == nil {
		<-ctx.Done()
		return nil
	}

	s.mirror.run(ctx)
	return nil
}

// ResolveTime returns the reference clock reading in milliseconds since the
// Unix epoch.
func (s *service) ResolveTime() int64 {
	s.metrics.IncTimesyncRequests()
	return s.clock.Now().UnixMilli()
}

func (s *service) RoomCount() int {
	return s.roomRepo.Count()
}

func (s *service) ConnCount() int {
	return s.connRepo.Count()
}
