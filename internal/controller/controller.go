package controller

import (
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/metrics"
	"github.com/sharetube/syncroom/internal/service/room"
	"github.com/sharetube/syncroom/pkg/validator"
	"github.com/sharetube/syncroom/pkg/wsrouter"
)

type iRoomService interface {
	Connect(context.Context, *room.ConnectParams) error
	Disconnect(ctx context.Context, connId string) error
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	Dispatch(context.Context, *room.DispatchParams) error
	GetRoom(ctx context.Context, roomId string) (domain.Snapshot, error)
	ResolveTime() int64
	RoomCount() int
	ConnCount() int
}

type Config struct {
	StaticDir  string
	SendBuffer int
}

type controller struct {
	roomService iRoomService
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	wsmux       *wsrouter.WSRouter
	metrics     *metrics.Metrics
	entropy     io.Reader
	staticDir   string
	sendBuffer  int
	logger      *slog.Logger
}

type Option func(*controller)

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *controller) {
		c.metrics = m
	}
}

// WithEntropy replaces the source of random room ids.
func WithEntropy(r io.Reader) Option {
	return func(c *controller) {
		c.entropy = r
	}
}

func NewController(roomService iRoomService, cfg *Config, logger *slog.Logger, opts ...Option) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		validate:    validator.NewValidator(),
		entropy:     rand.Reader,
		staticDir:   cfg.StaticDir,
		sendBuffer:  cfg.SendBuffer,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sendBuffer <= 0 {
		c.sendBuffer = 64
	}
	c.wsmux = c.getWSRouter()

	return c
}
