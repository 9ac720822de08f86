// Package syncclient is the participant side of a room: it keeps a local
// media surface in sync with the room over a websocket.
package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/pkg/reconciler"
	"github.com/sharetube/syncroom/pkg/timesync"
	"github.com/sharetube/syncroom/pkg/wsrouter"
)

var ErrNoChange = errors.New("gesture does not change playback")

type Config struct {
	// ServerURL is the websocket base url, e.g. ws://localhost:8080.
	ServerURL     string
	RoomId        string
	TickInterval  time.Duration
	AliveInterval time.Duration
	Timesync      timesync.Config
}

func (cfg *Config) setDefaults() {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 250 * time.Millisecond
	}
	if cfg.AliveInterval <= 0 {
		cfg.AliveInterval = 30 * time.Second
	}
	if cfg.Timesync == (timesync.Config{}) {
		cfg.Timesync = timesync.DefaultConfig()
	}
}

type Client struct {
	cfg        Config
	conn       *websocket.Conn
	writeMu    sync.Mutex
	estimator  *timesync.Estimator
	reconciler *reconciler.Reconciler
	prefs      PreferenceStore
	logger     *slog.Logger

	mu            sync.Mutex
	snapshot      *domain.Snapshot
	playbackReady *bool
	updates       chan domain.Snapshot
}

// Dial connects to the room named in cfg. A nil prefs disables name
// persistence.
func Dial(ctx context.Context, cfg Config, surface reconciler.MediaSurface, prefs PreferenceStore, logger *slog.Logger) (*Client, error) {
	cfg.setDefaults()
	if prefs == nil {
		prefs = nopStore{}
	}

	u := strings.TrimRight(cfg.ServerURL, "/") + "/api/v1/ws/room/" + url.PathEscape(cfg.RoomId)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", u, err)
	}

	c := &Client{
		cfg:     cfg,
		conn:    conn,
		prefs:   prefs,
		logger:  logger.With("room_id", cfg.RoomId),
		updates: make(chan domain.Snapshot, 16),
	}
	c.estimator = timesync.New(c.requestTime, timesync.WithConfig(cfg.Timesync), timesync.WithLogger(c.logger))
	c.estimator.OnChange(func(e timesync.Estimate) {
		c.logger.Info("clock offset updated", "offset_ms", e.Offset.Milliseconds())
	})
	c.reconciler = reconciler.New(surface, c.estimator)

	return c, nil
}

func (c *Client) write(messageType string, payload any) error {
	data, err := wsrouter.Encode(messageType, payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", messageType, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) requestTime(_ context.Context, requestId int64) error {
	return c.write("TIMESYNC", map[string]any{"id": requestId})
}

// Run reads room updates and keeps the surface in sync until ctx is done or
// the connection fails.
func (c *Client) Run(ctx context.Context) error {
	defer c.estimator.Close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		c.conn.Close()
	}()

	if name, err := c.prefs.LoadName(ctx); err == nil {
		if err := c.write("SET_NAME", map[string]any{"name": name}); err != nil {
			return err
		}
	} else {
		c.logger.Debug("no remembered name", "error", err)
	}

	go func() {
		if err := c.estimator.Run(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn("clock sync stopped", "error", err)
		}
	}()
	go c.tickLoop(ctx)

	err := c.readLoop()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	return err
}

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type timesyncReply struct {
	Id     *int64 `json:"id"`
	Result int64  `json:"result"`
}

func (c *Client) readLoop() error {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("dropping malformed message", "error", err)
			continue
		}

		switch msg.Type {
		case "ROOM_UPDATED":
			var snapshot domain.Snapshot
			if err := json.Unmarshal(msg.Payload, &snapshot); err != nil {
				c.logger.Debug("dropping malformed snapshot", "error", err)
				continue
			}
			c.applySnapshot(snapshot)
		case "TIMESYNC":
			var reply timesyncReply
			if err := json.Unmarshal(msg.Payload, &reply); err != nil || reply.Id == nil {
				continue
			}
			c.estimator.Receive(*reply.Id, reply.Result)
		default:
			c.logger.Debug("ignoring message", "type", msg.Type)
		}
	}
}

func (c *Client) applySnapshot(snapshot domain.Snapshot) {
	c.mu.Lock()
	c.snapshot = &snapshot
	c.mu.Unlock()

	c.reconciler.Apply(snapshot)

	select {
	case c.updates <- snapshot:
	default:
	}
}

func (c *Client) tickLoop(ctx context.Context) {
	tick := time.NewTicker(c.cfg.TickInterval)
	defer tick.Stop()
	alive := time.NewTicker(c.cfg.AliveInterval)
	defer alive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-alive.C:
			if err := c.write("ALIVE", struct{}{}); err != nil {
				c.logger.Debug("failed to send keepalive", "error", err)
			}
		case <-tick.C:
			ready := c.reconciler.Tick() >= reconciler.CanPlay
			c.mu.Lock()
			changed := c.playbackReady == nil || *c.playbackReady != ready
			c.playbackReady = &ready
			c.mu.Unlock()

			if changed {
				if err := c.write("SET_PLAYBACK_READY", map[string]any{"playback_ready": ready}); err != nil {
					c.logger.Debug("failed to send playback readiness", "error", err)
				}
			}
		}
	}
}

// Updates delivers received snapshots. Snapshots are dropped while the
// channel is full.
func (c *Client) Updates() <-chan domain.Snapshot {
	return c.updates
}

// Snapshot returns the latest room state received, if any.
func (c *Client) Snapshot() (domain.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot == nil {
		return domain.Snapshot{}, false
	}

	return *c.snapshot, true
}

// Now returns the estimated reference time in milliseconds.
func (c *Client) Now() int64 {
	return c.estimator.Now()
}

// SetName remembers name and announces it to the room.
func (c *Client) SetName(ctx context.Context, name string) error {
	if err := c.prefs.SaveName(ctx, name); err != nil {
		c.logger.Warn("failed to remember name", "error", err)
	}

	return c.write("SET_NAME", map[string]any{"name": name})
}

func (c *Client) SetReady(ready bool) error {
	return c.write("SET_READY", map[string]any{"ready": ready})
}

func (c *Client) SetMedia(src string) error {
	return c.write("SET_MEDIA", map[string]any{"type": domain.MediaTypeVideo, "src": src})
}

// Play asks the room to start playback from the local position.
func (c *Client) Play() error {
	cmd, ok := c.reconciler.LocalPlay()
	if !ok {
		return ErrNoChange
	}

	return c.write("PLAY", map[string]any{"version": cmd.Version, "started": cmd.Started})
}

func (c *Client) Pause() error {
	cmd, ok := c.reconciler.LocalPause()
	if !ok {
		return ErrNoChange
	}

	return c.write("PAUSE", map[string]any{"version": cmd.Version})
}

func (c *Client) Seek(seconds float64) error {
	return c.write("SEEK", map[string]any{"version": c.reconciler.Version(), "time": seconds})
}

func (c *Client) Join(roomId string) error {
	return c.write("JOIN", map[string]any{"room_id": roomId})
}

func (c *Client) Leave() error {
	return c.write("LEAVE", struct{}{})
}

func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()

	return c.conn.Close()
}
