package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/syncroom/internal/controller"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/metrics"
	connInmemory "github.com/sharetube/syncroom/internal/repository/connection/inmemory"
	roomInmemory "github.com/sharetube/syncroom/internal/repository/room/inmemory"
	roomRedis "github.com/sharetube/syncroom/internal/repository/room/redis"
	"github.com/sharetube/syncroom/internal/service/room"
	"github.com/sharetube/syncroom/pkg/ctxlogger"
	"github.com/sharetube/syncroom/pkg/redisclient"
	"github.com/sharetube/syncroom/pkg/validator"
)

const shutdownTimeout = 30 * time.Second

type AppConfig struct {
	Host                       string        `json:"host" validate:"required"`
	Port                       int           `json:"port" validate:"gt=0,max=65535"`
	LogLevel                   string        `json:"log_level" validate:"oneof=DEBUG INFO WARN ERROR"`
	StaticDir                  string        `json:"static_dir" validate:"required"`
	SendBuffer                 int           `json:"send_buffer" validate:"gt=0"`
	ResetPlaybackOnMediaChange bool          `json:"reset_playback_on_media_change"`
	RedisHost                  string        `json:"redis_host"`
	RedisPort                  int           `json:"redis_port" validate:"gt=0,max=65535"`
	RedisPassword              string        `json:"-"`
	RedisRoomExp               time.Duration `json:"redis_room_exp" validate:"gt=0"`
}

func (cfg *AppConfig) Validate() error {
	cfg.LogLevel = strings.ToUpper(cfg.LogLevel)
	if err := validator.NewValidator().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

func newLogger(level string) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h), nil
}

type app struct {
	handler     http.Handler
	roomService interface{ Run(context.Context) error }
	rc          *redis.Client
}

// newApp wires repositories, service and controller. Redis is optional:
// without a host the snapshot mirror is disabled.
func newApp(ctx context.Context, cfg *AppConfig, logger *slog.Logger) (*app, error) {
	roomRepo := roomInmemory.NewRepo(logger, domain.WithPlaybackResetOnMediaChange(cfg.ResetPlaybackOnMediaChange))
	connRepo := connInmemory.NewRepo(logger)
	m := metrics.New()

	opts := []room.Option{room.WithMetrics(m)}

	var rc *redis.Client
	if cfg.RedisHost != "" {
		var err error
		rc, err = redisclient.NewRedisClient(ctx, &redisclient.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}
		opts = append(opts, room.WithSnapshotMirror(roomRedis.NewRepo(rc, cfg.RedisRoomExp, logger), 0))
	}

	roomService := room.NewService(roomRepo, connRepo, logger, opts...)
	c := controller.NewController(roomService, &controller.Config{
		StaticDir:  cfg.StaticDir,
		SendBuffer: cfg.SendBuffer,
	}, logger, controller.WithMetrics(m))

	return &app{
		handler:     c.GetMux(),
		roomService: roomService,
		rc:          rc,
	}, nil
}

func (a *app) close() {
	if a.rc != nil {
		a.rc.Close()
	}
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	go func() {
		if err := a.roomService.Run(ctx); err != nil {
			logger.ErrorContext(ctx, "room service stopped", "error", err)
		}
	}()

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: a.handler,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "starting server", "address", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	return nil
}
