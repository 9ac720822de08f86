package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *AppConfig {
	t.Helper()

	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("room"), 0o644))

	return &AppConfig{
		Host:         "127.0.0.1",
		Port:         8080,
		LogLevel:     "error",
		StaticDir:    staticDir,
		SendBuffer:   16,
		RedisPort:    6379,
		RedisRoomExp: time.Hour,
	}
}

func TestValidate(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "ERROR", cfg.LogLevel)

	cfg.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = testConfig(t)
	cfg.LogLevel = "verbose"
	assert.Error(t, cfg.Validate())

	cfg = testConfig(t)
	cfg.StaticDir = ""
	assert.Error(t, cfg.Validate())
}

func TestNewAppMirrorsRoomsToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.RedisHost = mr.Host()
	cfg.RedisPort = port
	require.NoError(t, cfg.Validate())

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	require.NoError(t, err)
	defer a.close()
	go a.roomService.Run(ctx) //nolint:errcheck

	server := httptest.NewServer(a.handler)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws/room/abc"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "ROOM_UPDATED", msg.Type)

	require.Eventually(t, func() bool {
		return mr.Exists("room:abc")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, time.Hour, mr.TTL("room:abc"))
}

func TestNewAppFailsOnUnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	host := mr.Host()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	mr.Close()

	cfg := testConfig(t)
	cfg.RedisHost = host
	cfg.RedisPort = port

	_, err = newApp(context.Background(), cfg, slog.Default())
	assert.Error(t, err)
}
