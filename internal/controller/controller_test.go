package controller

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/internal/metrics"
	connInmemory "github.com/sharetube/syncroom/internal/repository/connection/inmemory"
	roomInmemory "github.com/sharetube/syncroom/internal/repository/room/inmemory"
	"github.com/sharetube/syncroom/internal/service/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const referenceNow = 1_700_000_000_000

type testEnv struct {
	server    *httptest.Server
	staticDir string
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	clock := clockwork.NewFakeClockAt(time.UnixMilli(referenceNow))
	roomService := room.NewService(roomInmemory.NewRepo(logger), connInmemory.NewRepo(logger), logger, room.WithClock(clock))

	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<html>room</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "app.js"), []byte("console.log(1)"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(staticDir, "assets"), 0o755))

	c := NewController(roomService, &Config{StaticDir: staticDir, SendBuffer: 16}, logger, opts...)
	server := httptest.NewServer(c.GetMux())
	t.Cleanup(server.Close)

	return &testEnv{server: server, staticDir: staticDir}
}

func (e *testEnv) dial(t *testing.T, roomId string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/api/v1/ws/room/" + roomId
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func send(t *testing.T, conn *websocket.Conn, messageType string, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": messageType, "payload": payload}))
}

func read(t *testing.T, conn *websocket.Conn) message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var msg message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func readSnapshot(t *testing.T, conn *websocket.Conn) domain.Snapshot {
	t.Helper()

	msg := read(t, conn)
	require.Equal(t, room.RoomUpdatedMessageType, msg.Type)

	var snapshot domain.Snapshot
	require.NoError(t, json.Unmarshal(msg.Payload, &snapshot))
	return snapshot
}

func TestConnectJoinsPathRoom(t *testing.T) {
	env := newTestEnv(t)

	a := env.dial(t, "movie-night")
	snapshot := readSnapshot(t, a)
	assert.Equal(t, "movie-night", snapshot.Id)
	assert.Equal(t, 1, snapshot.ParticipantCount)
	assert.Equal(t, int64(0), snapshot.PlaybackState.Version)

	b := env.dial(t, "movie-night")
	assert.Equal(t, 2, readSnapshot(t, b).ParticipantCount)
	assert.Equal(t, 2, readSnapshot(t, a).ParticipantCount)
}

func TestPlayIsBroadcast(t *testing.T) {
	env := newTestEnv(t)

	a := env.dial(t, "abc")
	readSnapshot(t, a)
	b := env.dial(t, "abc")
	readSnapshot(t, b)
	readSnapshot(t, a)

	send(t, a, "PLAY", map[string]any{"version": 0, "started": 1000})

	for _, conn := range []*websocket.Conn{a, b} {
		snapshot := readSnapshot(t, conn)
		require.NotNil(t, snapshot.PlaybackState.Started)
		assert.Equal(t, int64(1000), *snapshot.PlaybackState.Started)
		assert.Equal(t, int64(1), snapshot.PlaybackState.Version)
	}

	// stale version is dropped silently; the next broadcast comes from SET_NAME
	send(t, a, "PLAY", map[string]any{"version": 0, "started": 2000})
	send(t, a, "SET_NAME", map[string]any{"name": "alice"})

	snapshot := readSnapshot(t, b)
	assert.Equal(t, int64(1000), *snapshot.PlaybackState.Started)
	assert.Equal(t, int64(1), snapshot.PlaybackState.Version)
}

func TestPlayAcceptsFractionalStart(t *testing.T) {
	env := newTestEnv(t)

	a := env.dial(t, "abc")
	readSnapshot(t, a)

	send(t, a, "PLAY", map[string]any{"version": 0, "started": 1699999990123.4})

	snapshot := readSnapshot(t, a)
	require.NotNil(t, snapshot.PlaybackState.Started)
	assert.Equal(t, int64(1699999990123), *snapshot.PlaybackState.Started)
	assert.Equal(t, int64(1), snapshot.PlaybackState.Version)

	send(t, a, "PAUSE", map[string]any{"version": 1})
	readSnapshot(t, a)

	// rounds to zero and is rejected like any non-positive start
	send(t, a, "PLAY", map[string]any{"version": 2, "started": 0.4})
	send(t, a, "SET_NAME", map[string]any{"name": "alice"})

	snapshot = readSnapshot(t, a)
	assert.Nil(t, snapshot.PlaybackState.Started)
	assert.Equal(t, int64(2), snapshot.PlaybackState.Version)
}

func TestMalformedPayloadsAreIgnored(t *testing.T) {
	env := newTestEnv(t)

	a := env.dial(t, "abc")
	readSnapshot(t, a)

	send(t, a, "SET_READY", map[string]any{"ready": "yes"})
	send(t, a, "SET_READY", map[string]any{})
	send(t, a, "UNKNOWN", map[string]any{})
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("not json")))
	send(t, a, "SET_READY", map[string]any{"ready": false})

	snapshot := readSnapshot(t, a)
	assert.False(t, snapshot.Participants[snapshotConnId(t, snapshot)].Ready)

	send(t, a, "SET_PLAYBACK_READY", map[string]any{"playback_ready": true})
	snapshot = readSnapshot(t, a)
	assert.True(t, snapshot.Participants[snapshotConnId(t, snapshot)].PlaybackReady)
}

func snapshotConnId(t *testing.T, snapshot domain.Snapshot) string {
	t.Helper()
	require.Len(t, snapshot.Participants, 1)
	for id := range snapshot.Participants {
		return id
	}
	return ""
}

func TestTimesyncEchoesId(t *testing.T) {
	env := newTestEnv(t)

	a := env.dial(t, "abc")
	readSnapshot(t, a)

	send(t, a, "TIMESYNC", map[string]any{"id": 7})
	msg := read(t, a)
	assert.Equal(t, "TIMESYNC", msg.Type)
	assert.JSONEq(t, `{"id":7,"result":1700000000000}`, string(msg.Payload))

	send(t, a, "TIMESYNC", map[string]any{})
	msg = read(t, a)
	assert.JSONEq(t, `{"id":null,"result":1700000000000}`, string(msg.Payload))
}

func TestInvalidPathRoomKeepsConnectionOpen(t *testing.T) {
	env := newTestEnv(t)

	a := env.dial(t, "bad%20id")
	send(t, a, "TIMESYNC", map[string]any{"id": "x"})
	msg := read(t, a)
	assert.Equal(t, "TIMESYNC", msg.Type)

	send(t, a, "JOIN", map[string]any{"room_id": "good"})
	assert.Equal(t, "good", readSnapshot(t, a).Id)
}

func TestLeaveAndDisconnect(t *testing.T) {
	env := newTestEnv(t)

	a := env.dial(t, "abc")
	readSnapshot(t, a)
	b := env.dial(t, "abc")
	readSnapshot(t, b)
	readSnapshot(t, a)

	send(t, b, "LEAVE", nil)
	assert.Equal(t, 1, readSnapshot(t, a).ParticipantCount)

	send(t, b, "JOIN", map[string]any{"room_id": "abc"})
	readSnapshot(t, b)
	assert.Equal(t, 2, readSnapshot(t, a).ParticipantCount)

	require.NoError(t, b.Close())
	assert.Equal(t, 1, readSnapshot(t, a).ParticipantCount)

	require.NoError(t, a.Close())
	require.Eventually(t, func() bool {
		resp, err := http.Get(env.server.URL + "/api/v1/rooms/abc")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusNotFound
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGetRoom(t *testing.T) {
	env := newTestEnv(t)

	a := env.dial(t, "abc")
	readSnapshot(t, a)

	resp, err := http.Get(env.server.URL + "/api/v1/rooms/abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data domain.Snapshot `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "abc", body.Data.Id)
	assert.Equal(t, 1, body.Data.ParticipantCount)
}

func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestLandingRedirectsToFreshRoom(t *testing.T) {
	env := newTestEnv(t)

	resp, err := noRedirectClient().Get(env.server.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	location := resp.Header.Get("Location")
	assert.Regexp(t, `^[\w-]{11}$`, location)

	resp, err = noRedirectClient().Get(env.server.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEqual(t, location, resp.Header.Get("Location"))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy unavailable")
}

func TestLandingFailsWithoutEntropy(t *testing.T) {
	env := newTestEnv(t, WithEntropy(failingReader{}))

	resp, err := noRedirectClient().Get(env.server.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := noRedirectClient().Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestStaticRoutes(t *testing.T) {
	env := newTestEnv(t)

	status, body := get(t, env.server.URL+"/movie-night_2")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "<html>room</html>", body)

	status, body = get(t, env.server.URL+"/app.js")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "console.log(1)", body)

	status, body = get(t, env.server.URL+"/index.html")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "<html>room</html>", body)

	status, _ = get(t, env.server.URL+"/assets/")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = get(t, env.server.URL+"/missing.css")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHeadIsServedLikeGet(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/movie-night_2", "/app.js"} {
		resp, err := noRedirectClient().Head(env.server.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	resp, err := noRedirectClient().Head(env.server.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Regexp(t, `^[\w-]{11}$`, resp.Header.Get("Location"))
}

func TestHealthzAndMetrics(t *testing.T) {
	env := newTestEnv(t, WithMetrics(metrics.New()))

	status, body := get(t, env.server.URL+"/api/v1/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body)

	a := env.dial(t, "abc")
	readSnapshot(t, a)

	status, body = get(t, env.server.URL+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "syncroom_active_rooms 1")
	assert.Contains(t, body, "syncroom_active_connections 1")
}
