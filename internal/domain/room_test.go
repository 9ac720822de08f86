package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joined(t *testing.T, connIds ...string) *Room {
	t.Helper()
	r := NewRoom("room-1")
	for _, id := range connIds {
		changed, err := r.Apply(id, JoinCommand{RoomId: "room-1"})
		require.NoError(t, err)
		require.True(t, changed)
	}
	return r
}

func TestJoinIsIdempotent(t *testing.T) {
	r := joined(t, "a")
	assert.Equal(t, 1, r.ParticipantCount())

	changed, err := r.Apply("a", JoinCommand{RoomId: "room-1"})
	require.NoError(t, err)
	assert.True(t, changed, "re-join must still republish state")
	assert.Equal(t, 1, r.ParticipantCount())
	assert.Equal(t, int64(0), r.Version())
}

func TestJoinWrongRoom(t *testing.T) {
	r := NewRoom("room-1")
	_, err := r.Apply("a", JoinCommand{RoomId: "room-2"})
	require.Error(t, err)
	assert.Equal(t, 0, r.ParticipantCount())
}

func TestPlayPauseVersioning(t *testing.T) {
	r := joined(t, "a")

	changed, err := r.Apply("a", PlayCommand{Version: 0, Started: 1000})
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, r.Playback().Started)
	assert.Equal(t, int64(1000), *r.Playback().Started)
	assert.Equal(t, int64(1), r.Version())

	changed, err = r.Apply("a", PlayCommand{Version: 0, Started: 2000})
	assert.ErrorIs(t, err, ErrVersionMismatch)
	assert.False(t, changed)
	assert.Equal(t, int64(1000), *r.Playback().Started, "stale play must not mutate state")
	assert.Equal(t, int64(1), r.Version())

	_, err = r.Apply("a", PauseCommand{Version: 0})
	assert.ErrorIs(t, err, ErrVersionMismatch)
	assert.True(t, r.Playback().IsPlaying())

	changed, err = r.Apply("a", PauseCommand{Version: 1})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Nil(t, r.Playback().Started)
	assert.Equal(t, int64(2), r.Version())
}

func TestPlayRejectsNonPositiveStart(t *testing.T) {
	r := joined(t, "a")

	for _, started := range []int64{0, -5} {
		changed, err := r.Apply("a", PlayCommand{Version: 0, Started: started})
		assert.ErrorIs(t, err, ErrInvalidStartTime)
		assert.False(t, changed)
	}
	assert.Equal(t, int64(0), r.Version())
	assert.False(t, r.Playback().IsPlaying())
}

func TestVersionIncreasesOncePerAcceptedMutation(t *testing.T) {
	r := joined(t, "a", "b")

	accepted := 0
	cmds := []struct {
		conn string
		cmd  Command
	}{
		{"a", PlayCommand{Version: 0, Started: 10}},
		{"b", PlayCommand{Version: 0, Started: 20}},
		{"b", PauseCommand{Version: 1}},
		{"a", PauseCommand{Version: 1}},
		{"a", PlayCommand{Version: 2, Started: 30}},
		{"b", SeekCommand{Version: 3, Time: 12}},
		{"b", PauseCommand{Version: 3}},
	}
	last := r.Version()
	for _, c := range cmds {
		_, err := r.Apply(c.conn, c.cmd)
		if err == nil && c.cmd.Name() != "SEEK" {
			accepted++
		}
		assert.GreaterOrEqual(t, r.Version(), last)
		last = r.Version()
	}
	assert.Equal(t, int64(accepted), r.Version())
}

func TestSeekOnlyRepublishes(t *testing.T) {
	r := joined(t, "a")
	_, err := r.Apply("a", PlayCommand{Version: 0, Started: 500})
	require.NoError(t, err)

	changed, err := r.Apply("a", SeekCommand{Version: 7, Time: 42})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(1), r.Version())
	assert.Equal(t, int64(500), *r.Playback().Started)
}

func TestSetMedia(t *testing.T) {
	r := joined(t, "a")
	_, err := r.Apply("a", PlayCommand{Version: 0, Started: 500})
	require.NoError(t, err)

	src := "https://example.com/master.m3u8"
	changed, err := r.Apply("a", SetMediaCommand{Type: MediaTypeVideo, Src: &src})
	require.NoError(t, err)
	assert.True(t, changed)

	snapshot := r.Snapshot()
	assert.Equal(t, MediaTypeVideo, snapshot.Media.Type)
	assert.Equal(t, src, *snapshot.Media.Src)
	// media change keeps the old timeline
	assert.Equal(t, int64(1), snapshot.PlaybackState.Version)
	assert.Equal(t, int64(500), *snapshot.PlaybackState.Started)

	other := "x"
	changed, err = r.Apply("a", SetMediaCommand{Type: "audio", Src: &other})
	assert.ErrorIs(t, err, ErrUnsupportedMediaType)
	assert.False(t, changed)
	assert.Equal(t, src, *r.Snapshot().Media.Src)
}

func TestSetMediaWithPlaybackReset(t *testing.T) {
	r := NewRoom("room-1", WithPlaybackResetOnMediaChange(true))
	_, err := r.Apply("a", JoinCommand{RoomId: "room-1"})
	require.NoError(t, err)
	_, err = r.Apply("a", PlayCommand{Version: 0, Started: 500})
	require.NoError(t, err)

	src := "https://example.com/other.m3u8"
	_, err = r.Apply("a", SetMediaCommand{Type: MediaTypeVideo, Src: &src})
	require.NoError(t, err)
	assert.False(t, r.Playback().IsPlaying())
	assert.Equal(t, int64(2), r.Version())
}

func TestParticipantFields(t *testing.T) {
	r := joined(t, "a", "b")

	_, err := r.Apply("a", SetNameCommand{DisplayName: "alice"})
	require.NoError(t, err)
	_, err = r.Apply("a", SetReadyCommand{Ready: true})
	require.NoError(t, err)
	_, err = r.Apply("b", SetPlaybackReadyCommand{PlaybackReady: true})
	require.NoError(t, err)

	snapshot := r.Snapshot()
	require.NotNil(t, snapshot.Participants["a"].Name)
	assert.Equal(t, "alice", *snapshot.Participants["a"].Name)
	assert.True(t, snapshot.Participants["a"].Ready)
	assert.False(t, snapshot.Participants["a"].PlaybackReady)
	assert.Nil(t, snapshot.Participants["b"].Name)
	assert.True(t, snapshot.Participants["b"].PlaybackReady)
}

func TestCommandsFromNonParticipant(t *testing.T) {
	r := joined(t, "a")

	for _, cmd := range []Command{
		LeaveCommand{},
		PlayCommand{Version: 0, Started: 1},
		PauseCommand{Version: 0},
		SeekCommand{},
		SetNameCommand{DisplayName: "x"},
		SetReadyCommand{Ready: true},
		SetPlaybackReadyCommand{PlaybackReady: true},
	} {
		changed, err := r.Apply("stranger", cmd)
		assert.ErrorIs(t, err, ErrNotParticipant, cmd.Name())
		assert.False(t, changed)
	}
	assert.Equal(t, 1, r.ParticipantCount())
	assert.Equal(t, int64(0), r.Version())
}

func TestLeaveKeepsCountInSync(t *testing.T) {
	r := joined(t, "a", "b", "c")

	_, err := r.Apply("b", LeaveCommand{})
	require.NoError(t, err)
	assert.Equal(t, 2, r.ParticipantCount())
	assert.Len(t, r.Snapshot().Participants, r.ParticipantCount())
	assert.Equal(t, []string{"a", "c"}, r.ConnIds())

	_, err = r.Apply("b", LeaveCommand{})
	assert.ErrorIs(t, err, ErrNotParticipant)
	assert.Equal(t, 2, r.ParticipantCount())
}

func TestSnapshotIsDetached(t *testing.T) {
	r := joined(t, "a")
	_, err := r.Apply("a", SetNameCommand{DisplayName: "before"})
	require.NoError(t, err)

	snapshot := r.Snapshot()
	_, err = r.Apply("a", SetNameCommand{DisplayName: "after"})
	require.NoError(t, err)

	assert.Equal(t, "before", *snapshot.Participants["a"].Name)
}

func TestSnapshotJSON(t *testing.T) {
	r := joined(t, "a")

	data, err := json.Marshal(r.Snapshot())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "room-1",
		"media": {"type": null, "src": null},
		"playback_state": {"started": null, "version": 0},
		"participants": {"a": {"name": null, "ready": false, "playback_ready": false}},
		"participant_count": 1
	}`, string(data))
}
