package syncclient

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "viewer.yaml")

	store := NewFileStore(path)
	_, err := store.LoadName(ctx)
	assert.Error(t, err)

	require.NoError(t, store.SaveName(ctx, "alice"))

	name, err := NewFileStore(path).LoadName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", name)
}

func TestFileStoreUnwritable(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing", "dir", "viewer.yaml"))
	assert.Error(t, store.SaveName(context.Background(), "alice"))
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	store := NewRedisStore(rc, "viewer:prefs")
	_, err := store.LoadName(ctx)
	assert.ErrorIs(t, err, ErrNoPreference)

	require.NoError(t, store.SaveName(ctx, "bob"))
	assert.Equal(t, "bob", s.HGet("viewer:prefs", "name"))

	name, err := store.LoadName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", name)

	s.Close()
	_, err = store.LoadName(ctx)
	assert.Error(t, err)
}
