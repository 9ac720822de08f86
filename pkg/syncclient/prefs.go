package syncclient

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

var ErrNoPreference = errors.New("no stored preference")

// PreferenceStore remembers the participant's display name between runs.
// Implementations are best effort; callers treat any error as "not
// remembered".
type PreferenceStore interface {
	LoadName(ctx context.Context) (string, error)
	SaveName(ctx context.Context, name string) error
}

const nameKey = "name"

type fileStore struct {
	mu   sync.Mutex
	v    *viper.Viper
	path string
}

// NewFileStore keeps preferences in a config file at path. The format
// follows the file extension and defaults to yaml.
func NewFileStore(path string) *fileStore {
	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("yaml")
	}

	return &fileStore{v: v, path: path}
}

func (s *fileStore) LoadName(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.v.ReadInConfig(); err != nil {
		return "", fmt.Errorf("failed to read preferences: %w", err)
	}

	name := strings.TrimSpace(s.v.GetString(nameKey))
	if name == "" {
		return "", ErrNoPreference
	}

	return name, nil
}

func (s *fileStore) SaveName(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.v.Set(nameKey, name)
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}

	return nil
}

type redisStore struct {
	rc  *redis.Client
	key string
}

// NewRedisStore keeps preferences in a redis hash under key.
func NewRedisStore(rc *redis.Client, key string) *redisStore {
	return &redisStore{rc: rc, key: key}
}

func (s *redisStore) LoadName(ctx context.Context) (string, error) {
	name, err := s.rc.HGet(ctx, s.key, nameKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNoPreference
		}
		return "", fmt.Errorf("failed to read preferences: %w", err)
	}

	return name, nil
}

func (s *redisStore) SaveName(ctx context.Context, name string) error {
	if err := s.rc.HSet(ctx, s.key, nameKey, name).Err(); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}

	return nil
}

type nopStore struct{}

func (nopStore) LoadName(context.Context) (string, error) { return "", ErrNoPreference }
func (nopStore) SaveName(context.Context, string) error   { return nil }
