package main

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sharetube/syncroom/internal/domain"
	"github.com/sharetube/syncroom/pkg/reconciler"
)

// headlessSurface simulates a player: position advances with the wall clock
// while playing.
type headlessSurface struct {
	mu       sync.Mutex
	src      string
	playing  bool
	position float64
	since    time.Time
	logger   *slog.Logger
}

func newHeadlessSurface(logger *slog.Logger) *headlessSurface {
	return &headlessSurface{logger: logger}
}

func (s *headlessSurface) currentLocked() float64 {
	if !s.playing {
		return s.position
	}

	return s.position + time.Since(s.since).Seconds()
}

func (s *headlessSurface) Load(src string, kind domain.MediaType) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.src = src
	s.playing = false
	s.position = 0
	s.logger.Info("media loaded", "src", src, "type", kind)
}

func (s *headlessSurface) SeekTo(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.position = seconds
	s.since = time.Now()
	s.logger.Info("seek", "position", seconds)
}

func (s *headlessSurface) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playing {
		return
	}
	s.playing = true
	s.since = time.Now()
	s.logger.Info("play", "position", s.position)
}

func (s *headlessSurface) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.position = s.currentLocked()
	s.playing = false
	s.logger.Info("pause", "position", s.position)
}

func (s *headlessSurface) Readiness() reconciler.Readiness {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.src == "":
		return reconciler.NotReady
	case s.playing:
		return reconciler.Playing
	default:
		return reconciler.CanPlay
	}
}

func (s *headlessSurface) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.currentLocked()
}
