// Package reconciler drives a local media surface towards the room's
// authoritative playback state.
package reconciler

import (
	"math"
	"sync"

	"github.com/sharetube/syncroom/internal/domain"
)

type Readiness int

const (
	NotReady Readiness = iota
	CanPlay
	Playing
)

func (r Readiness) String() string {
	switch r {
	case CanPlay:
		return "canPlay"
	case Playing:
		return "playing"
	default:
		return "notReady"
	}
}

// MediaSurface is the local player being kept in sync.
type MediaSurface interface {
	Load(src string, kind domain.MediaType)
	SeekTo(seconds float64)
	Play()
	Pause()
	Readiness() Readiness
	CurrentTime() float64
}

// ReferenceClock reports reference time in milliseconds since the Unix
// epoch.
type ReferenceClock interface {
	Now() int64
}

const DefaultTolerance = 0.5

type Option func(*Reconciler)

// WithTolerance sets the drift, in seconds, above which Tick seeks.
func WithTolerance(seconds float64) Option {
	return func(r *Reconciler) {
		r.tolerance = seconds
	}
}

type Reconciler struct {
	surface   MediaSurface
	clock     ReferenceClock
	tolerance float64

	mu       sync.Mutex
	src      *string
	started  *int64
	version  int64
	applied  int64
	hasState bool
}

func New(surface MediaSurface, clock ReferenceClock, opts ...Option) *Reconciler {
	r := &Reconciler{
		surface:   surface,
		clock:     clock,
		tolerance: DefaultTolerance,
		applied:   -1,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Apply takes a room snapshot. Media is reloaded when the source changes and
// playback is re-targeted only when the version differs from the last one
// applied.
func (r *Reconciler) Apply(snapshot domain.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	media := snapshot.Media
	if media.Type != domain.MediaTypeNone && media.Src != nil && (r.src == nil || *r.src != *media.Src) {
		src := *media.Src
		r.src = &src
		r.surface.Load(src, media.Type)
	}

	playback := snapshot.PlaybackState
	r.started = playback.Started
	r.version = playback.Version
	r.hasState = true

	if playback.Version == r.applied {
		return
	}
	r.applied = playback.Version

	if playback.Started == nil {
		r.surface.Pause()
		return
	}

	r.surface.SeekTo(r.target(*playback.Started))
	r.surface.Play()
}

// Tick corrects drift while playing and returns the surface readiness.
func (r *Reconciler) Tick() Readiness {
	r.mu.Lock()
	defer r.mu.Unlock()

	readiness := r.surface.Readiness()
	if readiness < CanPlay || r.started == nil {
		return readiness
	}

	target := r.target(*r.started)
	if math.Abs(r.surface.CurrentTime()-target) > r.tolerance {
		r.surface.SeekTo(target)
	}

	return readiness
}

// LocalPlay turns a local play gesture into a command. It returns false
// while the room is already playing.
func (r *Reconciler) LocalPlay() (domain.PlayCommand, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.hasState || r.started != nil {
		return domain.PlayCommand{}, false
	}

	started := r.clock.Now() - int64(math.Round(r.surface.CurrentTime()*1000))
	return domain.PlayCommand{Version: r.version, Started: started}, true
}

// LocalPause turns a local pause gesture into a command. It returns false
// while the room is paused.
func (r *Reconciler) LocalPause() (domain.PauseCommand, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.hasState || r.started == nil {
		return domain.PauseCommand{}, false
	}

	return domain.PauseCommand{Version: r.version}, true
}

func (r *Reconciler) Version() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.version
}

func (r *Reconciler) target(started int64) float64 {
	return float64(r.clock.Now()-started) / 1000
}
