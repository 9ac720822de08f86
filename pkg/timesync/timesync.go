// Package timesync estimates the offset between a local clock and a remote
// reference clock over a request/reply channel.
package timesync

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	ErrTimeout = errors.New("timesync request timed out")
	ErrClosed  = errors.New("estimator closed")
)

type Config struct {
	// Interval between sync rounds.
	Interval time.Duration
	// Samples is the number of requests per round.
	Samples int
	// Delay between two requests of one round.
	Delay time.Duration
	// Timeout after which a pending request is dropped.
	Timeout time.Duration
	// Threshold is the minimum offset change reported to OnChange listeners.
	Threshold time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:  10 * time.Second,
		Samples:   5,
		Delay:     time.Second,
		Timeout:   2 * time.Second,
		Threshold: 10 * time.Millisecond,
	}
}

// Estimate is the current view of the reference clock: reference time is
// local time plus Offset.
type Estimate struct {
	Offset   time.Duration
	LastSync time.Time
}

// RequestFunc sends one resolve request carrying requestId. The reply is
// delivered back through Estimator.Receive.
type RequestFunc func(ctx context.Context, requestId int64) error

type Option func(*Estimator)

func WithConfig(cfg Config) Option {
	return func(e *Estimator) {
		e.cfg = cfg
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(e *Estimator) {
		e.clock = clock
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Estimator) {
		e.logger = logger
	}
}

type sample struct {
	offset time.Duration
	rtt    time.Duration
}

type Estimator struct {
	cfg    Config
	clock  clockwork.Clock
	send   RequestFunc
	logger *slog.Logger

	mu        sync.Mutex
	lastId    int64
	pending   map[int64]chan int64
	estimate  Estimate
	notified  time.Duration
	listeners []func(Estimate)
	closed    bool
}

func New(send RequestFunc, opts ...Option) *Estimator {
	e := &Estimator{
		cfg:     DefaultConfig(),
		clock:   clockwork.NewRealClock(),
		send:    send,
		logger:  slog.Default(),
		pending: make(map[int64]chan int64),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// OnChange registers fn to be called when the offset moves by more than the
// configured threshold.
func (e *Estimator) OnChange(fn func(Estimate)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listeners = append(e.listeners, fn)
}

func (e *Estimator) Estimate() Estimate {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.estimate
}

// Now returns the estimated reference time in milliseconds since the Unix
// epoch.
func (e *Estimator) Now() int64 {
	return e.clock.Now().Add(e.Estimate().Offset).UnixMilli()
}

// Receive delivers a reply. Replies for unknown, already answered or timed
// out requests are dropped.
func (e *Estimator) Receive(requestId int64, result int64) {
	e.mu.Lock()
	ch, ok := e.pending[requestId]
	if ok {
		delete(e.pending, requestId)
	}
	e.mu.Unlock()

	if !ok {
		e.logger.Debug("dropping timesync reply", "request_id", requestId)
		return
	}

	ch <- result
}

// Close stops the estimator. Pending and future requests fail with
// ErrClosed.
func (e *Estimator) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	for id, ch := range e.pending {
		close(ch)
		delete(e.pending, id)
	}
}

// Run syncs immediately and then every Interval until ctx is done.
func (e *Estimator) Run(ctx context.Context) error {
	ticker := e.clock.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := e.Sync(ctx); err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
	}
}

// Sync runs one round of requests and updates the estimate from the samples
// that got a reply. Timed out requests are skipped.
func (e *Estimator) Sync(ctx context.Context) error {
	samples := make([]sample, 0, e.cfg.Samples)
	for i := 0; i < e.cfg.Samples; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-e.clock.After(e.cfg.Delay):
			}
		}

		s, err := e.measure(ctx, e.nextId())
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				e.logger.DebugContext(ctx, "timesync sample dropped", "error", err)
				continue
			}
			return err
		}
		samples = append(samples, s)
	}

	if len(samples) == 0 {
		return nil
	}

	e.update(filter(samples))
	return nil
}

func (e *Estimator) nextId() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastId++
	return e.lastId
}

func (e *Estimator) measure(ctx context.Context, requestId int64) (sample, error) {
	reply := make(chan int64, 1)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return sample{}, ErrClosed
	}
	e.pending[requestId] = reply
	e.mu.Unlock()

	drop := func() {
		e.mu.Lock()
		delete(e.pending, requestId)
		e.mu.Unlock()
	}

	timer := e.clock.NewTimer(e.cfg.Timeout)
	defer timer.Stop()

	sent := e.clock.Now()
	if err := e.send(ctx, requestId); err != nil {
		drop()
		return sample{}, err
	}

	select {
	case result, ok := <-reply:
		if !ok {
			return sample{}, ErrClosed
		}
		received := e.clock.Now()
		rtt := received.Sub(sent)
		return sample{
			offset: time.UnixMilli(result).Sub(received) + rtt/2,
			rtt:    rtt,
		}, nil
	case <-timer.Chan():
		drop()
		return sample{}, ErrTimeout
	case <-ctx.Done():
		drop()
		return sample{}, ctx.Err()
	}
}

func (e *Estimator) update(offset time.Duration) {
	e.mu.Lock()
	e.estimate = Estimate{
		Offset:   offset,
		LastSync: e.clock.Now(),
	}
	estimate := e.estimate

	delta := offset - e.notified
	if delta < 0 {
		delta = -delta
	}
	if delta <= e.cfg.Threshold {
		e.mu.Unlock()
		return
	}
	e.notified = offset
	listeners := append([]func(Estimate){}, e.listeners...)
	e.mu.Unlock()

	e.logger.Debug("clock offset changed", "offset", offset)
	for _, fn := range listeners {
		fn(estimate)
	}
}

// filter drops samples whose round trip exceeds mean + one standard
// deviation and averages the offsets of the rest.
func filter(samples []sample) time.Duration {
	var sum float64
	for _, s := range samples {
		sum += float64(s.rtt)
	}
	mean := sum / float64(len(samples))

	var variance float64
	for _, s := range samples {
		d := float64(s.rtt) - mean
		variance += d * d
	}
	limit := mean + math.Sqrt(variance/float64(len(samples)))

	var total time.Duration
	kept := 0
	for _, s := range samples {
		if float64(s.rtt) > limit {
			continue
		}
		total += s.offset
		kept++
	}

	return total / time.Duration(kept)
}
