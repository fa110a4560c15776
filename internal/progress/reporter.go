package progress

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval is the minimum gap between two emitted reports.
const DefaultInterval = 10 * time.Second

// EmitFunc delivers rendered progress text, typically by editing a chat
// message.
type EmitFunc func(ctx context.Context, text string) error

// Reporter throttles progress reports for one phase of one job. Each phase
// owns its Reporter so phases never share a throttle window.
type Reporter struct {
	label       string
	minInterval time.Duration
	emit        EmitFunc
	now         func() time.Time

	mu       sync.Mutex
	start    time.Time
	lastEmit time.Time
}

type Option func(*Reporter)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) { r.now = now }
}

// NewReporter creates a Reporter labelled label ("Downloading", "Uploading").
// A non-positive minInterval falls back to DefaultInterval.
func NewReporter(label string, minInterval time.Duration, emit EmitFunc, opts ...Option) *Reporter {
	if minInterval <= 0 {
		minInterval = DefaultInterval
	}
	r := &Reporter{
		label:       label,
		minInterval: minInterval,
		emit:        emit,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.start = r.now()
	return r
}

// Report emits the rendered progress if at least minInterval has passed
// since the previous emit. The first call always emits.
func (r *Reporter) Report(ctx context.Context, current, total int64) (bool, error) {
	r.mu.Lock()
	now := r.now()
	if !r.lastEmit.IsZero() && now.Sub(r.lastEmit) < r.minInterval {
		r.mu.Unlock()
		return false, nil
	}
	r.lastEmit = now
	text := Render(r.label, current, total, now.Sub(r.start))
	r.mu.Unlock()

	return true, r.emit(ctx, text)
}

// Force emits regardless of the throttle window and restarts it.
func (r *Reporter) Force(ctx context.Context, current, total int64) error {
	r.mu.Lock()
	now := r.now()
	r.lastEmit = now
	text := Render(r.label, current, total, now.Sub(r.start))
	r.mu.Unlock()

	return r.emit(ctx, text)
}

// Restart resets the speed baseline, e.g. before a new upload attempt.
// The throttle window is kept.
func (r *Reporter) Restart() {
	r.mu.Lock()
	r.start = r.now()
	r.mu.Unlock()
}

// SinceLastEmit returns the time elapsed since the last emit, or the time
// since creation if nothing has been emitted yet.
func (r *Reporter) SinceLastEmit() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lastEmit.IsZero() {
		return r.now().Sub(r.start)
	}
	return r.now().Sub(r.lastEmit)
}
