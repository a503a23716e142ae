// Package watcher polls the engine for sandbox state and notifies
// subscribers whenever the alias to status mapping changes.
//
// Each notification carries the full current listing. Delivery is
// fire-and-forget: a subscriber whose buffer is full misses that event.
// The watcher takes no locks shared with lifecycle operations; changes
// made between polls show up on the next tick.
package watcher

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BHPAV/dev-container-launcher/internal/config"
	"github.com/BHPAV/dev-container-launcher/internal/engine"
	"github.com/BHPAV/dev-container-launcher/internal/logging"
)

// Lister returns the current sandboxes.
type Lister interface {
	ListSandboxes(ctx context.Context) ([]engine.Sandbox, error)
}

// Event is a change notification.
type Event struct {
	ID        string
	Time      time.Time
	Sandboxes []engine.Sandbox

	// Initial marks the first successful poll.
	Initial bool
}

// Watcher periodically lists sandboxes and publishes changes.
type Watcher struct {
	interval time.Duration
	lister   Lister

	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool

	last   map[string]engine.Status
	primed bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// New creates a Watcher over lister.
func New(lister Lister, opts ...Option) *Watcher {
	w := &Watcher{
		interval: config.DefaultPollInterval,
		lister:   lister,
		subs:     make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Interval returns the poll interval.
func (w *Watcher) Interval() time.Duration {
	return w.interval
}

// Subscribe registers an observer. The returned function unsubscribes and
// closes the channel; the channel is also closed when Run returns.
func (w *Watcher) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		close(ch)
		return ch, func() {}
	}
	id := w.nextID
	w.nextID++
	w.subs[id] = ch

	return ch, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if c, ok := w.subs[id]; ok {
			delete(w.subs, id)
			close(c)
		}
	}
}

// Run polls immediately and then on every tick until ctx is cancelled.
// Poll failures are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	logging.Debug("starting state watcher", "interval", w.interval)
	defer w.closeAll()

	w.poll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Debug("state watcher stopping")
			return ctx.Err()
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll lists sandboxes once and publishes an event if anything changed.
// It reports whether an event was published.
func (w *Watcher) poll(ctx context.Context) bool {
	sandboxes, err := w.lister.ListSandboxes(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logging.Warn("watcher failed to list sandboxes", "error", err)
		}
		return false
	}

	snapshot := make(map[string]engine.Status, len(sandboxes))
	for _, sb := range sandboxes {
		snapshot[sb.Alias] = sb.Status
	}
	if w.primed && maps.Equal(snapshot, w.last) {
		return false
	}

	initial := !w.primed
	w.last, w.primed = snapshot, true
	w.publish(Event{
		ID:        uuid.NewString(),
		Time:      time.Now(),
		Sandboxes: sandboxes,
		Initial:   initial,
	})
	return true
}

func (w *Watcher) publish(ev Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, ch := range w.subs {
		select {
		case ch <- ev:
		default:
			logging.Debug("watcher subscriber is behind, dropping event", "subscriber", id, "event", ev.ID)
		}
	}
}

func (w *Watcher) closeAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	for id, ch := range w.subs {
		delete(w.subs, id)
		close(ch)
	}
}
