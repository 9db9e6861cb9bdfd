// Package toast implements the transient notification queue.
package toast

import (
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/certhub/internal/debounce"
)

// Kind is the toast severity.
type Kind string

// Toast kinds.
const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// DefaultDuration is used when the queue is built without one.
const DefaultDuration = 5 * time.Second

// Action is an optional call to action shown with a toast.
type Action struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// Toast is one notification. A zero Duration keeps it until it is removed.
type Toast struct {
	ID        string        `json:"id"`
	Kind      Kind          `json:"type"`
	Title     string        `json:"title,omitempty"`
	Message   string        `json:"message"`
	Action    *Action       `json:"action,omitempty"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"createdAt"`
}

// MarshalJSON encodes Duration in milliseconds.
func (t Toast) MarshalJSON() ([]byte, error) {
	type alias Toast
	return json.Marshal(struct {
		alias
		Duration int64 `json:"duration"`
	}{alias(t), t.Duration.Milliseconds()})
}

// Event names passed to listeners.
const (
	EventAdded   = "toast.added"
	EventRemoved = "toast.removed"
)

// Listener observes queue changes.
type Listener func(event string, t Toast)

// Option configures a Queue.
type Option func(*Queue)

// WithDefaultDuration sets the duration used by AddTimed and the kind helpers.
func WithDefaultDuration(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.defaultDuration = d
		}
	}
}

// WithListener registers a change listener.
func WithListener(l Listener) Option {
	return func(q *Queue) { q.listeners = append(q.listeners, l) }
}

// WithAfterFunc replaces the expiry timer source.
func WithAfterFunc(af debounce.AfterFunc) Option {
	return func(q *Queue) { q.afterFunc = af }
}

// Queue is an insertion-ordered list of toasts. It is safe for concurrent use.
type Queue struct {
	defaultDuration time.Duration
	afterFunc       debounce.AfterFunc
	listeners       []Listener
	now             func() time.Time

	mu     sync.Mutex
	toasts []Toast
	timers map[string]debounce.Timer
	closed bool
}

// New returns an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		defaultDuration: DefaultDuration,
		afterFunc:       debounce.RealAfterFunc,
		now:             time.Now,
		timers:          make(map[string]debounce.Timer),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Add appends t, filling in the id and default kind, and schedules its
// removal after t.Duration. A Duration of 0 disables auto-removal.
// It returns the stored toast.
func (q *Queue) Add(t Toast) Toast {
	t.ID = uuid.NewString()
	if t.Kind == "" {
		t.Kind = KindInfo
	}
	if t.Duration < 0 {
		t.Duration = 0
	}
	t.CreatedAt = q.now()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return t
	}
	q.toasts = append(q.toasts, t)
	if t.Duration > 0 {
		id := t.ID
		q.timers[id] = q.afterFunc(t.Duration, func() { q.Remove(id) })
	}
	q.mu.Unlock()

	q.notify(EventAdded, t)
	return t
}

// AddTimed is Add with the queue's default duration applied when t has none.
func (q *Queue) AddTimed(t Toast) Toast {
	if t.Duration == 0 {
		t.Duration = q.defaultDuration
	}
	return q.Add(t)
}

// Info adds an info toast with the default duration.
func (q *Queue) Info(title, message string) Toast {
	return q.AddTimed(Toast{Kind: KindInfo, Title: title, Message: message})
}

// Success adds a success toast with the default duration.
func (q *Queue) Success(title, message string) Toast {
	return q.AddTimed(Toast{Kind: KindSuccess, Title: title, Message: message})
}

// Warning adds a warning toast with the default duration.
func (q *Queue) Warning(title, message string) Toast {
	return q.AddTimed(Toast{Kind: KindWarning, Title: title, Message: message})
}

// Error adds an error toast with the default duration.
func (q *Queue) Error(title, message string) Toast {
	return q.AddTimed(Toast{Kind: KindError, Title: title, Message: message})
}

// Remove deletes the toast with id. Unknown ids are ignored.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	i := slices.IndexFunc(q.toasts, func(t Toast) bool { return t.ID == id })
	if i < 0 {
		q.mu.Unlock()
		return
	}
	removed := q.toasts[i]
	q.toasts = slices.Delete(q.toasts, i, i+1)
	if tm, ok := q.timers[id]; ok {
		tm.Stop()
		delete(q.timers, id)
	}
	q.mu.Unlock()

	q.notify(EventRemoved, removed)
}

// Clear removes every toast.
func (q *Queue) Clear() {
	q.mu.Lock()
	removed := q.toasts
	q.toasts = nil
	for id, tm := range q.timers {
		tm.Stop()
		delete(q.timers, id)
	}
	q.mu.Unlock()

	for _, t := range removed {
		q.notify(EventRemoved, t)
	}
}

// List returns the toasts in insertion order.
func (q *Queue) List() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Toast, len(q.toasts))
	copy(out, q.toasts)
	return out
}

// Len returns the number of queued toasts.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.toasts)
}

// Close stops every pending timer. Later Adds are dropped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	for id, tm := range q.timers {
		tm.Stop()
		delete(q.timers, id)
	}
}

func (q *Queue) notify(event string, t Toast) {
	for _, l := range q.listeners {
		l(event, t)
	}
}
