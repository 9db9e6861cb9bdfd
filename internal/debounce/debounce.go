// Package debounce provides a generic debounced value.
package debounce

import (
	"sync"
	"time"
)

// Timer is the handle returned by an AfterFunc implementation.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run after d. time.AfterFunc satisfies it through
// RealAfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

// RealAfterFunc schedules f on the runtime timer.
func RealAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Option configures a Debouncer.
type Option[T any] func(*Debouncer[T])

// WithOnSettle registers fn to run each time the settled value changes.
func WithOnSettle[T any](fn func(T)) Option[T] {
	return func(d *Debouncer[T]) { d.onSettle = fn }
}

// WithAfterFunc replaces the timer source.
func WithAfterFunc[T any](af AfterFunc) Option[T] {
	return func(d *Debouncer[T]) { d.afterFunc = af }
}

// Debouncer holds an immediate value and a settled value that follows it once
// no change has happened for the configured delay.
type Debouncer[T any] struct {
	delay     time.Duration
	afterFunc AfterFunc
	onSettle  func(T)

	mu      sync.Mutex
	value   T
	settled T
	timer   Timer
	gen     uint64
	stopped bool
}

// New returns a Debouncer whose immediate and settled values are both initial.
func New[T any](initial T, delay time.Duration, opts ...Option[T]) *Debouncer[T] {
	d := &Debouncer[T]{
		delay:     delay,
		afterFunc: RealAfterFunc,
		value:     initial,
		settled:   initial,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Value returns the immediate value.
func (d *Debouncer[T]) Value() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

// Settled returns the delayed value.
func (d *Debouncer[T]) Settled() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settled
}

// Set updates the immediate value and restarts the timer. Calls after Stop
// are ignored.
func (d *Debouncer[T]) Set(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.value = v
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.afterFunc(d.delay, func() { d.fire(gen) })
}

// Flush settles the pending value immediately.
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	if d.timer == nil || d.stopped {
		d.mu.Unlock()
		return
	}
	d.timer.Stop()
	gen := d.gen
	d.mu.Unlock()
	d.fire(gen)
}

// Reset sets both the immediate and the settled value to v and cancels any
// pending timer without calling the settle callback.
func (d *Debouncer[T]) Reset(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.value, d.settled = v, v
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Stop cancels any pending timer. No settle callback runs afterwards.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	// A newer Set or a Stop supersedes this timer.
	if d.stopped || gen != d.gen || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.settled = d.value
	v, fn := d.settled, d.onSettle
	d.mu.Unlock()

	if fn != nil {
		fn(v)
	}
}
