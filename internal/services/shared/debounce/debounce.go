// Package debounce coalesces bursts of calls into one delayed call carrying
// the latest argument.
package debounce

import (
	"sync"
	"time"

	"github.com/louisbranch/tapestry/internal/platform/clock"
)

// Debouncer delays fn until delay has passed without a new Call.
type Debouncer[T any] struct {
	delay time.Duration
	fn    func(T)
	clock clock.Clock

	mu      sync.Mutex
	timer   clock.Timer
	seq     uint64
	pending bool
	last    T
}

// New creates a Debouncer. A nil clock uses real time.
func New[T any](delay time.Duration, fn func(T), clk clock.Clock) *Debouncer[T] {
	if clk == nil {
		clk = clock.Real()
	}
	return &Debouncer[T]{delay: delay, fn: fn, clock: clk}
}

// Call records v and restarts the delay.
func (d *Debouncer[T]) Call(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.last = v
	d.pending = true
	d.seq++
	seq := d.seq
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(seq) })
}

func (d *Debouncer[T]) fire(seq uint64) {
	d.mu.Lock()
	if !d.pending || seq != d.seq {
		d.mu.Unlock()
		return
	}
	v := d.take()
	d.mu.Unlock()
	d.fn(v)
}

func (d *Debouncer[T]) take() T {
	v := d.last
	var zero T
	d.last = zero
	d.pending = false
	d.timer = nil
	return v
}

// Flush runs the pending call now. It reports whether a call was pending.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return false
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	v := d.take()
	d.mu.Unlock()
	d.fn(v)
	return true
}

// Cancel drops the pending call.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	d.take()
}

// Pending reports whether a call is waiting to run.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}
