// Package clock abstracts timers so debounce and alert expiry can be tested
// without sleeping.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock provides the time operations used by timer-driven components.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f in its own goroutine (real) or synchronously during
	// Advance (fake) once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	// Stop prevents the call; it reports false when the call already ran or
	// was stopped.
	Stop() bool
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Fake is a deterministic Clock whose time only moves on Advance.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	nextSeq uint64
	waiters map[uint64]*fakeTimer
}

// NewFake returns a Fake clock starting at initial.
func NewFake(initial time.Time) *Fake {
	return &Fake{now: initial, waiters: map[uint64]*fakeTimer{}}
}

type fakeTimer struct {
	clock    *Fake
	seq      uint64
	deadline time.Time
	fn       func()
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if _, ok := t.clock.waiters[t.seq]; !ok {
		return false
	}
	delete(t.clock.waiters, t.seq)
	return true
}

// Now returns the fake current time.
func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to run when the clock passes now+d.
func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSeq++
	timer := &fakeTimer{clock: c, seq: c.nextSeq, deadline: c.now.Add(d), fn: f}
	c.waiters[timer.seq] = timer
	return timer
}

// Pending returns the number of timers that have not fired or been stopped.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// Advance moves time forward and runs due callbacks in deadline order on the
// calling goroutine. Callbacks may register new timers.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		due := make([]*fakeTimer, 0, len(c.waiters))
		for _, waiter := range c.waiters {
			if !waiter.deadline.After(target) {
				due = append(due, waiter)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].deadline.Equal(due[j].deadline) {
				return due[i].seq < due[j].seq
			}
			return due[i].deadline.Before(due[j].deadline)
		})
		next := due[0]
		delete(c.waiters, next.seq)
		if next.deadline.After(c.now) {
			c.now = next.deadline
		}
		c.mu.Unlock()
		next.fn()
	}
}
