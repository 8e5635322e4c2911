package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAdvanceFiresDueTimersInOrder(t *testing.T) {
	c := NewFake(epoch)
	var order []string
	c.AfterFunc(2*time.Second, func() { order = append(order, "late") })
	c.AfterFunc(time.Second, func() { order = append(order, "early") })
	c.AfterFunc(5*time.Second, func() { order = append(order, "never") })

	c.Advance(3 * time.Second)

	if len(order) != 2 || order[0] != "early" || order[1] != "late" {
		t.Fatalf("unexpected firing order %v", order)
	}
	if c.Pending() != 1 {
		t.Fatalf("expected 1 pending timer, got %d", c.Pending())
	}
	if !c.Now().Equal(epoch.Add(3 * time.Second)) {
		t.Fatalf("unexpected now %v", c.Now())
	}
}

func TestFakeStopPreventsCallback(t *testing.T) {
	c := NewFake(epoch)
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })
	if !timer.Stop() {
		t.Fatal("expected first stop to report true")
	}
	if timer.Stop() {
		t.Fatal("expected second stop to report false")
	}
	c.Advance(time.Minute)
	if fired {
		t.Fatal("expected stopped timer not to fire")
	}
}

func TestFakeCallbackCanRescheduleWithinAdvance(t *testing.T) {
	c := NewFake(epoch)
	count := 0
	var tick func()
	tick = func() {
		count++
		if count < 3 {
			c.AfterFunc(time.Second, tick)
		}
	}
	c.AfterFunc(time.Second, tick)
	c.Advance(10 * time.Second)
	if count != 3 {
		t.Fatalf("expected 3 ticks, got %d", count)
	}
}

func TestRealAfterFuncRuns(t *testing.T) {
	done := make(chan struct{})
	Real().AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected real timer to fire")
	}
}
