// Package alert keeps the short list of user-facing notices shown by the
// player and admin front-ends, expiring each after its duration.
package alert

import (
	"fmt"
	"sync"
	"time"

	"github.com/louisbranch/tapestry/internal/platform/clock"
	"github.com/louisbranch/tapestry/internal/platform/id"
)

// Type selects alert styling.
type Type string

const (
	TypeSuccess Type = "success"
	TypeInfo    Type = "info"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
)

// Defaults applied by NewQueue.
const (
	DefaultDuration = 4500 * time.Millisecond
	DefaultMax      = 5
)

// Alert is one displayed notice.
type Alert struct {
	ID          string
	Type        Type
	Message     string
	Description string
	ShowIcon    bool
	// Duration is the resolved auto-dismiss delay; zero never expires.
	Duration   time.Duration
	Persistent bool
	CreatedAt  time.Time
}

// Input configures Add. A zero Duration takes the queue default and a
// negative one disables auto-dismiss.
type Input struct {
	Type        Type
	Message     string
	Description string
	ShowIcon    bool
	Duration    time.Duration
	Persistent  bool
}

// Queue holds at most MaxAlerts alerts, oldest first.
type Queue struct {
	DefaultDuration time.Duration
	MaxAlerts       int

	clock clock.Clock

	mu       sync.Mutex
	alerts   []Alert
	timers   map[string]clock.Timer
	onChange func([]Alert)
	seq      uint64
}

// NewQueue creates a queue with the default duration and size. A nil clock
// uses real time.
func NewQueue(clk clock.Clock) *Queue {
	if clk == nil {
		clk = clock.Real()
	}
	return &Queue{
		DefaultDuration: DefaultDuration,
		MaxAlerts:       DefaultMax,
		clock:           clk,
		timers:          make(map[string]clock.Timer),
	}
}

// OnChange registers fn to receive a snapshot after every change.
func (q *Queue) OnChange(fn func([]Alert)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onChange = fn
}

func (q *Queue) newID() string {
	q.seq++
	suffix, err := id.NewID()
	if err != nil {
		suffix = fmt.Sprintf("seq%d", q.seq)
	}
	if len(suffix) > 9 {
		suffix = suffix[:9]
	}
	return fmt.Sprintf("alert-%d-%s", q.clock.Now().UnixMilli(), suffix)
}

// AddMessage is the shorthand form: an icon is always shown, an empty type
// means info and a zero duration takes the default.
func (q *Queue) AddMessage(message string, typ Type, duration time.Duration) string {
	if typ == "" {
		typ = TypeInfo
	}
	return q.Add(Input{Type: typ, Message: message, ShowIcon: true, Duration: duration})
}

// Add appends an alert, evicting the oldest when the queue is full, and
// returns its id.
func (q *Queue) Add(in Input) string {
	duration := in.Duration
	if duration == 0 {
		duration = q.DefaultDuration
	}
	if duration < 0 {
		duration = 0
	}
	typ := in.Type
	if typ == "" {
		typ = TypeInfo
	}
	q.mu.Lock()
	alertID := q.newID()
	q.mu.Unlock()
	a := Alert{
		ID:          alertID,
		Type:        typ,
		Message:     in.Message,
		Description: in.Description,
		ShowIcon:    in.ShowIcon,
		Duration:    duration,
		Persistent:  in.Persistent,
		CreatedAt:   q.clock.Now(),
	}

	q.mu.Lock()
	q.alerts = append(q.alerts, a)
	maxAlerts := q.MaxAlerts
	if maxAlerts <= 0 {
		maxAlerts = DefaultMax
	}
	for len(q.alerts) > maxAlerts {
		oldest := q.alerts[0]
		q.alerts = q.alerts[1:]
		q.stopTimerLocked(oldest.ID)
	}
	if !a.Persistent && a.Duration > 0 {
		q.timers[alertID] = q.clock.AfterFunc(a.Duration, func() { q.Remove(alertID) })
	}
	snapshot, fn := q.snapshotLocked()
	q.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
	return a.ID
}

func (q *Queue) stopTimerLocked(alertID string) {
	if timer, ok := q.timers[alertID]; ok {
		timer.Stop()
		delete(q.timers, alertID)
	}
}

func (q *Queue) snapshotLocked() ([]Alert, func([]Alert)) {
	out := make([]Alert, len(q.alerts))
	copy(out, q.alerts)
	return out, q.onChange
}

// Remove dismisses an alert and stops its timer. Unknown ids are ignored.
func (q *Queue) Remove(alertID string) {
	q.mu.Lock()
	idx := -1
	for i, a := range q.alerts {
		if a.ID == alertID {
			idx = i
			break
		}
	}
	q.stopTimerLocked(alertID)
	if idx < 0 {
		q.mu.Unlock()
		return
	}
	q.alerts = append(q.alerts[:idx:idx], q.alerts[idx+1:]...)
	snapshot, fn := q.snapshotLocked()
	q.mu.Unlock()
	if fn != nil {
		fn(snapshot)
	}
}

// Clear dismisses every alert and stops all timers.
func (q *Queue) Clear() {
	q.mu.Lock()
	for alertID := range q.timers {
		q.stopTimerLocked(alertID)
	}
	q.alerts = nil
	snapshot, fn := q.snapshotLocked()
	q.mu.Unlock()
	if fn != nil {
		fn(snapshot)
	}
}

// Alerts returns the current alerts, oldest first.
func (q *Queue) Alerts() []Alert {
	q.mu.Lock()
	defer q.mu.Unlock()
	out, _ := q.snapshotLocked()
	return out
}
