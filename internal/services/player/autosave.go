package player

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/louisbranch/tapestry/internal/platform/dotpath"
	"github.com/louisbranch/tapestry/internal/platform/timeouts"
	"github.com/louisbranch/tapestry/internal/services/game/character"
	"github.com/louisbranch/tapestry/internal/services/shared/debounce"
	"github.com/louisbranch/tapestry/internal/services/shared/optimistic"
)

// Autosaver debounces free-text edits of one sheet. Name and notes save on
// their own schedules.
type Autosaver struct {
	session *Session
	ctx     context.Context
	id      string

	name  *debounce.Debouncer[string]
	notes *debounce.Debouncer[string]

	mu        sync.Mutex
	mutations []*optimistic.Mutation
}

// Autosaver returns a debounced editor for sheet id.
func (s *Session) Autosaver(ctx context.Context, id string) *Autosaver {
	a := &Autosaver{session: s, ctx: ctx, id: id}
	a.name = debounce.New(timeouts.AutosaveName, a.saveName, s.clock)
	a.notes = debounce.New(timeouts.AutosaveNotes, a.saveNotes, s.clock)
	return a
}

// SetName schedules a rename.
func (a *Autosaver) SetName(name string) { a.name.Call(name) }

// SetNotes schedules a notes save.
func (a *Autosaver) SetNotes(notes string) { a.notes.Call(notes) }

// Flush saves pending edits now.
func (a *Autosaver) Flush() {
	a.name.Flush()
	a.notes.Flush()
}

// Cancel drops pending edits.
func (a *Autosaver) Cancel() {
	a.name.Cancel()
	a.notes.Cancel()
}

// Pending reports whether an edit is waiting to be saved.
func (a *Autosaver) Pending() bool {
	return a.name.Pending() || a.notes.Pending()
}

// Mutations returns the writes Wait has not yet reported, oldest first.
func (a *Autosaver) Mutations() []*optimistic.Mutation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*optimistic.Mutation(nil), a.mutations...)
}

// Wait blocks until every started write settles and returns the first error.
// Settled writes are then forgotten.
func (a *Autosaver) Wait(ctx context.Context) error {
	var (
		first error
		seen  = make(map[*optimistic.Mutation]bool)
	)
	for _, m := range a.Mutations() {
		_, err := m.Wait(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		seen[m] = true
		if err != nil && first == nil {
			first = err
		}
	}
	a.mu.Lock()
	a.mutations = slices.DeleteFunc(a.mutations, func(m *optimistic.Mutation) bool { return seen[m] })
	a.mu.Unlock()
	return first
}

// Blank names are never sent; the server would reject them.
func (a *Autosaver) saveName(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	a.start(dotpath.Set(character.PathName, name))
}

func (a *Autosaver) saveNotes(notes string) {
	a.start(dotpath.Set(character.PathNotes, notes))
}

func (a *Autosaver) start(patch dotpath.Patch) {
	m := a.session.UpdateSheet(a.ctx, a.id, patch)
	a.mu.Lock()
	// Successful writes have nothing left to report. Failures stay for Wait.
	a.mutations = slices.DeleteFunc(a.mutations, func(prev *optimistic.Mutation) bool {
		return prev.State() == optimistic.StateSucceeded
	})
	a.mutations = append(a.mutations, m)
	a.mu.Unlock()
}
