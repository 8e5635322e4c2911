// Package querycache is an owned, keyed cache of remote query results with
// staleness tracking, deduplicated fetches and read cancellation.
package querycache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/louisbranch/tapestry/internal/platform/clock"
)

// FetchOptions controls Fetch.
type FetchOptions struct {
	// StaleTime is how long data stays fresh after a write. Zero always refetches.
	StaleTime time.Duration
	// Retry is the number of extra attempts after a failed fetch.
	Retry int
	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration
}

// Fetcher loads the value for a key.
type Fetcher func(ctx context.Context) (any, error)

// Event describes a cache write.
type Event struct {
	Key     Key
	Data    any
	Removed bool
}

type entry struct {
	key       Key
	data      any
	hasData   bool
	updatedAt time.Time
	stale     bool
	// generation increments on every write and cancellation; a fetch only
	// stores its result when the generation it started with is current.
	generation uint64
	flight     *flight
}

// flight is the in-flight load of one entry. It is registered by Fetch under
// the store lock, before the load goroutine starts.
type flight struct {
	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc
}

type subscriber struct {
	prefix Key
	fn     func(Event)
}

// Store holds cached query results. The zero value is not usable; call New.
type Store struct {
	clock clock.Clock
	group singleflight.Group
	// beforeLoad runs when a load goroutine starts. Tests only.
	beforeLoad func(Key)

	mu      sync.Mutex
	entries map[string]*entry
	subs    map[uint64]subscriber
	nextSub uint64
}

// New creates an empty store. A nil clock uses real time.
func New(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.Real()
	}
	return &Store{
		clock:   clk,
		entries: make(map[string]*entry),
		subs:    make(map[uint64]subscriber),
	}
}

func (s *Store) entryLocked(key Key) *entry {
	id := key.String()
	e, ok := s.entries[id]
	if !ok {
		e = &entry{key: append(Key(nil), key...)}
		s.entries[id] = e
	}
	return e
}

// Get returns the cached data for key, fresh or stale.
func (s *Store) Get(key Key) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key.String()]
	if !ok || !e.hasData {
		return nil, false
	}
	return e.data, true
}

// Set stores data under key and marks it fresh. Any in-flight fetch for key
// will not overwrite it.
func (s *Store) Set(key Key, data any) {
	s.mu.Lock()
	e := s.entryLocked(key)
	s.writeLocked(e, data)
	s.mu.Unlock()
	s.notify(Event{Key: key, Data: data})
}

func (s *Store) writeLocked(e *entry, data any) {
	e.data = data
	e.hasData = true
	e.stale = false
	e.updatedAt = s.clock.Now()
	e.generation++
}

// Remove drops key and cancels its in-flight fetch.
func (s *Store) Remove(key Key) {
	s.mu.Lock()
	id := key.String()
	e, ok := s.entries[id]
	if ok {
		if e.flight != nil {
			e.flight.cancel()
		}
		delete(s.entries, id)
	}
	s.mu.Unlock()
	if ok {
		s.notify(Event{Key: key, Removed: true})
	}
}

// Invalidate marks every entry under prefix stale so the next Fetch reloads
// it. It returns the number of entries affected.
func (s *Store) Invalidate(prefix Key) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.key.HasPrefix(prefix) && e.hasData {
			e.stale = true
			n++
		}
	}
	return n
}

// IsStale reports whether key is missing or stale under staleTime.
func (s *Store) IsStale(key Key, staleTime time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key.String()]
	return !ok || !s.freshLocked(e, staleTime)
}

func (s *Store) freshLocked(e *entry, staleTime time.Duration) bool {
	if !e.hasData || e.stale || staleTime <= 0 {
		return false
	}
	return s.clock.Now().Sub(e.updatedAt) < staleTime
}

// Keys lists cached keys in lexical order.
func (s *Store) Keys() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Key, 0, len(s.entries))
	for _, e := range s.entries {
		if e.hasData {
			out = append(out, e.key)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// CancelFetch aborts the in-flight fetch for key. Its result, if any, is
// never written to the cache.
func (s *Store) CancelFetch(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key.String()]
	if !ok {
		return
	}
	e.generation++
	if e.flight != nil {
		e.flight.cancel()
		e.flight = nil
	}
}

// Fetch returns fresh cached data or loads it with fn. Concurrent fetches of
// the same key share one call. When the fetch is superseded by a write or a
// CancelFetch, callers receive the cache's current value instead.
func (s *Store) Fetch(ctx context.Context, key Key, opts FetchOptions, fn Fetcher) (any, error) {
	if fn == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	s.mu.Lock()
	e := s.entryLocked(key)
	if s.freshLocked(e, opts.StaleTime) {
		data := e.data
		s.mu.Unlock()
		return data, nil
	}
	f := e.flight
	if f == nil || f.generation != e.generation {
		if f != nil {
			f.cancel()
		}
		fetchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{generation: e.generation, ctx: fetchCtx, cancel: cancel}
		e.flight = f
	}
	s.mu.Unlock()

	ch := s.group.DoChan(key.String(), func() (any, error) {
		return s.load(key, e, f, opts, fn)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// ErrSuperseded is returned when a fetch was cancelled and the key holds no
// data to fall back on.
var ErrSuperseded = errors.New("fetch superseded")

func (s *Store) load(key Key, e *entry, f *flight, opts FetchOptions, fn Fetcher) (any, error) {
	defer f.cancel()
	if s.beforeLoad != nil {
		s.beforeLoad(key)
	}
	fetchCtx := f.ctx

	var (
		data any
		err  error
	)
	for attempt := 0; attempt <= opts.Retry; attempt++ {
		if attempt > 0 && opts.RetryDelay > 0 {
			timer := time.NewTimer(opts.RetryDelay)
			select {
			case <-fetchCtx.Done():
				timer.Stop()
			case <-timer.C:
			}
		}
		if fetchCtx.Err() != nil {
			break
		}
		data, err = fn(fetchCtx)
		if err == nil {
			break
		}
	}

	s.mu.Lock()
	if e.flight == f {
		e.flight = nil
	}
	if current, ok := s.entries[key.String()]; !ok || current != e || e.generation != f.generation {
		var fallback any
		has := false
		if ok {
			fallback, has = current.data, current.hasData
		}
		s.mu.Unlock()
		if has {
			return fallback, nil
		}
		return nil, ErrSuperseded
	}
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.writeLocked(e, data)
	s.mu.Unlock()
	s.notify(Event{Key: key, Data: data})
	return data, nil
}

// Subscribe registers fn for writes to keys under prefix. Callbacks run on
// the writing goroutine after the store lock is released.
func (s *Store) Subscribe(prefix Key, fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = subscriber{prefix: append(Key(nil), prefix...), fn: fn}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notify(ev Event) {
	s.mu.Lock()
	targets := make([]func(Event), 0, len(s.subs))
	ids := make([]uint64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		sub := s.subs[id]
		if ev.Key.HasPrefix(sub.prefix) {
			targets = append(targets, sub.fn)
		}
	}
	s.mu.Unlock()
	for _, fn := range targets {
		fn(ev)
	}
}
