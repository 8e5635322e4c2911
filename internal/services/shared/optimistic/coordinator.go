// Package optimistic applies dot-path patches to cached records before the
// remote write resolves, then reconciles with the server or rolls back.
package optimistic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/tapestry/internal/platform/dotpath"
	platformotel "github.com/louisbranch/tapestry/internal/platform/otel"
	"github.com/louisbranch/tapestry/internal/platform/telemetry/metrics"
	"github.com/louisbranch/tapestry/internal/services/shared/querycache"
)

// Record is a JSON-shaped document as held in the cache.
type Record = map[string]any

// Writer sends a patch for target and returns the authoritative record.
type Writer interface {
	Write(ctx context.Context, targetID string, patch dotpath.Patch) (Record, error)
}

// Reader loads the authoritative record for target.
type Reader interface {
	Read(ctx context.Context, targetID string) (Record, error)
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(ctx context.Context, targetID string, patch dotpath.Patch) (Record, error)

// Write implements Writer.
func (fn WriterFunc) Write(ctx context.Context, targetID string, patch dotpath.Patch) (Record, error) {
	return fn(ctx, targetID, patch)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func(ctx context.Context, targetID string) (Record, error)

// Read implements Reader.
func (fn ReaderFunc) Read(ctx context.Context, targetID string) (Record, error) {
	return fn(ctx, targetID)
}

// Options configures a Coordinator.
type Options struct {
	Store  *querycache.Store
	Writer Writer
	// Reader is optional; without it Read only serves cached values.
	Reader Reader
	// KeyFor maps a target to its cache key. Defaults to Key{"character", id}.
	KeyFor func(targetID string) querycache.Key
	// ReadOptions applies to Read.
	ReadOptions querycache.FetchOptions
	Metrics     *metrics.Registry
	Tracer      trace.Tracer
}

// Coordinator runs optimistic mutations against an injected cache store.
type Coordinator struct {
	store   *querycache.Store
	writer  Writer
	reader  Reader
	keyFor  func(string) querycache.Key
	readOpt querycache.FetchOptions
	metrics *metrics.Registry
	tracer  trace.Tracer

	mu     sync.Mutex
	latest map[string]*Mutation
}

// New validates options and builds a Coordinator.
func New(opts Options) (*Coordinator, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if opts.Writer == nil {
		return nil, fmt.Errorf("writer is required")
	}
	keyFor := opts.KeyFor
	if keyFor == nil {
		keyFor = func(id string) querycache.Key { return querycache.Key{"character", id} }
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = platformotel.Tracer("optimistic")
	}
	return &Coordinator{
		store:   opts.Store,
		writer:  opts.Writer,
		reader:  opts.Reader,
		keyFor:  keyFor,
		readOpt: opts.ReadOptions,
		metrics: opts.Metrics,
		tracer:  tracer,
		latest:  make(map[string]*Mutation),
	}, nil
}

// Mutation is one optimistic write.
type Mutation struct {
	targetID   string
	patch      dotpath.Patch
	previous   Record
	hadValue   bool
	optimistic Record

	mu     sync.Mutex
	state  State
	result Record
	err    error
	done   chan struct{}
}

// TargetID returns the mutated target.
func (m *Mutation) TargetID() string { return m.targetID }

// Previous returns the snapshot captured when the mutation started.
func (m *Mutation) Previous() (Record, bool) { return m.previous, m.hadValue }

// Optimistic returns the value installed before the write resolved.
func (m *Mutation) Optimistic() Record { return m.optimistic }

// State returns the current lifecycle state.
func (m *Mutation) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Done is closed once the mutation settles.
func (m *Mutation) Done() <-chan struct{} { return m.done }

// Wait blocks until the mutation settles or ctx ends. A ctx that ends first
// does not stop the write.
func (m *Mutation) Wait(ctx context.Context) (Record, error) {
	select {
	case <-m.done:
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.result, m.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Mutation) settle(state State, result Record, err error) {
	m.mu.Lock()
	m.state = state
	m.result = result
	m.err = err
	m.mu.Unlock()
	close(m.done)
}

// Start installs the optimistic value synchronously and dispatches the write.
// Keys in invalidate are marked stale after a successful write.
func (c *Coordinator) Start(ctx context.Context, targetID string, patch dotpath.Patch, invalidate ...querycache.Key) *Mutation {
	key := c.keyFor(targetID)
	m := &Mutation{targetID: targetID, patch: patch, done: make(chan struct{})}

	ctx, span := c.tracer.Start(ctx, "optimistic.mutate", trace.WithAttributes(
		attribute.String("tapestry.target_id", targetID),
		attribute.StringSlice("tapestry.patch_paths", patch.Paths()),
	))

	c.store.CancelFetch(key)
	if cached, ok := c.store.Get(key); ok {
		m.previous, _ = cached.(Record)
		m.hadValue = true
	}
	if m.hadValue {
		next, err := dotpath.Apply(m.previous, patch)
		if err != nil {
			m.state = StateFailed
			c.track(m)
			err = fmt.Errorf("apply patch: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			m.settle(StateFailed, nil, err)
			c.metrics.ObserveMutation(metrics.OutcomeFailed, 0)
			return m
		}
		m.optimistic = next
		c.store.Set(key, next)
	}
	m.state = StatePending
	c.track(m)

	started := time.Now()
	writeCtx := context.WithoutCancel(ctx)
	go func() {
		defer span.End()
		record, err := c.writer.Write(writeCtx, targetID, patch)
		if err != nil {
			if m.hadValue {
				c.store.Set(key, m.previous)
			} else {
				c.store.Remove(key)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.metrics.ObserveMutation(metrics.OutcomeFailed, time.Since(started))
			m.settle(StateFailed, nil, err)
			return
		}
		c.store.Set(key, record)
		for _, dep := range invalidate {
			c.store.Invalidate(dep)
		}
		c.metrics.ObserveMutation(metrics.OutcomeSucceeded, time.Since(started))
		m.settle(StateSucceeded, record, nil)
	}()
	return m
}

// Mutate starts a mutation and waits for it to settle.
func (c *Coordinator) Mutate(ctx context.Context, targetID string, patch dotpath.Patch, invalidate ...querycache.Key) (Record, error) {
	return c.Start(ctx, targetID, patch, invalidate...).Wait(ctx)
}

func (c *Coordinator) track(m *Mutation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest[m.targetID] = m
}

// State reports the state of the most recently started mutation for target.
func (c *Coordinator) State(targetID string) State {
	c.mu.Lock()
	m, ok := c.latest[targetID]
	c.mu.Unlock()
	if !ok {
		return StateIdle
	}
	return m.State()
}

// Cached returns the current, possibly optimistic, value for target.
func (c *Coordinator) Cached(targetID string) (Record, bool) {
	data, ok := c.store.Get(c.keyFor(targetID))
	if !ok {
		return nil, false
	}
	record, ok := data.(Record)
	return record, ok
}

// Read returns the cached record when fresh, otherwise loads it through the
// Reader. Reads started here are the ones Start cancels.
func (c *Coordinator) Read(ctx context.Context, targetID string) (Record, error) {
	if c.reader == nil {
		if record, ok := c.Cached(targetID); ok {
			return record, nil
		}
		return nil, fmt.Errorf("no reader configured for %q", targetID)
	}
	data, err := c.store.Fetch(ctx, c.keyFor(targetID), c.readOpt, func(ctx context.Context) (any, error) {
		return c.reader.Read(ctx, targetID)
	})
	if err != nil {
		return nil, err
	}
	record, ok := data.(Record)
	if !ok {
		return nil, fmt.Errorf("cached value for %q is %T", targetID, data)
	}
	return record, nil
}
