package optimistic

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/louisbranch/tapestry/internal/platform/dotpath"
	"github.com/louisbranch/tapestry/internal/platform/telemetry/metrics"
	"github.com/louisbranch/tapestry/internal/services/shared/querycache"
)

// gatedWriter blocks each write until the test releases it.
type gatedWriter struct {
	calls   chan dotpath.Patch
	results chan writeResult
	ctxs    chan context.Context
}

type writeResult struct {
	record Record
	err    error
}

func newGatedWriter() *gatedWriter {
	return &gatedWriter{
		calls:   make(chan dotpath.Patch, 4),
		results: make(chan writeResult, 4),
		ctxs:    make(chan context.Context, 4),
	}
}

func (w *gatedWriter) Write(ctx context.Context, _ string, patch dotpath.Patch) (Record, error) {
	w.ctxs <- ctx
	w.calls <- patch
	res := <-w.results
	return res.record, res.err
}

func newCoordinator(t *testing.T, writer Writer) (*Coordinator, *querycache.Store) {
	t.Helper()
	store := querycache.New(nil)
	c, err := New(Options{Store: store, Writer: writer, Metrics: metrics.NewRegistry()})
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	return c, store
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Options{Writer: WriterFunc(nil)}); err == nil {
		t.Fatal("expected error without store")
	}
	if _, err := New(Options{Store: querycache.New(nil)}); err == nil {
		t.Fatal("expected error without writer")
	}
}

func TestMutateRollsBackOnFailure(t *testing.T) {
	writer := newGatedWriter()
	c, store := newCoordinator(t, writer)
	store.Set(querycache.Key{"character", "1"}, Record{"name": "Aria"})

	m := c.Start(context.Background(), "1", dotpath.Set("name", "Aria2"))

	if got, _ := c.Cached("1"); !reflect.DeepEqual(got, Record{"name": "Aria2"}) {
		t.Fatalf("expected optimistic Aria2 before write resolves, got %v", got)
	}
	if c.State("1") != StatePending {
		t.Fatalf("expected pending, got %s", c.State("1"))
	}

	<-writer.calls
	writeErr := errors.New("server rejected")
	writer.results <- writeResult{err: writeErr}

	_, err := m.Wait(context.Background())
	if !errors.Is(err, writeErr) {
		t.Fatalf("expected write error unchanged, got %v", err)
	}
	if got, _ := c.Cached("1"); !reflect.DeepEqual(got, Record{"name": "Aria"}) {
		t.Fatalf("expected rollback to Aria, got %v", got)
	}
	if c.State("1") != StateFailed {
		t.Fatalf("expected failed, got %s", c.State("1"))
	}
}

func TestMutateInstallsAuthoritativeRecord(t *testing.T) {
	writer := newGatedWriter()
	c, store := newCoordinator(t, writer)
	store.Set(querycache.Key{"character", "1"}, Record{"name": "Aria"})

	m := c.Start(context.Background(), "1", dotpath.Set("name", "aria-server"))
	<-writer.calls
	writer.results <- writeResult{record: Record{"name": "Aria-Server"}}

	got, err := m.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if !reflect.DeepEqual(got, Record{"name": "Aria-Server"}) {
		t.Fatalf("unexpected result %v", got)
	}
	if cached, _ := c.Cached("1"); !reflect.DeepEqual(cached, Record{"name": "Aria-Server"}) {
		t.Fatalf("expected server record in cache, got %v", cached)
	}
	if m.State() != StateSucceeded || c.State("1") != StateSucceeded {
		t.Fatalf("expected succeeded, got %s", m.State())
	}
}

func TestMutateInvalidatesDependents(t *testing.T) {
	c, store := newCoordinator(t, WriterFunc(func(_ context.Context, _ string, _ dotpath.Patch) (Record, error) {
		return Record{"name": "B"}, nil
	}))
	store.Set(querycache.Key{"character", "1"}, Record{"name": "A"})
	store.Set(querycache.Key{"characters", "all"}, []Record{{"name": "A"}})

	if _, err := c.Mutate(context.Background(), "1", dotpath.Set("name", "B"), querycache.Key{"characters"}); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if !store.IsStale(querycache.Key{"characters", "all"}, time.Hour) {
		t.Fatal("expected list to be invalidated")
	}
}

func TestOverlappingMutationsKeepOwnSnapshots(t *testing.T) {
	writer := newGatedWriter()
	c, store := newCoordinator(t, writer)
	store.Set(querycache.Key{"character", "1"}, Record{"name": "A", "notes": "n0"})

	first := c.Start(context.Background(), "1", dotpath.Set("name", "B"))
	second := c.Start(context.Background(), "1", dotpath.Set("notes", "n1"))

	if prev, _ := first.Previous(); !reflect.DeepEqual(prev, Record{"name": "A", "notes": "n0"}) {
		t.Fatalf("unexpected first snapshot %v", prev)
	}
	if prev, _ := second.Previous(); !reflect.DeepEqual(prev, Record{"name": "B", "notes": "n0"}) {
		t.Fatalf("unexpected second snapshot %v", prev)
	}
	if got, _ := c.Cached("1"); !reflect.DeepEqual(got, Record{"name": "B", "notes": "n1"}) {
		t.Fatalf("expected composed optimistic value, got %v", got)
	}

	<-writer.calls
	<-writer.calls
	writer.results <- writeResult{record: Record{"name": "B", "notes": "n0"}}
	writer.results <- writeResult{record: Record{"name": "B", "notes": "n1"}}
	if _, err := first.Wait(context.Background()); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := second.Wait(context.Background()); err != nil {
		t.Fatalf("second: %v", err)
	}
}

func TestWriteIgnoresCallerCancellation(t *testing.T) {
	writer := newGatedWriter()
	c, store := newCoordinator(t, writer)
	store.Set(querycache.Key{"character", "1"}, Record{"name": "A"})

	ctx, cancel := context.WithCancel(context.Background())
	m := c.Start(ctx, "1", dotpath.Set("name", "B"))
	writeCtx := <-writer.ctxs
	<-writer.calls
	cancel()

	if _, err := m.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected Wait to observe caller cancellation, got %v", err)
	}
	if writeCtx.Err() != nil {
		t.Fatal("expected write context to survive caller cancellation")
	}
	writer.results <- writeResult{record: Record{"name": "B"}}
	<-m.Done()
	if m.State() != StateSucceeded {
		t.Fatalf("expected write to complete, got %s", m.State())
	}
}

func TestStartCancelsInFlightRead(t *testing.T) {
	readEntered := make(chan struct{})
	releaseRead := make(chan struct{})
	store := querycache.New(nil)
	c, err := New(Options{
		Store: store,
		Writer: WriterFunc(func(_ context.Context, _ string, _ dotpath.Patch) (Record, error) {
			return Record{"name": "Server"}, nil
		}),
		Reader: ReaderFunc(func(context.Context, string) (Record, error) {
			close(readEntered)
			<-releaseRead
			return Record{"name": "Stale"}, nil
		}),
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	store.Set(querycache.Key{"character", "1"}, Record{"name": "A"})
	store.Invalidate(querycache.Key{"character", "1"})

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_, _ = c.Read(context.Background(), "1")
	}()
	<-readEntered

	if _, err := c.Mutate(context.Background(), "1", dotpath.Set("name", "B")); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	close(releaseRead)
	<-readDone

	if got, _ := c.Cached("1"); !reflect.DeepEqual(got, Record{"name": "Server"}) {
		t.Fatalf("expected stale read discarded, got %v", got)
	}
}

func TestInvalidPatchFailsWithoutWrite(t *testing.T) {
	called := false
	c, store := newCoordinator(t, WriterFunc(func(context.Context, string, dotpath.Patch) (Record, error) {
		called = true
		return nil, nil
	}))
	store.Set(querycache.Key{"character", "1"}, Record{"tags": []any{}})

	_, err := c.Mutate(context.Background(), "1", dotpath.Set("tags.x", 1))
	if !errors.Is(err, dotpath.ErrInvalidIndex) {
		t.Fatalf("expected ErrInvalidIndex, got %v", err)
	}
	if called {
		t.Fatal("expected no remote write")
	}
	if got, _ := c.Cached("1"); !reflect.DeepEqual(got, Record{"tags": []any{}}) {
		t.Fatalf("expected cache untouched, got %v", got)
	}
}

func TestMutateWithoutCachedValue(t *testing.T) {
	writer := newGatedWriter()
	c, _ := newCoordinator(t, writer)

	m := c.Start(context.Background(), "9", dotpath.Set("name", "X"))
	if _, ok := c.Cached("9"); ok {
		t.Fatal("expected nothing installed without a snapshot")
	}
	<-writer.calls
	writer.results <- writeResult{err: errors.New("boom")}
	<-m.Done()
	if _, ok := c.Cached("9"); ok {
		t.Fatal("expected cache to stay empty after rollback")
	}
}

func TestStateStrings(t *testing.T) {
	cases := map[State]string{StateIdle: "idle", StatePending: "pending", StateSucceeded: "succeeded", StateFailed: "failed", State(9): "unknown"}
	for state, want := range cases {
		if state.String() != want {
			t.Fatalf("expected %q, got %q", want, state.String())
		}
	}
	if StatePending.Settled() || !StateFailed.Settled() {
		t.Fatal("unexpected Settled result")
	}
	c, _ := newCoordinator(t, WriterFunc(nil))
	if c.State("none") != StateIdle {
		t.Fatal("expected idle for unknown target")
	}
}
