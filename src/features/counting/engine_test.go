package counting

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countResult struct {
	n   int
	err error
}

// blockingCounter parks every Count call until the test releases it, so
// tests can hold a recompute in flight while more triggers arrive.
type blockingCounter struct {
	calls   atomic.Int32
	started chan string
	release chan countResult
}

func newBlockingCounter() *blockingCounter {
	return &blockingCounter{started: make(chan string), release: make(chan countResult)}
}

func (c *blockingCounter) Count(ctx context.Context, path string) (int, error) {
	c.calls.Add(1)
	select {
	case c.started <- path:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-c.release:
		return r.n, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

type sinkCall struct {
	display string
	count   int
}

type recordingSink struct {
	mu     sync.Mutex
	counts []sinkCall
	totals []int
}

func (s *recordingSink) OnCountChanged(path, display string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = append(s.counts, sinkCall{display: display, count: count})
}

func (s *recordingSink) OnTotalChanged(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals = append(s.totals, total)
}

func (s *recordingSink) lastTotal() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.totals) == 0 {
		return 0, false
	}
	return s.totals[len(s.totals)-1], true
}

func newTestEngine(t *testing.T, counter Counter) (*Engine, *Registry, *Tracker, *recordingSink) {
	t.Helper()
	reg := newTestRegistry(t)
	trk := NewTracker(reg.Snapshot().Total)
	sink := &recordingSink{}
	metrics := NewMetrics(prometheus.NewRegistry())
	engine := NewEngine(reg, trk, counter, sink, metrics, EngineConfig{QueueSize: 16, MaxConcurrent: 2})
	return engine, reg, trk, sink
}

func waitIdle(t *testing.T, e *Engine) {
	t.Helper()
	require.Eventually(t, e.Idle, 2*time.Second, 5*time.Millisecond, "engine did not quiesce")
}

func TestEngine_ModificationUpdatesCountAndTotal(t *testing.T) {
	counter := &fixedCounter{counts: map[string]int{"a.tex": 4, "b.tex": 5}}
	engine, reg, trk, sink := newTestEngine(t, counter)
	aPath := reg.Snapshot().Files[0].Path

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)

	engine.Events() <- ChangeEvent{Path: aPath, Timestamp: time.Now()}
	waitIdle(t, engine)

	snap := reg.Snapshot()
	assert.Equal(t, 4, snap.Files[0].Count)
	assert.Equal(t, 5, snap.Files[1].Count, "unrelated file untouched")
	assert.Equal(t, 9, snap.Total)
	assert.Equal(t, 9, trk.Total(), "incremental total agrees with sum at quiescence")

	total, ok := sink.lastTotal()
	require.True(t, ok)
	assert.Equal(t, 9, total)
}

func TestEngine_BurstCoalescesToAtMostTwoRecounts(t *testing.T) {
	counter := newBlockingCounter()
	engine, reg, trk, _ := newTestEngine(t, counter)
	aPath := reg.Snapshot().Files[0].Path

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)

	events := engine.Events()
	events <- ChangeEvent{Path: aPath, Timestamp: time.Now()}
	require.Equal(t, aPath, <-counter.started)

	// A burst of rapid saves while the first recount is in flight.
	for i := 0; i < 5; i++ {
		events <- ChangeEvent{Path: aPath, Timestamp: time.Now()}
	}
	require.Eventually(t, func() bool { return len(events) == 0 }, time.Second, time.Millisecond)

	// The in-flight recount lands, then exactly one coalesced follow-up.
	counter.release <- countResult{n: 10}
	require.Equal(t, aPath, <-counter.started)
	counter.release <- countResult{n: 4}
	waitIdle(t, engine)

	assert.Equal(t, int32(2), counter.calls.Load(), "burst of 6 triggers must cost 2 recounts")
	snap := reg.Snapshot()
	assert.Equal(t, 4, snap.Files[0].Count, "final count reflects the last write")
	assert.Equal(t, 9, snap.Total)
	assert.Equal(t, 9, trk.Total())
}

func TestEngine_CounterFailureRetainsPreviousCount(t *testing.T) {
	counter := &fixedCounter{err: errors.New("texcount exploded")}
	engine, reg, trk, sink := newTestEngine(t, counter)
	aPath := reg.Snapshot().Files[0].Path

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)

	engine.Events() <- ChangeEvent{Path: aPath, Timestamp: time.Now()}
	waitIdle(t, engine)

	snap := reg.Snapshot()
	assert.Equal(t, 3, snap.Files[0].Count, "previous count retained on failure")
	assert.Equal(t, 8, snap.Total)
	assert.Equal(t, 8, trk.Total())
	_, notified := sink.lastTotal()
	assert.False(t, notified, "no presentation update on a failed recount")
}

func TestEngine_FailureThenRecoveryKeepsWatching(t *testing.T) {
	counter := newBlockingCounter()
	engine, reg, _, _ := newTestEngine(t, counter)
	aPath := reg.Snapshot().Files[0].Path

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)

	events := engine.Events()
	events <- ChangeEvent{Path: aPath, Timestamp: time.Now()}
	<-counter.started
	counter.release <- countResult{err: errors.New("transient")}
	waitIdle(t, engine)

	events <- ChangeEvent{Path: aPath, Timestamp: time.Now()}
	<-counter.started
	counter.release <- countResult{n: 7}
	waitIdle(t, engine)

	assert.Equal(t, 7, reg.Snapshot().Files[0].Count)
}

func TestEngine_StaleResultIsDiscarded(t *testing.T) {
	counter := &fixedCounter{counts: map[string]int{"a.tex": 99}}
	engine, reg, trk, _ := newTestEngine(t, counter)
	aPath := reg.Snapshot().Files[0].Path

	// A fresher result (seq 5) has already been applied; a recount carrying
	// seq 3 completes afterwards and must not overwrite it.
	engine.states[aPath] = &fileState{inflight: true, latestSeq: 5, appliedSeq: 5}
	engine.wg.Add(1)
	engine.recount(context.Background(), aPath, 3)

	assert.Equal(t, 3, reg.Snapshot().Files[0].Count, "stale result must not be applied")
	assert.Equal(t, 8, trk.Total())
	assert.False(t, engine.states[aPath].inflight, "file returned to idle")
	assert.Equal(t, uint64(5), engine.states[aPath].appliedSeq)
}

func TestEngine_ConcurrentFilesBothUpdate(t *testing.T) {
	counter := &fixedCounter{counts: map[string]int{"a.tex": 4, "b.tex": 6}}
	engine, reg, trk, _ := newTestEngine(t, counter)
	snap := reg.Snapshot()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)

	engine.Events() <- ChangeEvent{Path: snap.Files[0].Path, Timestamp: time.Now()}
	engine.Events() <- ChangeEvent{Path: snap.Files[1].Path, Timestamp: time.Now()}
	waitIdle(t, engine)

	after := reg.Snapshot()
	assert.Equal(t, 4, after.Files[0].Count)
	assert.Equal(t, 6, after.Files[1].Count)
	assert.Equal(t, 10, after.Total)
	assert.Equal(t, 10, trk.Total())
}

func TestEngine_QueueHoldsAtLeastTheWatchSet(t *testing.T) {
	reg := newTestRegistry(t)
	trk := NewTracker(reg.Snapshot().Total)
	engine := NewEngine(reg, trk, &fixedCounter{}, &recordingSink{}, NewMetrics(prometheus.NewRegistry()), EngineConfig{QueueSize: 1, MaxConcurrent: 1})

	// One queued trigger per file means a queue this size cannot overflow.
	assert.GreaterOrEqual(t, cap(engine.Events()), reg.Len())
}

func TestEngine_DequeueClearsDirtyMark(t *testing.T) {
	counter := &fixedCounter{counts: map[string]int{"a.tex": 4, "b.tex": 5}}
	engine, reg, _, _ := newTestEngine(t, counter)
	aPath := reg.Snapshot().Files[0].Path

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)

	require.True(t, engine.Dirty().MarkIfClean(aPath))
	engine.Events() <- ChangeEvent{Path: aPath, Timestamp: time.Now()}
	waitIdle(t, engine)

	assert.True(t, engine.Dirty().MarkIfClean(aPath), "mark released on dequeue so the file can enqueue again")
}

func TestEngine_ShutdownAbandonsInFlightRecount(t *testing.T) {
	counter := newBlockingCounter()
	engine, reg, _, _ := newTestEngine(t, counter)
	aPath := reg.Snapshot().Files[0].Path

	ctx, cancel := context.WithCancel(context.Background())
	engine.Start(ctx)

	engine.Events() <- ChangeEvent{Path: aPath, Timestamp: time.Now()}
	<-counter.started
	cancel()
	engine.Wait()

	assert.Equal(t, 3, reg.Snapshot().Files[0].Count, "no partial update on shutdown")
}
