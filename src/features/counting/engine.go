package counting

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// EngineConfig holds the engine's tuning knobs.
type EngineConfig struct {
	QueueSize     int // capacity of the change-event channel
	MaxConcurrent int // cap on recounts running at once across files
}

// fileState is the per-file recompute state machine: Idle (inflight=false),
// Recomputing (inflight=true), with at most one coalesced follow-up
// (pending=true). latestSeq advances on every observed trigger; a result is
// applied only if its seq is newer than appliedSeq, so a stale recount can
// never overwrite a fresher one.
type fileState struct {
	inflight   bool
	pending    bool
	latestSeq  uint64
	appliedSeq uint64
}

// Engine consumes change events, recomputes counts via the Counter, and
// applies results to the registry and tracker. A single goroutine consumes
// the queue; recounts for distinct files run concurrently up to
// MaxConcurrent, recounts for one file are serialized by the inflight flag.
type Engine struct {
	registry *Registry
	tracker  *Tracker
	counter  Counter
	sink     Sink
	metrics  *Metrics

	events chan ChangeEvent
	dirty  *DirtySet
	sem    chan struct{}

	mu     sync.Mutex
	states map[string]*fileState

	wg sync.WaitGroup
}

func NewEngine(reg *Registry, trk *Tracker, counter Counter, sink Sink, metrics *Metrics, cfg EngineConfig) *Engine {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	// The bridge keeps at most one queued trigger per file, so a queue at
	// least the size of the watch set cannot overflow a distinct trigger.
	if n := reg.Len(); cfg.QueueSize < n {
		cfg.QueueSize = n
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &Engine{
		registry: reg,
		tracker:  trk,
		counter:  counter,
		sink:     sink,
		metrics:  metrics,
		events:   make(chan ChangeEvent, cfg.QueueSize),
		dirty:    NewDirtySet(),
		sem:      make(chan struct{}, cfg.MaxConcurrent),
		states:   make(map[string]*fileState),
	}
}

// Events returns the bounded channel the filesystem bridge feeds. Senders
// must not block on it; a full channel means the event is dropped.
func (e *Engine) Events() chan<- ChangeEvent {
	return e.events
}

// Dirty returns the set the bridge uses to keep one queued trigger per file.
// The engine unmarks a file when its trigger is dequeued.
func (e *Engine) Dirty() *DirtySet {
	return e.dirty
}

// Start launches the event consumer. It returns immediately; cancel ctx and
// call Wait to shut down.
func (e *Engine) Start(ctx context.Context) {
	e.wg.Add(1)
	go e.run(ctx)
	slog.Info("Recompute engine started", "queue_size", cap(e.events), "max_concurrent", cap(e.sem))
}

// Wait blocks until the consumer and all in-flight recounts have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Idle reports whether no recompute is in flight or pending and the queue is
// drained: the quiescence point at which the aggregate must equal the sum.
func (e *Engine) Idle() bool {
	if len(e.events) != 0 {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, st := range e.states {
		if st.inflight || st.pending {
			return false
		}
	}
	return true
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.events:
			e.dirty.Clear(ev.Path)
			e.handle(ctx, ev)
		}
	}
}

// handle advances the per-file state machine for one observed trigger.
// Idle -> Recomputing launches a recount; a trigger during Recomputing sets
// the pending flag, collapsing any burst into exactly one follow-up.
func (e *Engine) handle(ctx context.Context, ev ChangeEvent) {
	e.mu.Lock()
	st, ok := e.states[ev.Path]
	if !ok {
		st = &fileState{}
		e.states[ev.Path] = st
	}
	st.latestSeq++
	seq := st.latestSeq

	if st.inflight {
		st.pending = true
		e.mu.Unlock()
		e.metrics.Coalesced.Inc()
		slog.Debug("Coalesced trigger into pending recount", "path", ev.Path, "seq", seq)
		return
	}
	st.inflight = true
	e.mu.Unlock()

	e.wg.Add(1)
	go e.recount(ctx, ev.Path, seq)
}

func (e *Engine) recount(ctx context.Context, path string, seq uint64) {
	defer e.wg.Done()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		e.abandon(path)
		return
	}
	id := uuid.NewString()
	slog.Debug("Recount started", "recount_id", id, "path", path, "seq", seq)
	count, err := e.counter.Count(ctx, path)
	<-e.sem

	if ctx.Err() != nil {
		e.abandon(path)
		return
	}

	apply := false
	e.mu.Lock()
	st := e.states[path]
	if err == nil {
		if seq > st.appliedSeq {
			st.appliedSeq = seq
			apply = true
		}
	}
	e.mu.Unlock()

	switch {
	case err != nil:
		// CountUnavailable: keep the previous count, stay watching.
		e.metrics.Recounts.WithLabelValues("error").Inc()
		slog.Warn("Recount failed, keeping previous count", "recount_id", id, "path", path, "error", err)
	case !apply:
		e.metrics.Recounts.WithLabelValues("stale").Inc()
		slog.Debug("Discarded stale recount result", "recount_id", id, "path", path, "seq", seq)
	default:
		e.apply(id, path, count)
	}

	// Launch the coalesced follow-up, or return the file to Idle.
	e.mu.Lock()
	st = e.states[path]
	if st.pending {
		st.pending = false
		next := st.latestSeq
		e.wg.Add(1)
		e.mu.Unlock()
		go e.recount(ctx, path, next)
		return
	}
	st.inflight = false
	e.mu.Unlock()
}

func (e *Engine) apply(id, path string, count int) {
	old, err := e.registry.Update(path, count)
	if err != nil {
		slog.Warn("Recount result for unregistered path dropped", "recount_id", id, "path", path)
		return
	}
	e.metrics.Recounts.WithLabelValues("ok").Inc()

	display := e.registry.Display(path)
	e.metrics.FileWords.WithLabelValues(display).Set(float64(count))
	e.sink.OnCountChanged(path, display, count)

	if old != count {
		total := e.tracker.Apply(old, count)
		e.metrics.TotalWords.Set(float64(total))
		e.sink.OnTotalChanged(total)
		slog.Info("Count updated", "recount_id", id, "path", path, "count", count, "total", total)
	} else {
		slog.Debug("Recount unchanged", "recount_id", id, "path", path, "count", count)
	}
}

// abandon returns a file to Idle without applying anything, used on shutdown.
func (e *Engine) abandon(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.states[path]; ok {
		st.inflight = false
		st.pending = false
	}
}
