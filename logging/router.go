package logging

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Sink receives routed events. Write runs on the router's dispatch
// goroutine; a sink that needs to block should buffer internally.
type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

// NamedSink pairs a sink with the name it is configured under.
type NamedSink struct {
	Name string
	Sink Sink
}

// Config tunes the router.
type Config struct {
	BufferSize      int
	MinimumSeverity Severity
	// DropWarnInterval throttles the fallback warning emitted when the
	// queue overflows and events are discarded.
	DropWarnInterval time.Duration
}

// DefaultConfig matches a small production deployment.
func DefaultConfig() Config {
	return Config{
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
	}
}

// Router fans events out to sinks from a single dispatch goroutine. Publish
// never blocks: when the queue is full the event is dropped and counted.
type Router struct {
	cfg      Config
	clock    Clock
	queue    chan Event
	sinks    []NamedSink
	fallback *log.Logger

	mu           sync.RWMutex
	closed       bool
	wg           sync.WaitGroup
	eventsTotal  atomic.Uint64
	droppedTotal atomic.Uint64
	lastDropLog  atomic.Int64
}

// RouterStats exposes routing counters for diagnostics.
type RouterStats struct {
	EventsTotal  uint64
	DroppedTotal uint64
}

// NewRouter starts the dispatch goroutine over the provided sinks.
func NewRouter(clock Clock, cfg Config, sinks []NamedSink) *Router {
	if clock == nil {
		clock = SystemClock{}
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 512
	}
	r := &Router{
		cfg:      cfg,
		clock:    clock,
		queue:    make(chan Event, cfg.BufferSize),
		fallback: log.New(os.Stderr, "[logging] ", log.LstdFlags),
	}
	for _, named := range sinks {
		if named.Sink != nil {
			r.sinks = append(r.sinks, named)
		}
	}
	r.wg.Add(1)
	go r.dispatch()
	return r
}

// Publish enqueues an event, stamping the time if the caller left it zero.
func (r *Router) Publish(_ context.Context, event Event) {
	if r == nil {
		return
	}
	if event.Severity < r.cfg.MinimumSeverity {
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- event:
		r.eventsTotal.Add(1)
	default:
		r.recordDrop()
	}
}

// Stats returns routing counters.
func (r *Router) Stats() RouterStats {
	if r == nil {
		return RouterStats{}
	}
	return RouterStats{
		EventsTotal:  r.eventsTotal.Load(),
		DroppedTotal: r.droppedTotal.Load(),
	}
}

// Close drains the queue and closes every sink. Idempotent.
func (r *Router) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()
	close(r.queue)
	r.wg.Wait()
	var firstErr error
	for _, named := range r.sinks {
		if err := named.Sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) dispatch() {
	defer r.wg.Done()
	for event := range r.queue {
		for _, named := range r.sinks {
			if err := named.Sink.Write(event); err != nil {
				r.fallback.Printf("sink %s write failed: %v", named.Name, err)
			}
		}
	}
}

func (r *Router) recordDrop() {
	dropped := r.droppedTotal.Add(1)
	interval := r.cfg.DropWarnInterval
	if interval <= 0 {
		return
	}
	now := r.clock.Now().UnixNano()
	last := r.lastDropLog.Load()
	if now-last < int64(interval) {
		return
	}
	if r.lastDropLog.CompareAndSwap(last, now) {
		r.fallback.Printf("event queue full, %d events dropped so far", dropped)
	}
}
