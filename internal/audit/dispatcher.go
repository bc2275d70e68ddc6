package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Config sizes the dispatcher queue.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit discard events instead of waiting for room.
	DropIfFull bool
	// Logger receives sink panics and the first drop of each burst.
	Logger *slog.Logger
}

// Dispatcher hands events to a Sink from a single background goroutine, so
// a slow sink never sits on the login path. A nil *Dispatcher is valid and
// discards everything.
type Dispatcher struct {
	sink       Sink
	queue      chan Event
	stop       chan struct{}
	finished   chan struct{}
	dropIfFull bool
	log        *slog.Logger

	stopping atomic.Bool
	dropped  atomic.Uint64
	panics   atomic.Uint64
	// warned is cleared on every successful enqueue, so a long stall logs
	// once instead of per event.
	warned   atomic.Bool
	stopOnce sync.Once
}

// NewDispatcher starts the delivery goroutine. It returns nil when cfg is
// disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	d := &Dispatcher{
		sink:       sink,
		queue:      make(chan Event, size),
		stop:       make(chan struct{}),
		finished:   make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
		log:        log.With(slog.String("component", "audit")),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.finished)

	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stop:
			// Flush what is already queued, then exit.
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.panics.Add(1)
			d.log.Error("audit sink panicked",
				slog.String("event_type", ev.EventType),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	d.sink.Emit(context.Background(), ev)
}

// Emit queues ev. Events without a timestamp are stamped here. After Close,
// Emit is a no-op.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.stopping.Load() {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	if d.dropIfFull {
		select {
		case d.queue <- ev:
			d.warned.Store(false)
		case <-d.stop:
		default:
			d.dropped.Add(1)
			if d.warned.CompareAndSwap(false, true) {
				d.log.Warn("audit queue full, dropping events", slog.String("event_type", ev.EventType))
			}
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- ev:
	case <-ctx.Done():
	case <-d.stop:
	}
}

// Close stops accepting events and waits until the queue is flushed.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.stopping.Store(true)
		close(d.stop)
		<-d.finished
	})
}

// Dropped is the number of events discarded because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// SinkPanics is the number of events whose delivery panicked in the sink.
func (d *Dispatcher) SinkPanics() uint64 {
	if d == nil {
		return 0
	}
	return d.panics.Load()
}
