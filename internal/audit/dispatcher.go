package audit

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// EventTypes, when non-empty, is the allow list of event types that are
	// delivered. Everything else is discarded without counting as dropped.
	EventTypes []string
}

// Dispatcher forwards audit events to a sink from a single background
// goroutine.
type Dispatcher struct {
	sink       Sink
	queue      chan Event
	stop       chan struct{}
	finished   chan struct{}
	dropIfFull bool
	allow      map[string]struct{}

	closing  atomic.Bool
	stopOnce sync.Once

	dropped   atomic.Uint64
	dropMu    sync.Mutex
	dropsByTy map[string]uint64
}

// NewDispatcher starts the delivery goroutine. It returns nil when cfg is
// disabled; every method is safe on a nil Dispatcher.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:       sink,
		queue:      make(chan Event, max(cfg.BufferSize, 1)),
		stop:       make(chan struct{}),
		finished:   make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
		dropsByTy:  make(map[string]uint64),
	}
	if len(cfg.EventTypes) > 0 {
		d.allow = make(map[string]struct{}, len(cfg.EventTypes))
		for _, t := range cfg.EventTypes {
			d.allow[t] = struct{}{}
		}
	}

	go d.deliver()
	return d
}

func (d *Dispatcher) deliver() {
	defer close(d.finished)

	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		case <-d.stop:
			d.flush()
			return
		}
	}
}

// flush hands whatever is still queued to the sink.
func (d *Dispatcher) flush() {
	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		default:
			return
		}
	}
}

// Emit queues event. With DropIfFull a full buffer drops the event and
// counts it, otherwise Emit blocks until there is room, ctx ends, or the
// dispatcher closes.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closing.Load() || !d.wants(event.EventType) {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		case <-d.stop:
		default:
			d.recordDrop(event.EventType)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
	case <-d.stop:
	}
}

func (d *Dispatcher) wants(eventType string) bool {
	if d.allow == nil {
		return true
	}
	_, ok := d.allow[eventType]
	return ok
}

func (d *Dispatcher) recordDrop(eventType string) {
	d.dropped.Add(1)
	d.dropMu.Lock()
	d.dropsByTy[eventType]++
	d.dropMu.Unlock()
}

// Close stops accepting events, drains the buffer into the sink, and waits
// for the delivery goroutine to exit.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.closing.Store(true)
		close(d.stop)
	})
	<-d.finished
}

// Dropped is the total number of events lost to a full buffer.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// DroppedByType breaks Dropped down per event type.
func (d *Dispatcher) DroppedByType() map[string]uint64 {
	if d == nil {
		return map[string]uint64{}
	}
	d.dropMu.Lock()
	defer d.dropMu.Unlock()
	return maps.Clone(d.dropsByTy)
}
