package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int

	// DropIfFull sheds events on a full buffer instead of blocking the
	// request. Event types listed in Retain always wait for room.
	DropIfFull bool
	Retain     []string
}

// Dispatcher hands events to a sink on one background goroutine, in emit
// order. A nil Dispatcher accepts every call and does nothing.
type Dispatcher struct {
	sink   Sink
	queue  chan Event
	shed   bool
	retain map[string]struct{}

	// mu guards closed. Emit holds it shared for the whole send, so Close
	// can close queue once no send is in flight.
	mu      sync.RWMutex
	closed  bool
	drained chan struct{}

	total   atomic.Uint64
	dropMu  sync.Mutex
	dropped map[string]uint64
}

// NewDispatcher starts a dispatcher, or returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}

	d := &Dispatcher{
		sink:    sink,
		queue:   make(chan Event, size),
		shed:    cfg.DropIfFull,
		retain:  make(map[string]struct{}, len(cfg.Retain)),
		drained: make(chan struct{}),
		dropped: make(map[string]uint64),
	}
	for _, typ := range cfg.Retain {
		d.retain[typ] = struct{}{}
	}

	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.drained)
	for ev := range d.queue {
		d.deliver(ev)
	}
}

// deliver isolates the loop from a panicking sink; the event counts as
// dropped.
func (d *Dispatcher) deliver(ev Event) {
	defer func() {
		if recover() != nil {
			d.drop(ev.EventType)
		}
	}()
	d.sink.Emit(context.Background(), ev)
}

// Emit queues ev. Shed-able events are dropped on a full buffer; others
// block until there is room or ctx ends, which also counts as a drop.
// Events emitted after Close are ignored.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if _, keep := d.retain[ev.EventType]; d.shed && !keep {
		select {
		case d.queue <- ev:
		default:
			d.drop(ev.EventType)
		}
		return
	}

	select {
	case d.queue <- ev:
	case <-ctx.Done():
		d.drop(ev.EventType)
	}
}

func (d *Dispatcher) drop(eventType string) {
	d.total.Add(1)
	d.dropMu.Lock()
	d.dropped[eventType]++
	d.dropMu.Unlock()
}

// Close waits for in-flight Emit calls, delivers everything queued and
// stops the goroutine. It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.drained
}

// Dropped returns the number of events lost so far.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.total.Load()
}

// DroppedByType returns lost event counts keyed by event type.
func (d *Dispatcher) DroppedByType() map[string]uint64 {
	out := make(map[string]uint64)
	if d == nil {
		return out
	}
	d.dropMu.Lock()
	defer d.dropMu.Unlock()
	for k, v := range d.dropped {
		out[k] = v
	}
	return out
}
