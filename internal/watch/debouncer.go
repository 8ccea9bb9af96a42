package watch

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid events on the same path into one settled event.
// Settled events are published on Events; timers never call into the
// pipeline themselves.
type Debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timers   map[string]*time.Timer
	pending  map[string]pendingEvent
	seq      uint64
	events   chan Event
	done     chan struct{}
	stopped  bool
}

// NewDebouncer creates a debouncer that waits for interval of quiet on a
// path before publishing its event.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{
		interval: interval,
		timers:   make(map[string]*time.Timer),
		pending:  make(map[string]pendingEvent),
		events:   make(chan Event, 64),
		done:     make(chan struct{}),
	}
}

// Events returns the channel of settled events.
func (d *Debouncer) Events() <-chan Event { return d.events }

// Trigger records ev and restarts the quiet period for its path.
//
// A Created followed by an Updated stays Created, so a new file is not
// reported as a change. Otherwise the latest kind wins.
func (d *Debouncer) Trigger(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if prev, ok := d.pending[ev.Path]; ok && prev.ev.Kind == Created && ev.Kind == Updated {
		ev.Kind = Created
	}

	d.seq++
	seq := d.seq
	d.pending[ev.Path] = pendingEvent{ev: ev, seq: seq}

	if t, ok := d.timers[ev.Path]; ok {
		t.Stop()
	}

	path := ev.Path
	d.timers[path] = time.AfterFunc(d.interval, func() { d.fire(path, seq) })
}

type pendingEvent struct {
	ev  Event
	seq uint64
}

// Pending returns the number of events waiting for their quiet period.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.pending)
}

// fire publishes the pending event for path unless a later Trigger
// superseded the timer that called it.
func (d *Debouncer) fire(path string, seq uint64) {
	d.mu.Lock()

	p, ok := d.pending[path]
	if !ok || p.seq != seq {
		d.mu.Unlock()
		return
	}

	delete(d.pending, path)
	delete(d.timers, path)
	d.mu.Unlock()

	select {
	case d.events <- p.ev:
	case <-d.done:
	}
}

// Stop cancels all pending events. Events already published stay readable.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.stopped = true

	for path, t := range d.timers {
		t.Stop()
		delete(d.timers, path)
		delete(d.pending, path)
	}

	close(d.done)
}
