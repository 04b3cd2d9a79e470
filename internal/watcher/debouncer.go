package watcher

import (
	"sync"
	"time"

	"github.com/conneroisu/livecanvas/internal/types"
)

// ChangeHandler receives the coalesced "content changed" signal of a session.
type ChangeHandler func(id types.SessionID)

// Debouncer coalesces bursts of edit notifications into a single change
// signal per session.
//
// It debounces on the leading edge: the first Notify of a burst arms a timer
// and later calls are no-ops until it fires. The timer is never reset, so
// under continuous typing a change is signalled at most every delay.
type Debouncer struct {
	delay    time.Duration
	timers   map[types.SessionID]*pendingSignal
	handlers []ChangeHandler
	stopped  bool
	mutex    sync.Mutex
}

type pendingSignal struct {
	timer *time.Timer
}

// NewDebouncer creates a Debouncer firing delay after the first event of a burst.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:  delay,
		timers: make(map[types.SessionID]*pendingSignal),
	}
}

// Delay returns the fixed quiet interval.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// OnChange registers a handler for change signals.
func (d *Debouncer) OnChange(handler ChangeHandler) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.handlers = append(d.handlers, handler)
}

// Notify records an edit for id. If no signal is pending for id one is
// scheduled; otherwise the call does nothing.
func (d *Debouncer) Notify(id types.SessionID) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.stopped {
		return
	}
	if _, pending := d.timers[id]; pending {
		return
	}

	p := &pendingSignal{}
	p.timer = time.AfterFunc(d.delay, func() {
		d.fire(id, p)
	})
	d.timers[id] = p
}

// Pending reports whether a change signal is scheduled for id.
func (d *Debouncer) Pending(id types.SessionID) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	_, pending := d.timers[id]
	return pending
}

// Cancel drops a pending signal for id, used when a session is torn down.
func (d *Debouncer) Cancel(id types.SessionID) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if p, ok := d.timers[id]; ok {
		p.timer.Stop()
		delete(d.timers, id)
	}
}

// Stop cancels every pending signal. Notify is a no-op afterwards.
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.stopped = true
	for id, p := range d.timers {
		p.timer.Stop()
		delete(d.timers, id)
	}
}

func (d *Debouncer) fire(id types.SessionID, p *pendingSignal) {
	d.mutex.Lock()
	if d.stopped {
		d.mutex.Unlock()
		return
	}
	if d.timers[id] != p {
		// Cancelled after the timer had already fired.
		d.mutex.Unlock()
		return
	}
	// Clear the pending flag before emitting so edits made by a handler
	// start a new burst.
	delete(d.timers, id)
	handlers := make([]ChangeHandler, len(d.handlers))
	copy(handlers, d.handlers)
	d.mutex.Unlock()

	for _, handler := range handlers {
		handler(id)
	}
}
