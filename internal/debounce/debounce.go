// Package debounce coalesces bursts of filesystem change events into
// single triggers once a quiet period elapses.
package debounce

import (
	"sync"
	"time"
)

// ChangeEvent is one relevant filesystem change, as delivered by the watch
// pipeline. It is ephemeral; many events collapse into one Trigger.
type ChangeEvent struct {
	Path string
	Time time.Time
}

// Trigger marks the moment a burst of changes settled.
type Trigger struct {
	Time time.Time
}

// Debouncer turns arbitrarily dense streams of ChangeEvents into one
// Trigger per quiet period. Every Ingest re-arms the timer; fire is called
// only after a full window passes with no further events.
type Debouncer struct {
	window time.Duration
	fire   func(Trigger)

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// New creates a Debouncer that calls fire once per settled burst. fire runs
// on the timer goroutine and must not block.
func New(window time.Duration, fire func(Trigger)) *Debouncer {
	return &Debouncer{window: window, fire: fire}
}

// Ingest records a change and restarts the quiet-period timer. Safe for
// concurrent use. Ingesting while a previous Trigger is still being
// consumed is legal and simply arms the next one.
func (d *Debouncer) Ingest(ev ChangeEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, func() {
		d.fire(Trigger{Time: time.Now()})
	})
}

// Stop disarms any armed timer. Events ingested afterwards are discarded.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
