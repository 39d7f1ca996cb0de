package socketio

import (
	"sync"
	"time"
)

// BroadcastDebouncer collapses rapid state-change notifications into batched
// broadcasts. The playback task notifies on every cycle that changes state;
// clients only need one push once things settle.
type BroadcastDebouncer struct {
	window   time.Duration
	callback func()

	mu      sync.Mutex
	pending bool
	timer   *time.Timer
	stopped bool
}

// NewBroadcastDebouncer creates a debouncer with the given window duration.
// callback runs once per quiet window with at least one trigger.
func NewBroadcastDebouncer(window time.Duration, callback func()) *BroadcastDebouncer {
	return &BroadcastDebouncer{
		window:   window,
		callback: callback,
	}
}

// Trigger records a state change. The broadcast is deferred until the window
// elapses without further triggers.
func (d *BroadcastDebouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.pending = true

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *BroadcastDebouncer) flush() {
	d.mu.Lock()
	fire := d.pending
	d.pending = false
	d.mu.Unlock()

	if fire && d.callback != nil {
		d.callback()
	}
}

// Stop prevents any further callbacks from firing.
func (d *BroadcastDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = false
}
