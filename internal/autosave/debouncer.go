// Package autosave delays snapshot writes until input goes quiet.
package autosave

import (
	"sync"
	"time"
)

// DefaultQuietPeriod is the pause after the last change before a write happens.
const DefaultQuietPeriod = time.Second

type pendingWrite struct {
	timer *time.Timer
	fn    func()
}

// Debouncer runs at most one pending function per key, QuietPeriod after the
// most recent Schedule call for that key. It is safe for concurrent use.
type Debouncer struct {
	quiet   time.Duration
	mu      sync.Mutex
	pending map[string]*pendingWrite
	wg      sync.WaitGroup
}

// NewDebouncer creates a Debouncer. A non-positive quiet period uses DefaultQuietPeriod.
func NewDebouncer(quiet time.Duration) *Debouncer {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Debouncer{quiet: quiet, pending: make(map[string]*pendingWrite)}
}

// QuietPeriod returns the configured delay.
func (d *Debouncer) QuietPeriod() time.Duration {
	return d.quiet
}

// Schedule replaces any pending function for key and restarts the quiet period.
func (d *Debouncer) Schedule(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.pending[key]; ok {
		if prev.timer.Stop() {
			d.wg.Done()
		}
	}
	pw := &pendingWrite{fn: fn}
	d.wg.Add(1)
	pw.timer = time.AfterFunc(d.quiet, func() { d.fire(key, pw) })
	d.pending[key] = pw
}

func (d *Debouncer) fire(key string, pw *pendingWrite) {
	defer d.wg.Done()
	d.mu.Lock()
	if d.pending[key] != pw {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()
	pw.fn()
}

// take removes the pending write for key, reporting whether its timer was stopped before firing.
func (d *Debouncer) take(key string) (*pendingWrite, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pw, ok := d.pending[key]
	if !ok {
		return nil, false
	}
	delete(d.pending, key)
	if pw.timer.Stop() {
		d.wg.Done()
	}
	return pw, true
}

// Flush runs the pending function for key immediately, on the caller's goroutine.
// It reports whether anything was pending.
func (d *Debouncer) Flush(key string) bool {
	pw, ok := d.take(key)
	if !ok {
		return false
	}
	pw.fn()
	return true
}

// Cancel drops the pending function for key without running it.
func (d *Debouncer) Cancel(key string) bool {
	_, ok := d.take(key)
	return ok
}

// Pending reports whether a write is waiting for key.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// FlushAll runs every pending function and waits for in-flight timer callbacks.
// Used on shutdown.
func (d *Debouncer) FlushAll() {
	d.mu.Lock()
	keys := make([]string, 0, len(d.pending))
	for k := range d.pending {
		keys = append(keys, k)
	}
	d.mu.Unlock()

	for _, k := range keys {
		d.Flush(k)
	}
	d.wg.Wait()
}
