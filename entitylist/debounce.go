package entitylist

import (
	"sync"
	"time"
)

// DefaultSearchDebounce is the quiet period QueueSearch waits for.
const DefaultSearchDebounce = 300 * time.Millisecond

// debouncer runs only the last function triggered within a quiet period.
type debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	stopped bool
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay}
}

func (d *debouncer) trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	if d.delay <= 0 {
		go fn()
		return
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
