// Package timer provides an interval timer implementing expiringcache.Timer.
package timer

import (
	"sync"
	"time"

	expiringcache "github.com/karupanerura/expiring-cache"
)

// IntervalTimer calls a callback at a fixed interval on its own goroutine.
// Start and Stop are idempotent and may be called from within the callback.
type IntervalTimer struct {
	tick func()

	mu       sync.Mutex
	interval time.Duration
	stop     chan struct{}
	reset    chan time.Duration
}

var _ expiringcache.Timer = (*IntervalTimer)(nil)

// New creates a stopped IntervalTimer.
// The interval must be positive.
func New(interval time.Duration, tick func()) *IntervalTimer {
	if interval <= 0 {
		panic("interval must be positive")
	}
	return &IntervalTimer{
		tick:     tick,
		interval: interval,
	}
}

// Factory is an expiringcache.TimerFactory that creates IntervalTimers.
func Factory(interval time.Duration, tick func()) expiringcache.Timer {
	return New(interval, tick)
}

// Start starts the timer. It does nothing if the timer is already running.
func (t *IntervalTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop != nil {
		return
	}
	t.stop = make(chan struct{})
	t.reset = make(chan time.Duration, 1)
	go t.run(t.interval, t.stop, t.reset)
}

// Stop stops the timer. It does nothing if the timer is not running.
// Stop does not wait for a running callback to return.
func (t *IntervalTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop == nil {
		return
	}
	close(t.stop)
	t.stop = nil
	t.reset = nil
}

// SetInterval changes the interval. A running timer restarts its countdown with the new interval.
// The interval must be positive.
func (t *IntervalTimer) SetInterval(interval time.Duration) {
	if interval <= 0 {
		panic("interval must be positive")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.interval = interval
	if t.reset == nil {
		return
	}
	select {
	case <-t.reset:
	default:
	}
	t.reset <- interval
}

// Interval returns the current interval.
func (t *IntervalTimer) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

// Running reports whether the timer is started.
func (t *IntervalTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

// run calls the callback at the interval until stop is closed.
func (t *IntervalTimer) run(interval time.Duration, stop <-chan struct{}, reset <-chan time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return

		case d := <-reset:
			ticker.Reset(d)

		case <-ticker.C:
			// a tick and a stop may be ready at the same time
			select {
			case <-stop:
				return
			default:
			}
			t.tick()
		}
	}
}
