package store_test

import (
	"sync"
	"time"

	expiringcache "github.com/karupanerura/expiring-cache"
	"github.com/karupanerura/expiring-cache/expiration"
)

var epoch = time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)

// manualTimer is a timer that only ticks when Fire is called.
type manualTimer struct {
	mu       sync.Mutex
	tick     func()
	interval time.Duration
	running  bool
	starts   int
	stops    int
}

var _ expiringcache.Timer = (*manualTimer)(nil)

// manualTimerFactory returns a timer factory and a function returning the timer it created.
func manualTimerFactory() (expiringcache.TimerFactory, func() *manualTimer) {
	var (
		mu sync.Mutex
		tm *manualTimer
	)
	factory := func(interval time.Duration, tick func()) expiringcache.Timer {
		mu.Lock()
		defer mu.Unlock()
		tm = &manualTimer{tick: tick, interval: interval}
		return tm
	}
	return factory, func() *manualTimer {
		mu.Lock()
		defer mu.Unlock()
		return tm
	}
}

func (t *manualTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = true
	t.starts++
}

func (t *manualTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	t.stops++
}

func (t *manualTimer) SetInterval(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interval = d
}

func (t *manualTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *manualTimer) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

// Fire calls the callback like a real timer would, if the timer is running.
// It reports whether the callback was called.
func (t *manualTimer) Fire() bool {
	if !t.Running() {
		return false
	}
	t.tick()
	return true
}

type event struct {
	Hook  string
	Value int
}

// events records hook calls in order.
type events struct {
	mu   sync.Mutex
	list []event
}

func (e *events) hook(name string) expiration.Hook[int] {
	return func(value int, _ time.Time) {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.list = append(e.list, event{Hook: name, Value: value})
	}
}

func (e *events) options(clock expiringcache.Clock) []expiration.Option[int] {
	return []expiration.Option[int]{
		expiration.WithClock[int](clock),
		expiration.OnExpire(e.hook("expire")),
		expiration.OnRemove(e.hook("remove")),
		expiration.OnAboutToExpire(e.hook("aboutToExpire")),
	}
}

func (e *events) List() []event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]event(nil), e.list...)
}

func (e *events) Count(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	var n int
	for _, ev := range e.list {
		if ev.Hook == name {
			n++
		}
	}
	return n
}
