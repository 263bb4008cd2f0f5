package expiration

import (
	"time"

	"go.uber.org/atomic"

	expiringcache "github.com/karupanerura/expiring-cache"
)

// core holds what every item variant shares: the value, the hooks and the notification state.
type core[V expiringcache.ValueConstraint] struct {
	value   V
	options options[V]

	// expired latches the first positive expiration check so that an item never heals,
	// even if its clock goes backwards.
	expired atomic.Bool

	warned     atomic.Bool
	terminated atomic.Bool
}

func (c *core[V]) setup(value V, o options[V]) {
	c.value = value
	c.options = o
}

// PeekValue returns the stored value without renewing the deadline.
func (c *core[V]) PeekValue() V {
	return c.value
}

// AboutToExpire calls the OnAboutToExpire hook.
// The hook is called at most once per item.
func (c *core[V]) AboutToExpire() {
	if !c.warned.CompareAndSwap(false, true) {
		return
	}
	if hook := c.options.onAboutToExpire; hook != nil {
		hook(c.value, c.options.clock.Now())
	}
}

// Expire calls the OnExpire hook unless the item was already expired or removed.
// A panic raised by the hook is not recovered.
func (c *core[V]) Expire() {
	c.terminate(c.options.onExpire)
}

// Remove calls the OnRemove hook unless the item was already expired or removed.
// A panic raised by the hook is not recovered.
func (c *core[V]) Remove() {
	c.terminate(c.options.onRemove)
}

func (c *core[V]) terminate(hook Hook[V]) {
	if !c.terminated.CompareAndSwap(false, true) {
		return
	}
	if hook != nil {
		hook(c.value, c.options.clock.Now())
	}
}

// latch records a positive expiration check and reports whether the item is expired.
func (c *core[V]) latch(expired bool) bool {
	if c.expired.Load() {
		return true
	}
	if expired {
		c.expired.Store(true)
	}
	return expired
}

func (c *core[V]) now() time.Time {
	return c.options.clock.Now()
}

// Permanent is an item that never expires.
type Permanent[V expiringcache.ValueConstraint] struct {
	core[V]
}

var _ expiringcache.Item[struct{}] = (*Permanent[struct{}])(nil)

// NewPermanent creates an item that never expires.
// The warning window and OnExpire hook are accepted but never used.
func NewPermanent[V expiringcache.ValueConstraint](value V, opts ...Option[V]) *Permanent[V] {
	return newPermanent(value, newOptions(opts))
}

func newPermanent[V expiringcache.ValueConstraint](value V, o options[V]) *Permanent[V] {
	item := &Permanent[V]{}
	item.setup(value, o)
	return item
}

// Value returns the stored value.
func (p *Permanent[V]) Value() V {
	return p.value
}

// IsExpired always returns false.
func (*Permanent[V]) IsExpired() bool {
	return false
}

// IsAboutToExpire always returns false.
func (*Permanent[V]) IsAboutToExpire() bool {
	return false
}

// CreateNewItem returns a permanent item with the same hooks and the given value.
func (p *Permanent[V]) CreateNewItem(value V) expiringcache.Item[V] {
	return newPermanent(value, p.options)
}

// Absolute is an item that expires at a fixed instant.
type Absolute[V expiringcache.ValueConstraint] struct {
	core[V]
	deadline time.Time
	warnAt   time.Time

	// ttl is the lifetime given to NewAbsoluteAfter, or zero for a fixed deadline.
	ttl time.Duration
}

var _ expiringcache.Item[struct{}] = (*Absolute[struct{}])(nil)

// NewAbsolute creates an item that expires at the deadline.
// Items created from it by CreateNewItem keep the same deadline.
func NewAbsolute[V expiringcache.ValueConstraint](value V, deadline time.Time, opts ...Option[V]) *Absolute[V] {
	return newAbsolute(value, deadline, 0, newOptions(opts))
}

// NewAbsoluteAfter creates an item that expires ttl after it is created.
// Items created from it by CreateNewItem expire ttl after their own creation.
func NewAbsoluteAfter[V expiringcache.ValueConstraint](value V, ttl time.Duration, opts ...Option[V]) *Absolute[V] {
	if ttl <= 0 {
		panic("ttl must be positive")
	}
	o := newOptions(opts)
	return newAbsolute(value, o.clock.Now().Add(ttl), ttl, o)
}

func newAbsolute[V expiringcache.ValueConstraint](value V, deadline time.Time, ttl time.Duration, o options[V]) *Absolute[V] {
	lifetime := ttl
	if lifetime == 0 {
		lifetime = deadline.Sub(o.clock.Now())
	}
	item := &Absolute[V]{
		deadline: deadline.UTC(),
		warnAt:   deadline.Add(-o.warningWindow(lifetime)).UTC(),
		ttl:      ttl,
	}
	item.setup(value, o)
	return item
}

// Deadline returns the instant the item expires at.
func (a *Absolute[V]) Deadline() time.Time {
	return a.deadline
}

// Value returns the stored value.
func (a *Absolute[V]) Value() V {
	return a.value
}

// IsExpired reports whether the deadline has been reached.
func (a *Absolute[V]) IsExpired() bool {
	return a.latch(!a.now().Before(a.deadline))
}

// IsAboutToExpire reports whether the warning threshold has been reached.
func (a *Absolute[V]) IsAboutToExpire() bool {
	return a.expired.Load() || !a.now().Before(a.warnAt)
}

// CreateNewItem returns an absolute item with the same hooks and the given value.
func (a *Absolute[V]) CreateNewItem(value V) expiringcache.Item[V] {
	if a.ttl == 0 {
		return newAbsolute(value, a.deadline, 0, a.options)
	}
	return newAbsolute(value, a.now().Add(a.ttl), a.ttl, a.options)
}

// Sliding is an item that expires after a period without Value calls.
type Sliding[V expiringcache.ValueConstraint] struct {
	core[V]
	window  time.Duration
	warning time.Duration

	// state is replaced as a whole, so a renewal and the expiration latch never interleave.
	state atomic.Pointer[slidingState]
}

type slidingState struct {
	deadline time.Time
	expired  bool
}

var _ expiringcache.Item[struct{}] = (*Sliding[struct{}])(nil)

// NewSliding creates an item that expires once window has elapsed since it was created
// or last read with Value.
func NewSliding[V expiringcache.ValueConstraint](value V, window time.Duration, opts ...Option[V]) *Sliding[V] {
	if window <= 0 {
		panic("window must be positive")
	}
	return newSliding(value, window, newOptions(opts))
}

func newSliding[V expiringcache.ValueConstraint](value V, window time.Duration, o options[V]) *Sliding[V] {
	item := &Sliding[V]{
		window:  window,
		warning: o.warningWindow(window),
	}
	item.setup(value, o)
	item.state.Store(&slidingState{deadline: o.clock.Now().Add(window).UTC()})
	return item
}

// Deadline returns the instant the item expires at unless it is read again.
func (s *Sliding[V]) Deadline() time.Time {
	return s.state.Load().deadline
}

// observe returns the current state, latching it as expired once the deadline was reached at now.
func (s *Sliding[V]) observe(now time.Time) *slidingState {
	for {
		cur := s.state.Load()
		if cur.expired || now.Before(cur.deadline) {
			return cur
		}
		next := &slidingState{deadline: cur.deadline, expired: true}
		if s.state.CompareAndSwap(cur, next) {
			s.latch(true)
			return next
		}
	}
}

// Value returns the stored value and pushes the deadline window forward.
// An item that is already expired is not renewed.
func (s *Sliding[V]) Value() V {
	now := s.now()
	renewed := &slidingState{deadline: now.Add(s.window).UTC()}
	for {
		cur := s.observe(now)
		if cur.expired || !renewed.deadline.After(cur.deadline) {
			return s.value
		}
		if s.state.CompareAndSwap(cur, renewed) {
			return s.value
		}
	}
}

// IsExpired reports whether the window elapsed without a Value call.
func (s *Sliding[V]) IsExpired() bool {
	return s.observe(s.now()).expired
}

// IsAboutToExpire reports whether the warning threshold has been reached.
func (s *Sliding[V]) IsAboutToExpire() bool {
	now := s.now()
	st := s.observe(now)
	return st.expired || !now.Before(st.deadline.Add(-s.warning))
}

// CreateNewItem returns a sliding item with the same window and hooks and the given value.
func (s *Sliding[V]) CreateNewItem(value V) expiringcache.Item[V] {
	return newSliding(value, s.window, s.options)
}
