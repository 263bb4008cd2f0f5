package expiration_test

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sourcegraph/conc"

	expiringcache "github.com/karupanerura/expiring-cache"
	"github.com/karupanerura/expiring-cache/expiration"
)

var epoch = time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)

type call struct {
	Hook  string
	Value string
	At    time.Time
}

// recorder collects hook calls.
type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) hook(name string) expiration.Hook[string] {
	return func(value string, at time.Time) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, call{Hook: name, Value: value, At: at})
	}
}

func (r *recorder) options(clock expiringcache.Clock) []expiration.Option[string] {
	return []expiration.Option[string]{
		expiration.WithClock[string](clock),
		expiration.OnExpire(r.hook("expire")),
		expiration.OnRemove(r.hook("remove")),
		expiration.OnAboutToExpire(r.hook("aboutToExpire")),
	}
}

func (r *recorder) Calls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func TestPermanent(t *testing.T) {
	t.Parallel()

	clock := expiringcache.NewManualClock(epoch)
	var rec recorder
	item := expiration.NewPermanent("value", rec.options(clock)...)

	for _, d := range []time.Duration{0, time.Second, time.Hour, 1000 * time.Hour} {
		clock.Set(epoch.Add(d))
		if item.IsExpired() {
			t.Errorf("permanent item must not expire after %v", d)
		}
		if item.IsAboutToExpire() {
			t.Errorf("permanent item must not be about to expire after %v", d)
		}
	}
	if got := item.Value(); got != "value" {
		t.Errorf("Value() = %q, want %q", got, "value")
	}
	if got := item.PeekValue(); got != "value" {
		t.Errorf("PeekValue() = %q, want %q", got, "value")
	}

	sibling := item.CreateNewItem("other")
	if _, ok := sibling.(*expiration.Permanent[string]); !ok {
		t.Fatalf("CreateNewItem() must keep the policy, got %T", sibling)
	}
	if got := sibling.PeekValue(); got != "other" {
		t.Errorf("sibling PeekValue() = %q, want %q", got, "other")
	}

	sibling.Remove()
	want := []call{{Hook: "remove", Value: "other", At: epoch.Add(1000 * time.Hour)}}
	if diff := cmp.Diff(want, rec.Calls()); diff != "" {
		t.Errorf("hooks must propagate to the sibling (-want +got):\n%s", diff)
	}
}

func TestAbsolute(t *testing.T) {
	t.Parallel()

	t.Run("expires at the deadline", func(t *testing.T) {
		t.Parallel()

		clock := expiringcache.NewManualClock(epoch)
		deadline := epoch.Add(10 * time.Minute)
		item := expiration.NewAbsolute("value", deadline, expiration.WithClock[string](clock))

		tests := []struct {
			name          string
			now           time.Time
			expired       bool
			aboutToExpire bool
		}{
			{"long before the deadline", epoch, false, false},
			{"just before the warning window", deadline.Add(-time.Minute - 1), false, false},
			{"at the warning window", deadline.Add(-time.Minute), false, true},
			{"just before the deadline", deadline.Add(-1), false, true},
			{"at the deadline", deadline, true, true},
			{"after the deadline", deadline.Add(time.Hour), true, true},
		}
		for _, tt := range tests {
			clock.Set(tt.now)
			if got := item.IsAboutToExpire(); got != tt.aboutToExpire {
				t.Errorf("%s: IsAboutToExpire() = %v, want %v", tt.name, got, tt.aboutToExpire)
			}
			if got := item.IsExpired(); got != tt.expired {
				t.Errorf("%s: IsExpired() = %v, want %v", tt.name, got, tt.expired)
			}
		}
	})

	t.Run("never heals once expired", func(t *testing.T) {
		t.Parallel()

		clock := expiringcache.NewManualClock(epoch)
		item := expiration.NewAbsolute("value", epoch.Add(time.Minute), expiration.WithClock[string](clock))

		clock.Advance(time.Minute)
		if !item.IsExpired() {
			t.Fatal("item must be expired at the deadline")
		}
		clock.Set(epoch)
		if !item.IsExpired() {
			t.Error("item must stay expired even if the clock goes backwards")
		}
		if !item.IsAboutToExpire() {
			t.Error("an expired item must be about to expire")
		}
	})

	t.Run("custom warning window", func(t *testing.T) {
		t.Parallel()

		clock := expiringcache.NewManualClock(epoch)
		item := expiration.NewAbsoluteAfter("value", 10*time.Minute,
			expiration.WithClock[string](clock),
			expiration.WithWarningWindow[string](5*time.Minute),
		)

		clock.Advance(5*time.Minute - 1)
		if item.IsAboutToExpire() {
			t.Error("item must not be about to expire before the warning window")
		}
		clock.Advance(1)
		if !item.IsAboutToExpire() {
			t.Error("item must be about to expire inside the warning window")
		}
	})

	t.Run("CreateNewItem keeps a fixed deadline", func(t *testing.T) {
		t.Parallel()

		clock := expiringcache.NewManualClock(epoch)
		deadline := epoch.Add(10 * time.Minute)
		item := expiration.NewAbsolute("value", deadline, expiration.WithClock[string](clock))

		clock.Advance(5 * time.Minute)
		sibling, ok := item.CreateNewItem("other").(*expiration.Absolute[string])
		if !ok {
			t.Fatalf("CreateNewItem() must keep the policy")
		}
		if !sibling.Deadline().Equal(deadline) {
			t.Errorf("sibling Deadline() = %v, want %v", sibling.Deadline(), deadline)
		}
	})

	t.Run("CreateNewItem renews a relative deadline", func(t *testing.T) {
		t.Parallel()

		clock := expiringcache.NewManualClock(epoch)
		item := expiration.NewAbsoluteAfter("value", 10*time.Minute, expiration.WithClock[string](clock))

		clock.Advance(5 * time.Minute)
		sibling, ok := item.CreateNewItem("other").(*expiration.Absolute[string])
		if !ok {
			t.Fatalf("CreateNewItem() must keep the policy")
		}
		if want := epoch.Add(15 * time.Minute); !sibling.Deadline().Equal(want) {
			t.Errorf("sibling Deadline() = %v, want %v", sibling.Deadline(), want)
		}
		if got := sibling.Value(); got != "other" {
			t.Errorf("sibling Value() = %q, want %q", got, "other")
		}
	})

	t.Run("panic on non-positive ttl", func(t *testing.T) {
		t.Parallel()

		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic for zero ttl, but did not panic")
			}
		}()
		expiration.NewAbsoluteAfter("value", 0)
	})
}

func TestSliding(t *testing.T) {
	t.Parallel()

	t.Run("Value renews the deadline", func(t *testing.T) {
		t.Parallel()

		clock := expiringcache.NewManualClock(epoch)
		item := expiration.NewSliding("value", time.Minute, expiration.WithClock[string](clock))

		for range 10 {
			clock.Advance(50 * time.Second)
			if item.IsExpired() {
				t.Fatalf("item must not expire while it is read within the window")
			}
			if got := item.Value(); got != "value" {
				t.Fatalf("Value() = %q, want %q", got, "value")
			}
		}
		if want := epoch.Add(500*time.Second + time.Minute); !item.Deadline().Equal(want) {
			t.Errorf("Deadline() = %v, want %v", item.Deadline(), want)
		}
	})

	t.Run("PeekValue does not renew the deadline", func(t *testing.T) {
		t.Parallel()

		clock := expiringcache.NewManualClock(epoch)
		item := expiration.NewSliding("value", time.Minute, expiration.WithClock[string](clock))

		clock.Advance(50 * time.Second)
		if got := item.PeekValue(); got != "value" {
			t.Fatalf("PeekValue() = %q, want %q", got, "value")
		}
		clock.Advance(10 * time.Second)
		if !item.IsExpired() {
			t.Error("item must expire when only peeked")
		}
	})

	t.Run("Value does not revive an expired item", func(t *testing.T) {
		t.Parallel()

		clock := expiringcache.NewManualClock(epoch)
		item := expiration.NewSliding("value", time.Minute, expiration.WithClock[string](clock))

		clock.Advance(time.Minute)
		_ = item.Value()
		if !item.IsExpired() {
			t.Error("item must stay expired after Value")
		}
		if want := epoch.Add(time.Minute); !item.Deadline().Equal(want) {
			t.Errorf("Deadline() = %v, want %v", item.Deadline(), want)
		}
	})

	t.Run("default warning window", func(t *testing.T) {
		t.Parallel()

		clock := expiringcache.NewManualClock(epoch)
		item := expiration.NewSliding("value", 100*time.Second, expiration.WithClock[string](clock))

		clock.Advance(90*time.Second - 1)
		if item.IsAboutToExpire() {
			t.Error("item must not be about to expire before the last tenth of its window")
		}
		clock.Advance(1)
		if !item.IsAboutToExpire() {
			t.Error("item must be about to expire in the last tenth of its window")
		}
	})

	t.Run("concurrent renewals never move the deadline backwards", func(t *testing.T) {
		t.Parallel()

		clock := expiringcache.NewManualClock(epoch)
		item := expiration.NewSliding("value", time.Minute, expiration.WithClock[string](clock))

		var wg conc.WaitGroup
		for range 8 {
			wg.Go(func() {
				for range 100 {
					clock.Advance(time.Millisecond)
					_ = item.Value()
				}
			})
		}
		wg.Wait()

		if want := epoch.Add(800*time.Millisecond + time.Minute); item.Deadline().After(want) {
			t.Errorf("Deadline() = %v, must not be after %v", item.Deadline(), want)
		}
		if item.Deadline().Before(epoch.Add(time.Minute)) {
			t.Errorf("Deadline() = %v moved backwards", item.Deadline())
		}
		_ = item.Value()
		if want := epoch.Add(800*time.Millisecond + time.Minute); !item.Deadline().Equal(want) {
			t.Errorf("Deadline() = %v, want %v", item.Deadline(), want)
		}
	})

	t.Run("a renewal racing the expiration check never leaves an expired item with a future deadline", func(t *testing.T) {
		t.Parallel()

		for range 500 {
			clock := expiringcache.NewManualClock(epoch)
			item := expiration.NewSliding("value", 10*time.Second, expiration.WithClock[string](clock))
			clock.Advance(5 * time.Second)

			var wg conc.WaitGroup
			wg.Go(func() {
				_ = item.Value()
			})
			wg.Go(func() {
				clock.Advance(5 * time.Second)
				_ = item.IsExpired()
			})
			wg.Wait()

			expired := item.IsExpired()
			if reached := !clock.Now().Before(item.Deadline()); expired != reached {
				t.Fatalf("IsExpired() = %v but Deadline() = %v at %v", expired, item.Deadline(), clock.Now())
			}
		}
	})

	t.Run("CreateNewItem restarts the window", func(t *testing.T) {
		t.Parallel()

		clock := expiringcache.NewManualClock(epoch)
		item := expiration.NewSliding("value", time.Minute, expiration.WithClock[string](clock))

		clock.Advance(30 * time.Second)
		sibling, ok := item.CreateNewItem("other").(*expiration.Sliding[string])
		if !ok {
			t.Fatalf("CreateNewItem() must keep the policy")
		}
		if want := epoch.Add(90 * time.Second); !sibling.Deadline().Equal(want) {
			t.Errorf("sibling Deadline() = %v, want %v", sibling.Deadline(), want)
		}
	})
}

func TestNotifications(t *testing.T) {
	t.Parallel()

	t.Run("terminal hooks fire at most once", func(t *testing.T) {
		t.Parallel()

		clock := expiringcache.NewManualClock(epoch)
		var rec recorder
		item := expiration.NewAbsoluteAfter("value", time.Minute, rec.options(clock)...)

		item.Expire()
		item.Expire()
		item.Remove()

		want := []call{{Hook: "expire", Value: "value", At: epoch}}
		if diff := cmp.Diff(want, rec.Calls()); diff != "" {
			t.Errorf("unexpected hook calls (-want +got):\n%s", diff)
		}
	})

	t.Run("about to expire fires at most once", func(t *testing.T) {
		t.Parallel()

		clock := expiringcache.NewManualClock(epoch)
		var rec recorder
		item := expiration.NewSliding("value", time.Minute, rec.options(clock)...)

		var wg conc.WaitGroup
		for range 10 {
			wg.Go(item.AboutToExpire)
		}
		wg.Wait()

		want := []call{{Hook: "aboutToExpire", Value: "value", At: epoch}}
		if diff := cmp.Diff(want, rec.Calls()); diff != "" {
			t.Errorf("unexpected hook calls (-want +got):\n%s", diff)
		}
	})

	t.Run("no hooks registered", func(t *testing.T) {
		t.Parallel()

		item := expiration.NewPermanent(1)
		item.AboutToExpire()
		item.Expire()
		item.Remove()
	})

	t.Run("panic on negative warning window", func(t *testing.T) {
		t.Parallel()

		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic for negative warning window, but did not panic")
			}
		}()
		expiration.WithWarningWindow[string](-1)
	})
}
