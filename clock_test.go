package async

import (
	"slices"
	"testing"
	"time"
)

func TestClockOrdering(t *testing.T) {
	var s Scheduler

	base := time.Unix(0, 0)
	now := base
	s.now = func() time.Time { return now }

	var fired []string

	s.Spawn(func() {
		// Registered first, fires second.
		s.After(10 * time.Millisecond).Upon(func(Unit) { fired = append(fired, "slow") })
		s.After(5 * time.Millisecond).Upon(func(Unit) { fired = append(fired, "fast") })
	})
	s.Run()

	now = base.Add(7 * time.Millisecond)
	s.fireTimers(now)
	s.Run()

	if !slices.Equal(fired, []string{"fast"}) {
		t.Fatalf("after 7ms: got %v, want [fast]", fired)
	}

	now = base.Add(12 * time.Millisecond)
	s.fireTimers(now)
	s.Run()

	if !slices.Equal(fired, []string{"fast", "slow"}) {
		t.Errorf("after 12ms: got %v, want [fast slow]", fired)
	}
}

func TestClockTiesFireInRegistrationOrder(t *testing.T) {
	var s Scheduler

	base := time.Unix(0, 0)
	now := base
	s.now = func() time.Time { return now }

	var fired []string

	s.Spawn(func() {
		at := base.Add(time.Millisecond)
		s.At(at).Upon(func(Unit) { fired = append(fired, "a") })
		s.At(at).Upon(func(Unit) { fired = append(fired, "b") })
		s.At(at).Upon(func(Unit) { fired = append(fired, "c") })
	})
	s.Run()

	now = base.Add(time.Millisecond)
	s.fireTimers(now)
	s.Run()

	if !slices.Equal(fired, []string{"a", "b", "c"}) {
		t.Errorf("got %v, want [a b c]", fired)
	}
}

func TestEvery(t *testing.T) {
	var s Scheduler

	base := time.Unix(0, 0)
	now := base
	s.now = func() time.Time { return now }

	ticks := 0

	s.Spawn(func() {
		s.Every(time.Millisecond, func() { ticks++ })
	})
	s.Run()

	for i := 1; i <= 3; i++ {
		now = base.Add(time.Duration(i) * time.Millisecond)
		s.fireTimers(now)
		s.Run()
	}

	if ticks != 3 {
		t.Errorf("got %d ticks, want 3", ticks)
	}
}

func TestEveryStopsWhenCallbackPanics(t *testing.T) {
	var s Scheduler

	base := time.Unix(0, 0)
	now := base
	s.now = func() time.Time { return now }

	ticks := 0

	s.Spawn(func() {
		m := Current().Child("ticker")
		m.handler = func(error) {} // Absorb the panic.
		m.Spawn(func() {
			s.Every(time.Millisecond, func() {
				ticks++
				panic("tick failed")
			})
		})
	})
	s.Run()

	for i := 1; i <= 3; i++ {
		now = base.Add(time.Duration(i) * time.Millisecond)
		s.fireTimers(now)
		s.Run()
	}

	if ticks != 1 {
		t.Errorf("got %d ticks, want 1 (ticking must stop after a panic)", ticks)
	}
}

func TestPollTimeoutTracksEarliestTimer(t *testing.T) {
	var s Scheduler

	base := time.Unix(0, 0)
	now := base
	s.now = func() time.Time { return now }

	if d := s.pollTimeout(); d != -1 {
		t.Fatalf("idle timeout: got %v, want -1", d)
	}

	s.Spawn(func() {
		s.After(5 * time.Millisecond)
	})
	s.Run()

	if d := s.pollTimeout(); d != 5*time.Millisecond {
		t.Errorf("got %v, want 5ms", d)
	}

	now = base.Add(8 * time.Millisecond)
	if d := s.pollTimeout(); d != 0 {
		t.Errorf("overdue timer: got %v, want 0", d)
	}
}
