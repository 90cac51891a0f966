package async

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTryWithSyncPanic(t *testing.T) {
	var s Scheduler

	errBoom := errors.New("boom")

	var res Result[int]
	var determined bool

	s.Spawn(func() {
		TryWith(func() Deferred[int] {
			panic(errBoom)
		}).Upon(func(r Result[int]) {
			res = r
			determined = true
		})
	})
	s.Run()

	if !determined || !errors.Is(res.Err, errBoom) {
		t.Errorf("got (%v, %v), want Err wrapping %v", res, determined, errBoom)
	}
}

func TestTryWithOk(t *testing.T) {
	var s Scheduler

	var res Result[int]

	s.Spawn(func() {
		TryWith(func() Deferred[int] {
			return Return(42)
		}).Upon(func(r Result[int]) { res = r })
	})
	s.Run()

	if res.Err != nil || res.Ok != 42 {
		t.Errorf("got %+v, want Ok 42", res)
	}
}

func TestTryWithCapturesAsyncRaise(t *testing.T) {
	var s Scheduler

	base := time.Unix(0, 0)
	now := base
	s.now = func() time.Time { return now }

	errE := errors.New("E")

	var res Result[Unit]
	var determined bool
	parentHit := false

	s.Spawn(func() {
		m := Current().Child("parent")
		m.handler = func(error) { parentHit = true }
		m.Spawn(func() {
			TryWith(func() Deferred[Unit] {
				return Bind(s.After(time.Millisecond), func(Unit) Deferred[Unit] {
					panic(errE)
				})
			}).Upon(func(r Result[Unit]) {
				res = r
				determined = true
			})
		})
	})
	s.Run()

	if determined {
		t.Fatal("determined before the timer fired")
	}

	now = base.Add(2 * time.Millisecond)
	s.fireTimers(now)
	s.Run()

	if !determined || !errors.Is(res.Err, errE) {
		t.Errorf("got (%+v, %v), want Err wrapping %v", res, determined, errE)
	}
	if parentHit {
		t.Error("exception propagated past try_with to the parent monitor")
	}
}

func TestTryWithSecondErrorRoutesToParent(t *testing.T) {
	var s Scheduler

	base := time.Unix(0, 0)
	now := base
	s.now = func() time.Time { return now }

	var parentErrs int

	s.Spawn(func() {
		m := Current().Child("parent")
		m.handler = func(error) { parentErrs++ }
		m.Spawn(func() {
			TryWith(func() Deferred[Unit] {
				s.After(time.Millisecond).Upon(func(Unit) { panic("first") })
				s.After(time.Millisecond).Upon(func(Unit) { panic("second") })
				return Never[Unit]()
			})
		})
	})
	s.Run()

	now = base.Add(2 * time.Millisecond)
	s.fireTimers(now)
	s.Run()

	if parentErrs != 1 {
		t.Errorf("parent saw %d errors, want 1 (only the second routes up)", parentErrs)
	}
}

func TestDetachedMonitorDoesNotPropagate(t *testing.T) {
	var s Scheduler
	var buf bytes.Buffer
	s.Stderr = &buf

	parentHit := false

	s.Spawn(func() {
		m := Current().Child("parent")
		m.handler = func(error) { parentHit = true }

		child := m.Child("detached")
		child.Detach()
		child.Spawn(func() { panic("lost") })
	})
	s.Run()

	if parentHit {
		t.Error("detached monitor propagated to its parent")
	}
	if !strings.Contains(buf.String(), "unhandled exception") {
		t.Error("detached unhandled error was not printed")
	}
}

func TestUnhandledExceptionShutsDown(t *testing.T) {
	var s Scheduler
	var buf bytes.Buffer
	s.Stderr = &buf

	s.Spawn(func() { panic("nobody catches this") })
	s.Run()

	if !strings.Contains(buf.String(), "unhandled exception") {
		t.Errorf("stderr %q does not mention the unhandled exception", buf.String())
	}

	code, ok := s.exitStatus()
	if !ok || code != 1 {
		t.Errorf("got exit (%d, %v), want (1, true)", code, ok)
	}
}

func TestMonitorHandlerPanicRoutesUp(t *testing.T) {
	var s Scheduler

	var outerErr error

	s.Spawn(func() {
		outer := Current().Child("outer")
		outer.handler = func(err error) { outerErr = err }

		inner := outer.Child("inner")
		inner.handler = func(error) { panic("handler exploded") }

		inner.Spawn(func() { panic("original") })
	})
	s.Run()

	if outerErr == nil || !strings.Contains(outerErr.Error(), "handler exploded") {
		t.Errorf("outer got %v, want the inner handler's panic", outerErr)
	}
}
