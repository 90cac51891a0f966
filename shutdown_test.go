package async

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestShutdown(t *testing.T) {
	t.Run("HooksRunBeforeExit", func(t *testing.T) {
		var s Scheduler

		hookDone := false

		s.Spawn(func() {
			s.AtShutdown(func() Deferred[Unit] {
				hookDone = true
				return Return(Unit{})
			})
			s.Shutdown(0)
		})
		s.Run()

		code, ok := s.exitStatus()
		if !ok || code != 0 || !hookDone {
			t.Errorf("got (code %d, ready %v, hook %v), want (0, true, true)", code, ok, hookDone)
		}
	})

	t.Run("UpgradeFromZero", func(t *testing.T) {
		var s Scheduler

		s.Spawn(func() {
			s.Shutdown(0)
			s.Shutdown(2)
		})
		s.Run()

		code, ok := s.exitStatus()
		if !ok || code != 2 {
			t.Errorf("got (%d, %v), want (2, true)", code, ok)
		}
	})

	t.Run("RedundantZeroIgnored", func(t *testing.T) {
		var s Scheduler

		s.Spawn(func() {
			s.Shutdown(2)
			s.Shutdown(0)
			s.Shutdown(2)
		})
		s.Run()

		code, ok := s.exitStatus()
		if !ok || code != 2 {
			t.Errorf("got (%d, %v), want (2, true)", code, ok)
		}
	})

	t.Run("ConflictPanics", func(t *testing.T) {
		var s Scheduler

		defer func() {
			if recover() == nil {
				t.Error("conflicting nonzero statuses did not panic")
			}
		}()

		s.Shutdown(2)
		s.Shutdown(3)
	})

	t.Run("AwaitsSlowHook", func(t *testing.T) {
		var s Scheduler

		release := NewIvar[Unit]()

		s.Spawn(func() {
			s.AtShutdown(func() Deferred[Unit] { return release.Read() })
			s.Shutdown(0)
		})
		s.Run()

		if _, ok := s.exitStatus(); ok {
			t.Fatal("exited before the hook completed")
		}

		s.Spawn(func() { release.Fill(Unit{}) })
		s.Run()

		code, ok := s.exitStatus()
		if !ok || code != 0 {
			t.Errorf("got (%d, %v), want (0, true)", code, ok)
		}
	})

	t.Run("HookTimeout", func(t *testing.T) {
		var s Scheduler
		var buf bytes.Buffer
		s.Stderr = &buf
		s.ShutdownTimeout = 5 * time.Millisecond

		base := time.Unix(0, 0)
		now := base
		s.now = func() time.Time { return now }

		s.Spawn(func() {
			s.AtShutdown(func() Deferred[Unit] { return Never[Unit]() })
			s.Shutdown(0)
		})
		s.Run()

		if _, ok := s.exitStatus(); ok {
			t.Fatal("exited before the timeout")
		}

		now = base.Add(10 * time.Millisecond)
		s.fireTimers(now)
		s.Run()

		code, ok := s.exitStatus()
		if !ok || code != 1 {
			t.Errorf("got (%d, %v), want (1, true)", code, ok)
		}
		if !strings.Contains(buf.String(), "timed out") {
			t.Errorf("stderr %q does not mention the timeout", buf.String())
		}
	})

	t.Run("FailingHookDoesNotBlockExit", func(t *testing.T) {
		var s Scheduler
		var buf bytes.Buffer
		s.Stderr = &buf

		s.Spawn(func() {
			s.AtShutdown(func() Deferred[Unit] { panic("hook broke") })
			s.Shutdown(0)
		})
		s.Run()

		code, ok := s.exitStatus()
		if !ok || code != 0 {
			t.Errorf("got (%d, %v), want (0, true)", code, ok)
		}
		if !strings.Contains(buf.String(), "hook failed") {
			t.Errorf("stderr %q does not mention the failed hook", buf.String())
		}
	})
}
