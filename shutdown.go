package async

import (
	"fmt"
	"time"
)

// shutdownState is NotShuttingDown (engaged false) or ShuttingDown(status).
// Once engaged, the status may only be upgraded from 0 to nonzero;
// conflicting nonzero statuses are a programming error.
type shutdownState struct {
	engaged bool
	status  int
}

// AtShutdown registers f to run during graceful termination. All hooks run
// concurrently when [Scheduler.Shutdown] engages; their order is
// unspecified, and the process exits once every hook's deferred has
// determined (or the shutdown timeout fires first).
//
// One should only call this method in a job.
func (s *Scheduler) AtShutdown(f func() Deferred[Unit]) {
	s.hooks = append(s.hooks, f)
}

// Shutdown engages graceful termination with the given exit status: every
// at-shutdown hook is started, and once all of them have completed — or
// ShutdownTimeout has elapsed, whichever is first — the loop calls OS exit.
//
// Calling Shutdown when a shutdown is already in progress reconciles the two
// statuses: equal statuses and a redundant zero are ignored, a zero already
// recorded is upgraded to the new nonzero status, and two differing nonzero
// statuses panic — two failure paths disagreeing about the exit code is a
// programming error, not something to pick a winner for silently.
//
// One should only call this method in a job.
func (s *Scheduler) Shutdown(status int) {
	if s.shutdown.engaged {
		old := s.shutdown.status
		switch {
		case old == status || status == 0:
		case old == 0:
			s.shutdown.status = status
		default:
			panic(fmt.Sprintf("async: conflicting shutdown statuses %d and %d", old, status))
		}
		return
	}

	s.shutdown.engaged = true
	s.shutdown.status = status

	timeout := s.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	s.Spawn(func() {
		hooks := s.hooks
		ds := make([]Deferred[Unit], len(hooks))
		for i, hook := range hooks {
			ds[i] = Map(TryWith(hook), func(r Result[Unit]) Unit {
				if r.Err != nil {
					fmt.Fprintf(s.stderr(), "async: shutdown: at-shutdown hook failed: %v\n", r.Err)
				}
				return Unit{}
			})
		}

		done := AllUnit(ds)

		done.Upon(func(Unit) {
			s.exitReady = true
		})

		s.After(timeout).Upon(func(Unit) {
			if !done.IsDetermined() {
				fmt.Fprintf(s.stderr(), "async: shutdown: at-shutdown hooks timed out after %v; exiting\n", timeout)
				s.shutdown.status = 1
				s.exitReady = true
			}
		})
	})
}

// exitStatus reports whether the loop should exit now, and with what code.
func (s *Scheduler) exitStatus() (int, bool) {
	if s.shutdown.engaged && s.exitReady {
		return s.shutdown.status, true
	}
	return 0, false
}
