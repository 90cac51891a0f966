package async

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// A Scheduler is the event loop that drives every [Deferred] in a program:
// it alternates running ready jobs, polling the fd watcher with a timeout
// chosen from the clock, delivering readiness, firing timers, and checking
// for shutdown.
//
// The zero value is ready to use. Most programs use the process-wide
// [Default] scheduler; separate Scheduler values exist for tests and
// embedding, but all of them must run their jobs on the same goroutine —
// the runtime is single-threaded by design.
//
// There are two ways to drive a Scheduler. [Scheduler.Loop] is the full
// event loop: it blocks in the OS poller when idle and never returns except
// through [Scheduler.Shutdown]. [Scheduler.Run] drains the ready-job queue
// once and returns; paired with [Scheduler.Autorun] it embeds the runtime
// into a host program that has its own main loop and only needs deferreds,
// not fd readiness.
type Scheduler struct {
	// Stderr is where the root monitor prints unhandled exceptions and
	// where shutdown warnings go. Nil means os.Stderr.
	Stderr io.Writer

	// ShutdownTimeout bounds how long [Scheduler.Shutdown] waits for
	// at-shutdown hooks before giving up and exiting with code 1. Zero
	// means 10 seconds.
	ShutdownTimeout time.Duration

	mu      sync.Mutex
	jobs    jobqueue
	running bool
	polling bool
	autorun func()
	inited  bool

	root  *Monitor
	cycle uint64

	now  func() time.Time // nil means time.Now; tests substitute
	exit func(int)        // nil means os.Exit; tests substitute

	timers   priorityqueue[timerEntry]
	timerseq uint64

	watch *fdwatcher
	fds   map[int]*Fd

	shutdown  shutdownState
	hooks     []func() Deferred[Unit]
	exitReady bool
}

func (s *Scheduler) initLocked() {
	if s.inited {
		return
	}
	s.inited = true
	s.root = &Monitor{sched: s, name: "main"}
}

func (s *Scheduler) rootMonitor() *Monitor {
	s.mu.Lock()
	s.initLocked()
	s.mu.Unlock()
	return s.root
}

func (s *Scheduler) stderr() io.Writer {
	if s.Stderr != nil {
		return s.Stderr
	}
	return os.Stderr
}

func (s *Scheduler) clockNow() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *Scheduler) doExit(code int) {
	if s.exit != nil {
		s.exit(code)
		return
	}
	os.Exit(code)
}

// enqueue adds j to the ready queue, wakes the poller if the loop is blocked
// in it, and triggers the autorun function if one is set and no drain is in
// progress. enqueue is safe for concurrent use.
func (s *Scheduler) enqueue(j job) {
	var autorun func()

	s.mu.Lock()
	s.initLocked()
	s.jobs.push(j)

	if !s.running && s.autorun != nil {
		s.running = true
		autorun = s.autorun
	}

	wake := s.polling
	w := s.watch
	s.mu.Unlock()

	if wake && w != nil {
		w.wake()
	}

	if autorun != nil {
		autorun()
	}
}

// Spawn enqueues f to run as a job under s's root monitor.
//
// Spawn is safe for concurrent use; it and [Monitor.Spawn] are the only entry
// points that are. A
// goroutine doing blocking work hands its result back to the runtime by
// spawning a job that fills an [Ivar].
func (s *Scheduler) Spawn(f func()) {
	s.enqueue(job{m: s.rootMonitor(), thunk: f})
}

// Autorun sets up a function to be called whenever a job is enqueued while
// no drain is in progress. One must pass a function that calls the Run
// method. The Scheduler never calls the autorun function twice at the same
// time.
//
// If f blocks, the Spawn method may block too. The best practice is not to
// block.
func (s *Scheduler) Autorun(f func()) {
	s.autorun = f
}

// Run pops and runs every ready job until the queue is emptied, then
// returns. Jobs enqueued during the drain are run in the same pass, FIFO.
//
// Run must not be called twice at the same time.
func (s *Scheduler) Run() {
	s.mu.Lock()
	s.initLocked()
	s.running = true
	s.cycle++

	for s.jobs.length() > 0 {
		j := s.jobs.pop()
		s.mu.Unlock()
		s.runJob(j)
		s.mu.Lock()
	}

	s.running = false
	s.mu.Unlock()
}

func (s *Scheduler) runJob(j job) {
	prev := current
	current = j.m
	if err := guard(j.thunk); err != nil {
		s.deliver(j.m, err)
	}
	current = prev
}

// Yield returns a deferred that determines after every job currently on the
// ready queue has run. Awaiting it is how a long-running computation lets
// the rest of the world make progress.
func (s *Scheduler) Yield() Deferred[Unit] {
	iv := NewIvar[Unit]()
	s.enqueue(job{m: Current(), thunk: func() { iv.Fill(Unit{}) }})
	return iv.Read()
}

// Loop runs the full event loop: drain ready jobs, poll for fd readiness
// with a timeout chosen from the clock, deliver readiness, fire due timers,
// and repeat. Loop blocks the calling goroutine and returns only once
// [Scheduler.Shutdown] has run its course, immediately before process exit —
// in normal builds the exit call never returns and neither does Loop.
func (s *Scheduler) Loop() {
	for {
		s.Run()

		if code, ok := s.exitStatus(); ok {
			s.doExit(code)
			return
		}

		s.poll(s.pollTimeout())
		s.fireTimers(s.clockNow())
	}
}

// pollTimeout chooses how long the poller may block: zero if jobs are ready
// (defensive — the drain should have emptied the queue), the time until the
// earliest timer otherwise, or forever when there is nothing to wait for but
// external wakeups.
func (s *Scheduler) pollTimeout() time.Duration {
	s.mu.Lock()
	n := s.jobs.length()
	s.mu.Unlock()

	if n > 0 {
		return 0
	}

	if !s.timers.Empty() {
		d := s.timers.Min().when.Sub(s.clockNow())
		if d < 0 {
			d = 0
		}
		return d
	}

	return -1
}

// poll blocks in the fd watcher for at most timeout (timeout < 0 blocks
// indefinitely), then translates each readiness event into an Ivar fill on
// the owning Fd's readiness slot. A fatal watcher error tears the loop down
// through [Scheduler.Shutdown] with a nonzero status.
func (s *Scheduler) poll(timeout time.Duration) {
	w := s.ensureWatcher()

	s.mu.Lock()
	s.polling = true
	s.mu.Unlock()

	events, err := w.poll(timeout)

	s.mu.Lock()
	s.polling = false
	s.mu.Unlock()

	if err != nil {
		fmt.Fprintf(s.stderr(), "async: fd watcher failed: %v\n", err)
		if !s.shutdown.engaged {
			s.Shutdown(1)
		}
		return
	}

	for _, e := range events {
		if fd := s.fds[e.raw]; fd != nil {
			fd.deliverReady(e.dir, e.what)
		}
	}
}

// ensureWatcher creates the platform watcher on first use. Only the loop
// goroutine calls it; the store is made under the mutex because enqueue
// reads s.watch from other goroutines when deciding whether to wake.
func (s *Scheduler) ensureWatcher() *fdwatcher {
	if s.watch == nil {
		w, err := newFdwatcher()
		if err != nil {
			panic(fmt.Sprintf("async: cannot create fd watcher: %v", err))
		}
		s.mu.Lock()
		s.watch = w
		s.mu.Unlock()
	}
	return s.watch
}

func (s *Scheduler) unwatch(raw int, dir Direction) {
	if s.watch != nil {
		s.watch.unregister(raw, dir)
	}
}

func (s *Scheduler) unhandled(err error) {
	fmt.Fprintf(s.stderr(), "async: unhandled exception: %v\n", err)
	if !s.shutdown.engaged {
		s.Shutdown(1)
	}
}
