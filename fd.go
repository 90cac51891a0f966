package async

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Kind classifies the object behind a raw descriptor. It decides whether
// nonblocking mode is available and is rendered into diagnostics.
type Kind int

const (
	KindChar Kind = iota
	KindFifo
	KindFile
	KindSocketUnconnected
	KindSocketBound
	KindSocketPassive
	KindSocketActive
)

func (k Kind) String() string {
	switch k {
	case KindChar:
		return "Char"
	case KindFifo:
		return "Fifo"
	case KindFile:
		return "File"
	case KindSocketUnconnected:
		return "Socket Unconnected"
	case KindSocketBound:
		return "Socket Bound"
	case KindSocketPassive:
		return "Socket Passive"
	case KindSocketActive:
		return "Socket Active"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) supportsNonblock() bool {
	switch k {
	case KindChar, KindFifo, KindFile,
		KindSocketUnconnected, KindSocketBound, KindSocketPassive, KindSocketActive:
		return true
	}
	return false
}

// Direction selects one of an Fd's two readiness slots.
type Direction int

const (
	Read Direction = iota
	Write
)

func (d Direction) String() string {
	if d == Read {
		return "Read"
	}
	return "Write"
}

// ReadyResult is the value a readiness subscription determines with.
type ReadyResult int

const (
	// Ready: the descriptor is ready for I/O in the awaited direction.
	Ready ReadyResult = iota
	// BadFd: the OS reported the descriptor as invalid.
	BadFd
	// Closed: the Fd was closed or replaced while the wait was pending.
	Closed
	// Interrupted: the wait was interrupted (EINTR-class); the caller may
	// resubscribe.
	Interrupted
)

func (r ReadyResult) String() string {
	switch r {
	case Ready:
		return "Ready"
	case BadFd:
		return "Bad_fd"
	case Closed:
		return "Closed"
	case Interrupted:
		return "Interrupted"
	}
	return fmt.Sprintf("ReadyResult(%d)", int(r))
}

type fdState int

const (
	fdOpen fdState = iota
	fdCloseRequested
	fdClosed
	fdReplaced
)

func (st fdState) String() string {
	switch st {
	case fdOpen:
		return "Open"
	case fdCloseRequested:
		return "Close_requested"
	case fdClosed:
		return "Closed"
	case fdReplaced:
		return "Replaced"
	}
	return fmt.Sprintf("fdState(%d)", int(st))
}

// AlreadyClosed is the error [Fd.Use] and [Syscall] report when the Fd is no
// longer Open. It is an ordinary return value, never a panic: closing a
// descriptor out from under an operation is an expected race, not a bug.
type AlreadyClosed struct {
	Name string
}

func (e AlreadyClosed) Error() string {
	return fmt.Sprintf("async: Fd %q already closed", e.Name)
}

// An Fd wraps a raw OS descriptor with a lifecycle state machine, an
// in-flight-syscall counter, and one readiness slot per direction, so that
// closing a descriptor while waits are outstanding is well-defined: pending
// subscribers are woken with [Closed], and the OS close happens exactly
// once, after the last in-flight wait has resolved.
//
// An Fd must not be shared by more than one [Scheduler].
type Fd struct {
	s    *Scheduler
	name string
	raw  int
	kind Kind

	supportsNonblock bool
	haveSetNonblock  bool

	state         fdState
	inflight      int
	closeFinished *Ivar[Unit]
	ready         [2]*Ivar[ReadyResult]
}

// NewFd wraps raw in an Fd owned by s. The Fd starts Open with no in-flight
// syscalls and both readiness slots empty; it owns raw until [Fd.Close] or
// [Fd.Replace]. name is used only in diagnostics.
func (s *Scheduler) NewFd(kind Kind, raw int, name string) *Fd {
	fd := &Fd{
		s:                s,
		name:             name,
		raw:              raw,
		kind:             kind,
		supportsNonblock: kind.supportsNonblock(),
		closeFinished:    NewIvar[Unit](),
	}
	fd.check()
	return fd
}

// Name returns the debug name fd was created with.
func (fd *Fd) Name() string { return fd.name }

// Kind returns the kind fd was created with.
func (fd *Fd) Kind() Kind { return fd.kind }

// IsOpen reports whether fd still accepts syscalls and readiness
// subscriptions.
func (fd *Fd) IsOpen() bool { return fd.state == fdOpen }

// IsClosed reports whether the OS descriptor has been closed.
func (fd *Fd) IsClosed() bool { return fd.state == fdClosed }

// check asserts the state-machine invariants. It runs before and after
// every operation; a violation is a programming error and panics.
func (fd *Fd) check() {
	bad := func(msg string) {
		panic(fmt.Sprintf("async: Fd %q: %s", fd.name, msg))
	}

	if fd.inflight < 0 {
		bad("negative in-flight count")
	}

	switch fd.state {
	case fdClosed, fdReplaced:
		if fd.inflight != 0 {
			bad("in-flight syscalls in state " + fd.state.String())
		}
		if fd.ready[Read] != nil || fd.ready[Write] != nil {
			bad("readiness slot occupied in state " + fd.state.String())
		}
	}

	if _, done := fd.closeFinished.Peek(); done != (fd.state == fdClosed) {
		bad("close_finished inconsistent with state " + fd.state.String())
	}

	for _, dir := range []Direction{Read, Write} {
		if fd.ready[dir] != nil && fd.inflight <= 0 {
			bad("occupied readiness slot with no in-flight count")
		}
	}
}

func (fd *Fd) setNonblock() error {
	if !fd.supportsNonblock {
		panic(fmt.Sprintf("async: Fd %q: kind %v does not support nonblocking mode", fd.name, fd.kind))
	}
	if fd.haveSetNonblock {
		return nil
	}
	if err := unix.SetNonblock(fd.raw, true); err != nil {
		return err
	}
	fd.haveSetNonblock = true
	return nil
}

// Use invokes f with fd's raw descriptor for a synchronous, non-suspending
// use — the shape of operations like getsockname that hand a value straight
// back: it does not count as an in-flight syscall. If nonblocking is set,
// the OS nonblock flag is set on first use. Use returns [AlreadyClosed] if
// fd is not Open, or whatever f returns.
//
// Use is a package-level function rather than a method so that it can be
// generic in f's result.
func Use[R any](fd *Fd, nonblocking bool, f func(raw int) (R, error)) (v R, err error) {
	fd.check()
	if fd.state != fdOpen {
		return v, AlreadyClosed{Name: fd.name}
	}
	if nonblocking {
		if err := fd.setNonblock(); err != nil {
			return v, err
		}
	}
	return f(fd.raw)
}

// ReadyTo subscribes to readiness on dir and returns a deferred that
// determines with the outcome of the wait. At most one subscription per
// direction is outstanding; a second ReadyTo for the same direction returns
// the existing deferred. Once the slot fills it is cleared, so the next wait
// needs a fresh ReadyTo.
//
// If fd is no longer Open, the result is already determined with [Closed].
//
// One should only call this method in a job.
func (fd *Fd) ReadyTo(dir Direction) Deferred[ReadyResult] {
	fd.check()

	if fd.state != fdOpen {
		return Return(Closed)
	}

	if iv := fd.ready[dir]; iv != nil {
		return iv.Read()
	}

	iv := NewIvar[ReadyResult]()

	w := fd.s.ensureWatcher()
	if err := w.register(fd.raw, dir); err != nil {
		iv.Fill(BadFd)
		return iv.Read()
	}

	fd.ready[dir] = iv
	fd.inflight++

	if fd.s.fds == nil {
		fd.s.fds = make(map[int]*Fd)
	}
	fd.s.fds[fd.raw] = fd

	fd.check()
	return iv.Read()
}

// deliverReady resolves a pending wait on dir: the slot is cleared, the
// in-flight count drops, and the subscriber's deferred determines with what.
// If a close was requested and this was the last in-flight wait, the OS
// close is scheduled.
func (fd *Fd) deliverReady(dir Direction, what ReadyResult) {
	iv := fd.ready[dir]
	if iv == nil {
		return // Stale event for a slot already resolved.
	}

	fd.ready[dir] = nil
	fd.inflight--
	fd.s.unwatch(fd.raw, dir)

	if fd.ready[Read] == nil && fd.ready[Write] == nil {
		delete(fd.s.fds, fd.raw)
	}

	iv.Fill(what)

	if fd.state == fdCloseRequested && fd.inflight == 0 {
		fd.scheduleClose()
	}

	fd.check()
}

// wakeAll resolves both readiness slots with what and drops fd from the
// watcher.
func (fd *Fd) wakeAll(what ReadyResult) {
	for _, dir := range []Direction{Read, Write} {
		if iv := fd.ready[dir]; iv != nil {
			fd.ready[dir] = nil
			fd.inflight--
			fd.s.unwatch(fd.raw, dir)
			iv.Fill(what)
		}
	}
	if fd.s.fds != nil {
		delete(fd.s.fds, fd.raw)
	}
}

// Close requests that fd's descriptor be closed and returns a deferred that
// determines once the OS close has happened. Close is idempotent: every call
// returns the same deferred, and the OS close runs exactly once.
//
// Pending readiness subscribers are woken with [Closed] immediately; the OS
// close itself waits until the in-flight count reaches zero.
//
// One should only call this method in a job.
func (fd *Fd) Close() Deferred[Unit] {
	fd.check()

	switch fd.state {
	case fdClosed, fdCloseRequested:
		return fd.closeFinished.Read()
	case fdReplaced:
		panic(fmt.Sprintf("async: Fd %q: close of replaced Fd", fd.name))
	}

	fd.state = fdCloseRequested
	fd.wakeAll(Closed)

	if fd.inflight == 0 {
		fd.scheduleClose()
	}

	fd.check()
	return fd.closeFinished.Read()
}

func (fd *Fd) scheduleClose() {
	enqueue(fd.s.rootMonitor(), func() {
		unix.Close(fd.raw)
		fd.state = fdClosed
		fd.closeFinished.Fill(Unit{})
		fd.check()
	})
}

// Replace hands ownership of the raw descriptor to the caller — typically to
// wrap it in a new Fd — and leaves this wrapper inert. Pending readiness
// subscribers are woken with [Closed]. Replace panics unless fd is Open.
//
// One should only call this method in a job.
func (fd *Fd) Replace() int {
	fd.check()

	if fd.state != fdOpen {
		panic(fmt.Sprintf("async: Fd %q: replace in state %v", fd.name, fd.state))
	}

	fd.wakeAll(Closed)
	fd.state = fdReplaced

	fd.check()
	return fd.raw
}

// Syscall runs f against fd's raw descriptor in nonblocking mode, triaging
// the result: success and hard errors resolve immediately, EAGAIN waits for
// readiness on dir and retries, and EINTR retries at once. The returned
// deferred determines with f's value or its final error; a close racing the
// syscall resolves it with [AlreadyClosed].
//
// One should only call this function in a job.
func Syscall[R any](fd *Fd, dir Direction, f func(raw int) (R, error)) Deferred[Result[R]] {
	r := NewIvar[Result[R]]()
	m := Current()

	var attempt func()
	attempt = func() {
		for {
			if fd.state != fdOpen {
				r.Fill(Result[R]{Err: AlreadyClosed{Name: fd.name}})
				return
			}
			if err := fd.setNonblock(); err != nil {
				r.Fill(Result[R]{Err: err})
				return
			}

			v, err := f(fd.raw)
			switch {
			case err == nil:
				r.Fill(Result[R]{Ok: v})
				return
			case err == unix.EINTR:
				continue
			case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
				fd.ReadyTo(dir).upon(m, func(res ReadyResult) {
					switch res {
					case Ready, Interrupted:
						attempt()
					case Closed:
						r.Fill(Result[R]{Err: AlreadyClosed{Name: fd.name}})
					case BadFd:
						r.Fill(Result[R]{Err: unix.EBADF})
					}
				})
				return
			default:
				r.Fill(Result[R]{Err: err})
				return
			}
		}
	}

	attempt()
	return r.Read()
}
