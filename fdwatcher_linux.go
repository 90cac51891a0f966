//go:build linux

package async

import (
	"time"

	"golang.org/x/sys/unix"
)

// The Linux fdwatcher wraps epoll(7). Interest is level-triggered and
// per-direction: register ORs EPOLLIN or EPOLLOUT into the descriptor's
// mask, unregister clears it, and the Fd layer unregisters as soon as a
// slot resolves, so a still-readable descriptor does not spin the loop.
type fdwatcher struct {
	epfd     int
	wakeR    int
	wakeW    int
	interest map[int]uint32
}

func newFdwatcher() (*fdwatcher, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		unix.Close(epfd)
		return nil, err
	}

	w := &fdwatcher{
		epfd:     epfd,
		wakeR:    p[0],
		wakeW:    p[1],
		interest: make(map[int]uint32),
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(w.wakeR)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, w.wakeR, &ev); err != nil {
		w.close()
		return nil, err
	}

	return w, nil
}

func dirbit(dir Direction) uint32 {
	if dir == Read {
		return unix.EPOLLIN
	}
	return unix.EPOLLOUT
}

func (w *fdwatcher) register(raw int, dir Direction) error {
	old := w.interest[raw]
	mask := old | dirbit(dir)
	if mask == old {
		return nil
	}

	op := unix.EPOLL_CTL_MOD
	if old == 0 {
		op = unix.EPOLL_CTL_ADD
	}

	ev := unix.EpollEvent{Events: mask, Fd: int32(raw)}
	if err := unix.EpollCtl(w.epfd, op, raw, &ev); err != nil {
		return err
	}

	w.interest[raw] = mask
	return nil
}

func (w *fdwatcher) unregister(raw int, dir Direction) error {
	old, ok := w.interest[raw]
	if !ok {
		return nil
	}

	mask := old &^ dirbit(dir)
	if mask == old {
		return nil
	}

	if mask == 0 {
		delete(w.interest, raw)
		return unix.EpollCtl(w.epfd, unix.EPOLL_CTL_DEL, raw, nil)
	}

	w.interest[raw] = mask
	ev := unix.EpollEvent{Events: mask, Fd: int32(raw)}
	return unix.EpollCtl(w.epfd, unix.EPOLL_CTL_MOD, raw, &ev)
}

func (w *fdwatcher) poll(timeout time.Duration) ([]fdevent, error) {
	msec := -1
	if timeout >= 0 {
		// Round up so a sub-millisecond timer wait does not spin.
		msec = int((timeout + time.Millisecond - 1) / time.Millisecond)
	}

	var buf [128]unix.EpollEvent

	n, err := unix.EpollWait(w.epfd, buf[:], msec)
	if err == unix.EINTR {
		return w.interruptAll(), nil
	}
	if err != nil {
		return nil, err
	}

	var events []fdevent

	for i := 0; i < n; i++ {
		ev := buf[i]
		raw := int(ev.Fd)

		if raw == w.wakeR {
			w.drainWakeups()
			continue
		}

		mask := w.interest[raw]
		what := Ready
		if ev.Events&unix.EPOLLERR != 0 {
			what = BadFd
		}

		if mask&unix.EPOLLIN != 0 && ev.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
			events = append(events, fdevent{raw: raw, dir: Read, what: what})
		}
		if mask&unix.EPOLLOUT != 0 && ev.Events&(unix.EPOLLOUT|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
			events = append(events, fdevent{raw: raw, dir: Write, what: what})
		}
	}

	return events, nil
}

// interruptAll reports [Interrupted] for every direction of every
// registered interest: an EINTR-class wakeup of the wait resolves each
// pending slot, and the caller may resubscribe.
func (w *fdwatcher) interruptAll() []fdevent {
	var events []fdevent
	for raw, mask := range w.interest {
		if mask&unix.EPOLLIN != 0 {
			events = append(events, fdevent{raw: raw, dir: Read, what: Interrupted})
		}
		if mask&unix.EPOLLOUT != 0 {
			events = append(events, fdevent{raw: raw, dir: Write, what: Interrupted})
		}
	}
	return events
}

func (w *fdwatcher) drainWakeups() {
	var buf [64]byte
	for {
		n, err := unix.Read(w.wakeR, buf[:])
		if n < len(buf) || err != nil {
			return
		}
	}
}

// wake interrupts a blocked poll. It is safe for concurrent use; a full
// pipe means a wakeup is already pending, which is all a wakeup means.
func (w *fdwatcher) wake() {
	var one = [1]byte{1}
	unix.Write(w.wakeW, one[:])
}

func (w *fdwatcher) close() {
	unix.Close(w.wakeR)
	unix.Close(w.wakeW)
	unix.Close(w.epfd)
}
