//go:build unix && !linux

package async

import (
	"time"

	"golang.org/x/sys/unix"
)

// The non-Linux Unix fdwatcher wraps poll(2). The pollfd set is rebuilt from
// the interest map on every call; interest is per-direction, and the Fd
// layer unregisters as soon as a slot resolves.
type fdwatcher struct {
	wakeR    int
	wakeW    int
	interest map[int]int16
}

func newFdwatcher() (*fdwatcher, error) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return nil, err
	}
	for _, fd := range p {
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(p[0])
			unix.Close(p[1])
			return nil, err
		}
	}
	return &fdwatcher{
		wakeR:    p[0],
		wakeW:    p[1],
		interest: make(map[int]int16),
	}, nil
}

func dirbit(dir Direction) int16 {
	if dir == Read {
		return unix.POLLIN
	}
	return unix.POLLOUT
}

func (w *fdwatcher) register(raw int, dir Direction) error {
	w.interest[raw] |= dirbit(dir)
	return nil
}

func (w *fdwatcher) unregister(raw int, dir Direction) error {
	mask := w.interest[raw] &^ dirbit(dir)
	if mask == 0 {
		delete(w.interest, raw)
	} else {
		w.interest[raw] = mask
	}
	return nil
}

func (w *fdwatcher) poll(timeout time.Duration) ([]fdevent, error) {
	msec := -1
	if timeout >= 0 {
		// Round up so a sub-millisecond timer wait does not spin.
		msec = int((timeout + time.Millisecond - 1) / time.Millisecond)
	}

	pollfds := make([]unix.PollFd, 0, len(w.interest)+1)
	pollfds = append(pollfds, unix.PollFd{Fd: int32(w.wakeR), Events: unix.POLLIN})
	for raw, mask := range w.interest {
		pollfds = append(pollfds, unix.PollFd{Fd: int32(raw), Events: mask})
	}

	n, err := unix.Poll(pollfds, msec)
	if err == unix.EINTR {
		return w.interruptAll(), nil
	}
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	var events []fdevent

	for i, pfd := range pollfds {
		if pfd.Revents == 0 {
			continue
		}
		if i == 0 {
			w.drainWakeups()
			continue
		}

		raw := int(pfd.Fd)
		what := Ready
		if pfd.Revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
			what = BadFd
		}

		if pfd.Events&unix.POLLIN != 0 && pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
			events = append(events, fdevent{raw: raw, dir: Read, what: what})
		}
		if pfd.Events&unix.POLLOUT != 0 && pfd.Revents&(unix.POLLOUT|unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
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
		if mask&unix.POLLIN != 0 {
			events = append(events, fdevent{raw: raw, dir: Read, what: Interrupted})
		}
		if mask&unix.POLLOUT != 0 {
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
}
