package async

import "time"

// A timerEntry is a pending time-triggered job: an ivar to fill once the
// trigger time arrives. Entries with equal trigger times compare by a
// monotonically increasing sequence number, so ties fire in insertion order.
type timerEntry struct {
	when time.Time
	seq  uint64
	iv   *Ivar[Unit]
}

func (e timerEntry) less(other timerEntry) bool {
	if !e.when.Equal(other.when) {
		return e.when.Before(other.when)
	}
	return e.seq < other.seq
}

// After returns a deferred that determines once d has elapsed.
//
// One should only call this method in a job.
func (s *Scheduler) After(d time.Duration) Deferred[Unit] {
	return s.At(s.clockNow().Add(d))
}

// At returns a deferred that determines once time t has arrived. A time in
// the past fires on the next pass of the loop.
//
// One should only call this method in a job.
func (s *Scheduler) At(t time.Time) Deferred[Unit] {
	iv := NewIvar[Unit]()
	s.timerseq++
	s.timers.Push(timerEntry{when: t, seq: s.timerseq, iv: iv})
	return iv.Read()
}

// Every calls f once per period d, under the monitor current at the time of
// the Every call. The next tick is scheduled only after f returns normally;
// if f panics, the panic routes to the monitor and the ticking stops.
//
// One should only call this method in a job.
func (s *Scheduler) Every(d time.Duration, f func()) {
	m := Current()
	var tick func(Unit)
	tick = func(Unit) {
		f()
		s.After(d).upon(m, tick)
	}
	s.After(d).upon(m, tick)
}

// fireTimers fills the ivar of every timer entry whose trigger time is at or
// before now, in trigger order.
func (s *Scheduler) fireTimers(now time.Time) {
	for !s.timers.Empty() && !s.timers.Min().when.After(now) {
		e := s.timers.Pop()
		e.iv.Fill(Unit{})
	}
}
