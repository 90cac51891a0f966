package async

import "runtime/debug"

// A Monitor is a node in a dynamically scoped error-handler tree.
//
// Every job runs "within" some monitor: the one that was current when its
// callback was subscribed. When a job panics, the panic is delivered to that
// monitor; a monitor without a handler of its own passes the error to its
// parent. The root monitor of a [Scheduler] has no parent — an error that
// reaches it unhandled is printed and the scheduler shuts down with a
// nonzero status.
//
// Monitors exist because control-flow scoping does not survive an
// [Deferred.Upon] boundary: by the time a subscribed callback runs, the
// stack frame that subscribed it is long gone, so recover() placed there
// catches nothing. The monitor recorded at subscription time is the handler
// scope that does survive.
type Monitor struct {
	sched    *Scheduler
	parent   *Monitor
	handler  func(error)
	children []*Monitor
	name     string
	detached bool
}

// Name returns the name m was created with.
func (m *Monitor) Name() string {
	return m.name
}

// Parent returns m's parent monitor, or nil for a root monitor.
func (m *Monitor) Parent() *Monitor {
	return m.parent
}

// NewMonitor creates a child of the current monitor. Errors delivered to the
// child and not handled there propagate to the current monitor and onward.
func NewMonitor(name string) *Monitor {
	return Current().Child(name)
}

// Child creates a child monitor of m.
func (m *Monitor) Child(name string) *Monitor {
	c := &Monitor{sched: m.sched, parent: m, name: name}
	m.children = append(m.children, c)
	return c
}

// Detach disconnects m from its parent for handler lookup. Errors delivered
// to a detached monitor with no handler are treated as unhandled rather than
// walking up. The parent link itself is kept for debugging.
func (m *Monitor) Detach() {
	m.detached = true
}

// Spawn enqueues f to run as a job under m. Spawn is safe for concurrent
// use; it is the intended way to hand work to the scheduler from another
// goroutine.
func (m *Monitor) Spawn(f func()) {
	enqueue(m, f)
}

// Throw delivers v to m as if a job running within m had panicked with it.
//
// One should only call this method in a job.
func (m *Monitor) Throw(v any) {
	m.sched.deliver(m, &raised{value: v, stack: debug.Stack()})
}

// deliver routes err to the nearest handler at or above m. A handler that
// itself panics has its panic delivered to the next monitor up.
func (s *Scheduler) deliver(m *Monitor, err error) {
	for n := m; n != nil; {
		if h := n.handler; h != nil {
			if perr := guard(func() { h(err) }); perr != nil {
				if n.detached || n.parent == nil {
					s.unhandled(perr)
					return
				}
				s.deliver(n.parent, perr)
			}
			return
		}
		if n.detached {
			break
		}
		n = n.parent
	}
	s.unhandled(err)
}

// Result carries the outcome of a [TryWith] computation: either a value or
// the first error the computation raised.
type Result[T any] struct {
	Ok  T
	Err error
}

// TryWith installs a fresh child monitor of the current one, runs f within
// it, and returns a deferred that becomes Ok v when f's deferred determines,
// or Err e when the first exception is raised anywhere beneath the child
// monitor — including from callbacks subscribed during f that run long after
// TryWith itself returned.
//
// Only the first exception is captured. Later exceptions from the same
// computation, and exceptions raised after the result has already determined
// as Ok, route to the enclosing monitor.
func TryWith[T any](f func() Deferred[T]) Deferred[Result[T]] {
	parent := Current()
	m := parent.Child("try_with")
	res := NewIvar[Result[T]]()

	m.handler = func(err error) {
		if res.IsEmpty() {
			res.Fill(Result[T]{Err: err})
			return
		}
		if m.detached || parent == nil {
			m.sched.unhandled(err)
			return
		}
		m.sched.deliver(parent, err)
	}

	prev := current
	current = m
	var d Deferred[T]
	perr := guard(func() { d = f() })
	current = prev

	if perr != nil {
		m.sched.deliver(m, perr)
		return res.Read()
	}

	if v, ok := d.Peek(); ok {
		res.FillIfEmpty(Result[T]{Ok: v})
		return res.Read()
	}

	d.upon(m, func(v T) {
		res.FillIfEmpty(Result[T]{Ok: v})
	})

	return res.Read()
}
