package async

// Unit is the value of deferreds that signal completion without carrying
// data, such as those returned by [Scheduler.After] and [Fd.Close].
type Unit = struct{}

// A Deferred is the read side of a value that may not exist yet.
//
// A Deferred is obtained either from [Ivar.Read], in which case it
// determines when the Ivar is filled, or from [Return], in which case it is
// determined from birth. The zero Deferred never determines; [Never] returns
// it by name.
//
// A Deferred must not be shared by more than one [Scheduler], since its
// subscriber callbacks are dispatched as jobs on whichever scheduler a
// subscribing [Monitor] belongs to.
type Deferred[T any] struct {
	iv *Ivar[T]

	// Determined-form: a deferred born with its value needs no cell.
	v  T
	ok bool
}

// Return returns a deferred that is already determined, holding v.
func Return[T any](v T) Deferred[T] {
	return Deferred[T]{v: v, ok: true}
}

// Never returns a deferred that never determines.
func Never[T any]() Deferred[T] {
	return Deferred[T]{}
}

// Peek returns d's value and true if d is determined, or the zero value and
// false otherwise.
func (d Deferred[T]) Peek() (v T, ok bool) {
	if d.ok {
		return d.v, true
	}
	if d.iv != nil {
		return d.iv.Peek()
	}
	return v, false
}

// IsDetermined reports whether d holds a value.
func (d Deferred[T]) IsDetermined() bool {
	_, ok := d.Peek()
	return ok
}

// Upon registers f to run once d determines, as a job under the current
// monitor. If d is already determined, f still runs in its own job frame
// rather than synchronously.
func (d Deferred[T]) Upon(f func(T)) {
	d.upon(Current(), f)
}

func (d Deferred[T]) upon(m *Monitor, f func(T)) {
	if d.ok {
		v := d.v
		enqueue(m, func() { f(v) })
		return
	}
	if d.iv != nil {
		d.iv.upon(m, f)
	}
	// The zero Deferred: no cell, no value, nothing will ever call f.
}

// Bind chains f onto d: the result determines with the value of f(v) once d
// determines with v. If d is already determined, f runs synchronously and
// its result is returned directly, with no intermediate cell.
func Bind[T, U any](d Deferred[T], f func(T) Deferred[U]) Deferred[U] {
	if v, ok := d.Peek(); ok {
		return f(v)
	}
	r := NewIvar[U]()
	m := Current()
	d.upon(m, func(v T) {
		f(v).upon(m, r.Fill)
	})
	return r.Read()
}

// Map is [Bind] for a plain function: the result determines with f(v) once
// d determines with v.
func Map[T, U any](d Deferred[T], f func(T) U) Deferred[U] {
	return Bind(d, func(v T) Deferred[U] { return Return(f(v)) })
}

// All returns a deferred that determines once every element of ds has, with
// the values in input order.
func All[T any](ds []Deferred[T]) Deferred[[]T] {
	if len(ds) == 0 {
		return Return([]T{})
	}
	out := make([]T, len(ds))
	left := len(ds)
	r := NewIvar[[]T]()
	m := Current()
	for i, d := range ds {
		i := i
		d.upon(m, func(v T) {
			out[i] = v
			left--
			if left == 0 {
				r.Fill(out)
			}
		})
	}
	return r.Read()
}

// AllUnit is [All] without the values: it determines once every element of
// ds has.
func AllUnit(ds []Deferred[Unit]) Deferred[Unit] {
	if len(ds) == 0 {
		return Return(Unit{})
	}
	left := len(ds)
	r := NewIvar[Unit]()
	m := Current()
	for _, d := range ds {
		d.upon(m, func(Unit) {
			left--
			if left == 0 {
				r.Fill(Unit{})
			}
		})
	}
	return r.Read()
}

// Choice returns a deferred that determines with the value of the first
// element of ds to determine.
//
// The losing subscriptions are left in place: nothing is cancelled, and a
// losing branch that holds a resource keeps holding it until the caller
// releases it explicitly. Choice over unbounded never-determining deferreds
// therefore accumulates subscribers.
func Choice[T any](ds ...Deferred[T]) Deferred[T] {
	r := NewIvar[T]()
	m := Current()
	for _, d := range ds {
		d.upon(m, r.FillIfEmpty)
	}
	return r.Read()
}

// A Choosable is one arm of a [Choose]: a deferred of some type paired with
// a conversion into the common result type. Build one with [When].
type Choosable[T any] struct {
	subscribe func(m *Monitor, r *Ivar[T])
}

// When builds a [Choosable] arm from d and a conversion f. f is applied only
// if this arm wins the choice.
func When[A, T any](d Deferred[A], f func(A) T) Choosable[T] {
	return Choosable[T]{
		subscribe: func(m *Monitor, r *Ivar[T]) {
			d.upon(m, func(v A) {
				if r.IsEmpty() {
					r.Fill(f(v))
				}
			})
		},
	}
}

// Choose is [Choice] over arms of differing types: the result determines
// with the converted value of the first arm whose deferred determines. Like
// Choice, losing arms are not cancelled.
func Choose[T any](arms ...Choosable[T]) Deferred[T] {
	r := NewIvar[T]()
	m := Current()
	for _, a := range arms {
		a.subscribe(m, r)
	}
	return r.Read()
}
