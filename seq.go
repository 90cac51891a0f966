package async

// How selects the evaluation strategy of the slice combinators: Sequential
// starts each element's callback only after the previous element's deferred
// has determined; Parallel starts all callbacks immediately and gathers the
// results. Output order equals input order either way.
type How int

const (
	Sequential How = iota
	Parallel
)

// Option is an optional value, used by [FilterMapSlice] to let the callback
// both transform and drop elements.
type Option[T any] struct {
	Value T
	Ok    bool
}

// Some returns an Option holding v.
func Some[T any](v T) Option[T] {
	return Option[T]{Value: v, Ok: true}
}

// None returns an empty Option.
func None[T any]() Option[T] {
	return Option[T]{}
}

// IterSlice applies f to each element of xs and returns a deferred that
// determines once every f has completed.
func IterSlice[T any](how How, xs []T, f func(T) Deferred[Unit]) Deferred[Unit] {
	if how == Parallel {
		ds := make([]Deferred[Unit], len(xs))
		for i, x := range xs {
			ds[i] = f(x)
		}
		return AllUnit(ds)
	}
	r := NewIvar[Unit]()
	m := Current()
	var step func(int)
	step = func(i int) {
		if i == len(xs) {
			r.Fill(Unit{})
			return
		}
		f(xs[i]).upon(m, func(Unit) { step(i + 1) })
	}
	step(0)
	return r.Read()
}

// MapSlice applies f to each element of xs and returns a deferred holding
// the results in input order.
func MapSlice[T, U any](how How, xs []T, f func(T) Deferred[U]) Deferred[[]U] {
	if how == Parallel {
		ds := make([]Deferred[U], len(xs))
		for i, x := range xs {
			ds[i] = f(x)
		}
		return All(ds)
	}
	out := make([]U, len(xs))
	r := NewIvar[[]U]()
	m := Current()
	var step func(int)
	step = func(i int) {
		if i == len(xs) {
			r.Fill(out)
			return
		}
		f(xs[i]).upon(m, func(v U) {
			out[i] = v
			step(i + 1)
		})
	}
	step(0)
	return r.Read()
}

// FilterSlice keeps the elements of xs for which f determines true,
// preserving input order.
func FilterSlice[T any](how How, xs []T, f func(T) Deferred[bool]) Deferred[[]T] {
	return Map(MapSlice(how, xs, f), func(keep []bool) []T {
		out := make([]T, 0, len(xs))
		for i, k := range keep {
			if k {
				out = append(out, xs[i])
			}
		}
		return out
	})
}

// FilterMapSlice applies f to each element of xs, keeping the values of the
// non-empty Options in input order.
func FilterMapSlice[T, U any](how How, xs []T, f func(T) Deferred[Option[U]]) Deferred[[]U] {
	return Map(MapSlice(how, xs, f), func(opts []Option[U]) []U {
		out := make([]U, 0, len(opts))
		for _, o := range opts {
			if o.Ok {
				out = append(out, o.Value)
			}
		}
		return out
	})
}

// FoldSlice threads an accumulator through xs left to right. Folding is
// inherently sequential: each step's deferred must determine before the next
// step sees the accumulator.
func FoldSlice[T, A any](xs []T, init A, f func(A, T) Deferred[A]) Deferred[A] {
	r := NewIvar[A]()
	m := Current()
	var step func(int, A)
	step = func(i int, acc A) {
		if i == len(xs) {
			r.Fill(acc)
			return
		}
		f(acc, xs[i]).upon(m, func(a A) { step(i+1, a) })
	}
	step(0, init)
	return r.Read()
}
