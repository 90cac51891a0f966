package async_test

import (
	"testing"

	"github.com/quietloop/async"
)

func TestLazy(t *testing.T) {
	t.Run("ComputesOnce", func(t *testing.T) {
		var s async.Scheduler

		runs := 0
		iv := async.NewIvar[int]()

		l := async.NewLazy(func() async.Deferred[int] {
			runs++
			return iv.Read()
		})

		if runs != 0 {
			t.Fatal("computed before Force")
		}

		var got []int

		s.Spawn(func() {
			l.Force().Upon(func(v int) { got = append(got, v) })
			l.Force().Upon(func(v int) { got = append(got, v) })
		})
		s.Run()

		s.Spawn(func() { iv.Fill(7) })
		s.Run()

		if runs != 1 {
			t.Errorf("computed %d times, want 1", runs)
		}
		if len(got) != 2 || got[0] != 7 || got[1] != 7 {
			t.Errorf("got %v, want [7 7]", got)
		}
	})

	t.Run("PeekBeforeForce", func(t *testing.T) {
		l := async.NewLazy(func() async.Deferred[int] { return async.Return(1) })

		if _, ok := l.Peek(); ok {
			t.Error("Peek determined before Force")
		}
	})
}
