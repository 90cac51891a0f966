package async_test

import (
	"errors"
	"fmt"
	"sync"

	"github.com/quietloop/async"
)

func Example() {
	// Create a scheduler.
	var sched async.Scheduler

	// Set up an autorun function to drain the ready queue automatically
	// whenever a job is spawned.
	// The best practice is to pass a function that does not block. See Example (NonBlocking).
	sched.Autorun(sched.Run)

	sched.Spawn(func() {
		// Deferreds compose before any value exists.
		d := async.Bind(async.Return(6), func(x int) async.Deferred[int] {
			return async.Return(x + 1)
		})

		async.Map(d, func(x int) int { return x * 6 }).Upon(func(v int) {
			fmt.Println("answer =", v)
		})
	})

	// Output:
	// answer = 42
}

// This example demonstrates how to hand results from a goroutine back to
// the runtime: Spawn is safe for concurrent use; everything else must
// happen inside jobs.
func Example_nonBlocking() {
	var wg sync.WaitGroup // For keeping track of goroutines.

	var sched async.Scheduler

	sched.Autorun(sched.Run)

	iv := async.NewIvar[string]()

	sched.Spawn(func() {
		iv.Read().Upon(func(v string) {
			fmt.Println("received:", v)
		})
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		// Blocking work happens out here; only the fill goes back in.
		sched.Spawn(func() { iv.Fill("hello") })
	}()

	wg.Wait()

	// Output:
	// received: hello
}

func Example_tryWith() {
	var sched async.Scheduler

	sched.Autorun(sched.Run)

	errNope := errors.New("nope")

	sched.Spawn(func() {
		async.TryWith(func() async.Deferred[int] {
			panic(errNope)
		}).Upon(func(r async.Result[int]) {
			fmt.Println("captured:", errors.Is(r.Err, errNope))
		})
	})

	// Output:
	// captured: true
}

func Example_choice() {
	var sched async.Scheduler

	sched.Autorun(sched.Run)

	fast, slow := async.NewIvar[string](), async.NewIvar[string]()

	sched.Spawn(func() {
		async.Choice(fast.Read(), slow.Read()).Upon(func(v string) {
			fmt.Println("winner:", v)
		})
	})

	sched.Spawn(func() { fast.Fill("fast") })
	sched.Spawn(func() { slow.Fill("slow") })

	// Output:
	// winner: fast
}

func Example_sequential() {
	var sched async.Scheduler

	sched.Autorun(sched.Run)

	sched.Spawn(func() {
		async.IterSlice(async.Sequential, []int{1, 2, 3}, func(v int) async.Deferred[async.Unit] {
			fmt.Println("step", v)
			return async.Return(async.Unit{})
		})
	})

	// Output:
	// step 1
	// step 2
	// step 3
}
