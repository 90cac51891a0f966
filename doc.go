// Package async implements a cooperative, single-threaded concurrency
// runtime: write-once "eventually available value" cells (Ivar, Deferred)
// composed through monadic combinators, driven by a Scheduler event loop
// that also owns timers and readiness-based file descriptor I/O.
//
// # Use Case #1: Composing Asynchronous Results Without Callbacks-On-Callbacks
//
// A [Deferred] is a read handle over a value that may not exist yet. Unlike
// a plain callback, Deferreds compose: [Bind] and [Map] chain computations
// that themselves return Deferreds, and [All] or [Choice] gather several
// into one. Every combinator dispatches its continuations through a
// [Monitor], so nested subscriptions still propagate errors to the right
// handler no matter how many async boundaries separate them from the code
// that subscribed.
//
// # Use Case #2: One Thread, No Locks
//
// A [Scheduler] owns exactly one goroutine's worth of cooperative work.
// [Ivar] and [Fd] mutate freely without synchronization because the
// scheduler guarantees only one job ever runs at a time; the cost is that a
// blocking job blocks everything else queued behind it. The best practice
// is not to block — reach for [Scheduler.After] and [Fd.ReadyTo] instead of
// a synchronous sleep or a blocking read.
//
// # Use Case #3: Structured Error Propagation
//
// A [Monitor] is a node in a dynamically scoped error-handler tree. Plain
// control-flow scoping (try/catch) does not survive an `Upon` boundary — by
// the time a subscribed callback runs, the stack frame that subscribed it is
// long gone. [TryWith] installs a fresh child Monitor and turns the first
// exception raised beneath it into an ordinary [Deferred] value instead of
// an unhandled panic; monitors left unhandled walk up to their parent, and
// the root monitor terminates the process.
//
// # Spawning Async Work vs. Blocking Calls
//
// It's not recommended to perform a blocking syscall or channel receive
// inside a job. For a [Scheduler], if one job blocks, no other job can run.
// Instead, wrap blocking I/O behind an [Fd] and await its readiness, or hand
// the blocking call to a goroutine and have it [Scheduler.Spawn] a job that
// fills an [Ivar] — Spawn (on a Scheduler or a [Monitor]) is the only entry
// point that is safe for concurrent use.
//
// # Fd Lifecycle
//
// [Fd] wraps a raw OS descriptor with a small state machine (Open,
// Close_requested, Closed, Replaced) plus an in-flight-syscall counter, so
// that closing a descriptor while a readiness subscription is outstanding
// is well-defined: the subscriber is woken with Closed instead of left
// hanging, and the underlying OS close happens exactly once, after every
// in-flight syscall using that descriptor has finished.
//
// # No Cancellation, By Design
//
// There is no generic cancellation primitive. [Choice] does not tear down
// its losing branches — if a losing branch holds a resource, the caller
// must close it explicitly. Cooperative cancellation is cheap to fake
// (close the fd, fill the ivar) and expensive to build generically without
// giving up the simplicity of the core loop.
package async
