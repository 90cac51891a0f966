package async

import "sync"

// The process-wide default [Scheduler]. Most programs have exactly one
// scheduler; Default creates it lazily on first use. Tests and embedders
// that want isolation can create their own Scheduler values instead — the
// zero value is ready to use.
var (
	defaultOnce  sync.Once
	defaultSched *Scheduler
)

// Default returns the process-wide [Scheduler], creating it on first call.
func Default() *Scheduler {
	defaultOnce.Do(func() {
		defaultSched = new(Scheduler)
	})
	return defaultSched
}

// current is the monitor of the job executing right now, or nil when no job
// is running. It is a plain package variable, not a per-goroutine value: the
// runtime is single-threaded by design, and every job of every scheduler
// runs on the goroutine that called [Scheduler.Run] or [Scheduler.Loop].
var current *Monitor

// Current returns the [Monitor] of the job executing right now. Outside of
// any job it returns the root monitor of the [Default] scheduler, so that
// top-level setup code subscribing to deferreds still records a meaningful
// handler scope.
func Current() *Monitor {
	if current != nil {
		return current
	}
	return Default().rootMonitor()
}
