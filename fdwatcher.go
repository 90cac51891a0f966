package async

// fdevent is one readiness report from the platform watcher: a raw
// descriptor, the direction that resolved, and how.
type fdevent struct {
	raw  int
	dir  Direction
	what ReadyResult
}

// The fdwatcher is the platform-abstraction layer over the OS readiness
// multiplexer. Each platform file defines the same type with the same
// contract:
//
//	newFdwatcher() (*fdwatcher, error)
//	register(raw, dir) error      — add interest in one direction
//	unregister(raw, dir) error    — drop interest in one direction
//	poll(timeout) ([]fdevent, error)
//	wake()                        — interrupt a blocked poll; concurrency-safe
//
// poll blocks for at most timeout (negative blocks indefinitely) and
// translates OS-level readiness into fdevents: readable/writable become
// [Ready], an invalid descriptor becomes [BadFd], and an EINTR-class
// interruption of the wait becomes an [Interrupted] event for every
// registered interest — each pending slot resolves and clears, and the
// caller may resubscribe. Any other poll failure is fatal: the scheduler
// prints it and shuts down with a nonzero status.
//
// wake is implemented with a self-pipe registered for reading inside the
// watcher; poll drains and swallows it, so wakeups never surface as events.
