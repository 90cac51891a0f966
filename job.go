package async

import "github.com/eapache/queue"

// A job is one unit of cooperative work: a thunk paired with the [Monitor]
// that was current when the work was subscribed. Each job runs to completion
// before the next begins.
type job struct {
	m     *Monitor
	thunk func()
}

// jobqueue is the scheduler's FIFO of ready jobs, backed by a ring buffer.
type jobqueue struct {
	q *queue.Queue
}

func (jq *jobqueue) push(j job) {
	if jq.q == nil {
		jq.q = queue.New()
	}
	jq.q.Add(j)
}

func (jq *jobqueue) pop() job {
	return jq.q.Remove().(job)
}

func (jq *jobqueue) length() int {
	if jq.q == nil {
		return 0
	}
	return jq.q.Length()
}

// enqueue places (m, thunk) on m's scheduler queue. It is the single entry
// point every fill, timer, and readiness event funnels through.
func enqueue(m *Monitor, thunk func()) {
	m.sched.enqueue(job{m: m, thunk: thunk})
}
