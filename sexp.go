package async

import (
	"fmt"
	"strconv"
	"strings"
)

// Sexp is an atom-or-list symbolic tree, the rendering contract every
// runtime entity satisfies for diagnostics: atoms are strings, lists
// recursively contain atoms or lists. [Sexp.String] is the compact machine
// form; [Sexp.Indent] is the human form.
type Sexp struct {
	atom   string
	list   []Sexp
	isList bool
}

// Atom returns an atom.
func Atom(s string) Sexp {
	return Sexp{atom: s}
}

// List returns a list of the given items.
func List(items ...Sexp) Sexp {
	return Sexp{list: items, isList: true}
}

func (x Sexp) String() string {
	var b strings.Builder
	x.write(&b)
	return b.String()
}

func (x Sexp) write(b *strings.Builder) {
	if !x.isList {
		b.WriteString(x.atom)
		return
	}
	b.WriteByte('(')
	for i, item := range x.list {
		if i > 0 {
			b.WriteByte(' ')
		}
		item.write(b)
	}
	b.WriteByte(')')
}

// Indent renders x over multiple lines: lists containing only atoms stay on
// one line, lists containing sublists put each item on its own line,
// indented by two spaces per level, except that a leading atom stays on the
// line of the opening parenthesis.
func (x Sexp) Indent() string {
	var b strings.Builder
	x.indent(&b, 0)
	return b.String()
}

func (x Sexp) flat() bool {
	for _, item := range x.list {
		if item.isList {
			return false
		}
	}
	return true
}

func (x Sexp) indent(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	if !x.isList || x.flat() {
		x.write(b)
		return
	}
	b.WriteByte('(')
	for i, item := range x.list {
		if i == 0 && !item.isList {
			item.write(b)
			continue
		}
		b.WriteByte('\n')
		item.indent(b, depth+1)
	}
	b.WriteByte(')')
}

// Sexp renders iv as (Full value) or (Empty (subscribers n)).
func (iv *Ivar[T]) Sexp() Sexp {
	if v, ok := iv.Peek(); ok {
		return List(Atom("Full"), Atom(fmt.Sprint(v)))
	}
	return List(Atom("Empty"), List(Atom("subscribers"), Atom(strconv.Itoa(len(iv.subs)))))
}

// Sexp renders d like the Ivar backing it; a determined-form deferred
// renders as (Full value) and the zero deferred as (Empty never).
func (d Deferred[T]) Sexp() Sexp {
	if d.iv != nil {
		return d.iv.Sexp()
	}
	if d.ok {
		return List(Atom("Full"), Atom(fmt.Sprint(d.v)))
	}
	return List(Atom("Empty"), Atom("never"))
}

// Sexp renders m's name, handler presence, and children.
func (m *Monitor) Sexp() Sexp {
	items := []Sexp{
		Atom("monitor"),
		List(Atom("name"), Atom(m.name)),
	}
	if m.handler != nil {
		items = append(items, List(Atom("handler"), Atom("some")))
	}
	if m.detached {
		items = append(items, Atom("detached"))
	}
	if len(m.children) > 0 {
		kids := make([]Sexp, 0, len(m.children)+1)
		kids = append(kids, Atom("children"))
		for _, c := range m.children {
			kids = append(kids, c.Sexp())
		}
		items = append(items, List(kids...))
	}
	return List(items...)
}

// Sexp renders k as an atom or, for socket kinds, a list.
func (k Kind) Sexp() Sexp {
	switch k {
	case KindSocketUnconnected, KindSocketBound, KindSocketPassive, KindSocketActive:
		parts := strings.Fields(k.String())
		items := make([]Sexp, len(parts))
		for i, p := range parts {
			items[i] = Atom(p)
		}
		return List(items...)
	}
	return Atom(k.String())
}

func (st fdState) Sexp() Sexp {
	return Atom(st.String())
}

func readySlotSexp(iv *Ivar[ReadyResult]) Sexp {
	if iv == nil {
		return Atom("empty")
	}
	return iv.Sexp()
}

// Sexp renders fd's full record: name, raw descriptor, kind, state, counts,
// and both readiness slots.
func (fd *Fd) Sexp() Sexp {
	return List(
		Atom("fd"),
		List(Atom("name"), Atom(fd.name)),
		List(Atom("raw"), Atom(strconv.Itoa(fd.raw))),
		List(Atom("kind"), fd.kind.Sexp()),
		List(Atom("state"), fd.state.Sexp()),
		List(Atom("in_flight"), Atom(strconv.Itoa(fd.inflight))),
		List(Atom("close_finished"), fd.closeFinished.Sexp()),
		List(Atom("ready_to_read"), readySlotSexp(fd.ready[Read])),
		List(Atom("ready_to_write"), readySlotSexp(fd.ready[Write])),
	)
}

func (st shutdownState) Sexp() Sexp {
	if !st.engaged {
		return Atom("Not_shutting_down")
	}
	return List(Atom("Shutting_down"), Atom(strconv.Itoa(st.status)))
}

// Sexp renders s's top-level state: shutdown status, queue length, timer
// count, and the number of fds being watched.
func (s *Scheduler) Sexp() Sexp {
	s.mu.Lock()
	jobs := s.jobs.length()
	s.mu.Unlock()
	return List(
		Atom("scheduler"),
		List(Atom("shutdown"), s.shutdown.Sexp()),
		List(Atom("jobs"), Atom(strconv.Itoa(jobs))),
		List(Atom("timers"), Atom(strconv.Itoa(len(s.timers.head)+len(s.timers.tail)))),
		List(Atom("watched_fds"), Atom(strconv.Itoa(len(s.fds)))),
	)
}
