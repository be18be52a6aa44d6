package formula

import "strings"

type state int

const (
	inProgress state = iota
	resolved
	absent
)

type entry struct {
	state  state
	result *Result
}

// Namespace tracks labels seen during one top-level resolution.
// 한 번의 Resolve 호출 안에서만 쓰이며 goroutine 간에 공유하지 않는다.
type Namespace struct {
	entries map[string]entry
	fresh   bool
}

func newNamespace(fresh bool) *Namespace {
	return &Namespace{entries: make(map[string]entry), fresh: fresh}
}

func (n *Namespace) lookup(label string) (entry, bool) {
	e, ok := n.entries[strings.ToLower(label)]
	return e, ok
}

func (n *Namespace) begin(label string) {
	n.entries[strings.ToLower(label)] = entry{state: inProgress}
}

func (n *Namespace) finish(label string, r *Result) {
	e := entry{state: absent}
	if r != nil {
		e = entry{state: resolved, result: r}
	}
	n.entries[strings.ToLower(label)] = e
}
