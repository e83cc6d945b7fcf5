// Package queue implements the scheduler's queue triad: the active queue
// (a comparator-ordered set supporting push/try-pop/try-remove) and the
// backoff/unschedulable queues (time-ordered release sets with O(log n)
// removal by id).
package queue

import (
	"container/heap"

	"github.com/vpsie/cluster-simulator/internal/simtype"
)

// Less is a total order over pod ids: it must never report both a<b and
// b<a, and must be transitive, so tie-breaking stays deterministic.
type Less func(a, b simtype.PodID) bool

// ByID orders pods by their raw id ascending.
func ByID(a, b simtype.PodID) bool { return a < b }

// ByPriorityThenID orders pods by priority descending, then id ascending,
// matching spec.md's default "highest priority first" comparator. It
// needs a priority lookup since Less only sees ids.
func ByPriorityThenID(priorityOf func(simtype.PodID) int64) Less {
	return func(a, b simtype.PodID) bool {
		pa, pb := priorityOf(a), priorityOf(b)
		if pa != pb {
			return pa > pb
		}
		return a < b
	}
}

// Active is the scheduler's active queue: a comparator-ordered set.
type Active struct {
	less Less
	heap activeHeap
	pos  map[simtype.PodID]int
}

// NewActive constructs an empty active queue ordered by less.
func NewActive(less Less) *Active {
	a := &Active{less: less, pos: map[simtype.PodID]int{}}
	a.heap.pos = a.pos
	return a
}

// Push inserts a pod id. Pushing an id already present is a no-op.
func (a *Active) Push(id simtype.PodID) {
	if _, ok := a.pos[id]; ok {
		return
	}
	entry := &activeEntry{id: id}
	heap.Push(&a.heap, entry)
	a.pos[id] = entry.index
	a.heap.less = a.less
}

// TryPop removes and returns the highest-priority id, or false if empty.
func (a *Active) TryPop() (simtype.PodID, bool) {
	if a.heap.Len() == 0 {
		return 0, false
	}
	a.heap.less = a.less
	entry := heap.Pop(&a.heap).(*activeEntry)
	delete(a.pos, entry.id)
	return entry.id, true
}

// TryRemove removes id if present, reporting whether it was present.
func (a *Active) TryRemove(id simtype.PodID) bool {
	idx, ok := a.pos[id]
	if !ok {
		return false
	}
	a.heap.less = a.less
	heap.Remove(&a.heap, idx)
	delete(a.pos, id)
	return true
}

// Contains reports whether id is currently queued.
func (a *Active) Contains(id simtype.PodID) bool {
	_, ok := a.pos[id]
	return ok
}

// Len returns the number of queued ids.
func (a *Active) Len() int { return a.heap.Len() }

type activeEntry struct {
	id    simtype.PodID
	index int
}

type activeHeap struct {
	entries []*activeEntry
	less    Less
	pos     map[simtype.PodID]int
}

func (h *activeHeap) Len() int { return len(h.entries) }
func (h *activeHeap) Less(i, j int) bool {
	return h.less(h.entries[i].id, h.entries[j].id)
}
func (h *activeHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.entries[i].index = i
	h.entries[j].index = j
	h.pos[h.entries[i].id] = i
	h.pos[h.entries[j].id] = j
}
func (h *activeHeap) Push(x interface{}) {
	e := x.(*activeEntry)
	e.index = len(h.entries)
	h.entries = append(h.entries, e)
}
func (h *activeHeap) Pop() interface{} {
	old := h.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	h.entries = old[:n-1]
	return e
}
