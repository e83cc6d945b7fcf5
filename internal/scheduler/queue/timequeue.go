package queue

import (
	"container/heap"

	"github.com/vpsie/cluster-simulator/internal/simtype"
)

// TimeQueue is a release-time-ordered set used for both the backoff and
// unschedulable queues: entries become eligible to drain into the active
// queue once the simulated clock reaches their release time. A secondary
// map gives O(log n) TryRemove by id.
type TimeQueue struct {
	heap timeHeap
	pos  map[simtype.PodID]int
}

// NewTimeQueue constructs an empty time queue.
func NewTimeQueue() *TimeQueue {
	q := &TimeQueue{pos: map[simtype.PodID]int{}}
	q.heap.pos = q.pos
	return q
}

// Push inserts id with the given release time. Pushing an id already
// present replaces its release time.
func (q *TimeQueue) Push(id simtype.PodID, releaseAt float64) {
	if idx, ok := q.pos[id]; ok {
		q.heap.entries[idx].releaseAt = releaseAt
		heap.Fix(&q.heap, idx)
		return
	}
	e := &timeEntry{id: id, releaseAt: releaseAt}
	heap.Push(&q.heap, e)
}

// TryRemove removes id if present, reporting whether it was present.
func (q *TimeQueue) TryRemove(id simtype.PodID) bool {
	idx, ok := q.pos[id]
	if !ok {
		return false
	}
	heap.Remove(&q.heap, idx)
	delete(q.pos, id)
	return true
}

// Contains reports whether id is currently queued.
func (q *TimeQueue) Contains(id simtype.PodID) bool {
	_, ok := q.pos[id]
	return ok
}

// Len returns the number of queued ids.
func (q *TimeQueue) Len() int { return q.heap.Len() }

// DrainReady removes and returns, in release-time order, every id whose
// release time is <= now.
func (q *TimeQueue) DrainReady(now float64) []simtype.PodID {
	var ready []simtype.PodID
	for q.heap.Len() > 0 && q.heap.entries[0].releaseAt <= now {
		e := heap.Pop(&q.heap).(*timeEntry)
		delete(q.pos, e.id)
		ready = append(ready, e.id)
	}
	return ready
}

type timeEntry struct {
	id        simtype.PodID
	releaseAt float64
	index     int
}

type timeHeap struct {
	entries []*timeEntry
	pos     map[simtype.PodID]int
}

func (h *timeHeap) Len() int { return len(h.entries) }
func (h *timeHeap) Less(i, j int) bool {
	return h.entries[i].releaseAt < h.entries[j].releaseAt
}
func (h *timeHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.entries[i].index = i
	h.entries[j].index = j
	h.pos[h.entries[i].id] = i
	h.pos[h.entries[j].id] = j
}
func (h *timeHeap) Push(x interface{}) {
	e := x.(*timeEntry)
	e.index = len(h.entries)
	h.entries = append(h.entries, e)
	h.pos[e.id] = e.index
}
func (h *timeHeap) Pop() interface{} {
	old := h.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	h.entries = old[:n-1]
	return e
}
