package kubelet

import (
	"container/heap"

	"github.com/vpsie/cluster-simulator/internal/simtype"
)

// EvictionOrder is the node agent's eviction priority set, grounded on
// kuber_sim/src/kubelet/eviction.rs: pods split into a primary group
// (BestEffort, or any pod currently using more memory than it requested)
// and a secondary group (everyone else), each ordered by priority
// ascending, then — primary only — by how far over its memory request the
// pod currently runs (most-over-request first), then by pod id descending
// so that among equally bad candidates the most recently admitted pod is
// evicted first. First always drains the primary group before touching
// the secondary one.
type EvictionOrder struct {
	primary   primaryHeap
	primPos   map[simtype.PodID]int
	secondary secondaryHeap
	secPos    map[simtype.PodID]int
}

// NewEvictionOrder returns an empty eviction order.
func NewEvictionOrder() *EvictionOrder {
	e := &EvictionOrder{primPos: map[simtype.PodID]int{}, secPos: map[simtype.PodID]int{}}
	e.primary.pos = e.primPos
	e.secondary.pos = e.secPos
	return e
}

func isPrimary(pod *simtype.Pod, usedMemory int64) bool {
	return pod.Status.QoSClass == simtype.QoSBestEffort || pod.Spec.Request.Memory-usedMemory < 0
}

// Add records pod as currently running with usedMemory bytes of memory.
func (e *EvictionOrder) Add(pod *simtype.Pod, usedMemory int64) {
	if isPrimary(pod, usedMemory) {
		heap.Push(&e.primary, &primaryEntry{
			priority: pod.Spec.Priority,
			deficit:  pod.Spec.Request.Memory - usedMemory,
			id:       pod.ID,
		})
		return
	}
	heap.Push(&e.secondary, &secondaryEntry{priority: pod.Spec.Priority, id: pod.ID})
}

// Remove deletes pod's entry. usedMemory must be the same value last
// passed to Add for this pod, since it determines which group (and which
// key within that group) the entry was filed under.
func (e *EvictionOrder) Remove(pod *simtype.Pod, usedMemory int64) {
	if isPrimary(pod, usedMemory) {
		if idx, ok := e.primPos[pod.ID]; ok {
			heap.Remove(&e.primary, idx)
		}
		return
	}
	if idx, ok := e.secPos[pod.ID]; ok {
		heap.Remove(&e.secondary, idx)
	}
}

// First returns the next pod to evict, preferring the primary group.
func (e *EvictionOrder) First() (simtype.PodID, bool) {
	if e.primary.Len() > 0 {
		return e.primary.entries[0].id, true
	}
	if e.secondary.Len() > 0 {
		return e.secondary.entries[0].id, true
	}
	return 0, false
}

// Len returns the total number of tracked pods.
func (e *EvictionOrder) Len() int { return e.primary.Len() + e.secondary.Len() }

// IsEmpty reports whether no pod is tracked.
func (e *EvictionOrder) IsEmpty() bool { return e.Len() == 0 }

// Clear removes every tracked entry.
func (e *EvictionOrder) Clear() {
	e.primary = primaryHeap{pos: e.primPos}
	e.secondary = secondaryHeap{pos: e.secPos}
	for k := range e.primPos {
		delete(e.primPos, k)
	}
	for k := range e.secPos {
		delete(e.secPos, k)
	}
}

type primaryEntry struct {
	priority int64
	deficit  int64 // request - used; more negative means further over-request
	id       simtype.PodID
	index    int
}

type primaryHeap struct {
	entries []*primaryEntry
	pos     map[simtype.PodID]int
}

func (h primaryHeap) Len() int { return len(h.entries) }
func (h primaryHeap) Less(i, j int) bool {
	a, b := h.entries[i], h.entries[j]
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	if a.deficit != b.deficit {
		return a.deficit < b.deficit
	}
	return a.id > b.id
}
func (h primaryHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.entries[i].index = i
	h.entries[j].index = j
	h.pos[h.entries[i].id] = i
	h.pos[h.entries[j].id] = j
}
func (h *primaryHeap) Push(x interface{}) {
	e := x.(*primaryEntry)
	e.index = len(h.entries)
	h.entries = append(h.entries, e)
	h.pos[e.id] = e.index
}
func (h *primaryHeap) Pop() interface{} {
	old := h.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	h.entries = old[:n-1]
	delete(h.pos, e.id)
	return e
}
type secondaryEntry struct {
	priority int64
	id       simtype.PodID
	index    int
}

type secondaryHeap struct {
	entries []*secondaryEntry
	pos     map[simtype.PodID]int
}

func (h secondaryHeap) Len() int { return len(h.entries) }
func (h secondaryHeap) Less(i, j int) bool {
	a, b := h.entries[i], h.entries[j]
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.id > b.id
}
func (h secondaryHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.entries[i].index = i
	h.entries[j].index = j
	h.pos[h.entries[i].id] = i
	h.pos[h.entries[j].id] = j
}
func (h *secondaryHeap) Push(x interface{}) {
	e := x.(*secondaryEntry)
	e.index = len(h.entries)
	h.entries = append(h.entries, e)
	h.pos[e.id] = e.index
}
func (h *secondaryHeap) Pop() interface{} {
	old := h.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	h.entries = old[:n-1]
	delete(h.pos, e.id)
	return e
}
