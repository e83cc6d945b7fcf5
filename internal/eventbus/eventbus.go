// Package eventbus implements the ordered-delivery event primitive the
// rest of the simulation core is built on: a single logical thread pops
// the earliest scheduled event and dispatches it to its target's
// registered handler. Events scheduled for the same simulated time are
// delivered in submission order (a stable tie-break), and a component may
// cancel its own still-pending events by predicate.
package eventbus

import "container/heap"

// ComponentKey names a dispatch target: "scheduler", "apihub",
// "kubelet:<node-id>", "ca", "hpa", or "vpa". It is a plain string so the
// API hub's routing tables can key on it directly.
type ComponentKey string

// Event is one scheduled unit of work. Kind and Payload are opaque to the
// bus; only Handler functions interpret them.
type Event struct {
	Time    float64
	Source  ComponentKey
	Target  ComponentKey
	Kind    string
	Payload interface{}

	seq   int64
	index int // heap.Interface bookkeeping
}

// Handler processes one event delivered to its registered target.
type Handler func(now float64, ev Event)

// Bus is the ordered-delivery event queue plus a target->handler registry.
type Bus struct {
	queue    eventHeap
	handlers map[ComponentKey]Handler
	seq      int64
	now      float64
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{handlers: map[ComponentKey]Handler{}}
}

// Register binds a handler to a target key. Registering twice for the same
// key replaces the previous handler.
func (b *Bus) Register(target ComponentKey, h Handler) {
	b.handlers[target] = h
}

// Unregister removes a target's handler, used when a node agent is torn
// down on RemoveNode.
func (b *Bus) Unregister(target ComponentKey) {
	delete(b.handlers, target)
}

// Now returns the simulated time of the event currently being processed,
// or the time of the last processed event if the loop is idle. RunUntil
// also advances it to its deadline.
func (b *Bus) Now() float64 { return b.now }

// Schedule enqueues an event at now+delay. delay must be >= 0.
func (b *Bus) Schedule(source, target ComponentKey, kind string, payload interface{}, delay float64) {
	b.ScheduleAt(source, target, kind, payload, b.now+delay)
}

// ScheduleAt enqueues an event at an absolute simulated time.
func (b *Bus) ScheduleAt(source, target ComponentKey, kind string, payload interface{}, at float64) {
	ev := &Event{Time: at, Source: source, Target: target, Kind: kind, Payload: payload, seq: b.seq}
	b.seq++
	heap.Push(&b.queue, ev)
}

// CancelSelf removes every still-pending event whose Source equals source
// and for which match returns true. The kubelet uses it on turn-off to drop
// every event it had scheduled for itself.
func (b *Bus) CancelSelf(source ComponentKey, match func(ev Event) bool) {
	var toRemove []*Event
	for _, ev := range b.queue {
		if ev.Source == source && match(*ev) {
			toRemove = append(toRemove, ev)
		}
	}
	// heap.Remove moves other entries, so each event is removed at its
	// current index rather than at an index recorded before the first removal.
	for _, ev := range toRemove {
		heap.Remove(&b.queue, ev.index)
	}
}

// Empty reports whether the queue has no pending events.
func (b *Bus) Empty() bool { return b.queue.Len() == 0 }

// PeekTime returns the time of the next event without popping it, and
// false if the queue is empty.
func (b *Bus) PeekTime() (float64, bool) {
	if b.queue.Len() == 0 {
		return 0, false
	}
	return b.queue[0].Time, true
}

// Step pops and dispatches the single earliest event, returning false if
// the queue was empty. A missing handler for the target is treated as a
// transient condition (the event is silently dropped) rather than a hard
// abort, matching the "kubelet turned off" and "pod already removed"
// cases spec.md's error handling section describes.
func (b *Bus) Step() bool {
	if b.queue.Len() == 0 {
		return false
	}
	ev := heap.Pop(&b.queue).(*Event)
	b.now = ev.Time
	if h, ok := b.handlers[ev.Target]; ok {
		h(b.now, *ev)
	}
	return true
}

// Run drains the queue until empty or until stop returns true when
// evaluated before each step.
func (b *Bus) Run(stop func() bool) {
	for !b.Empty() {
		if stop != nil && stop() {
			return
		}
		b.Step()
	}
}

// RunUntil drains the queue until it is empty or the next event's time
// would exceed deadline.
func (b *Bus) RunUntil(deadline float64) {
	for {
		t, ok := b.PeekTime()
		if !ok || t > deadline {
			b.now = deadline
			return
		}
		b.Step()
	}
}

// eventHeap implements container/heap.Interface, ordered by (Time, seq)
// ascending so same-time events deliver in submission order.
type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *eventHeap) Push(x interface{}) {
	ev := x.(*Event)
	ev.index = len(*h)
	*h = append(*h, ev)
}
func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return ev
}
