// Package apihub implements the stateless event router described in
// spec.md §4.2: it applies a fixed fan-out table to every inbound event
// and maintains only two small lookup tables (node id -> agent address,
// pod id -> group id). All latency is enforced by the underlying bus via
// per-edge NetworkDelays; the hub itself owns no scheduling state.
package apihub

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/vpsie/cluster-simulator/internal/config"
	"github.com/vpsie/cluster-simulator/internal/eventbus"
	"github.com/vpsie/cluster-simulator/internal/simevents"
	"github.com/vpsie/cluster-simulator/internal/simlog"
	"github.com/vpsie/cluster-simulator/internal/simtype"
)

const Key eventbus.ComponentKey = "apihub"

const (
	KeyScheduler eventbus.ComponentKey = "scheduler"
	KeyCA        eventbus.ComponentKey = "ca"
	KeyHPA       eventbus.ComponentKey = "hpa"
	KeyVPA       eventbus.ComponentKey = "vpa"
)

// AgentKey returns the dispatch key for a node's kubelet agent.
func AgentKey(node simtype.NodeID) eventbus.ComponentKey {
	return eventbus.ComponentKey(fmt.Sprintf("kubelet:%d", node))
}

// Hub is the stateless router. HPAEnabled/VPAEnabled gate whether the
// HPA/VPA fan-out legs fire at all, matching spec.md's "(if enabled)"
// qualifiers.
type Hub struct {
	bus    *eventbus.Bus
	delays config.NetworkDelays
	logger *zap.Logger

	agents      map[simtype.NodeID]eventbus.ComponentKey
	podToGroup  map[simtype.PodID]simtype.GroupID
	podIDGen    *simtype.IDGenerator

	HPAEnabled bool
	VPAEnabled bool
}

// New wires a hub onto bus and registers it as the "apihub" target.
// podIDGen mints pod ids when a pod group's template is fanned out into N
// individual AddPod events, per spec.md's ownership rule that ids come
// from monotone counters scoped to entity kind.
func New(bus *eventbus.Bus, delays config.NetworkDelays, logger *zap.Logger, podIDGen *simtype.IDGenerator) *Hub {
	h := &Hub{
		bus:        bus,
		delays:     delays,
		logger:     logger,
		agents:     map[simtype.NodeID]eventbus.ComponentKey{},
		podToGroup: map[simtype.PodID]simtype.GroupID{},
		podIDGen:   podIDGen,
	}
	bus.Register(Key, h.handle)
	return h
}

func (h *Hub) handle(now float64, ev eventbus.Event) {
	switch ev.Kind {
	case simevents.KindAddPod:
		h.onAddPod(ev.Payload.(simevents.AddPod))
	case simevents.KindRemovePod:
		h.bus.Schedule(Key, KeyScheduler, simevents.KindRemovePod, ev.Payload, h.delays.APIToScheduler)
	case simevents.KindAddPodGroup:
		h.onAddPodGroup(ev.Payload.(simevents.AddPodGroup))
	case simevents.KindRemovePodGroup:
		h.onRemovePodGroup(ev.Payload.(simevents.RemovePodGroup))
	case simevents.KindAddNode:
		h.onAddNode(ev.Payload.(simevents.AddNode))
	case simevents.KindRemoveNode:
		h.onRemoveNode(ev.Payload.(simevents.RemoveNode))
	case simevents.KindRemoveNodeAck:
		h.bus.Schedule(Key, KeyCA, simevents.KindRemoveNodeAck, ev.Payload, h.delays.APIToCA)
	case simevents.KindUpdatePodFromSched:
		h.onUpdatePodFromScheduler(ev.Payload.(simevents.UpdatePodFromScheduler))
	case simevents.KindPodUpdateFromAgent:
		h.onPodUpdateFromAgent(ev.Payload.(simevents.PodUpdateFromAgent))
	case simevents.KindGetCAMetrics:
		h.bus.Schedule(Key, KeyScheduler, simevents.KindGetCAMetrics, ev.Payload, h.delays.APIToScheduler)
	case simevents.KindPostCAMetrics:
		h.bus.Schedule(Key, KeyCA, simevents.KindPostCAMetrics, ev.Payload, h.delays.APIToCA)
	default:
		simlog.LogTransientCondition(h.logger, "apihub", "unknown event kind "+ev.Kind)
	}
}

func (h *Hub) onAddPod(p simevents.AddPod) {
	h.podToGroup[p.Pod.ID] = p.Pod.GroupID
	h.bus.Schedule(Key, KeyScheduler, simevents.KindAddPod, p, h.delays.APIToScheduler)
	if h.HPAEnabled {
		h.bus.Schedule(Key, KeyHPA, simevents.KindAddPod, p, h.delays.APIToHPA)
	}
	if h.VPAEnabled {
		h.bus.Schedule(Key, KeyVPA, simevents.KindAddPod, p, h.delays.APIToVPA)
	}
}

func (h *Hub) onAddPodGroup(g simevents.AddPodGroup) {
	if h.HPAEnabled && g.Group.HPAProfile != nil {
		h.bus.Schedule(Key, KeyHPA, simevents.KindAddPodGroup, g, h.delays.APIToHPA)
	}
	if h.VPAEnabled && g.Group.VPAProfile != nil {
		h.bus.Schedule(Key, KeyVPA, simevents.KindAddPodGroup, g, h.delays.APIToVPA)
	}
	for i := 0; i < g.Group.Count; i++ {
		pod := simtype.NewPod(simtype.PodID(h.podIDGen.Next()), g.Group.ID, g.Group.Template, nil)
		h.bus.Schedule(Key, Key, simevents.KindAddPod, simevents.AddPod{Pod: pod}, 0)
	}
}

func (h *Hub) onRemovePodGroup(r simevents.RemovePodGroup) {
	if h.HPAEnabled {
		h.bus.Schedule(Key, KeyHPA, simevents.KindRemovePodGroup, r, h.delays.APIToHPA)
	}
	if h.VPAEnabled {
		h.bus.Schedule(Key, KeyVPA, simevents.KindRemovePodGroup, r, h.delays.APIToVPA)
	}
	// First notice, immediate; second notice absorbs any pod updates still
	// in flight that reference this group, per spec.md §4.2 and the Open
	// Question decision recorded in DESIGN.md.
	h.bus.Schedule(Key, KeyScheduler, simevents.KindRemovePodGroup, r, h.delays.APIToScheduler)
	h.bus.Schedule(Key, KeyScheduler, simevents.KindRemovePodGroup, r, h.delays.APIToScheduler+4*h.delays.Max())
}

func (h *Hub) onAddNode(a simevents.AddNode) {
	h.agents[a.Node.ID] = AgentKey(a.Node.ID)
	h.bus.Schedule(Key, KeyScheduler, simevents.KindAddNode, a, h.delays.APIToScheduler)
}

func (h *Hub) onRemoveNode(r simevents.RemoveNode) {
	h.bus.Schedule(Key, KeyScheduler, simevents.KindRemoveNode, r, h.delays.APIToScheduler)
	if agentKey, routed := h.agents[r.NodeID]; routed {
		h.bus.Schedule(Key, agentKey, simevents.KindRemoveNode, r, h.delays.APIToAgent)
		delete(h.agents, r.NodeID)
	}
	// Else: dropped, per spec.md's fan-out table ("dropped otherwise").
}

func (h *Hub) onUpdatePodFromScheduler(u simevents.UpdatePodFromScheduler) {
	if agentKey, routed := h.agents[u.NodeID]; routed {
		h.bus.Schedule(Key, agentKey, simevents.KindUpdatePodFromSched, u, h.delays.APIToAgent)
		return
	}
	// Transient: node no longer routed. Bounce back to the scheduler as a
	// Pending update so the pod re-enters scheduling instead of vanishing.
	simlog.LogTransientCondition(h.logger, "apihub", "UpdatePodFromScheduler to unrouted node, bouncing")
	h.bus.Schedule(Key, KeyScheduler, simevents.KindPodUpdateToSched,
		simevents.PodUpdateToScheduler{PodID: u.Pod.ID, Phase: simtype.PhasePending}, h.delays.APIToScheduler)
}

func (h *Hub) onPodUpdateFromAgent(u simevents.PodUpdateFromAgent) {
	if u.Phase != simtype.PhaseRunning {
		h.bus.Schedule(Key, KeyScheduler, simevents.KindPodUpdateToSched,
			simevents.PodUpdateToScheduler{PodID: u.PodID, Phase: u.Phase}, h.delays.APIToScheduler)
	}
	if h.HPAEnabled {
		h.bus.Schedule(Key, KeyHPA, simevents.KindPodUpdateFromAgent, u, h.delays.APIToHPA)
	}
	if h.VPAEnabled {
		h.bus.Schedule(Key, KeyVPA, simevents.KindPodUpdateFromAgent, u, h.delays.APIToVPA)
	}
	if u.Phase.Terminal() || u.Phase == simtype.PhaseEvicted || u.Phase == simtype.PhasePreempted {
		delete(h.podToGroup, u.PodID)
	}
}

// RouteAgent registers an explicit node->agent binding. Only the apihub
// tests call it.
func (h *Hub) RouteAgent(node simtype.NodeID, agent eventbus.ComponentKey) {
	h.agents[node] = agent
}

// GroupOf returns the group a pod belongs to, if known.
func (h *Hub) GroupOf(pod simtype.PodID) (simtype.GroupID, bool) {
	g, ok := h.podToGroup[pod]
	return g, ok
}
