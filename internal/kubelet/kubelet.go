// Package kubelet implements the node agent described in spec.md §4.4:
// it owns one node's live capacity and placed pods, samples each pod's
// load profile, evicts under resource pressure via EvictionOrder, and
// reconciles phase changes with the scheduler through the API hub.
// Grounded on kuber_sim/src/kubelet/kubelet.rs; the agent tracks actual
// measured usage rather than the scheduler's requested reservation, so a
// pod whose load exceeds its request can legitimately push a node's
// available capacity negative until eviction restores it.
package kubelet

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/vpsie/cluster-simulator/internal/apihub"
	"github.com/vpsie/cluster-simulator/internal/config"
	"github.com/vpsie/cluster-simulator/internal/eventbus"
	"github.com/vpsie/cluster-simulator/internal/loadprofile"
	"github.com/vpsie/cluster-simulator/internal/metrics"
	"github.com/vpsie/cluster-simulator/internal/monitoring"
	"github.com/vpsie/cluster-simulator/internal/simevents"
	"github.com/vpsie/cluster-simulator/internal/simlog"
	"github.com/vpsie/cluster-simulator/internal/simtype"
)

// Kubelet is the node agent for a single node.
type Kubelet struct {
	bus     *eventbus.Bus
	delays  config.NetworkDelays
	logger  *zap.Logger
	metrics *metrics.Recorder
	monitor *monitoring.Monitor

	node *simtype.Node
	key  eventbus.ComponentKey

	pods     map[simtype.PodID]*simtype.Pod
	usage    map[simtype.PodID]simtype.Resource
	profiles map[simtype.PodID]loadprofile.Profile
	eviction *EvictionOrder
}

// New constructs a node agent for node and registers it at its
// apihub.AgentKey dispatch target. node.Available is reset to
// node.Installed, since the agent — not the caller — owns live capacity
// accounting from this point on. mon may be nil; when set, every change
// to this node's actually-measured usage is reported to it, mirroring the
// direct calls kuber_sim/src/kubelet/kubelet.rs makes into its shared
// Monitoring handle.
func New(bus *eventbus.Bus, delays config.NetworkDelays, logger *zap.Logger, rec *metrics.Recorder, mon *monitoring.Monitor, node *simtype.Node) *Kubelet {
	node.Available = node.Installed
	k := &Kubelet{
		bus:      bus,
		delays:   delays,
		logger:   logger,
		metrics:  rec,
		monitor:  mon,
		node:     node,
		key:      apihub.AgentKey(node.ID),
		pods:     map[simtype.PodID]*simtype.Pod{},
		usage:    map[simtype.PodID]simtype.Resource{},
		profiles: map[simtype.PodID]loadprofile.Profile{},
		eviction: NewEvictionOrder(),
	}
	bus.Register(k.key, k.handle)
	return k
}

// profileFromPod recovers the load profile instance carried opaquely in
// the pod spec; callers (traceio, tests) are responsible for populating
// LoadProfileSpec with a loadprofile.Profile before handing the pod to the
// simulation core. The built-in profile types are copied, so Start and
// Update act on this pod's own copy rather than on the instance every pod
// of the group shares.
func profileFromPod(pod *simtype.Pod) loadprofile.Profile {
	switch p := pod.Spec.LoadProfileSpec.(type) {
	case *loadprofile.Constant:
		cp := *p
		return &cp
	case *loadprofile.ConstantInfinite:
		cp := *p
		return &cp
	case *loadprofile.Busybox:
		cp := *p
		return &cp
	case *loadprofile.BusyboxInfinite:
		cp := *p
		return &cp
	}
	p, ok := pod.Spec.LoadProfileSpec.(loadprofile.Profile)
	if !ok {
		panic("kubelet: pod " + strconv.FormatInt(int64(pod.ID), 10) + " has no load profile attached")
	}
	return p
}

func (k *Kubelet) handle(now float64, ev eventbus.Event) {
	switch ev.Kind {
	case simevents.KindUpdatePodFromSched:
		k.onUpdatePodFromScheduler(ev.Payload.(simevents.UpdatePodFromScheduler))
	case simevents.KindKubeletLoadTick:
		k.onLoadTick(ev.Payload.(simevents.KubeletLoadTick).PodID)
	case simevents.KindRemoveNode:
		k.turnOff()
	default:
		simlog.LogTransientCondition(k.logger, "kubelet", "unknown event kind "+ev.Kind)
	}
}

func (k *Kubelet) onUpdatePodFromScheduler(u simevents.UpdatePodFromScheduler) {
	if u.NodeID != k.node.ID {
		panic("kubelet: routing error, event for node " + strconv.FormatInt(int64(u.NodeID), 10) + " delivered to node " + strconv.FormatInt(int64(k.node.ID), 10))
	}

	switch u.TargetPhase {
	case simtype.PhaseRunning:
		if _, exists := k.pods[u.Pod.ID]; exists {
			return
		}
		k.addNewPod(u.Pod, u.PreemptUIDs)
	case simtype.PhasePreempted, simtype.PhaseRemoved:
		if _, exists := k.pods[u.Pod.ID]; !exists {
			return
		}
		k.removePodRestoring(u.Pod.ID, u.TargetPhase, nil, nil)
	default:
		panic("kubelet: unexpected target phase " + u.TargetPhase.String())
	}
}

func (k *Kubelet) addNewPod(pod *simtype.Pod, preemptUIDs []simtype.PodID) {
	for _, uid := range preemptUIDs {
		if _, ok := k.pods[uid]; ok {
			k.removePodRestoring(uid, simtype.PhasePreempted, nil, nil)
		}
	}

	profile := profileFromPod(pod)
	sample := profile.Start(k.bus.Now())
	if sample.Finished {
		k.sendPodUpdate(pod, pod.ID, simtype.PhaseSucceeded, 0, 0)
		return
	}
	if !usageMatchesLimits(pod, sample.CPU, sample.Memory) {
		k.sendPodUpdate(pod, pod.ID, simtype.PhaseFailed, sample.CPU, sample.Memory)
		return
	}

	needEviction := !k.isConsumable(sample.CPU, sample.Memory)
	k.consume(sample.CPU, sample.Memory)

	placed := pod.Clone()
	placed.Status.Phase = simtype.PhaseRunning
	placed.Status.Assigned = true
	placed.Status.NodeID = k.node.ID
	k.pods[pod.ID] = placed
	k.usage[pod.ID] = simtype.Resource{CPU: sample.CPU, Memory: sample.Memory}
	k.profiles[pod.ID] = profile
	k.eviction.Add(placed, sample.Memory)

	k.sendPodUpdate(placed, pod.ID, simtype.PhaseRunning, sample.CPU, sample.Memory)
	if sample.NextChangeS > 0 {
		k.bus.Schedule(k.key, k.key, simevents.KindKubeletLoadTick, simevents.KubeletLoadTick{PodID: pod.ID}, sample.NextChangeS)
	}
	if needEviction {
		k.doEviction()
	}
}

func (k *Kubelet) onLoadTick(podID simtype.PodID) {
	pod, ok := k.pods[podID]
	if !ok {
		return // removed (preempted, evicted, or raced with another event) before this tick fired
	}
	prev := k.usage[podID]
	sample := k.profiles[podID].Update(k.bus.Now())
	k.restore(prev.CPU, prev.Memory)

	if sample.Finished {
		k.removePodWithoutRestoring(podID, simtype.PhaseSucceeded, 0, 0)
		return
	}
	if !usageMatchesLimits(pod, sample.CPU, sample.Memory) {
		k.removePodWithoutRestoring(podID, simtype.PhaseFailed, sample.CPU, sample.Memory)
		return
	}

	needEviction := !k.isConsumable(sample.CPU, sample.Memory)
	k.consume(sample.CPU, sample.Memory)
	k.eviction.Remove(pod, prev.Memory)
	k.eviction.Add(pod, sample.Memory)
	k.usage[podID] = simtype.Resource{CPU: sample.CPU, Memory: sample.Memory}

	k.sendPodUpdate(pod, podID, simtype.PhaseRunning, sample.CPU, sample.Memory)
	if sample.NextChangeS > 0 {
		k.bus.Schedule(k.key, k.key, simevents.KindKubeletLoadTick, simevents.KubeletLoadTick{PodID: podID}, sample.NextChangeS)
	}
	if needEviction {
		k.doEviction()
	}
}

// removePodRestoring frees the pod's current usage back onto the node
// before removing it. endCPU/endMemory override the reported final usage
// sample when non-nil (eviction and preemption report the usage the pod
// was consuming at the moment it was torn down).
func (k *Kubelet) removePodRestoring(id simtype.PodID, endPhase simtype.Phase, endCPU, endMemory *int64) {
	prev := k.usage[id]
	k.restore(prev.CPU, prev.Memory)
	cpu, mem := prev.CPU, prev.Memory
	if endCPU != nil {
		cpu = *endCPU
	}
	if endMemory != nil {
		mem = *endMemory
	}
	k.removePodWithoutRestoring(id, endPhase, cpu, mem)
}

func (k *Kubelet) removePodWithoutRestoring(id simtype.PodID, endPhase simtype.Phase, cpu, memory int64) {
	pod, ok := k.pods[id]
	if !ok {
		return
	}
	simtype.AssertTransition(pod.Status.Phase, endPhase)
	prevMemory := k.usage[id].Memory

	delete(k.usage, id)
	delete(k.profiles, id)
	delete(k.pods, id)
	k.eviction.Remove(pod, prevMemory)

	k.sendPodUpdate(pod, id, endPhase, cpu, memory)
}

// doEviction evicts pods, most-evictable first, until the node's available
// capacity is non-negative on both dimensions. It must only be called
// when that invariant is currently violated.
func (k *Kubelet) doEviction() {
	if k.node.Available.CPU >= 0 && k.node.Available.Memory >= 0 {
		panic("kubelet: doEviction called without resource overuse on node " + strconv.FormatInt(int64(k.node.ID), 10))
	}

	for !k.eviction.IsEmpty() && (k.node.Available.CPU < 0 || k.node.Available.Memory < 0) {
		id, _ := k.eviction.First()
		simlog.LogEvictionDecision(k.logger, int64(id), int64(k.node.ID), true)
		k.removePodRestoring(id, simtype.PhaseEvicted, nil, nil)
		if k.metrics != nil {
			k.metrics.PodsEvicted.Inc()
		}
	}

	if k.node.Available.Negative() {
		panic("kubelet: eviction exhausted every pod on node " + strconv.FormatInt(int64(k.node.ID), 10) + " but capacity is still negative")
	}
}

// turnOff tears the agent down: every placed pod bounces back to the
// scheduler as Pending (not evicted — its workload simply needs a new
// home), the node's capacity is fully restored, and the agent stops
// receiving events.
func (k *Kubelet) turnOff() {
	for id, pod := range k.pods {
		u := k.usage[id]
		k.restore(u.CPU, u.Memory)
		k.sendPodUpdate(pod, id, simtype.PhasePending, 0, 0)
	}
	k.pods = map[simtype.PodID]*simtype.Pod{}
	k.usage = map[simtype.PodID]simtype.Resource{}
	k.profiles = map[simtype.PodID]loadprofile.Profile{}
	k.eviction.Clear()

	if !k.node.ValidCapacity() {
		panic("kubelet: node " + strconv.FormatInt(int64(k.node.ID), 10) + " has invalid available capacity after tearing down every placed pod")
	}

	k.bus.CancelSelf(k.key, func(eventbus.Event) bool { return true })
	k.bus.Unregister(k.key)

	simlog.LogNodeLifecycle(k.logger, int64(k.node.ID), "removed")
	k.bus.Schedule(k.key, apihub.Key, simevents.KindRemoveNodeAck,
		simevents.RemoveNodeAck{NodeID: k.node.ID, GroupID: k.node.GroupID}, k.delays.AgentToAPI)
}

func (k *Kubelet) sendPodUpdate(pod *simtype.Pod, id simtype.PodID, phase simtype.Phase, cpu, memory int64) {
	k.bus.Schedule(k.key, apihub.Key, simevents.KindPodUpdateFromAgent, simevents.PodUpdateFromAgent{
		PodID:   id,
		GroupID: pod.GroupID,
		Phase:   phase,
		CPU:     cpu,
		Memory:  memory,
	}, k.delays.AgentToAPI)
}

func (k *Kubelet) consume(cpu, memory int64) {
	r := simtype.Resource{CPU: cpu, Memory: memory}
	k.node.Available = k.node.Available.Sub(r)
	if k.monitor != nil {
		k.monitor.KubeletPlaced(r)
	}
}

func (k *Kubelet) restore(cpu, memory int64) {
	r := simtype.Resource{CPU: cpu, Memory: memory}
	k.node.Available = k.node.Available.Add(r)
	if k.monitor != nil {
		k.monitor.KubeletUnplaced(r)
	}
}

func (k *Kubelet) isConsumable(cpu, memory int64) bool {
	remaining := k.node.Available.Sub(simtype.Resource{CPU: cpu, Memory: memory})
	return !remaining.Negative()
}

// usageMatchesLimits reports whether a usage sample stays within the
// pod's limits. A pod with no limit configured (BestEffort) is never
// capped.
func usageMatchesLimits(pod *simtype.Pod, cpu, memory int64) bool {
	if pod.Spec.Limit.Zero() {
		return true
	}
	return cpu <= pod.Spec.Limit.CPU && memory <= pod.Spec.Limit.Memory
}
