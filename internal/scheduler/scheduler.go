// Package scheduler implements the control plane's admission and
// placement loop described in spec.md §4.3: a queue triad (active,
// backoff, unschedulable), a spatial node index narrowing the filter
// pipeline's search space on the common case, and the filter -> postfilter
// -> score -> normalize plugin chain from the pipeline subpackage.
// Grounded on kuber_sim/src/scheduler/scheduler.rs's cycle structure:
// drain the time-ordered queues into the active set, then pop and attempt
// pods up to the cycle's bounds before re-arming for the next tick.
package scheduler

import (
	"math"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/vpsie/cluster-simulator/internal/apihub"
	"github.com/vpsie/cluster-simulator/internal/config"
	"github.com/vpsie/cluster-simulator/internal/eventbus"
	"github.com/vpsie/cluster-simulator/internal/metrics"
	"github.com/vpsie/cluster-simulator/internal/monitoring"
	"github.com/vpsie/cluster-simulator/internal/scheduler/nodeindex"
	"github.com/vpsie/cluster-simulator/internal/scheduler/pipeline"
	"github.com/vpsie/cluster-simulator/internal/scheduler/queue"
	"github.com/vpsie/cluster-simulator/internal/simevents"
	"github.com/vpsie/cluster-simulator/internal/simlog"
	"github.com/vpsie/cluster-simulator/internal/simtype"
)

// Scheduler is the control plane's placement component. It owns its own
// view of every node's capacity and every pod it knows about; the node
// agent keeps an independent record reconciled only through the
// UpdatePodFromScheduler / PodUpdateFromAgent event pair.
type Scheduler struct {
	bus         *eventbus.Bus
	delays      config.NetworkDelays
	cfg         config.SchedulerConfig
	pipelineCfg pipeline.Config
	logger      *zap.Logger
	metrics     *metrics.Recorder
	monitor     *monitoring.Monitor

	index         *nodeindex.Index
	active        *queue.Active
	backoff       *queue.TimeQueue
	unschedulable *queue.TimeQueue

	nodes        map[simtype.NodeID]*simtype.Node
	pods         map[simtype.PodID]*simtype.Pod
	runningCount int

	// failedAttempts counts consecutive scheduling failures per pod since
	// its last successful placement, driving the exponential backoff
	// schedule a repeatedly-unplaceable pod escalates into.
	failedAttempts map[simtype.PodID]int
}

// backoffInitialDelay and backoffMaxDelay mirror
// kuber_sim/src/scheduler/backoff_queue.rs's BackOffQExponential default:
// the delay before a repeatedly-failing pod is retried doubles with every
// further failure, capped at backoffMaxDelay.
const (
	backoffInitialDelay = 1.0
	backoffMaxDelay     = 10.0
)

func backoffDelay(attempts int) float64 {
	delay := backoffInitialDelay * math.Pow(2, float64(attempts))
	if delay > backoffMaxDelay {
		return backoffMaxDelay
	}
	return delay
}

// New constructs a scheduler and registers it on the bus at
// apihub.KeyScheduler. Call Start to begin its self-sustaining tick loop.
// mon may be nil; when set, it is told about node capacity changes,
// scheduler-side reservation changes, and terminal pod phase transitions,
// mirroring the direct calls kuber_sim/src/scheduler/scheduler.rs makes
// into its shared Monitoring handle.
func New(bus *eventbus.Bus, delays config.NetworkDelays, cfg config.SchedulerConfig, pipelineCfg pipeline.Config, logger *zap.Logger, rec *metrics.Recorder, mon *monitoring.Monitor) *Scheduler {
	pods := map[simtype.PodID]*simtype.Pod{}
	priorityOf := func(id simtype.PodID) int64 {
		if p, ok := pods[id]; ok {
			return p.Spec.Priority
		}
		return 0
	}
	s := &Scheduler{
		bus:           bus,
		delays:        delays,
		cfg:           cfg,
		pipelineCfg:   pipelineCfg,
		logger:        logger,
		metrics:       rec,
		monitor:       mon,
		index:          nodeindex.New(),
		active:         queue.NewActive(queue.ByPriorityThenID(priorityOf)),
		backoff:        queue.NewTimeQueue(),
		unschedulable:  queue.NewTimeQueue(),
		nodes:          map[simtype.NodeID]*simtype.Node{},
		pods:           pods,
		failedAttempts: map[simtype.PodID]int{},
	}
	bus.Register(apihub.KeyScheduler, s.handle)
	return s
}

// Start schedules the first cycle tick; the handler re-arms itself every
// cfg.SelfUpdatePeriod thereafter, the same steady-heartbeat shape every
// other component (CA/HPA/VPA) uses.
func (s *Scheduler) Start() {
	s.scheduleTick(0)
}

func (s *Scheduler) scheduleTick(delay float64) {
	s.bus.Schedule(apihub.KeyScheduler, apihub.KeyScheduler, simevents.KindSchedulerTick, nil, delay)
}

func (s *Scheduler) handle(now float64, ev eventbus.Event) {
	switch ev.Kind {
	case simevents.KindSchedulerTick:
		s.runCycle()
		s.scheduleTick(s.cfg.SelfUpdatePeriod)
	case simevents.KindAddPod:
		s.onAddPod(ev.Payload.(simevents.AddPod))
	case simevents.KindRemovePod:
		s.onRemovePod(ev.Payload.(simevents.RemovePod))
	case simevents.KindRemovePodGroup:
		s.onRemovePodGroup(ev.Payload.(simevents.RemovePodGroup))
	case simevents.KindAddNode:
		s.onAddNode(ev.Payload.(simevents.AddNode))
	case simevents.KindRemoveNode:
		s.onRemoveNode(ev.Payload.(simevents.RemoveNode))
	case simevents.KindPodUpdateToSched:
		s.onPodUpdateToScheduler(ev.Payload.(simevents.PodUpdateToScheduler))
	case simevents.KindGetCAMetrics:
		s.onGetCAMetrics(ev.Payload.(simevents.GetCAMetrics))
	default:
		simlog.LogTransientCondition(s.logger, "scheduler", "unknown event kind "+ev.Kind)
	}
}

func (s *Scheduler) onAddPod(a simevents.AddPod) {
	s.pods[a.Pod.ID] = a.Pod
	s.active.Push(a.Pod.ID)
}

func (s *Scheduler) onRemovePod(r simevents.RemovePod) {
	s.forgetPod(r.PodID)
}

func (s *Scheduler) onRemovePodGroup(r simevents.RemovePodGroup) {
	var toRemove []simtype.PodID
	for id, p := range s.pods {
		if p.GroupID == r.GroupID {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		s.forgetPod(id)
	}
}

// forgetPod removes every trace of a pod from scheduler-owned state: its
// node reservation (if any), every queue, and the pod map itself. Safe to
// call twice for the same id, since RemovePodGroup's second notice does
// exactly that.
func (s *Scheduler) forgetPod(id simtype.PodID) {
	if p, ok := s.pods[id]; ok && p.Status.Assigned {
		s.releaseFromNode(p)
	}
	s.active.TryRemove(id)
	s.backoff.TryRemove(id)
	s.unschedulable.TryRemove(id)
	delete(s.failedAttempts, id)
	delete(s.pods, id)
}

func (s *Scheduler) onAddNode(a simevents.AddNode) {
	s.nodes[a.Node.ID] = a.Node
	s.index.Insert(a.Node.ID, a.Node.Available)
	if s.monitor != nil {
		s.monitor.OnNodeAdded(a.Node.Installed)
	}
}

func (s *Scheduler) onRemoveNode(r simevents.RemoveNode) {
	node, ok := s.nodes[r.NodeID]
	if !ok {
		return
	}
	var stillReserved simtype.Resource
	for id := range node.Placed {
		p, ok := s.pods[id]
		if !ok {
			continue
		}
		stillReserved = stillReserved.Add(p.Spec.Request)
		p.Status.Assigned = false
		p.Status.NodeID = 0
		s.runningCount--
		s.backoff.Push(id, s.bus.Now()+s.cfg.UnschedulableQueueBackoffDelay)
	}
	s.index.Remove(r.NodeID)
	delete(s.nodes, r.NodeID)
	if s.monitor != nil {
		s.monitor.OnNodeRemoved(node.Installed, stillReserved)
	}
}

func (s *Scheduler) onPodUpdateToScheduler(u simevents.PodUpdateToScheduler) {
	p, ok := s.pods[u.PodID]
	if !ok {
		simlog.LogTransientCondition(s.logger, "scheduler", "update for unknown pod, dropped")
		return
	}
	if p.Status.Phase.Terminal() {
		simlog.LogTransientCondition(s.logger, "scheduler", "update for already-terminal pod, dropped")
		return
	}
	simtype.AssertTransition(p.Status.Phase, u.Phase)
	from := p.Status.Phase
	p.Status.Phase = u.Phase
	simlog.LogPodPhaseTransition(s.logger, int64(p.ID), from.String(), u.Phase.String())

	if u.Phase.Terminal() {
		s.forgetPod(p.ID)
		if s.monitor != nil {
			switch u.Phase {
			case simtype.PhaseSucceeded:
				s.monitor.OnPodSucceeded()
			case simtype.PhaseFailed:
				s.monitor.OnPodFailed()
			case simtype.PhaseRemoved:
				s.monitor.OnPodRemoved()
			}
		}
		return
	}
	if u.Phase.Reschedulable() {
		if p.Status.Assigned {
			s.releaseFromNode(p)
			p.Status.Assigned = false
			p.Status.NodeID = 0
		}
		s.backoff.Push(p.ID, s.bus.Now()+s.cfg.UnschedulableQueueBackoffDelay)
		if s.monitor != nil && u.Phase == simtype.PhaseEvicted {
			s.monitor.OnPodEvicted()
		}
	}
}

func (s *Scheduler) onGetCAMetrics(g simevents.GetCAMetrics) {
	starved := s.starvedPodIDs()
	reply := simevents.PostCAMetrics{PendingStarved: len(starved)}
	if len(starved) > 0 {
		for _, ag := range g.AvailableGroups {
			if s.groupMayHelp(ag, starved) {
				group := ag.GroupID
				reply.MayHelp = &group
				break
			}
		}
	}
	for _, id := range g.UsedNodes {
		node, ok := s.nodes[id]
		if !ok {
			continue
		}
		cpu, mem := simtype.UtilizationOf(node.Used(), node.Installed)
		reply.Nodes = append(reply.Nodes, simevents.NodeUtilization{NodeID: id, CPUFraction: cpu, MemFraction: mem})
		if s.metrics != nil {
			s.metrics.NodeUtilizationCPU.WithLabelValues(nodeLabel(id)).Set(cpu)
			s.metrics.NodeUtilizationMemory.WithLabelValues(nodeLabel(id)).Set(mem)
		}
	}
	s.bus.Schedule(apihub.KeyScheduler, apihub.Key, simevents.KindPostCAMetrics, reply, s.delays.SchedulerToAPI)
}

// starvedPodIDs returns every pod the scheduler still knows about whose
// starvation flag is set, whether it is currently sitting in the
// unschedulable queue or has been escalated into backoff.
func (s *Scheduler) starvedPodIDs() []simtype.PodID {
	var ids []simtype.PodID
	for id, p := range s.pods {
		if p.Status.Starvation {
			ids = append(ids, id)
		}
	}
	return ids
}

// groupMayHelp reports whether ag's template node capacity could satisfy
// at least one of the given starved pods' requests.
func (s *Scheduler) groupMayHelp(ag simevents.AvailableGroup, starved []simtype.PodID) bool {
	for _, id := range starved {
		p, ok := s.pods[id]
		if !ok {
			continue
		}
		if p.Spec.Request.FitsIn(ag.Installed) {
			return true
		}
	}
	return false
}

// runCycle drains the backoff and unschedulable queues' ready entries into
// active, then pops and attempts pods up to the cycle's bounds. Pods left
// in active when the cycle ends simply wait for the next tick; they are
// never moved, since the active queue is itself already priority-ordered.
func (s *Scheduler) runCycle() {
	now := s.bus.Now()
	for _, id := range s.backoff.DrainReady(now) {
		if _, ok := s.pods[id]; ok {
			s.active.Push(id)
		}
	}
	for _, id := range s.unschedulable.DrainReady(now) {
		if _, ok := s.pods[id]; ok {
			s.active.Push(id)
		}
	}

	toTry, scheduled := 0, 0
	for {
		if s.cfg.CycleMaxToTry > 0 && toTry >= s.cfg.CycleMaxToTry {
			break
		}
		if s.cfg.CycleMaxScheduled > 0 && scheduled >= s.cfg.CycleMaxScheduled {
			break
		}
		id, ok := s.active.TryPop()
		if !ok {
			break
		}
		pod, ok := s.pods[id]
		if !ok {
			continue // removed between being queued and popped
		}
		toTry++
		if s.attemptPod(pod, toTry) {
			scheduled++
		}
	}
}

// attemptPod runs the filter/postfilter/score/normalize chain for one pod
// and either places it or pushes it into the unschedulable queue. The node
// index narrows the common, non-preemption case to capacity-feasible
// nodes before the full plugin chain runs; when that narrowed set yields
// no survivor, the full node set is retried through the postfilter chain
// so preemption still has a chance.
func (s *Scheduler) attemptPod(pod *simtype.Pod, attempt int) bool {
	fastSet := s.nodeSubset(s.index.Query(pod.Spec.Request))
	survivors := pipeline.RunFilters(s.pipelineCfg.Filters, pod, fastSet, s.runningHere)

	candidates := survivors
	preempting := false
	if len(candidates) == 0 {
		allIDs := make([]simtype.NodeID, 0, len(s.nodes))
		for id := range s.nodes {
			allIDs = append(allIDs, id)
		}
		sort.Slice(allIDs, func(i, j int) bool { return allIDs[i] < allIDs[j] })
		candidates = pipeline.RunPostFilters(s.pipelineCfg.PostFilters, pod, allIDs, s.nodes, s.runningHere)
		preempting = len(candidates) > 0
	}

	if len(candidates) == 0 {
		s.markUnschedulable(pod, attempt)
		return false
	}

	totals := pipeline.RunScore(s.pipelineCfg.Scorers, pod, candidates, s.nodes, s.runningHere)
	winner, ok := pipeline.PickWinner(totals, candidates)
	if !ok {
		s.markUnschedulable(pod, attempt)
		return false
	}

	var victims []simtype.PodID
	if preempting {
		victims = s.victimsFor(winner, pod)
	}
	s.placePod(pod, winner, victims)
	simlog.LogSchedulingDecision(s.logger, int64(pod.ID), int64(winner), totals[winner], attempt)
	if s.metrics != nil {
		s.metrics.PodsScheduled.Inc()
	}
	return true
}

func (s *Scheduler) nodeSubset(ids []simtype.NodeID) map[simtype.NodeID]*simtype.Node {
	out := make(map[simtype.NodeID]*simtype.Node, len(ids))
	for _, id := range ids {
		if n, ok := s.nodes[id]; ok {
			out[id] = n
		}
	}
	return out
}

func (s *Scheduler) runningHere(node simtype.NodeID) []*simtype.Pod {
	n, ok := s.nodes[node]
	if !ok {
		return nil
	}
	out := make([]*simtype.Pod, 0, len(n.Placed))
	for id := range n.Placed {
		if p, ok := s.pods[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// victimsFor picks the minimal lowest-priority-first set of pods running
// on node whose eviction frees enough room for pod, breaking priority ties
// by ascending id for determinism.
func (s *Scheduler) victimsFor(node simtype.NodeID, pod *simtype.Pod) []simtype.PodID {
	n := s.nodes[node]
	candidates := make([]*simtype.Pod, 0)
	for _, p := range s.runningHere(node) {
		if p.Spec.Priority < pod.Spec.Priority {
			candidates = append(candidates, p)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Spec.Priority != candidates[j].Spec.Priority {
			return candidates[i].Spec.Priority < candidates[j].Spec.Priority
		}
		return candidates[i].ID < candidates[j].ID
	})

	freed := n.Available
	var victims []simtype.PodID
	for _, c := range candidates {
		if pod.Spec.Request.FitsIn(freed) {
			break
		}
		freed = freed.Add(c.Spec.Request)
		victims = append(victims, c.ID)
	}
	return victims
}

// placePod evicts any chosen victims, reserves the winning node's capacity
// for pod, and notifies the node agent. Victims are queued into backoff
// rather than straight back into active, so an evicted pod does not
// immediately contend for the same node it was just pushed off of.
func (s *Scheduler) placePod(pod *simtype.Pod, node simtype.NodeID, victims []simtype.PodID) {
	n := s.nodes[node]
	for _, vid := range victims {
		victim, ok := s.pods[vid]
		if !ok {
			continue
		}
		n.Release(vid, victim.Spec.Request)
		simtype.AssertTransition(victim.Status.Phase, simtype.PhasePreempted)
		victim.Status.Phase = simtype.PhasePreempted
		victim.Status.Assigned = false
		victim.Status.NodeID = 0
		s.runningCount--
		s.backoff.Push(vid, s.bus.Now()+s.cfg.UnschedulableQueueBackoffDelay)
		simlog.LogPreemption(s.logger, int64(vid), int64(pod.ID), int64(node))
		if s.metrics != nil {
			s.metrics.PodsPreempted.Inc()
		}
		if s.monitor != nil {
			s.monitor.SchedulerRestore(victim.Spec.Request)
			s.monitor.OnPodPreempted()
		}
	}

	n.Reserve(pod.ID, pod.Spec.Request)
	pod.Status.Assigned = true
	pod.Status.NodeID = node
	pod.Status.Starvation = false
	delete(s.failedAttempts, pod.ID)
	s.index.Update(node, n.Available)
	s.runningCount++
	if s.monitor != nil {
		s.monitor.SchedulerConsume(pod.Spec.Request)
		s.monitor.SetRunningCount(s.runningCount)
	}

	s.bus.Schedule(apihub.KeyScheduler, apihub.Key, simevents.KindUpdatePodFromSched, simevents.UpdatePodFromScheduler{
		Pod:         pod.Clone(),
		PreemptUIDs: victims,
		TargetPhase: simtype.PhaseRunning,
		NodeID:      node,
	}, s.delays.SchedulerToAPI)
}

// markUnschedulable records a scheduling failure for pod. The first
// failure since its last successful placement lands it in the
// unschedulable queue at the configured delay; every failure after that
// escalates it into the backoff queue instead, at an exponentially
// growing delay, so a pod with no satisfiable capacity does not retry at
// the same fixed cadence forever.
func (s *Scheduler) markUnschedulable(pod *simtype.Pod, attempt int) {
	pod.Status.Starvation = true
	failures := s.failedAttempts[pod.ID]
	if failures == 0 {
		s.unschedulable.Push(pod.ID, s.bus.Now()+s.cfg.UnschedulableQueueBackoffDelay)
	} else {
		s.backoff.Push(pod.ID, s.bus.Now()+backoffDelay(failures))
	}
	s.failedAttempts[pod.ID] = failures + 1
	simlog.LogSchedulingFailure(s.logger, int64(pod.ID), true, attempt)
	if s.metrics != nil {
		s.metrics.PodsFailedToSchedule.Inc()
	}
	if s.monitor != nil {
		s.monitor.SetPendingCount(s.unschedulable.Len())
	}
}

func (s *Scheduler) releaseFromNode(p *simtype.Pod) {
	node, ok := s.nodes[p.Status.NodeID]
	if !ok {
		return
	}
	node.Release(p.ID, p.Spec.Request)
	s.index.Update(node.ID, node.Available)
	s.runningCount--
	if s.monitor != nil {
		s.monitor.SchedulerRestore(p.Spec.Request)
		s.monitor.SetRunningCount(s.runningCount)
	}
}

func nodeLabel(id simtype.NodeID) string {
	return strconv.FormatInt(int64(id), 10)
}
