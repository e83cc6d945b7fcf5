package hpa

import (
	"strconv"

	"github.com/vpsie/cluster-simulator/internal/simtype"
)

type lastMetric struct {
	Phase  simtype.Phase
	CPU    float64
	Memory float64
}

// GroupInfo is one pod group's horizontal-scaling state: the running
// CPU/memory consumption numerators, the set of not-yet-finished pod ids,
// and the template and profile used to mint or remove pods.
type GroupInfo struct {
	NumeratorCPU    float64
	NumeratorMemory float64
	RunningPodCount int
	AliveUIDs       map[simtype.PodID]struct{}
	LastMetrics     map[simtype.PodID]lastMetric

	PodTemplate simtype.PodSpec
	Profile     simtype.HPAProfile
}

func newGroupInfo(group *simtype.PodGroup) *GroupInfo {
	return &GroupInfo{
		AliveUIDs:   map[simtype.PodID]struct{}{},
		LastMetrics: map[simtype.PodID]lastMetric{},
		PodTemplate: group.Template,
		Profile:     *group.HPAProfile,
	}
}

// addNewPod records a newly submitted pod as alive and pending.
func (g *GroupInfo) addNewPod(id simtype.PodID) {
	if _, ok := g.AliveUIDs[id]; ok {
		return // already tracked, e.g. a duplicate fan-out of the same AddPod
	}
	g.AliveUIDs[id] = struct{}{}
	g.LastMetrics[id] = lastMetric{Phase: simtype.PhasePending}
}

// updateWithMetrics applies the Running/Terminal/Re-schedule transition
// table to the group's numerators and running count.
func (g *GroupInfo) updateWithMetrics(id simtype.PodID, newPhase simtype.Phase, cpu, memory float64) {
	prev, tracked := g.LastMetrics[id]
	if !tracked {
		return // pod not managed by this group (raced with RemovePodGroup)
	}

	switch {
	case prev.Phase == simtype.PhaseRunning:
		g.NumeratorCPU -= prev.CPU
		g.NumeratorMemory -= prev.Memory
		switch {
		case newPhase == simtype.PhaseRunning:
			g.NumeratorCPU += cpu
			g.NumeratorMemory += memory
		case newPhase.Terminal():
			g.RunningPodCount--
			delete(g.AliveUIDs, id)
		default: // re-schedule: Pending, Evicted, Preempted
			g.RunningPodCount--
		}
	case prev.Phase.Reschedulable():
		switch {
		case newPhase == simtype.PhaseRunning:
			g.NumeratorCPU += cpu
			g.NumeratorMemory += memory
			g.RunningPodCount++
		case newPhase.Terminal():
			delete(g.AliveUIDs, id)
		default:
			// re-schedule -> re-schedule, no-op
		}
	default:
		panic("hpa: pod metrics update after terminal phase for pod " + strconv.FormatInt(int64(id), 10))
	}

	g.LastMetrics[id] = lastMetric{Phase: newPhase, CPU: cpu, Memory: memory}
}

// maxAliveUID returns the greatest currently-alive pod id, used to pick a
// scale-down victim. The original orders alive_uids in a BTreeSet purely
// to support "remove the largest id"; a linear scan over the id set gives
// the same answer without carrying a sorted-set library for one query.
func (g *GroupInfo) maxAliveUID() (simtype.PodID, bool) {
	var max simtype.PodID
	found := false
	for id := range g.AliveUIDs {
		if !found || id > max {
			max = id
			found = true
		}
	}
	return max, found
}
