package vpa

import (
	"github.com/vpsie/cluster-simulator/internal/config"
	"github.com/vpsie/cluster-simulator/internal/simtype"
)

// GroupInfo is one pod group's vertical-scaling state: every tracked pod's
// histogram info, the template used to synthesize a rescheduled pod, and
// the group's allowed resource range.
type GroupInfo struct {
	Pods        map[simtype.PodID]*PodInfo
	PodTemplate simtype.PodSpec
	Profile     simtype.VPAProfile
}

func newGroupInfo(group *simtype.PodGroup) *GroupInfo {
	return &GroupInfo{
		Pods:        map[simtype.PodID]*PodInfo{},
		PodTemplate: group.Template,
		Profile:     *group.VPAProfile,
	}
}

func (g *GroupInfo) addNewPod(pod *simtype.Pod, now float64) {
	if _, ok := g.Pods[pod.ID]; ok {
		return
	}
	g.Pods[pod.ID] = newPodInfo(pod, now)
}

func (g *GroupInfo) updateWithMetrics(cfg config.VPAConfig, id simtype.PodID, phase simtype.Phase, cpu, memory float64, now float64) {
	info, ok := g.Pods[id]
	if !ok {
		return
	}
	info.updateWithMetrics(cfg, now, phase, cpu, memory)
}

// removeAllFinished pops every pod that has reached a terminal phase,
// returning them so the caller can decide what to do with each (only
// Failed pods trigger a VPA-driven reschedule).
func (g *GroupInfo) removeAllFinished() map[simtype.PodID]*PodInfo {
	finished := map[simtype.PodID]*PodInfo{}
	for id, info := range g.Pods {
		if info.isFinished() {
			finished[id] = info
			delete(g.Pods, id)
		}
	}
	return finished
}

func (g *GroupInfo) updateAllWithTime(cfg config.VPAConfig, now float64) {
	for _, info := range g.Pods {
		info.updateWithTime(cfg, now)
	}
}
