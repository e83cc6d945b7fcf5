// Package hpa implements the horizontal pod autoscaler described in
// spec.md §4.6: per-group running-pod numerators maintained from pod
// phase transitions, and a periodic four-rule decision loop that adds or
// removes pods to keep each managed group's size and mean utilization
// within its profile.
//
// Grounded on kuber_sim/src/autoscaler/hpa/{hpa,hpa_group_info}.rs.
package hpa

import (
	"go.uber.org/zap"

	"github.com/vpsie/cluster-simulator/internal/apihub"
	"github.com/vpsie/cluster-simulator/internal/config"
	"github.com/vpsie/cluster-simulator/internal/eventbus"
	"github.com/vpsie/cluster-simulator/internal/metrics"
	"github.com/vpsie/cluster-simulator/internal/simevents"
	"github.com/vpsie/cluster-simulator/internal/simlog"
	"github.com/vpsie/cluster-simulator/internal/simtype"
)

// HPA is the horizontal autoscaler control loop for one simulation.
type HPA struct {
	bus     *eventbus.Bus
	delays  config.NetworkDelays
	cfg     config.HPAConfig
	logger  *zap.Logger
	metrics *metrics.Recorder
	podIDs  *simtype.IDGenerator

	groups map[simtype.GroupID]*GroupInfo
}

// New constructs an empty horizontal autoscaler. podIDs must be the same
// generator apihub uses to mint pod ids, since HPA mints pod ids directly
// when scaling a group up.
func New(bus *eventbus.Bus, delays config.NetworkDelays, cfg config.HPAConfig, logger *zap.Logger, rec *metrics.Recorder, podIDs *simtype.IDGenerator) *HPA {
	h := &HPA{
		bus:     bus,
		delays:  delays,
		cfg:     cfg,
		logger:  logger,
		metrics: rec,
		podIDs:  podIDs,
		groups:  map[simtype.GroupID]*GroupInfo{},
	}
	bus.Register(apihub.KeyHPA, h.handle)
	return h
}

// Start arms the first decision tick.
func (h *HPA) Start() {
	h.bus.Schedule(apihub.KeyHPA, apihub.KeyHPA, simevents.KindHPATick, simevents.HPATick{}, h.cfg.SelfUpdatePeriod)
}

func (h *HPA) handle(now float64, ev eventbus.Event) {
	switch ev.Kind {
	case simevents.KindHPATick:
		h.onTick()
	case simevents.KindAddPodGroup:
		h.onAddPodGroup(ev.Payload.(simevents.AddPodGroup))
	case simevents.KindRemovePodGroup:
		delete(h.groups, ev.Payload.(simevents.RemovePodGroup).GroupID)
	case simevents.KindAddPod:
		h.onAddPod(ev.Payload.(simevents.AddPod))
	case simevents.KindPodUpdateFromAgent:
		h.onPodUpdateFromAgent(ev.Payload.(simevents.PodUpdateFromAgent))
	default:
		simlog.LogTransientCondition(h.logger, "hpa", "unknown event kind "+ev.Kind)
	}
}

func (h *HPA) onAddPodGroup(a simevents.AddPodGroup) {
	if a.Group.HPAProfile == nil {
		return
	}
	if _, exists := h.groups[a.Group.ID]; exists {
		panic("hpa: duplicate AddPodGroup for already-managed group")
	}
	h.groups[a.Group.ID] = newGroupInfo(a.Group)
}

func (h *HPA) onAddPod(a simevents.AddPod) {
	group, managed := h.groups[a.Pod.GroupID]
	if !managed {
		return
	}
	group.addNewPod(a.Pod.ID)
}

func (h *HPA) onPodUpdateFromAgent(u simevents.PodUpdateFromAgent) {
	group, managed := h.groups[u.GroupID]
	if !managed {
		return
	}
	group.updateWithMetrics(u.PodID, u.Phase, float64(u.CPU), float64(u.Memory))
}

// onTick evaluates every managed group's four scaling rules in order:
// undersized, oversized, low-utilization scale-down, high-utilization
// scale-up. Utilization is the mean usage per running pod divided by the
// group template's request. At most one action fires per group per tick.
func (h *HPA) onTick() {
	for groupID, info := range h.groups {
		n := len(info.AliveUIDs)
		profile := info.Profile
		meanCPU := info.NumeratorCPU / float64(info.RunningPodCount) / float64(info.PodTemplate.Request.CPU)
		meanMemory := info.NumeratorMemory / float64(info.RunningPodCount) / float64(info.PodTemplate.Request.Memory)

		switch {
		case n < profile.MinSize:
			h.scaleUp(groupID, info)
		case n > profile.MaxSize:
			h.scaleDown(groupID, info)
		case n > profile.MinSize && meanCPU <= profile.ScaleDownCPUFraction && meanMemory <= profile.ScaleDownMemoryFraction:
			h.scaleDown(groupID, info)
		case n < profile.MaxSize && (meanCPU >= profile.ScaleUpCPUFraction || meanMemory >= profile.ScaleUpMemoryFraction):
			h.scaleUp(groupID, info)
		}
	}
}

func (h *HPA) scaleUp(groupID simtype.GroupID, info *GroupInfo) {
	pod := simtype.NewPod(simtype.PodID(h.podIDs.Next()), groupID, info.PodTemplate, nil)
	h.bus.Schedule(apihub.KeyHPA, apihub.Key, simevents.KindAddPod, simevents.AddPod{Pod: pod}, h.delays.HPAToAPI)
	if h.metrics != nil {
		h.metrics.HPADecisions.WithLabelValues("scale_up").Inc()
	}
}

func (h *HPA) scaleDown(groupID simtype.GroupID, info *GroupInfo) {
	victim, ok := info.maxAliveUID()
	if !ok {
		simlog.LogTransientCondition(h.logger, "hpa", "scale-down decided with no alive pod to remove")
		return
	}
	h.bus.Schedule(apihub.KeyHPA, apihub.Key, simevents.KindRemovePod, simevents.RemovePod{PodID: victim}, h.delays.HPAToAPI)
	if h.metrics != nil {
		h.metrics.HPADecisions.WithLabelValues("scale_down").Inc()
	}
}
