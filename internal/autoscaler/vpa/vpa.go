// Package vpa implements the vertical pod autoscaler described in
// spec.md §4.7: per-pod CPU/memory histograms sampled while a pod runs, a
// percentile-based recommendation, and a periodic sweep that reschedules
// failed pods and pods whose usage has drifted too far from their
// baseline request.
//
// Grounded on kuber_sim/src/autoscaler/vpa/{vpa,vpa_pod_info,vpa_group_info}.rs.
package vpa

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

// VPA is the vertical autoscaler control loop for one simulation.
type VPA struct {
	bus     *eventbus.Bus
	delays  config.NetworkDelays
	cfg     config.VPAConfig
	logger  *zap.Logger
	metrics *metrics.Recorder
	podIDs  *simtype.IDGenerator

	groups map[simtype.GroupID]*GroupInfo
}

// New constructs an empty vertical autoscaler. podIDs must be the same
// generator apihub and hpa use to mint pod ids.
func New(bus *eventbus.Bus, delays config.NetworkDelays, cfg config.VPAConfig, logger *zap.Logger, rec *metrics.Recorder, podIDs *simtype.IDGenerator) *VPA {
	v := &VPA{
		bus:     bus,
		delays:  delays,
		cfg:     cfg,
		logger:  logger,
		metrics: rec,
		podIDs:  podIDs,
		groups:  map[simtype.GroupID]*GroupInfo{},
	}
	bus.Register(apihub.KeyVPA, v.handle)
	return v
}

// Start arms the first sweep tick.
func (v *VPA) Start() {
	v.bus.Schedule(apihub.KeyVPA, apihub.KeyVPA, simevents.KindVPATick, simevents.VPATick{}, v.cfg.SelfUpdatePeriod)
}

func (v *VPA) handle(now float64, ev eventbus.Event) {
	switch ev.Kind {
	case simevents.KindVPATick:
		v.onTick()
	case simevents.KindAddPodGroup:
		v.onAddPodGroup(ev.Payload.(simevents.AddPodGroup))
	case simevents.KindRemovePodGroup:
		delete(v.groups, ev.Payload.(simevents.RemovePodGroup).GroupID)
	case simevents.KindAddPod:
		v.onAddPod(ev.Payload.(simevents.AddPod))
	case simevents.KindPodUpdateFromAgent:
		v.onPodUpdateFromAgent(ev.Payload.(simevents.PodUpdateFromAgent))
	default:
		simlog.LogTransientCondition(v.logger, "vpa", "unknown event kind "+ev.Kind)
	}
}

func (v *VPA) onAddPodGroup(a simevents.AddPodGroup) {
	if a.Group.VPAProfile == nil {
		return
	}
	if _, exists := v.groups[a.Group.ID]; exists {
		panic("vpa: duplicate AddPodGroup for already-managed group")
	}
	v.groups[a.Group.ID] = newGroupInfo(a.Group)
}

func (v *VPA) onAddPod(a simevents.AddPod) {
	group, managed := v.groups[a.Pod.GroupID]
	if !managed {
		return
	}
	group.addNewPod(a.Pod, v.bus.Now())
}

func (v *VPA) onPodUpdateFromAgent(u simevents.PodUpdateFromAgent) {
	group, managed := v.groups[u.GroupID]
	if !managed {
		return
	}
	group.updateWithMetrics(v.cfg, u.PodID, u.Phase, float64(u.CPU), float64(u.Memory), v.bus.Now())
}

// onTick reschedules failed pods with freshly suggested resources,
// advances every remaining pod's histogram to now, then reschedules any
// live, not-yet-rescheduled pod whose suggested request has drifted too
// far from its baseline.
func (v *VPA) onTick() {
	now := v.bus.Now()
	for groupID, group := range v.groups {
		for _, info := range group.removeAllFinished() {
			if !info.isFailed() {
				continue
			}
			v.reschedule(groupID, group, info)
		}

		group.updateAllWithTime(v.cfg, now)

		for id, info := range group.Pods {
			if info.IsRescheduled {
				continue
			}
			if !info.needReschedule(v.cfg, group.Profile, now) {
				continue
			}
			v.bus.Schedule(apihub.KeyVPA, apihub.Key, simevents.KindRemovePod, simevents.RemovePod{PodID: id}, v.delays.VPAToAPI)
			v.reschedule(groupID, group, info)
			info.IsRescheduled = true
		}
	}
}

func (v *VPA) reschedule(groupID simtype.GroupID, group *GroupInfo, info *PodInfo) {
	reqCPU, reqMem, limCPU, limMem := info.suggest(v.cfg, group.Profile)

	spec := group.PodTemplate
	spec.Request = simtype.Resource{CPU: reqCPU, Memory: reqMem}
	spec.Limit = simtype.Resource{CPU: limCPU, Memory: limMem}

	pod := simtype.NewPod(simtype.PodID(v.podIDs.Next()), groupID, spec, nil)
	v.bus.Schedule(apihub.KeyVPA, apihub.Key, simevents.KindAddPod, simevents.AddPod{Pod: pod}, v.delays.VPAToAPI)
	if v.metrics != nil {
		v.metrics.VPARecommendations.Inc()
	}
}
