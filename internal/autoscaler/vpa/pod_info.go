package vpa

import (
	"github.com/vpsie/cluster-simulator/internal/config"
	"github.com/vpsie/cluster-simulator/internal/simtype"
)

const histogramGroupingPower = 7

// PodInfo is one pod's vertical-scaling state: its lifetime, its resource
// baseline at admission, running CPU/memory histograms sampled whenever it
// is observed Running, and whether it has already been rescheduled once.
type PodInfo struct {
	StartTime float64
	LastTime  float64
	LastPhase simtype.Phase
	LastCPU   float64
	LastMemory float64

	BaselineRequest simtype.Resource
	BaselineLimit   simtype.Resource

	HistCPU    *Histogram
	HistMemory *Histogram

	IsRescheduled bool
}

func newPodInfo(pod *simtype.Pod, now float64) *PodInfo {
	return &PodInfo{
		StartTime:       now,
		LastTime:        now,
		LastPhase:       simtype.PhasePending,
		BaselineRequest: pod.Spec.Request,
		BaselineLimit:   pod.Spec.Limit,
		HistCPU:         NewHistogram(histogramGroupingPower),
		HistMemory:      NewHistogram(histogramGroupingPower),
	}
}

func (p *PodInfo) sampleSinceLast(cfg config.VPAConfig, now float64) {
	if p.LastPhase != simtype.PhaseRunning {
		return
	}
	past := int64((now - p.LastTime) / cfg.HistogramUpdateFrequency)
	if past <= 0 {
		return
	}
	p.HistCPU.Add(int64(p.LastCPU), past)
	p.HistMemory.Add(int64(p.LastMemory), past)
}

// updateWithMetrics records a new observed phase/usage sample. The
// histogram only ever accumulates on a Running -> Running transition: a
// pod that just started running has no prior usage to credit, and a pod
// leaving Running stops contributing from that point on.
func (p *PodInfo) updateWithMetrics(cfg config.VPAConfig, now float64, phase simtype.Phase, cpu, memory float64) {
	switch {
	case p.LastPhase == simtype.PhaseRunning && phase == simtype.PhaseRunning:
		p.sampleSinceLast(cfg, now)
	case p.LastPhase == simtype.PhaseRunning:
		// Running -> Finished or Running -> Re-schedule: no sample owed.
	case p.LastPhase.Reschedulable():
		// Re-schedule -> anything: no histogram contribution owed.
	default:
		panic("vpa: pod metrics update after terminal phase")
	}

	p.LastTime = now
	p.LastPhase = phase
	p.LastCPU = cpu
	p.LastMemory = memory
}

// updateWithTime advances the histograms to now without a fresh metrics
// sample, used by the periodic sweep to account for time elapsed since the
// pod's last reported metric.
func (p *PodInfo) updateWithTime(cfg config.VPAConfig, now float64) {
	p.sampleSinceLast(cfg, now)
	p.LastTime = now
}

func (p *PodInfo) isFailed() bool   { return p.LastPhase == simtype.PhaseFailed }
func (p *PodInfo) isFinished() bool { return p.LastPhase.Terminal() }

// suggest derives (request_cpu, request_memory, limit_cpu, limit_memory)
// from the pod's 90th-percentile observed usage, scaled against its
// baseline request and clamped to the group's allowed range.
func (p *PodInfo) suggest(cfg config.VPAConfig, profile simtype.VPAProfile) (reqCPU, reqMem, limCPU, limMem int64) {
	cpuP90 := p.HistCPU.Percentile(90)
	memP90 := p.HistMemory.Percentile(90)

	reqCPU = clamp(int64(float64(p.BaselineRequest.CPU)*cpuP90*cfg.RecommendationMarginFraction), profile.MinAllowedCPU, profile.MaxAllowedCPU)
	reqMem = clamp(int64(float64(p.BaselineRequest.Memory)*memP90*cfg.RecommendationMarginFraction), profile.MinAllowedMemory, profile.MaxAllowedMemory)
	limCPU = int64(float64(reqCPU) * cfg.LimitMarginFraction)
	limMem = int64(float64(reqMem) * cfg.LimitMarginFraction)
	return
}

func clamp(v, min, max int64) int64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// needReschedule reports whether the pod has run long enough past
// reschedule_delay and its suggested request diverges from its baseline
// request by at least the configured gap, on either dimension.
func (p *PodInfo) needReschedule(cfg config.VPAConfig, profile simtype.VPAProfile, now float64) bool {
	if now-p.StartTime <= cfg.RescheduleDelay {
		return false
	}
	reqCPU, reqMem, _, _ := p.suggest(cfg, profile)
	dCPU := relativeGap(reqCPU, p.BaselineRequest.CPU)
	dMem := relativeGap(reqMem, p.BaselineRequest.Memory)
	return dCPU >= cfg.GapCPU || dMem >= cfg.GapMemory
}

func relativeGap(suggested, baseline int64) float64 {
	if baseline == 0 {
		return 0
	}
	d := float64(suggested)/float64(baseline) - 1
	if d < 0 {
		return -d
	}
	return d
}
