// Package metrics exposes the prometheus collectors the simulation driver
// registers to make one run's behavior inspectable after the fact,
// grounded on pkg/metrics/metrics.go's namespace and collector-construction
// conventions.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Namespace is the metrics namespace for every collector in this package.
const Namespace = "cluster_sim"

// Recorder bundles every collector the core components report to. The
// components accept a nil *Recorder and then report nothing;
// NewNopRecorder gives a non-nil one backed by a private registry.
type Recorder struct {
	SchedulingCycleDuration prometheus.Histogram
	PodsScheduled           prometheus.Counter
	PodsPreempted           prometheus.Counter
	PodsEvicted             prometheus.Counter
	PodsFailedToSchedule    prometheus.Counter
	CAScaleUps              prometheus.Counter
	CAScaleDowns            prometheus.Counter
	HPADecisions            *prometheus.CounterVec
	VPARecommendations      prometheus.Counter
	NodeUtilizationCPU      *prometheus.GaugeVec
	NodeUtilizationMemory   *prometheus.GaugeVec
}

// NewRecorder constructs and registers every collector against reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		SchedulingCycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "scheduling_cycle_duration_seconds",
			Help:      "Wall-clock-equivalent simulated seconds spent per scheduling cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		PodsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: "pods_scheduled_total", Help: "Total pods successfully placed.",
		}),
		PodsPreempted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: "pods_preempted_total", Help: "Total pods preempted to admit a higher-priority pod.",
		}),
		PodsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: "pods_evicted_total", Help: "Total pods evicted by a node agent under resource pressure.",
		}),
		PodsFailedToSchedule: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: "pods_failed_to_schedule_total", Help: "Total scheduling attempts that found no feasible node.",
		}),
		CAScaleUps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: "ca_scale_ups_total", Help: "Total cluster autoscaler node additions.",
		}),
		CAScaleDowns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: "ca_scale_downs_total", Help: "Total cluster autoscaler node removals.",
		}),
		HPADecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Name: "hpa_decisions_total", Help: "Total horizontal autoscaler add/remove decisions.",
		}, []string{"action"}),
		VPARecommendations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: "vpa_recommendations_total", Help: "Total vertical autoscaler reschedule recommendations applied.",
		}),
		NodeUtilizationCPU: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace, Name: "node_cpu_utilization_ratio", Help: "Per-node cpu utilization fraction as last reported to the cluster autoscaler.",
		}, []string{"node"}),
		NodeUtilizationMemory: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace, Name: "node_memory_utilization_ratio", Help: "Per-node memory utilization fraction as last reported to the cluster autoscaler.",
		}, []string{"node"}),
	}
	reg.MustRegister(
		r.SchedulingCycleDuration, r.PodsScheduled, r.PodsPreempted, r.PodsEvicted,
		r.PodsFailedToSchedule, r.CAScaleUps, r.CAScaleDowns, r.HPADecisions,
		r.VPARecommendations, r.NodeUtilizationCPU, r.NodeUtilizationMemory,
	)
	return r
}

// NewNopRecorder constructs a recorder registered against a fresh private
// registry, for components and tests that need a non-nil Recorder but do
// not care about reading its values back.
func NewNopRecorder() *Recorder {
	return NewRecorder(prometheus.NewRegistry())
}
