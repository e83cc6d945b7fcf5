// Package config holds the already-parsed configuration structures the
// simulation core consumes: InitConfig, InitNodes, and InitTrace. Parsing
// these from CSV/YAML text is an external collaborator's job
// (internal/traceio for the trace/load grammars); this package only
// validates the parsed structures' invariants before a simulation starts.
package config

import (
	"fmt"

	"github.com/vpsie/cluster-simulator/internal/simtype"
)

// NetworkDelays holds the ten directional delivery delays between the API
// hub and each of the other five components, plus the derived maximum used
// by RemovePodGroup's delayed second notice.
type NetworkDelays struct {
	APIToScheduler, SchedulerToAPI float64
	APIToAgent, AgentToAPI         float64
	APIToCA, CAToAPI               float64
	APIToHPA, HPAToAPI             float64
	APIToVPA, VPAToAPI             float64
}

// Max returns the largest of the ten delays.
func (d NetworkDelays) Max() float64 {
	vals := []float64{
		d.APIToScheduler, d.SchedulerToAPI,
		d.APIToAgent, d.AgentToAPI,
		d.APIToCA, d.CAToAPI,
		d.APIToHPA, d.HPAToAPI,
		d.APIToVPA, d.VPAToAPI,
	}
	max := vals[0]
	for _, v := range vals[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// Validate checks all ten delays are non-negative.
func (d NetworkDelays) Validate() error {
	vals := map[string]float64{
		"api_to_scheduler": d.APIToScheduler, "scheduler_to_api": d.SchedulerToAPI,
		"api_to_agent": d.APIToAgent, "agent_to_api": d.AgentToAPI,
		"api_to_ca": d.APIToCA, "ca_to_api": d.CAToAPI,
		"api_to_hpa": d.APIToHPA, "hpa_to_api": d.HPAToAPI,
		"api_to_vpa": d.APIToVPA, "vpa_to_api": d.VPAToAPI,
	}
	for name, v := range vals {
		if v < 0 {
			return fmt.Errorf("config: network delay %s must be >= 0, got %v: %w", name, v, ErrInvalidConfig)
		}
	}
	return nil
}

// MonitoringConfig configures the periodic status-line cadence.
type MonitoringConfig struct {
	SelfUpdatePeriod float64
}

func (c MonitoringConfig) Validate() error {
	if c.SelfUpdatePeriod <= 0 {
		return fmt.Errorf("config: monitoring.self_update_period must be > 0: %w", ErrInvalidConfig)
	}
	return nil
}

// SchedulerConfig configures the scheduler's cycle and backoff behavior.
type SchedulerConfig struct {
	UnschedulableQueueBackoffDelay float64
	SelfUpdatePeriod               float64
	CycleMaxScheduled              int // 0 means unbounded
	CycleMaxToTry                  int // 0 means unbounded
}

func (c SchedulerConfig) Validate() error {
	if c.UnschedulableQueueBackoffDelay < 0 {
		return fmt.Errorf("config: scheduler.unschedulable_queue_backoff_delay must be >= 0: %w", ErrInvalidConfig)
	}
	if c.SelfUpdatePeriod <= 0 {
		return fmt.Errorf("config: scheduler.self_update_period must be > 0: %w", ErrInvalidConfig)
	}
	if c.CycleMaxScheduled < 0 || c.CycleMaxToTry < 0 {
		return fmt.Errorf("config: scheduler cycle bounds must be >= 0: %w", ErrInvalidConfig)
	}
	return nil
}

// CAConfig configures the cluster autoscaler's control loop.
type CAConfig struct {
	SelfUpdatePeriod         float64
	AddNodeISPDelay          float64
	AddNodePendingThreshold  int
	RemoveNodeCPUFraction    float64
	RemoveNodeMemoryFraction float64
	RemoveNodeCycleDelay     int
}

func (c CAConfig) Validate() error {
	if c.SelfUpdatePeriod <= 0 {
		return fmt.Errorf("config: ca.self_update_period must be > 0: %w", ErrInvalidConfig)
	}
	if c.RemoveNodeCPUFraction < 0 || c.RemoveNodeCPUFraction > 1 {
		return fmt.Errorf("config: ca.remove_node_cpu_fraction must be in [0,1]: %w", ErrInvalidConfig)
	}
	if c.RemoveNodeMemoryFraction < 0 || c.RemoveNodeMemoryFraction > 1 {
		return fmt.Errorf("config: ca.remove_node_memory_fraction must be in [0,1]: %w", ErrInvalidConfig)
	}
	if c.RemoveNodeCycleDelay < 0 {
		return fmt.Errorf("config: ca.remove_node_cycle_delay must be >= 0: %w", ErrInvalidConfig)
	}
	return nil
}

// HPAConfig configures the horizontal autoscaler's tick cadence.
type HPAConfig struct {
	SelfUpdatePeriod float64
}

func (c HPAConfig) Validate() error {
	if c.SelfUpdatePeriod <= 0 {
		return fmt.Errorf("config: hpa.self_update_period must be > 0: %w", ErrInvalidConfig)
	}
	return nil
}

// VPAConfig configures the vertical autoscaler's sweep cadence and
// histogram/recommendation parameters.
type VPAConfig struct {
	SelfUpdatePeriod            float64
	RescheduleDelay             float64
	HistogramUpdateFrequency    float64
	GapCPU                      float64
	GapMemory                   float64
	RecommendationMarginFraction float64
	LimitMarginFraction         float64
}

func (c VPAConfig) Validate() error {
	if c.SelfUpdatePeriod <= 0 {
		return fmt.Errorf("config: vpa.self_update_period must be > 0: %w", ErrInvalidConfig)
	}
	if c.HistogramUpdateFrequency <= 0 {
		return fmt.Errorf("config: vpa.histogram_update_frequency must be > 0: %w", ErrInvalidConfig)
	}
	return nil
}

// InitConfig is the top-level configuration record passed to a prepared
// simulation.
type InitConfig struct {
	NetworkDelays NetworkDelays
	Monitoring    MonitoringConfig
	Scheduler     SchedulerConfig
	CA            CAConfig
	HPA           HPAConfig
	VPA           VPAConfig

	prepared bool
}

// Validate checks every sub-config's invariants. Preparing an InitConfig
// twice is a no-op: Validate is idempotent and safe to call repeatedly.
func (c *InitConfig) Validate() error {
	if err := c.NetworkDelays.Validate(); err != nil {
		return err
	}
	if err := c.Monitoring.Validate(); err != nil {
		return err
	}
	if err := c.Scheduler.Validate(); err != nil {
		return err
	}
	if err := c.CA.Validate(); err != nil {
		return err
	}
	if err := c.HPA.Validate(); err != nil {
		return err
	}
	if err := c.VPA.Validate(); err != nil {
		return err
	}
	c.prepared = true
	return nil
}

// Prepared reports whether Validate has already succeeded once.
func (c *InitConfig) Prepared() bool { return c.prepared }

// InitNodes is the two node-group lists: the always-on fleet and the
// CA-managed pool.
type InitNodes struct {
	Fleet      []simtype.NodeGroup
	CAManaged  []simtype.NodeGroup
}

// TraceEntry is one (submit_time, AddPodGroup) entry from InitTrace.
type TraceEntry struct {
	SubmitTime float64
	Group      simtype.PodGroup
}

// InitTrace is the time-ordered list of pod group submissions.
type InitTrace struct {
	Entries []TraceEntry
}

// ErrInvalidConfig is the sentinel wrapped by every configuration
// invariant violation, so callers can classify the error kind with
// errors.Is without string matching.
var ErrInvalidConfig = fmt.Errorf("invalid configuration")
