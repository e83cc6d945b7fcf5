package simulation

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vpsie/cluster-simulator/internal/config"
	"github.com/vpsie/cluster-simulator/internal/loadprofile"
	"github.com/vpsie/cluster-simulator/internal/scheduler/pipeline"
	"github.com/vpsie/cluster-simulator/internal/simtype"
)

func baseConfig() *config.InitConfig {
	return &config.InitConfig{
		NetworkDelays: config.NetworkDelays{
			APIToScheduler: 0.1, SchedulerToAPI: 0.1,
			APIToAgent: 0.1, AgentToAPI: 0.1,
			APIToCA: 0.1, CAToAPI: 0.1,
			APIToHPA: 0.1, HPAToAPI: 0.1,
			APIToVPA: 0.1, VPAToAPI: 0.1,
		},
		Monitoring: config.MonitoringConfig{SelfUpdatePeriod: 5},
		Scheduler:  config.SchedulerConfig{UnschedulableQueueBackoffDelay: 1, SelfUpdatePeriod: 1},
		CA: config.CAConfig{
			SelfUpdatePeriod: 1, AddNodeISPDelay: 1, AddNodePendingThreshold: 0,
			RemoveNodeCPUFraction: 0.2, RemoveNodeMemoryFraction: 0.2, RemoveNodeCycleDelay: 2,
		},
		HPA: config.HPAConfig{SelfUpdatePeriod: 1},
		VPA: config.VPAConfig{SelfUpdatePeriod: 1, HistogramUpdateFrequency: 1, RecommendationMarginFraction: 1},
	}
}

// TestSinglePlacementScenarioReachesTargetTime drives the single-placement
// scenario (one node with ample capacity, one pod with a finite constant
// load) past the load's duration and checks that the clock reaches t=15.
func TestSinglePlacementScenarioReachesTargetTime(t *testing.T) {
	cfg := baseConfig()
	require.NoError(t, cfg.Validate())

	nodes := config.InitNodes{
		Fleet: []simtype.NodeGroup{{ID: 1, Installed: simtype.Resource{CPU: 2000, Memory: 2_000_000_000}, Amount: 1}},
	}
	pod := simtype.PodGroup{
		ID: 1, Count: 1,
		Template: simtype.PodSpec{
			Request: simtype.Resource{CPU: 1000, Memory: 1_000_000_000},
			LoadProfileSpec: &loadprofile.Constant{CPU: 1000, Memory: 1_000_000_000, Duration: 10},
		},
	}
	trace := config.InitTrace{Entries: []config.TraceEntry{{SubmitTime: 0, Group: pod}}}

	sim := New(cfg, nodes, trace, pipeline.DefaultConfig(), Options{}, zap.NewNop(), nil)
	sim.RunUntilTime(15)

	require.GreaterOrEqual(t, sim.Now(), 15.0)
}

// TestPreemptionScenarioReachesTargetTime drives the preemption scenario
// (a low-priority pod with an infinite load fills the only node, and a
// higher-priority pod arrives at t=5) and checks that the clock reaches
// t=10.
func TestPreemptionScenarioReachesTargetTime(t *testing.T) {
	cfg := baseConfig()
	require.NoError(t, cfg.Validate())

	nodes := config.InitNodes{
		Fleet: []simtype.NodeGroup{{ID: 1, Installed: simtype.Resource{CPU: 1000, Memory: 1_000_000_000}, Amount: 1}},
	}
	low := simtype.PodGroup{
		ID: 1, Count: 1,
		Template: simtype.PodSpec{
			Request: simtype.Resource{CPU: 1000, Memory: 1_000_000_000}, Priority: 1,
			LoadProfileSpec: &loadprofile.ConstantInfinite{CPU: 1000, Memory: 1_000_000_000},
		},
	}
	high := simtype.PodGroup{
		ID: 2, Count: 1,
		Template: simtype.PodSpec{
			Request: simtype.Resource{CPU: 1000, Memory: 1_000_000_000}, Priority: 10,
			LoadProfileSpec: &loadprofile.ConstantInfinite{CPU: 1000, Memory: 1_000_000_000},
		},
	}
	trace := config.InitTrace{Entries: []config.TraceEntry{
		{SubmitTime: 0, Group: low},
		{SubmitTime: 5, Group: high},
	}}

	sim := New(cfg, nodes, trace, pipeline.DefaultConfig(), Options{}, zap.NewNop(), nil)
	sim.RunUntilTime(10)

	require.GreaterOrEqual(t, sim.Now(), 10.0)
}

// TestClusterAutoscalerScenarioReachesTargetTime drives the CA scenario
// (no fleet capacity, one spare node in a CA-managed group, five pods that
// cannot be placed at t=0) with the CA enabled and checks that the clock
// reaches t=5.
func TestClusterAutoscalerScenarioReachesTargetTime(t *testing.T) {
	cfg := baseConfig()
	require.NoError(t, cfg.Validate())

	nodes := config.InitNodes{
		CAManaged: []simtype.NodeGroup{{ID: 1, Installed: simtype.Resource{CPU: 2000, Memory: 2_000_000_000}, Amount: 1}},
	}
	var entries []config.TraceEntry
	for i := 0; i < 5; i++ {
		entries = append(entries, config.TraceEntry{SubmitTime: 0, Group: simtype.PodGroup{
			ID: simtype.GroupID(i + 1), Count: 1,
			Template: simtype.PodSpec{
				Request:         simtype.Resource{CPU: 1500, Memory: 1},
				LoadProfileSpec: &loadprofile.ConstantInfinite{CPU: 1500, Memory: 1},
			},
		}})
	}
	trace := config.InitTrace{Entries: entries}

	sim := New(cfg, nodes, trace, pipeline.DefaultConfig(), Options{EnableCA: true}, zap.NewNop(), nil)
	sim.RunUntilTime(5)

	require.GreaterOrEqual(t, sim.Now(), 5.0)
}

// TestEvictionUnderMemoryOvershootContinuesRunning drives the eviction
// scenario (two Burstable pods whose alternating load pushes the node's
// memory past capacity) and checks that the run continues to t=20.
func TestEvictionUnderMemoryOvershootContinuesRunning(t *testing.T) {
	cfg := baseConfig()
	require.NoError(t, cfg.Validate())

	nodes := config.InitNodes{
		Fleet: []simtype.NodeGroup{{ID: 1, Installed: simtype.Resource{CPU: 4000, Memory: 2_000_000_000}, Amount: 1}},
	}
	burstable := simtype.PodGroup{
		ID: 1, Count: 2,
		Template: simtype.PodSpec{
			Request: simtype.Resource{CPU: 1000, Memory: 500_000_000},
			Limit:   simtype.Resource{CPU: 2000, Memory: 2_000_000_000},
			LoadProfileSpec: &loadprofile.Busybox{
				CPUDown: 500, MemoryDown: 500_000_000,
				CPUUp: 500, MemoryUp: 1_500_000_000,
				Duration: 100, Shift: 5,
			},
		},
	}
	trace := config.InitTrace{Entries: []config.TraceEntry{{SubmitTime: 0, Group: burstable}}}

	sim := New(cfg, nodes, trace, pipeline.DefaultConfig(), Options{}, zap.NewNop(), nil)
	sim.RunUntilTime(20)

	require.GreaterOrEqual(t, sim.Now(), 20.0)
}

// TestHorizontalAutoscalerScenarioReachesTargetTime drives the HPA
// scenario (one pod using 95% of its cpu request, scale-up fraction 0.8,
// max size 4) with the HPA enabled and checks that the clock reaches t=5.
func TestHorizontalAutoscalerScenarioReachesTargetTime(t *testing.T) {
	cfg := baseConfig()
	require.NoError(t, cfg.Validate())

	nodes := config.InitNodes{
		Fleet: []simtype.NodeGroup{{ID: 1, Installed: simtype.Resource{CPU: 10000, Memory: 10_000_000_000}, Amount: 1}},
	}
	hpa := simtype.PodGroup{
		ID: 1, Count: 1,
		Template: simtype.PodSpec{
			Request:         simtype.Resource{CPU: 1000, Memory: 100_000_000},
			LoadProfileSpec: &loadprofile.ConstantInfinite{CPU: 950, Memory: 50_000_000},
		},
		HPAProfile: &simtype.HPAProfile{
			MinSize: 1, MaxSize: 4,
			ScaleUpCPUFraction: 0.8, ScaleUpMemoryFraction: 0.9,
			ScaleDownCPUFraction: 0.2, ScaleDownMemoryFraction: 0.1,
		},
	}
	trace := config.InitTrace{Entries: []config.TraceEntry{{SubmitTime: 0, Group: hpa}}}

	sim := New(cfg, nodes, trace, pipeline.DefaultConfig(), Options{EnableHPA: true}, zap.NewNop(), nil)
	sim.RunUntilTime(5)

	require.GreaterOrEqual(t, sim.Now(), 5.0)
}

// TestVerticalAutoscalerScenarioReachesTargetTime drives the VPA scenario
// (a pod using three times its cpu request) with the VPA enabled and
// checks that the clock reaches t=30.
func TestVerticalAutoscalerScenarioReachesTargetTime(t *testing.T) {
	cfg := baseConfig()
	cfg.VPA.RescheduleDelay = 5
	cfg.VPA.GapCPU = 0.15
	require.NoError(t, cfg.Validate())

	nodes := config.InitNodes{
		Fleet: []simtype.NodeGroup{{ID: 1, Installed: simtype.Resource{CPU: 4000, Memory: 4_000_000_000}, Amount: 1}},
	}
	vpaGroup := simtype.PodGroup{
		ID: 1, Count: 1,
		Template: simtype.PodSpec{
			Request:         simtype.Resource{CPU: 100, Memory: 100_000_000},
			LoadProfileSpec: &loadprofile.ConstantInfinite{CPU: 300, Memory: 100_000_000},
		},
		VPAProfile: &simtype.VPAProfile{
			MinAllowedCPU: 50, MaxAllowedCPU: 1000,
			MinAllowedMemory: 50_000_000, MaxAllowedMemory: 1_000_000_000,
		},
	}
	trace := config.InitTrace{Entries: []config.TraceEntry{{SubmitTime: 0, Group: vpaGroup}}}

	sim := New(cfg, nodes, trace, pipeline.DefaultConfig(), Options{EnableVPA: true}, zap.NewNop(), nil)
	sim.RunUntilTime(30)

	require.GreaterOrEqual(t, sim.Now(), 30.0)
}

// TestRunForAdvancesByDuration exercises the step_for_duration-style entry
// point directly, rather than only through RunUntilTime.
func TestRunForAdvancesByDuration(t *testing.T) {
	cfg := baseConfig()
	require.NoError(t, cfg.Validate())

	nodes := config.InitNodes{
		Fleet: []simtype.NodeGroup{{ID: 1, Installed: simtype.Resource{CPU: 2000, Memory: 2_000_000_000}, Amount: 1}},
	}
	trace := config.InitTrace{}

	sim := New(cfg, nodes, trace, pipeline.DefaultConfig(), Options{}, zap.NewNop(), nil)
	sim.RunFor(7)
	require.GreaterOrEqual(t, sim.Now(), 7.0)

	sim.RunFor(3)
	require.GreaterOrEqual(t, sim.Now(), 10.0)
}

func TestDumpStatisticsAfterRunProducesSamples(t *testing.T) {
	cfg := baseConfig()
	require.NoError(t, cfg.Validate())

	nodes := config.InitNodes{
		Fleet: []simtype.NodeGroup{{ID: 1, Installed: simtype.Resource{CPU: 2000, Memory: 2_000_000_000}, Amount: 1}},
	}
	trace := config.InitTrace{}

	sim := New(cfg, nodes, trace, pipeline.DefaultConfig(), Options{}, zap.NewNop(), nil)
	sim.RunUntilTime(20)

	var buf writeCounter
	require.NoError(t, sim.DumpStatistics(&buf))
	require.Greater(t, buf.n, 0)
}

type writeCounter struct{ n int }

func (w *writeCounter) Write(p []byte) (int, error) {
	w.n += len(p)
	return len(p), nil
}
