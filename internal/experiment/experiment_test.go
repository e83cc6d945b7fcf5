package experiment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vpsie/cluster-simulator/internal/config"
	"github.com/vpsie/cluster-simulator/internal/loadprofile"
	"github.com/vpsie/cluster-simulator/internal/scheduler/pipeline"
	"github.com/vpsie/cluster-simulator/internal/simtype"
	"github.com/vpsie/cluster-simulator/pkg/simulation"
)

func testConfig() *config.InitConfig {
	cfg := &config.InitConfig{
		NetworkDelays: config.NetworkDelays{APIToScheduler: 0.1, SchedulerToAPI: 0.1, APIToAgent: 0.1, AgentToAPI: 0.1},
		Monitoring:    config.MonitoringConfig{SelfUpdatePeriod: 5},
		Scheduler:     config.SchedulerConfig{UnschedulableQueueBackoffDelay: 1, SelfUpdatePeriod: 1},
		CA:            config.CAConfig{SelfUpdatePeriod: 1},
		HPA:           config.HPAConfig{SelfUpdatePeriod: 1},
		VPA:           config.VPAConfig{SelfUpdatePeriod: 1, HistogramUpdateFrequency: 1},
	}
	return cfg
}

func testNodesAndTrace(groupID simtype.GroupID) (config.InitNodes, config.InitTrace) {
	nodes := config.InitNodes{
		Fleet: []simtype.NodeGroup{{ID: 1, Installed: simtype.Resource{CPU: 2000, Memory: 2_000_000_000}, Amount: 1}},
	}
	trace := config.InitTrace{Entries: []config.TraceEntry{{SubmitTime: 0, Group: simtype.PodGroup{
		ID: groupID, Count: 1,
		Template: simtype.PodSpec{
			Request:         simtype.Resource{CPU: 500, Memory: 500},
			LoadProfileSpec: &loadprofile.Constant{CPU: 500, Memory: 500, Duration: 5},
		},
	}}}}
	return nodes, trace
}

func TestJoinAllWaitsForEveryRun(t *testing.T) {
	e := New()
	for i := 0; i < 3; i++ {
		nodes, trace := testNodesAndTrace(simtype.GroupID(i + 1))
		e.AddSimulation(Run{
			Name: "run", Config: testConfig(), Nodes: nodes, Trace: trace,
			PipelineCfg: pipeline.DefaultConfig(), Logger: zap.NewNop(),
			Drive: func(s *simulation.Simulation) error {
				s.RunUntilTime(10)
				return nil
			},
		})
	}
	e.SpawnAll()
	results := e.JoinAll()

	require.Len(t, results, 3)
	for _, r := range results {
		require.NoError(t, r.Err)
		require.NotNil(t, r.Sim)
	}
}

func TestJoinAllPropagatesDriveError(t *testing.T) {
	e := New()
	nodes, trace := testNodesAndTrace(1)
	wantErr := errors.New("boom")
	e.AddSimulation(Run{
		Name: "failing", Config: testConfig(), Nodes: nodes, Trace: trace,
		PipelineCfg: pipeline.DefaultConfig(), Logger: zap.NewNop(),
		Drive: func(s *simulation.Simulation) error { return wantErr },
	})
	e.SpawnAll()
	results := e.JoinAll()

	require.Len(t, results, 1)
	require.ErrorIs(t, results[0].Err, wantErr)
}

func TestJoinAllRecoversFromPanickingDriver(t *testing.T) {
	e := New()
	nodes, trace := testNodesAndTrace(1)
	e.AddSimulation(Run{
		Name: "panics", Config: testConfig(), Nodes: nodes, Trace: trace,
		PipelineCfg: pipeline.DefaultConfig(), Logger: zap.NewNop(),
		Drive: func(s *simulation.Simulation) error { panic("kaboom") },
	})
	e.SpawnAll()
	results := e.JoinAll()

	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
}

func TestSpawnAllClearsQueue(t *testing.T) {
	e := New()
	nodes, trace := testNodesAndTrace(1)
	e.AddSimulation(Run{
		Name: "one", Config: testConfig(), Nodes: nodes, Trace: trace,
		PipelineCfg: pipeline.DefaultConfig(), Logger: zap.NewNop(),
		Drive: func(s *simulation.Simulation) error { return nil },
	})
	e.SpawnAll()
	require.Empty(t, e.pending)
	e.JoinAll()
}
