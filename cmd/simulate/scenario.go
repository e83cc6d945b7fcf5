package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vpsie/cluster-simulator/internal/config"
	"github.com/vpsie/cluster-simulator/internal/simtype"
	"github.com/vpsie/cluster-simulator/internal/traceio"
)

// scenarioFlags holds every flag shared between run and validate: the
// trace file to load and the handful of knobs needed to build an
// InitConfig/InitNodes pair without a YAML configuration surface.
type scenarioFlags struct {
	tracePath string

	fleetCPU    int64
	fleetMemory int64
	fleetAmount int

	enableCA    bool
	caCPU       int64
	caMemory    int64
	caAmount    int

	enableHPA bool
	enableVPA bool

	networkDelay float64
	tickPeriod   float64
}

func addScenarioFlags(cmd *cobra.Command) *scenarioFlags {
	f := &scenarioFlags{}
	flags := cmd.Flags()
	flags.StringVar(&f.tracePath, "trace", "", "path to a trace file in the AddPodGroup CSV grammar (required)")
	flags.Int64Var(&f.fleetCPU, "fleet-cpu", 4000, "milli-cores installed on each always-on fleet node")
	flags.Int64Var(&f.fleetMemory, "fleet-memory", 4_000_000_000, "bytes installed on each always-on fleet node")
	flags.IntVar(&f.fleetAmount, "fleet-amount", 1, "number of always-on fleet nodes")
	flags.BoolVar(&f.enableCA, "enable-ca", false, "enable the cluster autoscaler")
	flags.Int64Var(&f.caCPU, "ca-cpu", 4000, "milli-cores installed on each CA-managed node")
	flags.Int64Var(&f.caMemory, "ca-memory", 4_000_000_000, "bytes installed on each CA-managed node")
	flags.IntVar(&f.caAmount, "ca-amount", 4, "number of nodes available in the CA-managed pool")
	flags.BoolVar(&f.enableHPA, "enable-hpa", false, "enable the horizontal pod autoscaler")
	flags.BoolVar(&f.enableVPA, "enable-vpa", false, "enable the vertical pod autoscaler")
	flags.Float64Var(&f.networkDelay, "network-delay", 0.1, "simulated one-way network delay applied uniformly between the hub and every component")
	flags.Float64Var(&f.tickPeriod, "tick-period", 5, "self-update period for monitoring and every enabled autoscaler control loop")
	return f
}

func (f *scenarioFlags) config() *config.InitConfig {
	return &config.InitConfig{
		NetworkDelays: config.NetworkDelays{
			APIToScheduler: f.networkDelay, SchedulerToAPI: f.networkDelay,
			APIToAgent: f.networkDelay, AgentToAPI: f.networkDelay,
			APIToCA: f.networkDelay, CAToAPI: f.networkDelay,
			APIToHPA: f.networkDelay, HPAToAPI: f.networkDelay,
			APIToVPA: f.networkDelay, VPAToAPI: f.networkDelay,
		},
		Monitoring: config.MonitoringConfig{SelfUpdatePeriod: f.tickPeriod},
		Scheduler:  config.SchedulerConfig{UnschedulableQueueBackoffDelay: f.tickPeriod, SelfUpdatePeriod: f.tickPeriod},
		CA: config.CAConfig{
			SelfUpdatePeriod: f.tickPeriod, AddNodeISPDelay: f.tickPeriod, AddNodePendingThreshold: 0,
			RemoveNodeCPUFraction: 0.2, RemoveNodeMemoryFraction: 0.2, RemoveNodeCycleDelay: 3,
		},
		HPA: config.HPAConfig{SelfUpdatePeriod: f.tickPeriod},
		VPA: config.VPAConfig{
			SelfUpdatePeriod: f.tickPeriod, RescheduleDelay: f.tickPeriod,
			HistogramUpdateFrequency: f.tickPeriod, RecommendationMarginFraction: 1.1, LimitMarginFraction: 1.2,
		},
	}
}

func (f *scenarioFlags) nodes() config.InitNodes {
	var nodes config.InitNodes
	if f.fleetAmount > 0 {
		nodes.Fleet = []simtype.NodeGroup{{
			ID:        1,
			Installed: simtype.Resource{CPU: f.fleetCPU, Memory: f.fleetMemory},
			Amount:    f.fleetAmount,
		}}
	}
	if f.enableCA && f.caAmount > 0 {
		nodes.CAManaged = []simtype.NodeGroup{{
			ID:        2,
			Installed: simtype.Resource{CPU: f.caCPU, Memory: f.caMemory},
			Amount:    f.caAmount,
		}}
	}
	return nodes
}

func (f *scenarioFlags) trace() (config.InitTrace, error) {
	if f.tracePath == "" {
		return config.InitTrace{}, fmt.Errorf("simulate: --trace is required")
	}
	file, err := os.Open(f.tracePath)
	if err != nil {
		return config.InitTrace{}, fmt.Errorf("simulate: opening trace file: %w", err)
	}
	defer file.Close()

	trace, err := traceio.ParseTrace(file, simtype.NewIDGenerator())
	if err != nil {
		return config.InitTrace{}, fmt.Errorf("simulate: parsing trace file: %w", err)
	}
	return trace, nil
}
