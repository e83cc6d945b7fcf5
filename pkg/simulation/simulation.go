// Package simulation wires every internal component into one runnable
// simulation: the event bus, the API hub router, the scheduler, one node
// agent per fleet node, the optional CA/HPA/VPA autoscalers, and the
// monitoring sink. Grounded on kuber_sim/src/simulation/simulation.rs's
// Simulation::new, which performs the exact same construction sequence
// (api server, monitoring, scheduler, optional autoscalers, then the
// node fleet and trace) before handing control back to the caller.
package simulation

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/vpsie/cluster-simulator/internal/apihub"
	"github.com/vpsie/cluster-simulator/internal/autoscaler/ca"
	"github.com/vpsie/cluster-simulator/internal/autoscaler/hpa"
	"github.com/vpsie/cluster-simulator/internal/autoscaler/vpa"
	"github.com/vpsie/cluster-simulator/internal/config"
	"github.com/vpsie/cluster-simulator/internal/eventbus"
	"github.com/vpsie/cluster-simulator/internal/kubelet"
	"github.com/vpsie/cluster-simulator/internal/metrics"
	"github.com/vpsie/cluster-simulator/internal/monitoring"
	"github.com/vpsie/cluster-simulator/internal/scheduler"
	"github.com/vpsie/cluster-simulator/internal/scheduler/pipeline"
	"github.com/vpsie/cluster-simulator/internal/simevents"
	"github.com/vpsie/cluster-simulator/internal/simtype"
)

// Options selects which autoscalers are active for a run, mirroring
// Simulation::new's flag_add_ca/flag_add_hpa/flag_add_vpa parameters.
type Options struct {
	EnableCA  bool
	EnableHPA bool
	EnableVPA bool
}

// Simulation is one fully wired, independently runnable instance. Every
// field it owns is private: callers drive it exclusively through Step,
// RunUntilNoEvents, RunFor, and the monitoring accessors below, matching
// the original's opaque Simulation handle.
type Simulation struct {
	bus    *eventbus.Bus
	hub    *apihub.Hub
	delays config.NetworkDelays

	scheduler *scheduler.Scheduler
	ca        *ca.CA
	hpa       *hpa.HPA
	vpa       *vpa.VPA
	monitor   *monitoring.Monitor

	logger *zap.Logger

	podIDs  *simtype.IDGenerator
	nodeIDs *simtype.IDGenerator
}

// New constructs and fully wires a simulation from already-validated
// configuration. cfg must have had Validate called successfully; New does
// not re-check the invariants Validate already owns.
func New(cfg *config.InitConfig, nodes config.InitNodes, trace config.InitTrace, pipelineCfg pipeline.Config, opts Options, logger *zap.Logger, rec *metrics.Recorder) *Simulation {
	if !cfg.Prepared() {
		panic("simulation: New called with a config that has not had Validate called on it")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bus := eventbus.New()
	podIDs := simtype.NewIDGenerator()
	nodeIDs := simtype.NewIDGenerator()

	hub := apihub.New(bus, cfg.NetworkDelays, logger.Named("apihub"), podIDs)
	hub.HPAEnabled = opts.EnableHPA
	hub.VPAEnabled = opts.EnableVPA

	monitor := monitoring.New(bus, cfg.Monitoring, logger.Named("monitoring"))

	sched := scheduler.New(bus, cfg.NetworkDelays, cfg.Scheduler, pipelineCfg, logger.Named("scheduler"), rec, monitor)

	s := &Simulation{
		bus:       bus,
		hub:       hub,
		delays:    cfg.NetworkDelays,
		scheduler: sched,
		monitor:   monitor,
		logger:    logger,
		podIDs:    podIDs,
		nodeIDs:   nodeIDs,
	}

	if opts.EnableCA {
		s.ca = ca.New(bus, cfg.NetworkDelays, cfg.CA, logger.Named("ca"), rec, monitor, nodeIDs, nodes.CAManaged)
	}
	if opts.EnableHPA {
		s.hpa = hpa.New(bus, cfg.NetworkDelays, cfg.HPA, logger.Named("hpa"), rec, podIDs)
	}
	if opts.EnableVPA {
		s.vpa = vpa.New(bus, cfg.NetworkDelays, cfg.VPA, logger.Named("vpa"), rec, podIDs)
	}

	s.scheduler.Start()
	s.monitor.Start()
	if s.ca != nil {
		s.ca.Start()
	}
	if s.hpa != nil {
		s.hpa.Start()
	}
	if s.vpa != nil {
		s.vpa.Start()
	}

	s.submitFleet(nodes.Fleet)
	s.submitTrace(trace)

	return s
}

// submitFleet materializes one kubelet per always-on fleet node and
// announces it to the hub, the same AddNode-emission loop
// InitNodes::submit runs for every node in a node group.
func (s *Simulation) submitFleet(groups []simtype.NodeGroup) {
	for _, group := range groups {
		for i := 0; i < group.Amount; i++ {
			node := simtype.NewNode(simtype.NodeID(s.nodeIDs.Next()), group.ID, group.Installed, group.Labels, group.Taints)
			kubelet.New(s.bus, s.delays, s.logger.Named(kubeletName(node.ID)), nil, s.monitor, node)
			s.bus.Schedule(apihub.Key, apihub.Key, simevents.KindAddNode, simevents.AddNode{Node: node}, 0)
		}
	}
}

// submitTrace schedules every trace entry's AddPodGroup at its submit
// time. A group with a non-nil DurationS also gets a matching
// RemovePodGroup scheduled at submit_time+duration, the same
// auto-expiry init_trace.rs generates for EventRemovePodGroup when
// group_duration != 0.
func (s *Simulation) submitTrace(trace config.InitTrace) {
	for _, entry := range trace.Entries {
		group := entry.Group
		s.bus.ScheduleAt(apihub.Key, apihub.Key, simevents.KindAddPodGroup, simevents.AddPodGroup{Group: &group}, entry.SubmitTime)
		if group.DurationS != nil {
			s.bus.ScheduleAt(apihub.Key, apihub.Key, simevents.KindRemovePodGroup,
				simevents.RemovePodGroup{GroupID: group.ID}, entry.SubmitTime+*group.DurationS)
		}
	}
}

// Step advances the simulation by exactly one event, returning false once
// the queue is empty.
func (s *Simulation) Step() bool { return s.bus.Step() }

// RunUntilNoEvents drains every scheduled event, the terminal case for a
// trace with no infinite load profiles.
func (s *Simulation) RunUntilNoEvents() {
	s.bus.Run(nil)
}

// RunFor advances the simulation by duration simulated seconds from its
// current time.
func (s *Simulation) RunFor(duration float64) {
	s.bus.RunUntil(s.bus.Now() + duration)
}

// RunUntilTime advances the simulation until its clock reaches t.
func (s *Simulation) RunUntilTime(t float64) {
	s.bus.RunUntil(t)
}

// Now returns the simulation's current simulated time.
func (s *Simulation) Now() float64 { return s.bus.Now() }

// EnableDynamicUpdate and DisableDynamicUpdate toggle whether every
// monitoring accounting call also prints a status line immediately,
// mirroring Simulation::enable_dynamic_update/disable_dynamic_update.
func (s *Simulation) EnableDynamicUpdate()  { s.monitor.EnableDynamicUpdate() }
func (s *Simulation) DisableDynamicUpdate() { s.monitor.DisableDynamicUpdate() }

// DumpStatistics writes every recorded monitoring sample to w, mirroring
// Simulation::dump_stats.
func (s *Simulation) DumpStatistics(w io.Writer) error {
	return s.monitor.DumpStatistics(w)
}

func kubeletName(id simtype.NodeID) string {
	return fmt.Sprintf("kubelet:%d", int64(id))
}
