// Package monitoring implements the simulation's external output surface
// described in spec.md §6: periodic human-readable status lines and, on
// demand, a five-column whitespace-separated numeric dump.
//
// Unlike the autoscalers, Monitor is not wired through the API hub's
// fan-out table — spec.md describes it as an output sink, not a §4
// component with its own protocol. The scheduler and node agents call its
// On*/Set* methods directly whenever a countable thing happens, mirroring
// kuber_sim/src/simulation/monitoring.rs's push model (there, the
// scheduler and kubelet hold an Rc<RefCell<Monitoring>> and call its
// methods inline).
package monitoring

import (
	"bufio"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/vpsie/cluster-simulator/internal/config"
	"github.com/vpsie/cluster-simulator/internal/eventbus"
	"github.com/vpsie/cluster-simulator/internal/simevents"
	"github.com/vpsie/cluster-simulator/internal/simtype"
)

// Key is Monitor's self-tick dispatch target.
const Key eventbus.ComponentKey = "monitoring"

// sample is one print_statistics snapshot, kept for the on-demand dump.
type sample struct {
	agentCPU, agentMemory         int64
	schedulerCPU, schedulerMemory int64
	pending                       int
}

// Monitor accumulates the running totals spec.md §8's utilization
// properties are computed from, and reports them on a fixed cadence.
type Monitor struct {
	bus    *eventbus.Bus
	cfg    config.MonitoringConfig
	logger *zap.Logger

	dynamicUpdate bool

	totalInstalled simtype.Resource
	schedulerUsed  simtype.Resource
	kubeletsUsed   simtype.Resource

	nodeCount    int
	pendingCount int
	runningCount int

	succeeded, failed, removed, evicted, preempted int64

	samples []sample
}

// New constructs a monitor. Call Start once the simulation's other
// components are wired, to arm its first self-tick.
func New(bus *eventbus.Bus, cfg config.MonitoringConfig, logger *zap.Logger) *Monitor {
	m := &Monitor{bus: bus, cfg: cfg, logger: logger}
	bus.Register(Key, m.handle)
	return m
}

// Start arms the first periodic status line.
func (m *Monitor) Start() {
	m.bus.Schedule(Key, Key, simevents.KindMonitoringTick, simevents.MonitoringTick{}, m.cfg.SelfUpdatePeriod)
}

// EnableDynamicUpdate makes every On*/Set* call immediately print a status
// line in addition to the periodic tick, useful for interactively
// following a short run.
func (m *Monitor) EnableDynamicUpdate() { m.dynamicUpdate = true }

// DisableDynamicUpdate turns EnableDynamicUpdate back off.
func (m *Monitor) DisableDynamicUpdate() { m.dynamicUpdate = false }

func (m *Monitor) handle(now float64, ev eventbus.Event) {
	if ev.Kind != simevents.KindMonitoringTick {
		return
	}
	m.PrintStatistics()
	m.bus.Schedule(Key, Key, simevents.KindMonitoringTick, simevents.MonitoringTick{}, m.cfg.SelfUpdatePeriod)
}

// OnNodeAdded records a freshly placed node's installed capacity.
func (m *Monitor) OnNodeAdded(installed simtype.Resource) {
	m.totalInstalled = m.totalInstalled.Add(installed)
	m.nodeCount++
	m.maybePrint()
}

// OnNodeRemoved reverses OnNodeAdded and whatever of installed the
// scheduler still held reserved against that node.
func (m *Monitor) OnNodeRemoved(installed, stillReserved simtype.Resource) {
	m.SchedulerRestore(stillReserved)
	m.totalInstalled = m.totalInstalled.Sub(installed)
	m.nodeCount--
	m.maybePrint()
}

// SchedulerConsume records the scheduler reserving request resources
// against a node ahead of the agent's own usage report.
func (m *Monitor) SchedulerConsume(r simtype.Resource) {
	m.schedulerUsed = m.schedulerUsed.Add(r)
	m.maybePrint()
}

// SchedulerRestore reverses SchedulerConsume when a pod leaves a node.
func (m *Monitor) SchedulerRestore(r simtype.Resource) {
	m.schedulerUsed = m.schedulerUsed.Sub(r)
	m.maybePrint()
}

// KubeletPlaced records a node agent's actual measured usage for a newly
// placed pod.
func (m *Monitor) KubeletPlaced(r simtype.Resource) {
	m.kubeletsUsed = m.kubeletsUsed.Add(r)
	m.maybePrint()
}

// KubeletUnplaced reverses KubeletPlaced.
func (m *Monitor) KubeletUnplaced(r simtype.Resource) {
	m.kubeletsUsed = m.kubeletsUsed.Sub(r)
	m.maybePrint()
}

// SetPendingCount overwrites the scheduler's current pending-queue size.
func (m *Monitor) SetPendingCount(n int) {
	m.pendingCount = n
	m.maybePrint()
}

// SetRunningCount overwrites the scheduler's current running-pod count.
func (m *Monitor) SetRunningCount(n int) {
	m.runningCount = n
	m.maybePrint()
}

func (m *Monitor) OnPodSucceeded()  { m.succeeded++; m.maybePrint() }
func (m *Monitor) OnPodFailed()     { m.failed++; m.maybePrint() }
func (m *Monitor) OnPodRemoved()    { m.removed++; m.maybePrint() }
func (m *Monitor) OnPodEvicted()    { m.evicted++; m.maybePrint() }
func (m *Monitor) OnPodPreempted()  { m.preempted++; m.maybePrint() }

func (m *Monitor) maybePrint() {
	if m.dynamicUpdate {
		m.PrintStatistics()
	}
}

// PrintStatistics logs one status line and records a dump sample.
func (m *Monitor) PrintStatistics() {
	cpuPct, memPct := simtype.UtilizationOf(m.kubeletsUsed, m.totalInstalled)
	schedCPUPct, schedMemPct := simtype.UtilizationOf(m.schedulerUsed, m.totalInstalled)

	m.samples = append(m.samples, sample{
		agentCPU: m.kubeletsUsed.CPU, agentMemory: m.kubeletsUsed.Memory,
		schedulerCPU: m.schedulerUsed.CPU, schedulerMemory: m.schedulerUsed.Memory,
		pending: m.pendingCount,
	})

	if m.logger == nil {
		return
	}
	m.logger.Info("status",
		zap.Float64("agent_cpu_pct", cpuPct*100), zap.Float64("scheduler_cpu_pct", schedCPUPct*100),
		zap.Float64("agent_memory_pct", memPct*100), zap.Float64("scheduler_memory_pct", schedMemPct*100),
		zap.Int("nodes", m.nodeCount),
		zap.Int("pending", m.pendingCount), zap.Int("running", m.runningCount),
		zap.Int64("succeeded", m.succeeded), zap.Int64("failed", m.failed),
		zap.Int64("removed", m.removed), zap.Int64("evicted", m.evicted),
		zap.Int64("preempted", m.preempted),
	)
}

// DumpStatistics writes one line per recorded sample to w: five
// whitespace-separated columns, agent_cpu_sum agent_memory_sum
// scheduler_cpu_sum scheduler_memory_sum pending_count.
func (m *Monitor) DumpStatistics(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, s := range m.samples {
		if _, err := fmt.Fprintf(bw, "%d %d %d %d %d\n", s.agentCPU, s.agentMemory, s.schedulerCPU, s.schedulerMemory, s.pending); err != nil {
			return err
		}
	}
	return bw.Flush()
}
