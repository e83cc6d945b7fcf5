// Package ca implements the cluster autoscaler described in spec.md §4.5:
// a scale-down loop that retires under-utilized nodes after a sustained
// number of low-utilization cycles, and a scale-up loop that materializes
// a fresh node from a CA-managed group when the scheduler reports enough
// starved pending pods and a candidate group.
//
// Grounded on kuber_sim/src/autoscaler/ca/ca.rs. One deliberate
// simplification versus the original: the Rust CA keeps a pool of
// pre-registered dormant actors ("kubelet_pool") because dsb-core actors
// must be registered with the simulation up front; a Go *kubelet.Kubelet
// is just a struct, so this package constructs one on demand during
// scale-up and lets it register itself at its apihub.AgentKey target,
// rather than pooling idle agents that do nothing until reassigned.
package ca

import (
	"sort"

	"go.uber.org/zap"

	"github.com/vpsie/cluster-simulator/internal/apihub"
	"github.com/vpsie/cluster-simulator/internal/config"
	"github.com/vpsie/cluster-simulator/internal/eventbus"
	"github.com/vpsie/cluster-simulator/internal/kubelet"
	"github.com/vpsie/cluster-simulator/internal/metrics"
	"github.com/vpsie/cluster-simulator/internal/monitoring"
	"github.com/vpsie/cluster-simulator/internal/simevents"
	"github.com/vpsie/cluster-simulator/internal/simlog"
	"github.com/vpsie/cluster-simulator/internal/simtype"
)

// CA is the cluster autoscaler control loop for one simulation.
type CA struct {
	bus     *eventbus.Bus
	delays  config.NetworkDelays
	cfg     config.CAConfig
	logger  *zap.Logger
	metrics *metrics.Recorder
	monitor *monitoring.Monitor
	nodeIDs *simtype.IDGenerator

	freeGroups map[simtype.GroupID]*simtype.NodeGroup
	usedNodes  map[simtype.NodeID]simtype.GroupID
	lowUtil    map[simtype.NodeID]int
}

// New constructs a cluster autoscaler over the given CA-managed node
// groups. groups is copied so the caller's slice can be discarded. mon may
// be nil; it is handed to every kubelet this CA materializes during
// scale-up, so the new node's usage is reported the same way a
// from-InitNodes fleet member's is.
func New(bus *eventbus.Bus, delays config.NetworkDelays, cfg config.CAConfig, logger *zap.Logger, rec *metrics.Recorder, mon *monitoring.Monitor, nodeIDs *simtype.IDGenerator, groups []simtype.NodeGroup) *CA {
	c := &CA{
		bus:        bus,
		delays:     delays,
		cfg:        cfg,
		logger:     logger,
		metrics:    rec,
		monitor:    mon,
		nodeIDs:    nodeIDs,
		freeGroups: map[simtype.GroupID]*simtype.NodeGroup{},
		usedNodes:  map[simtype.NodeID]simtype.GroupID{},
		lowUtil:    map[simtype.NodeID]int{},
	}
	for i := range groups {
		g := groups[i]
		c.freeGroups[g.ID] = &g
	}
	bus.Register(apihub.KeyCA, c.handle)
	return c
}

// Start arms the first self-update tick.
func (c *CA) Start() {
	c.bus.Schedule(apihub.KeyCA, apihub.KeyCA, simevents.KindCATick, simevents.CATick{}, c.cfg.SelfUpdatePeriod)
}

func (c *CA) handle(now float64, ev eventbus.Event) {
	switch ev.Kind {
	case simevents.KindCATick:
		c.onTick()
	case simevents.KindPostCAMetrics:
		c.onPostCAMetrics(ev.Payload.(simevents.PostCAMetrics))
	case simevents.KindRemoveNodeAck:
		c.onRemoveNodeAck(ev.Payload.(simevents.RemoveNodeAck))
	default:
		simlog.LogTransientCondition(c.logger, "ca", "unknown event kind "+ev.Kind)
	}
}

func (c *CA) onTick() {
	used := make([]simtype.NodeID, 0, len(c.usedNodes))
	for id := range c.usedNodes {
		used = append(used, id)
	}
	sort.Slice(used, func(i, j int) bool { return used[i] < used[j] })
	var available []simevents.AvailableGroup
	for id, g := range c.freeGroups {
		if g.Amount > 0 {
			available = append(available, simevents.AvailableGroup{GroupID: id, Installed: g.Installed})
		}
	}
	sort.Slice(available, func(i, j int) bool { return available[i].GroupID < available[j].GroupID })
	c.bus.Schedule(apihub.KeyCA, apihub.Key, simevents.KindGetCAMetrics,
		simevents.GetCAMetrics{UsedNodes: used, AvailableGroups: available}, c.delays.CAToAPI)
	c.bus.Schedule(apihub.KeyCA, apihub.KeyCA, simevents.KindCATick, simevents.CATick{}, c.cfg.SelfUpdatePeriod)
}

func (c *CA) onPostCAMetrics(m simevents.PostCAMetrics) {
	for _, nu := range m.Nodes {
		if nu.CPUFraction > c.cfg.RemoveNodeCPUFraction || nu.MemFraction > c.cfg.RemoveNodeMemoryFraction {
			delete(c.lowUtil, nu.NodeID)
			continue
		}
		if _, used := c.usedNodes[nu.NodeID]; !used {
			delete(c.lowUtil, nu.NodeID)
			continue
		}
		c.lowUtil[nu.NodeID]++
		if c.lowUtil[nu.NodeID] >= c.cfg.RemoveNodeCycleDelay {
			c.bus.Schedule(apihub.KeyCA, apihub.Key, simevents.KindRemoveNode,
				simevents.RemoveNode{NodeID: nu.NodeID}, c.delays.CAToAPI)
		}
	}

	if m.PendingStarved <= c.cfg.AddNodePendingThreshold || m.MayHelp == nil {
		return
	}
	c.scaleUp(*m.MayHelp)
}

func (c *CA) scaleUp(groupID simtype.GroupID) {
	group, ok := c.freeGroups[groupID]
	if !ok || group.Amount <= 0 {
		// The scheduler's snapshot is one tick stale by construction; a group
		// that ran dry between the query and this reply is a transient race,
		// not a protocol violation.
		simlog.LogTransientCondition(c.logger, "ca", "scale-up candidate group has no free nodes left")
		return
	}
	group.Amount--

	node := simtype.NewNode(simtype.NodeID(c.nodeIDs.Next()), groupID, group.Installed, group.Labels, group.Taints)
	kubelet.New(c.bus, c.delays, c.logger, c.metrics, c.monitor, node)
	c.usedNodes[node.ID] = groupID

	c.bus.Schedule(apihub.KeyCA, apihub.Key, simevents.KindAddNode,
		simevents.AddNode{Node: node}, c.delays.CAToAPI+c.cfg.AddNodeISPDelay)
	if c.metrics != nil {
		c.metrics.CAScaleUps.Inc()
	}
}

func (c *CA) onRemoveNodeAck(r simevents.RemoveNodeAck) {
	groupID, ok := c.usedNodes[r.NodeID]
	if !ok {
		return // already forgotten; a duplicate or late ack
	}
	delete(c.usedNodes, r.NodeID)
	delete(c.lowUtil, r.NodeID)
	if g, ok := c.freeGroups[groupID]; ok {
		g.Amount++
	}
	if c.metrics != nil {
		c.metrics.CAScaleDowns.Inc()
	}
}
