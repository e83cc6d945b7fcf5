// Package simevents defines the typed event payloads that travel over the
// event bus between the API hub and every other component. Kind constants
// double as eventbus.Event.Kind values.
package simevents

import "github.com/vpsie/cluster-simulator/internal/simtype"

const (
	KindAddPod              = "AddPod"
	KindRemovePod           = "RemovePod"
	KindAddPodGroup         = "AddPodGroup"
	KindRemovePodGroup      = "RemovePodGroup"
	KindAddNode             = "AddNode"
	KindRemoveNode          = "RemoveNode"
	KindRemoveNodeAck       = "RemoveNodeAck"
	KindUpdatePodFromSched  = "UpdatePodFromScheduler"
	KindPodUpdateToSched    = "PodUpdateToScheduler"
	KindPodUpdateFromAgent  = "PodUpdateFromAgent"
	KindGetCAMetrics        = "GetCAMetrics"
	KindPostCAMetrics       = "PostCAMetrics"
	KindSchedulerTick       = "SchedulerTick"
	KindKubeletLoadTick     = "KubeletLoadTick"
	KindCATick              = "CATick"
	KindHPATick             = "HPATick"
	KindVPATick             = "VPATick"
	KindMonitoringTick      = "MonitoringTick"
)

// AddPod announces a new pod to the scheduler (and HPA/VPA if enabled).
type AddPod struct {
	Pod *simtype.Pod
}

// RemovePod requests removal of a pod by id.
type RemovePod struct {
	PodID simtype.PodID
}

// AddPodGroup announces a new pod group template.
type AddPodGroup struct {
	Group *simtype.PodGroup
}

// RemovePodGroup requests removal of every pod belonging to a group.
type RemovePodGroup struct {
	GroupID simtype.GroupID
}

// AddNode announces a new node bound to an agent address.
type AddNode struct {
	AgentAddr string
	Node      *simtype.Node
}

// RemoveNode requests a node (and its agent) be torn down.
type RemoveNode struct {
	NodeID simtype.NodeID
}

// RemoveNodeAck confirms a node finished tearing down.
type RemoveNodeAck struct {
	NodeID  simtype.NodeID
	GroupID simtype.GroupID
}

// UpdatePodFromScheduler carries a scheduling decision to the target
// agent: the pod to place, any victims to preempt first, the phase to
// apply, and the node id.
type UpdatePodFromScheduler struct {
	Pod          *simtype.Pod
	PreemptUIDs  []simtype.PodID
	TargetPhase  simtype.Phase
	NodeID       simtype.NodeID
}

// PodUpdateToScheduler reports a phase change the scheduler must react to.
type PodUpdateToScheduler struct {
	PodID simtype.PodID
	Phase simtype.Phase
}

// PodUpdateFromAgent reports a pod's current phase and usage sample,
// fanned out to scheduler/HPA/VPA.
type PodUpdateFromAgent struct {
	PodID   simtype.PodID
	GroupID simtype.GroupID
	Phase   simtype.Phase
	CPU     int64
	Memory  int64
}

// KubeletLoadTick is a node agent's self-scheduled reminder that one pod's
// load profile has a sample due.
type KubeletLoadTick struct {
	PodID simtype.PodID
}

// CATick is the cluster autoscaler's self-scheduled control loop tick.
type CATick struct{}

// HPATick is the horizontal autoscaler's self-scheduled decision tick.
type HPATick struct{}

// VPATick is the vertical autoscaler's self-scheduled sweep tick.
type VPATick struct{}

// MonitoringTick is the status reporter's self-scheduled sample tick.
type MonitoringTick struct{}

// GetCAMetrics asks the scheduler for its CA-facing utilization snapshot.
type GetCAMetrics struct {
	UsedNodes       []simtype.NodeID
	AvailableGroups []AvailableGroup
}

// AvailableGroup is one CA-managed group with spare capacity, carrying
// enough of its template node's installed capacity for the scheduler to
// judge whether the group could satisfy a starved pod's request.
type AvailableGroup struct {
	GroupID   simtype.GroupID
	Installed simtype.Resource
}

// NodeUtilization is one node's reported utilization in a CA metrics
// reply.
type NodeUtilization struct {
	NodeID       simtype.NodeID
	CPUFraction  float64
	MemFraction  float64
}

// PostCAMetrics is the scheduler's reply to GetCAMetrics.
type PostCAMetrics struct {
	PendingStarved int
	MayHelp        *simtype.GroupID
	Nodes          []NodeUtilization
}
