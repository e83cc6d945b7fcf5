package simtype

// PodSpec is the immutable part of a pod: its resource envelope, priority,
// and placement constraints.
type PodSpec struct {
	Request      Resource
	Limit        Resource
	Priority     int64
	NodeSelector map[string]string
	Tolerations  []Toleration
	Affinity     NodeAffinity
	// LoadProfileSpec describes how to build the pod's load profile; it is
	// opaque to this package (see internal/loadprofile).
	LoadProfileSpec interface{}
}

// PodStatus is the mutable part of a pod's scheduler-side record.
type PodStatus struct {
	Phase      Phase
	NodeID     NodeID
	Assigned   bool
	QoSClass   QoSClass
	Starvation bool // set by the scheduler when placement failed purely due to cluster-wide resource exhaustion
}

// Pod is a unit of workload. The scheduler and the node agent each keep
// their own Pod record by design (see spec's ownership rules); this type
// is shared verbatim by both, distinguished only by which map it lives in.
type Pod struct {
	ID      PodID
	GroupID GroupID
	Labels  map[string]string
	Spec    PodSpec
	Status  PodStatus
}

// NewPod constructs a pending pod with its QoS class derived from the spec.
func NewPod(id PodID, group GroupID, spec PodSpec, labels map[string]string) *Pod {
	if labels == nil {
		labels = map[string]string{}
	}
	return &Pod{
		ID:      id,
		GroupID: group,
		Labels:  labels,
		Spec:    spec,
		Status: PodStatus{
			Phase:    PhasePending,
			QoSClass: DeriveQoSClass(spec.Request, spec.Limit),
		},
	}
}

// Clone returns a deep-enough copy for duplicating a pod record between the
// scheduler and the agent (maps are copied; the load profile spec is
// shared, and the node agent runs its own copy of it).
func (p *Pod) Clone() *Pod {
	cp := *p
	cp.Labels = make(map[string]string, len(p.Labels))
	for k, v := range p.Labels {
		cp.Labels[k] = v
	}
	cp.Spec.NodeSelector = make(map[string]string, len(p.Spec.NodeSelector))
	for k, v := range p.Spec.NodeSelector {
		cp.Spec.NodeSelector[k] = v
	}
	cp.Spec.Tolerations = append([]Toleration(nil), p.Spec.Tolerations...)
	return &cp
}
