// Package simtype holds the plain data model shared by every simulation
// component: nodes, pods, pod groups, resource quantities, and the
// taint/toleration/affinity vocabulary borrowed from k8s.io/api/core/v1.
package simtype

// Resource is a two-dimensional resource quantity: cpu in milli-cores,
// memory in bytes. Every component that accounts for capacity uses this
// type rather than juggling two bare int64s.
type Resource struct {
	CPU    int64
	Memory int64
}

// Add returns the element-wise sum.
func (r Resource) Add(o Resource) Resource {
	return Resource{CPU: r.CPU + o.CPU, Memory: r.Memory + o.Memory}
}

// Sub returns the element-wise difference.
func (r Resource) Sub(o Resource) Resource {
	return Resource{CPU: r.CPU - o.CPU, Memory: r.Memory - o.Memory}
}

// FitsIn reports whether r is within the given capacity on both dimensions.
func (r Resource) FitsIn(capacity Resource) bool {
	return r.CPU <= capacity.CPU && r.Memory <= capacity.Memory
}

// Negative reports whether either dimension has gone below zero.
func (r Resource) Negative() bool {
	return r.CPU < 0 || r.Memory < 0
}

// Zero reports whether both dimensions are exactly zero.
func (r Resource) Zero() bool {
	return r.CPU == 0 && r.Memory == 0
}

// UtilizationOf returns used/installed on each dimension, 0 when installed
// is 0 on that dimension.
func UtilizationOf(used, installed Resource) (cpu, memory float64) {
	if installed.CPU > 0 {
		cpu = float64(used.CPU) / float64(installed.CPU)
	}
	if installed.Memory > 0 {
		memory = float64(used.Memory) / float64(installed.Memory)
	}
	return cpu, memory
}
