package pipeline

import "github.com/vpsie/cluster-simulator/internal/simtype"

// TaintTolerationFilter rejects a node whose taints the pod does not
// tolerate, per spec.md §3's taint/toleration matching rule.
type TaintTolerationFilter struct{}

func (TaintTolerationFilter) Name() string { return "TaintToleration" }
func (TaintTolerationFilter) Filter(ctx Context) bool {
	return simtype.TolerationsTolerateAll(ctx.Pod.Spec.Tolerations, ctx.Node.Taints)
}

// NodeSelectorFilter rejects a node that does not carry every label in the
// pod's node selector.
type NodeSelectorFilter struct{}

func (NodeSelectorFilter) Name() string { return "NodeSelector" }
func (NodeSelectorFilter) Filter(ctx Context) bool {
	for k, v := range ctx.Pod.Spec.NodeSelector {
		if ctx.Node.Labels[k] != v {
			return false
		}
	}
	return true
}

// NodeAffinityFilter rejects a node that does not satisfy the pod's
// required node affinity terms.
type NodeAffinityFilter struct{}

func (NodeAffinityFilter) Name() string { return "NodeAffinity" }
func (NodeAffinityFilter) Filter(ctx Context) bool {
	return ctx.Pod.Spec.Affinity.AdmitsNode(ctx.Node.Labels)
}

// CapacityFilter rejects a node without enough available capacity to
// place the pod as-is (no preemption). This is the ordinary fast path;
// PreemptionPostFilter is the hook that re-admits a node when eviction of
// lower-priority pods would free enough room.
type CapacityFilter struct{}

func (CapacityFilter) Name() string { return "Capacity" }
func (CapacityFilter) Filter(ctx Context) bool {
	return ctx.Pod.Spec.Request.FitsIn(ctx.Node.Available)
}

// PreemptionPostFilter re-admits a node when the sum of running pods with
// strictly lower priority than the arriving pod, once evicted, would free
// enough capacity. It does not itself choose victims — victimsFor
// (scheduler package) does that at placement time using the same rule.
type PreemptionPostFilter struct{}

func (PreemptionPostFilter) Name() string { return "PreemptionPostFilter" }
func (PreemptionPostFilter) PostFilter(ctx Context) bool {
	freed := ctx.Node.Available
	for _, p := range ctx.RunningHere {
		if p.Spec.Priority < ctx.Pod.Spec.Priority {
			freed = freed.Add(p.Spec.Request)
		}
	}
	return ctx.Pod.Spec.Request.FitsIn(freed)
}

// LeastRequestedScorer favors nodes with more available capacity
// remaining after placement, mirroring the "least requested" score every
// scheduler in the pack implements as its default.
type LeastRequestedScorer struct{}

func (LeastRequestedScorer) Name() string { return "LeastRequested" }
func (LeastRequestedScorer) Score(ctx Context) int64 {
	cpuLeft := ctx.Node.Available.CPU - ctx.Pod.Spec.Request.CPU
	memLeft := ctx.Node.Available.Memory - ctx.Pod.Spec.Request.Memory
	if cpuLeft < 0 {
		cpuLeft = 0
	}
	if memLeft < 0 {
		memLeft = 0
	}
	// Combine both dimensions into one raw score; normalization rescales
	// this against the other candidate nodes, so the absolute unit mix of
	// cpu-milli and memory-bytes does not need to match.
	return cpuLeft + memLeft
}

// NodeAffinityScorer rewards nodes matching the pod's preferred affinity
// terms.
type NodeAffinityScorer struct{}

func (NodeAffinityScorer) Name() string { return "NodeAffinityPreference" }
func (NodeAffinityScorer) Score(ctx Context) int64 {
	return ctx.Pod.Spec.Affinity.PreferenceScore(ctx.Node.Labels)
}

// MinMaxNormalizer rescales a row of raw scores into [0,100], mapping a
// degenerate all-equal row to a constant 100 (no information to rank by,
// so every candidate is treated as equally favorable rather than zeroed
// out).
type MinMaxNormalizer struct{}

func (MinMaxNormalizer) Name() string { return "MinMax" }
func (MinMaxNormalizer) Normalize(scores []int64) []int64 {
	if len(scores) == 0 {
		return scores
	}
	min, max := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	out := make([]int64, len(scores))
	if max == min {
		for i := range out {
			out[i] = 100
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - min) * 100 / (max - min)
	}
	return out
}

// DefaultConfig returns the pipeline used unless a simulation overrides
// it: taint/toleration, node selector, node affinity, and capacity filters; a
// preemption postfilter; least-requested and node-affinity-preference
// scorers, both min-max normalized. This gives S2 (preemption) and the
// node-affinity scenarios concrete plugins to exercise.
func DefaultConfig() Config {
	return Config{
		Filters: []Filter{
			TaintTolerationFilter{},
			NodeSelectorFilter{},
			NodeAffinityFilter{},
			CapacityFilter{},
		},
		PostFilters: []PostFilter{
			PreemptionPostFilter{},
		},
		Scorers: []ScoredNormalizer{
			{Scorer: LeastRequestedScorer{}, Normalizer: MinMaxNormalizer{}, Weight: 1},
			{Scorer: NodeAffinityScorer{}, Normalizer: MinMaxNormalizer{}, Weight: 1},
		},
	}
}
