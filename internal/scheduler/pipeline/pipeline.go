// Package pipeline implements the scheduler's filter -> postfilter ->
// score -> normalize plugin chain. Plugins are polymorphic over a small
// capability set (name + evaluate), exactly as spec.md §9's "Pipeline
// plugins" design note describes, and are assembled from a named,
// ordered Config rather than hardcoded, mirroring
// kuber_sim/src/simulation/pipeline_config.rs.
package pipeline

import (
	"sort"

	"github.com/vpsie/cluster-simulator/internal/simtype"
)

// Context is the read-only view a plugin evaluates against: the candidate
// node, the arriving pod, and (for PreemptionPostFilter) the pods
// currently running on that node with their priorities.
type Context struct {
	Node        *simtype.Node
	Pod         *simtype.Pod
	RunningHere []*simtype.Pod
}

// Filter decides whether a node is a feasible placement target for a pod.
type Filter interface {
	Name() string
	Filter(ctx Context) bool
}

// PostFilter re-admits a node that failed every filter, the
// preemption-enabling hook.
type PostFilter interface {
	Name() string
	PostFilter(ctx Context) bool
}

// Scorer assigns a raw score to a feasible node.
type Scorer interface {
	Name() string
	Score(ctx Context) int64
}

// Normalizer rescales one scorer's row of raw scores across all candidate
// nodes before the weighted sum.
type Normalizer interface {
	Name() string
	Normalize(scores []int64) []int64
}

// ScoredNormalizer pairs one scorer with the normalizer applied to its row
// and the weight it contributes to the final weighted sum.
type ScoredNormalizer struct {
	Scorer     Scorer
	Normalizer Normalizer
	Weight     int64
}

// Config is the ordered, named plugin assembly the scheduler is built
// from. Neither the scheduler nor pkg/simulation calls Validate on it.
type Config struct {
	Filters     []Filter
	PostFilters []PostFilter
	Scorers     []ScoredNormalizer
}

// Validate checks the config is non-degenerate: at least one scorer must
// be present, since an empty weighted sum cannot break ties meaningfully.
func (c Config) Validate() error {
	if len(c.Scorers) == 0 {
		return errEmptyScorers
	}
	return nil
}

type pipelineError string

func (e pipelineError) Error() string { return string(e) }

const errEmptyScorers = pipelineError("pipeline: config must include at least one scorer")

// RunFilters evaluates the filter chain left-to-right, short-circuiting on
// the first false, for each candidate node. It returns the subset of
// candidates that passed every filter, in ascending node id order, so
// that PickWinner's tie-breaking is reproducible across runs regardless
// of the map-iteration order nodes arrived in.
func RunFilters(filters []Filter, pod *simtype.Pod, nodes map[simtype.NodeID]*simtype.Node, runningHere func(simtype.NodeID) []*simtype.Pod) []simtype.NodeID {
	ids := sortedNodeIDs(nodes)
	var survivors []simtype.NodeID
	for _, id := range ids {
		ctx := Context{Node: nodes[id], Pod: pod, RunningHere: runningHere(id)}
		ok := true
		for _, f := range filters {
			if !f.Filter(ctx) {
				ok = false
				break
			}
		}
		if ok {
			survivors = append(survivors, id)
		}
	}
	return survivors
}

func sortedNodeIDs(nodes map[simtype.NodeID]*simtype.Node) []simtype.NodeID {
	ids := make([]simtype.NodeID, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// RunPostFilters re-admits nodes among rejected (the full candidate set
// minus survivors) for which any postfilter evaluates true, per
// left-to-right, first-true-wins semantics.
func RunPostFilters(postFilters []PostFilter, pod *simtype.Pod, rejected []simtype.NodeID, nodes map[simtype.NodeID]*simtype.Node, runningHere func(simtype.NodeID) []*simtype.Pod) []simtype.NodeID {
	var readmitted []simtype.NodeID
	for _, id := range rejected {
		node := nodes[id]
		ctx := Context{Node: node, Pod: pod, RunningHere: runningHere(id)}
		for _, pf := range postFilters {
			if pf.PostFilter(ctx) {
				readmitted = append(readmitted, id)
				break
			}
		}
	}
	return readmitted
}

// RunScore computes the scorer x node matrix, normalizes each scorer's
// row, and returns the weighted-sum score per node.
func RunScore(scorers []ScoredNormalizer, pod *simtype.Pod, candidates []simtype.NodeID, nodes map[simtype.NodeID]*simtype.Node, runningHere func(simtype.NodeID) []*simtype.Pod) map[simtype.NodeID]int64 {
	totals := make(map[simtype.NodeID]int64, len(candidates))
	for _, sn := range scorers {
		raw := make([]int64, len(candidates))
		for i, id := range candidates {
			ctx := Context{Node: nodes[id], Pod: pod, RunningHere: runningHere(id)}
			raw[i] = sn.Scorer.Score(ctx)
		}
		normalized := raw
		if sn.Normalizer != nil {
			normalized = sn.Normalizer.Normalize(raw)
		}
		for i, id := range candidates {
			totals[id] += normalized[i] * sn.Weight
		}
	}
	return totals
}

// PickWinner returns the argmax node from totals, breaking ties by the
// first-in-list rule: candidates is iterated in its given order and the
// first node achieving the maximum wins.
func PickWinner(totals map[simtype.NodeID]int64, candidates []simtype.NodeID) (simtype.NodeID, bool) {
	if len(candidates) == 0 {
		return 0, false
	}
	best := candidates[0]
	bestScore := totals[best]
	for _, id := range candidates[1:] {
		if totals[id] > bestScore {
			best = id
			bestScore = totals[id]
		}
	}
	return best, true
}
