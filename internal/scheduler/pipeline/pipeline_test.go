package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vpsie/cluster-simulator/internal/simtype"
)

func podWithRequest(cpu, mem, priority int64) *simtype.Pod {
	return simtype.NewPod(1, 1, simtype.PodSpec{Request: simtype.Resource{CPU: cpu, Memory: mem}, Priority: priority}, nil)
}

func TestCapacityFilterRejectsInsufficientNode(t *testing.T) {
	pod := podWithRequest(1000, 1000, 0)
	node := simtype.NewNode(1, 1, simtype.Resource{CPU: 500, Memory: 2000}, nil, nil)
	node.Available = simtype.Resource{CPU: 500, Memory: 2000}
	ok := CapacityFilter{}.Filter(Context{Node: node, Pod: pod})
	require.False(t, ok)
}

func TestPreemptionPostFilterAdmitsWhenEvictionFrees(t *testing.T) {
	pod := podWithRequest(1000, 1000, 10)
	node := simtype.NewNode(1, 1, simtype.Resource{CPU: 1000, Memory: 1000}, nil, nil)
	node.Available = simtype.Resource{CPU: 0, Memory: 0}
	running := simtype.NewPod(2, 1, simtype.PodSpec{Request: simtype.Resource{CPU: 1000, Memory: 1000}, Priority: 1}, nil)

	ok := PreemptionPostFilter{}.PostFilter(Context{Node: node, Pod: pod, RunningHere: []*simtype.Pod{running}})
	require.True(t, ok)
}

func TestPreemptionPostFilterRejectsWhenVictimsInsufficient(t *testing.T) {
	pod := podWithRequest(1000, 1000, 10)
	node := simtype.NewNode(1, 1, simtype.Resource{CPU: 1000, Memory: 1000}, nil, nil)
	node.Available = simtype.Resource{CPU: 0, Memory: 0}
	running := simtype.NewPod(2, 1, simtype.PodSpec{Request: simtype.Resource{CPU: 1000, Memory: 1000}, Priority: 20}, nil)

	ok := PreemptionPostFilter{}.PostFilter(Context{Node: node, Pod: pod, RunningHere: []*simtype.Pod{running}})
	require.False(t, ok)
}

func TestMinMaxNormalizerHandlesDegenerateRow(t *testing.T) {
	out := MinMaxNormalizer{}.Normalize([]int64{5, 5, 5})
	require.Equal(t, []int64{100, 100, 100}, out)
}

func TestMinMaxNormalizerScalesRange(t *testing.T) {
	out := MinMaxNormalizer{}.Normalize([]int64{0, 50, 100})
	require.Equal(t, []int64{0, 50, 100}, out)
}

func TestPickWinnerBreaksTiesFirstInList(t *testing.T) {
	totals := map[simtype.NodeID]int64{1: 10, 2: 10, 3: 5}
	winner, ok := PickWinner(totals, []simtype.NodeID{2, 1, 3})
	require.True(t, ok)
	require.Equal(t, simtype.NodeID(2), winner)
}

// TestRunFiltersReturnsAscendingNodeIDOrderRegardlessOfMapOrder guards
// against the candidate order PickWinner's tie-break relies on silently
// becoming Go's randomized map-iteration order again: however large the
// backing map, survivors must always come back sorted by id.
func TestRunFiltersReturnsAscendingNodeIDOrderRegardlessOfMapOrder(t *testing.T) {
	pod := podWithRequest(100, 100, 0)
	nodes := map[simtype.NodeID]*simtype.Node{}
	for _, id := range []simtype.NodeID{5, 1, 9, 3, 7} {
		n := simtype.NewNode(id, 1, simtype.Resource{CPU: 1000, Memory: 1000}, nil, nil)
		nodes[id] = n
	}
	noRunning := func(simtype.NodeID) []*simtype.Pod { return nil }

	survivors := RunFilters([]Filter{CapacityFilter{}}, pod, nodes, noRunning)

	require.Equal(t, []simtype.NodeID{1, 3, 5, 7, 9}, survivors)
}
