package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vpsie/cluster-simulator/internal/apihub"
	"github.com/vpsie/cluster-simulator/internal/config"
	"github.com/vpsie/cluster-simulator/internal/eventbus"
	"github.com/vpsie/cluster-simulator/internal/scheduler/pipeline"
	"github.com/vpsie/cluster-simulator/internal/simevents"
	"github.com/vpsie/cluster-simulator/internal/simtype"
)

func newTestScheduler(t *testing.T) (*eventbus.Bus, *Scheduler) {
	t.Helper()
	bus := eventbus.New()
	cfg := config.SchedulerConfig{UnschedulableQueueBackoffDelay: 10, SelfUpdatePeriod: 5}
	s := New(bus, config.NetworkDelays{SchedulerToAPI: 1}, cfg, pipeline.DefaultConfig(), zap.NewNop(), nil, nil)
	return bus, s
}

func podSpec(cpu, mem, priority int64) simtype.PodSpec {
	return simtype.PodSpec{Request: simtype.Resource{CPU: cpu, Memory: mem}, Priority: priority}
}

func TestSchedulerPlacesFeasiblePod(t *testing.T) {
	bus, s := newTestScheduler(t)

	var placed simevents.UpdatePodFromScheduler
	bus.Register(apihub.Key, func(now float64, ev eventbus.Event) {
		if ev.Kind == simevents.KindUpdatePodFromSched {
			placed = ev.Payload.(simevents.UpdatePodFromScheduler)
		}
	})

	s.onAddNode(simevents.AddNode{Node: simtype.NewNode(1, 1, simtype.Resource{CPU: 2000, Memory: 2000}, nil, nil)})
	s.onAddPod(simevents.AddPod{Pod: simtype.NewPod(1, 1, podSpec(1000, 1000, 0), nil)})

	s.runCycle()
	bus.RunUntil(bus.Now() + 10)

	require.Equal(t, simtype.PodID(1), placed.Pod.ID)
	require.Equal(t, simtype.NodeID(1), placed.NodeID)
	require.True(t, s.pods[1].Status.Assigned)
}

func TestSchedulerStarvesWhenNoCapacity(t *testing.T) {
	_, s := newTestScheduler(t)
	s.onAddNode(simevents.AddNode{Node: simtype.NewNode(1, 1, simtype.Resource{CPU: 100, Memory: 100}, nil, nil)})
	s.onAddPod(simevents.AddPod{Pod: simtype.NewPod(1, 1, podSpec(1000, 1000, 0), nil)})

	s.runCycle()

	require.True(t, s.pods[1].Status.Starvation)
	require.False(t, s.pods[1].Status.Assigned)
	require.Equal(t, 1, s.unschedulable.Len())
}

// TestSchedulerEscalatesRepeatedFailuresToExponentialBackoff covers the
// pending <-> backoff cycling spec.md names for a pod with no
// satisfiable capacity: the first failure lands it in the unschedulable
// queue, but every failure after that escalates it into the backoff
// queue instead, and the starvation flag stays set throughout.
func TestSchedulerEscalatesRepeatedFailuresToExponentialBackoff(t *testing.T) {
	bus, s := newTestScheduler(t)
	s.onAddNode(simevents.AddNode{Node: simtype.NewNode(1, 1, simtype.Resource{CPU: 100, Memory: 100}, nil, nil)})
	s.onAddPod(simevents.AddPod{Pod: simtype.NewPod(1, 1, podSpec(1000, 1000, 0), nil)})

	s.runCycle()
	require.Equal(t, 1, s.unschedulable.Len())
	require.Equal(t, 0, s.backoff.Len())
	require.Equal(t, 1, s.failedAttempts[1])

	bus.RunUntil(bus.Now() + s.cfg.UnschedulableQueueBackoffDelay)
	s.runCycle()

	require.Equal(t, 0, s.unschedulable.Len())
	require.Equal(t, 1, s.backoff.Len())
	require.Equal(t, 2, s.failedAttempts[1])
	require.True(t, s.pods[1].Status.Starvation)

	bus.RunUntil(bus.Now() + backoffMaxDelay)
	s.runCycle()

	require.Equal(t, 0, s.unschedulable.Len())
	require.Equal(t, 1, s.backoff.Len())
	require.Equal(t, 3, s.failedAttempts[1])
}

func TestSchedulerPreemptsLowerPriorityVictim(t *testing.T) {
	bus, s := newTestScheduler(t)

	var calls []simevents.UpdatePodFromScheduler
	bus.Register(apihub.Key, func(now float64, ev eventbus.Event) {
		if ev.Kind == simevents.KindUpdatePodFromSched {
			calls = append(calls, ev.Payload.(simevents.UpdatePodFromScheduler))
		}
	})

	s.onAddNode(simevents.AddNode{Node: simtype.NewNode(1, 1, simtype.Resource{CPU: 1000, Memory: 1000}, nil, nil)})
	low := simtype.NewPod(1, 1, podSpec(1000, 1000, 0), nil)
	s.onAddPod(simevents.AddPod{Pod: low})
	s.runCycle()
	bus.RunUntil(bus.Now() + 10)
	require.True(t, s.pods[1].Status.Assigned)

	high := simtype.NewPod(2, 1, podSpec(1000, 1000, 10), nil)
	s.onAddPod(simevents.AddPod{Pod: high})
	s.runCycle()
	bus.RunUntil(bus.Now() + 10)

	require.Equal(t, simtype.PhasePreempted, s.pods[1].Status.Phase)
	require.False(t, s.pods[1].Status.Assigned)
	require.True(t, s.pods[2].Status.Assigned)
	require.Equal(t, []simtype.PodID{1}, calls[len(calls)-1].PreemptUIDs)
}

// TestSchedulerPicksLowestNodeIDAmongScoreTiedCandidates guards the fix
// for map-iteration-order nondeterminism: with several identically
// configured nodes, the winner among score ties must always be the
// lowest node id, regardless of the order they were added in.
func TestSchedulerPicksLowestNodeIDAmongScoreTiedCandidates(t *testing.T) {
	bus, s := newTestScheduler(t)

	var placed simevents.UpdatePodFromScheduler
	bus.Register(apihub.Key, func(now float64, ev eventbus.Event) {
		if ev.Kind == simevents.KindUpdatePodFromSched {
			placed = ev.Payload.(simevents.UpdatePodFromScheduler)
		}
	})

	for _, id := range []simtype.NodeID{5, 1, 9, 3, 7} {
		s.onAddNode(simevents.AddNode{Node: simtype.NewNode(id, 1, simtype.Resource{CPU: 1000, Memory: 1000}, nil, nil)})
	}
	s.onAddPod(simevents.AddPod{Pod: simtype.NewPod(1, 1, podSpec(100, 100, 0), nil)})

	s.runCycle()
	bus.RunUntil(bus.Now() + 10)

	require.Equal(t, simtype.NodeID(1), placed.NodeID)
}

func TestRemovePodGroupIsIdempotent(t *testing.T) {
	_, s := newTestScheduler(t)
	s.onAddNode(simevents.AddNode{Node: simtype.NewNode(1, 1, simtype.Resource{CPU: 1000, Memory: 1000}, nil, nil)})
	s.onAddPod(simevents.AddPod{Pod: simtype.NewPod(1, 5, podSpec(100, 100, 0), nil)})

	s.onRemovePodGroup(simevents.RemovePodGroup{GroupID: 5})
	require.NotContains(t, s.pods, simtype.PodID(1))

	require.NotPanics(t, func() {
		s.onRemovePodGroup(simevents.RemovePodGroup{GroupID: 5})
	})
}

func TestGetCAMetricsReportsUtilizationAndStarvation(t *testing.T) {
	bus, s := newTestScheduler(t)
	var reply simevents.PostCAMetrics
	bus.Register(apihub.Key, func(now float64, ev eventbus.Event) {
		if ev.Kind == simevents.KindPostCAMetrics {
			reply = ev.Payload.(simevents.PostCAMetrics)
		}
	})

	s.onAddNode(simevents.AddNode{Node: simtype.NewNode(1, 1, simtype.Resource{CPU: 100, Memory: 100}, nil, nil)})
	s.onAddPod(simevents.AddPod{Pod: simtype.NewPod(1, 1, podSpec(1000, 1000, 0), nil)})
	s.runCycle()

	s.onGetCAMetrics(simevents.GetCAMetrics{
		UsedNodes: []simtype.NodeID{1},
		AvailableGroups: []simevents.AvailableGroup{
			{GroupID: 7, Installed: simtype.Resource{CPU: 1000, Memory: 1000}},
		},
	})
	bus.RunUntil(bus.Now() + 10)

	require.Equal(t, 1, reply.PendingStarved)
	require.NotNil(t, reply.MayHelp)
	require.Equal(t, simtype.GroupID(7), *reply.MayHelp)
	require.Len(t, reply.Nodes, 1)
}

// TestGetCAMetricsSkipsGroupsThatCannotFitAnyStarvedPod exercises the
// capacity check itself: a first group too small for the starved pod's
// request must be skipped in favor of a later group that can fit it.
func TestGetCAMetricsSkipsGroupsThatCannotFitAnyStarvedPod(t *testing.T) {
	bus, s := newTestScheduler(t)
	var reply simevents.PostCAMetrics
	bus.Register(apihub.Key, func(now float64, ev eventbus.Event) {
		if ev.Kind == simevents.KindPostCAMetrics {
			reply = ev.Payload.(simevents.PostCAMetrics)
		}
	})

	s.onAddNode(simevents.AddNode{Node: simtype.NewNode(1, 1, simtype.Resource{CPU: 100, Memory: 100}, nil, nil)})
	s.onAddPod(simevents.AddPod{Pod: simtype.NewPod(1, 1, podSpec(1000, 1000, 0), nil)})
	s.runCycle()

	s.onGetCAMetrics(simevents.GetCAMetrics{
		UsedNodes: []simtype.NodeID{1},
		AvailableGroups: []simevents.AvailableGroup{
			{GroupID: 5, Installed: simtype.Resource{CPU: 500, Memory: 500}},
			{GroupID: 9, Installed: simtype.Resource{CPU: 2000, Memory: 2000}},
		},
	})
	bus.RunUntil(bus.Now() + 10)

	require.NotNil(t, reply.MayHelp)
	require.Equal(t, simtype.GroupID(9), *reply.MayHelp)
}

// TestGetCAMetricsReportsNoMayHelpWhenNoGroupFits covers the case where
// every available group's template node is smaller than the starved
// pod's request: MayHelp must stay nil rather than pointing at a group
// that cannot actually place the pod.
func TestGetCAMetricsReportsNoMayHelpWhenNoGroupFits(t *testing.T) {
	bus, s := newTestScheduler(t)
	var reply simevents.PostCAMetrics
	bus.Register(apihub.Key, func(now float64, ev eventbus.Event) {
		if ev.Kind == simevents.KindPostCAMetrics {
			reply = ev.Payload.(simevents.PostCAMetrics)
		}
	})

	s.onAddNode(simevents.AddNode{Node: simtype.NewNode(1, 1, simtype.Resource{CPU: 100, Memory: 100}, nil, nil)})
	s.onAddPod(simevents.AddPod{Pod: simtype.NewPod(1, 1, podSpec(1000, 1000, 0), nil)})
	s.runCycle()

	s.onGetCAMetrics(simevents.GetCAMetrics{
		UsedNodes: []simtype.NodeID{1},
		AvailableGroups: []simevents.AvailableGroup{
			{GroupID: 5, Installed: simtype.Resource{CPU: 500, Memory: 500}},
		},
	})
	bus.RunUntil(bus.Now() + 10)

	require.Nil(t, reply.MayHelp)
}
